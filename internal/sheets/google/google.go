package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/sheets"
)

var _ sheets.Mirror = (*Client)(nil)

// Options configures the spreadsheet and the service account used to reach it.
type Options struct {
	SpreadsheetID   string
	JourneysSheet   string
	ExpensesSheet   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	journeysSheet string
	expensesSheet string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account. Inline
// JSON wins over a credentials file; GOOGLE_APPLICATION_CREDENTIALS is the
// last fallback.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	creds, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, opts, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newClient(ctx context.Context, opts Options, logger *log.Logger, clientOpts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	c := &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		journeysSheet: nonEmpty(opts.JourneysSheet, "Journeys"),
		expensesSheet: nonEmpty(opts.ExpensesSheet, "Expenses"),
		logger:        logger.WithComponent(log.ComponentSheets),
	}
	c.logger.InfoContext(ctx, "Google Sheets mirror ready",
		"spreadsheet_id", c.spreadsheetID,
		"journeys_sheet", c.journeysSheet,
		"expenses_sheet", c.expensesSheet)
	return c, nil
}

func loadCredentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) EnsureHeaders(ctx context.Context) error {
	if err := c.ensureHeader(ctx, c.journeysSheet, sheets.JourneyHeader()); err != nil {
		return err
	}
	return c.ensureHeader(ctx, c.expensesSheet, sheets.ExpenseHeader())
}

func (c *Client) ensureHeader(ctx context.Context, sheet string, header []string) error {
	rng := headerRange(sheet, len(header))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 {
		if got := toStrings(resp.Values[0]); !equalFold(got, header) {
			c.logger.WarnContext(ctx, "Sheet header differs from mirrored columns",
				"sheet", sheet, "got", got, "want", header)
		}
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{toValues(header)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Wrote sheet header", "sheet", sheet)
	return nil
}

func (c *Client) AppendJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error {
	return c.appendRow(ctx, c.journeysSheet, sheets.JourneyValues(owner, j))
}

func (c *Client) AppendExpense(ctx context.Context, owner core.OwnerID, e core.Expense) error {
	return c.appendRow(ctx, c.expensesSheet, sheets.ExpenseValues(owner, e))
}

// appendRow adds one row after the sheet's last data row. Values are RAW so
// phone numbers keep their leading "+".
func (c *Client) appendRow(ctx context.Context, sheet string, row []string) error {
	rng := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{toValues(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Mirrored row", "sheet", sheet, "range", updated)
	return nil
}

func headerRange(sheet string, cols int) string {
	return fmt.Sprintf("%s!A1:%s1", sheet, columnLetter(cols))
}

// columnLetter converts a 1-based column index to A1 notation.
func columnLetter(n int) string {
	if n < 1 {
		return "A"
	}
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

func toValues(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func nonEmpty(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
