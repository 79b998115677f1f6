package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fareboard/internal/core"
	"fareboard/internal/metrics"
	"fareboard/internal/middleware/auth"
	"fareboard/internal/records/memory"
	"fareboard/internal/report"
	"fareboard/internal/services"
)

var fixedToday = core.NewDate(2024, 3, 20)

type failingStore struct {
	*memory.Store
}

func (failingStore) ReadJourneys(context.Context, core.OwnerID) ([]core.Journey, error) {
	return nil, &core.StorageError{Op: "read", Table: "journeys", Err: errors.New("disk gone")}
}

func newTestServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()
	store := memory.New()
	deps := Deps{
		Records: services.NewRecordService(store, core.NewExpenseTypes()),
		Reports: report.NewService(store, nil),
		Today:   func() core.Date { return fixedToday },
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, contentType, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

const tripJSON = `{
	"journey_date": "2024-03-18",
	"origin": "Lagos",
	"destination": "Ibadan",
	"fare": 25.50,
	"passengers": [
		{"name": "Ada", "phone": "+2348012345678"},
		{"name": "", "phone": ""},
		{"name": "Bola", "phone": "08012345678"}
	]
}`

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, "", ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	notReady := newTestServer(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("store offline") }
	})
	if rr := do(t, notReady, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestExpenseTypes(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := do(t, srv, http.MethodGet, "/expense-types", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decode[struct {
		ExpenseTypes []string `json:"expense_types"`
		TripCapacity int      `json:"trip_capacity"`
	}](t, rr)
	if len(body.ExpenseTypes) != len(core.DefaultExpenseTypes) || body.TripCapacity != services.DefaultTripCapacity {
		t.Fatalf("body=%+v", body)
	}
}

func TestCreateTripAndList(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/trips", "application/json", tripJSON)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[struct {
		Count int `json:"count"`
	}](t, rr)
	if created.Count != 2 {
		t.Fatalf("count=%d", created.Count)
	}

	rr = do(t, srv, http.MethodGet, "/journeys?limit=1", "", "")
	listed := decode[struct {
		Journeys []core.Journey `json:"journeys"`
	}](t, rr)
	if len(listed.Journeys) != 1 || listed.Journeys[0].Name != "Bola" {
		t.Fatalf("journeys=%+v", listed.Journeys)
	}
	if listed.Journeys[0].Fare != core.Cents(2550) {
		t.Fatalf("fare=%v", listed.Journeys[0].Fare)
	}
}

func TestCreateTripFromForm(t *testing.T) {
	srv := newTestServer(t, nil)
	form := url.Values{
		"journey_date":      {"2024-03-18"},
		"origin":            {"Lagos"},
		"destination":       {"Abuja"},
		"fare":              {"40,00"},
		"passenger_name_1":  {"Ada"},
		"passenger_phone_1": {"+2348012345678"},
		"passenger_name_3":  {"Chidi"},
		"passenger_phone_3": {"08098765432"},
	}
	rr := do(t, srv, http.MethodPost, "/trips", "application/x-www-form-urlencoded", form.Encode())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[struct{ Count int }](t, rr).Count; got != 2 {
		t.Fatalf("count=%d", got)
	}
}

func TestCreateTripErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		code        int
		detail      string
	}{
		{"malformed json", "application/json", `{"origin":`, http.StatusBadRequest, ""},
		{"wrong type", "application/json", `{"passengers": "Ada"}`, http.StatusBadRequest, ""},
		{"no passengers", "application/json", `{"journey_date":"2024-03-18","origin":"A","destination":"B","fare":5,"passengers":[]}`, http.StatusUnprocessableEntity, "At least one passenger"},
		{"bad phone", "application/json", `{"journey_date":"2024-03-18","origin":"A","destination":"B","fare":5,"passengers":[{"name":"Ada","phone":"abc"}]}`, http.StatusUnprocessableEntity, "Invalid phone number for passenger 1"},
		{"bad form fare", "application/x-www-form-urlencoded", "journey_date=2024-03-18&fare=-3", http.StatusUnprocessableEntity, "amount must be a positive number"},
		{"bad form date", "application/x-www-form-urlencoded", "journey_date=18/03/2024", http.StatusUnprocessableEntity, "date must be YYYY-MM-DD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			rr := do(t, srv, http.MethodPost, "/trips", tt.contentType, tt.body)
			if rr.Code != tt.code {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			body := decode[ErrorBody](t, rr)
			if tt.detail != "" && !strings.Contains(strings.Join(body.Details, "\n"), tt.detail) {
				t.Fatalf("details=%q, want %q", body.Details, tt.detail)
			}
		})
	}
}

func TestCreateExpense(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/expenses", "application/x-www-form-urlencoded",
		"expense_type=fuel&amount=12,34&date=2024-03-19&notes=full+tank")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	e := decode[core.Expense](t, rr)
	if e.Type != "Fuel" || e.Amount != core.Cents(1234) {
		t.Fatalf("expense=%+v", e)
	}

	rr = do(t, srv, http.MethodPost, "/expenses", "application/json", `{"expense_type":"Snacks","amount":3,"date":"2024-03-19"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown type status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/expenses", "", "")
	listed := decode[struct {
		Expenses []core.Expense `json:"expenses"`
	}](t, rr)
	if len(listed.Expenses) != 1 {
		t.Fatalf("expenses=%+v", listed.Expenses)
	}

	if rr := do(t, srv, http.MethodGet, "/expenses?limit=x", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", rr.Code)
	}
}

func TestReportsReflectAppends(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(t, func(d *Deps) { d.Metrics = m })

	rr := do(t, srv, http.MethodGet, "/reports/metrics", "", "")
	if got := decode[core.Metrics](t, rr); got.PassengerCount != 0 {
		t.Fatalf("empty metrics=%+v", got)
	}
	if rr := do(t, srv, http.MethodGet, "/reports/performance", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("empty performance status=%d", rr.Code)
	}

	do(t, srv, http.MethodPost, "/trips", "application/json", tripJSON)
	do(t, srv, http.MethodPost, "/expenses", "application/json", `{"expense_type":"Fuel","amount":10,"date":"2024-03-19"}`)

	got := decode[core.Metrics](t, do(t, srv, http.MethodGet, "/reports/metrics", "", ""))
	want := core.Metrics{
		TotalRevenue:     core.Cents(5100),
		TotalExpenses:    core.Cents(1000),
		NetProfit:        core.Cents(4100),
		PassengerCount:   2,
		UniquePassengers: 2,
	}
	if got != want {
		t.Fatalf("metrics=%+v, want %+v", got, want)
	}

	rr = do(t, srv, http.MethodGet, "/reports/performance?granularity=weekly", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("performance status=%d", rr.Code)
	}
	perf := decode[core.PeriodPerformance](t, rr)
	if perf.TotalTrips != 1 || perf.TotalPassengers != 2 {
		t.Fatalf("performance=%+v", perf)
	}

	rr = do(t, srv, http.MethodGet, "/reports/revenue?start=2024-03-01&end=2024-03-31&granularity=monthly", "", "")
	revenue := decode[struct {
		Periods []core.PeriodRevenue `json:"periods"`
	}](t, rr)
	if len(revenue.Periods) != 1 || revenue.Periods[0].Period.String() != "2024-03-31" {
		t.Fatalf("periods=%+v", revenue.Periods)
	}

	rr = do(t, srv, http.MethodGet, "/reports/expenses", "", "")
	breakdown := decode[struct {
		Expenses []core.ExpenseTypeAmount `json:"expenses"`
	}](t, rr)
	if len(breakdown.Expenses) != 1 || breakdown.Expenses[0].Amount != core.Cents(1000) {
		t.Fatalf("breakdown=%+v", breakdown.Expenses)
	}

	scrape := do(t, srv, http.MethodGet, "/metrics", "", "").Body.String()
	for _, want := range []string{
		`fareboard_records_appended_total{table="journeys"} 2`,
		`fareboard_report_cache_lookups_total{result="miss"}`,
	} {
		if !strings.Contains(scrape, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestReportQueryErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, target := range []string{
		"/reports/revenue?granularity=yearly",
		"/reports/metrics?start=2024-04-01&end=2024-03-01",
		"/reports/metrics?start=yesterday",
		"/reports/summary.pdf?end=2024-13-01",
	} {
		if rr := do(t, srv, http.MethodGet, target, "", ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status=%d", target, rr.Code)
		}
	}
}

func TestSummaryDocuments(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/trips", "application/json", tripJSON)

	rr := do(t, srv, http.MethodGet, "/reports/summary.pdf?start=2024-03-01", "", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Fatal("body is not a PDF")
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "fareboard-default-2024-03-01_2024-03-20.pdf") {
		t.Fatalf("Content-Disposition=%q", cd)
	}

	rr = do(t, srv, http.MethodGet, "/reports/summary.txt", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "51.00") {
		t.Fatalf("text summary status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestStorageFailureIsInternalError(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) {
		store := failingStore{Store: memory.New()}
		d.Records = services.NewRecordService(store, core.NewExpenseTypes())
		d.Reports = report.NewService(store, nil)
	})
	for _, target := range []string{"/journeys", "/reports/metrics"} {
		rr := do(t, srv, http.MethodGet, target, "", "")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s status=%d", target, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "disk gone") {
			t.Fatalf("%s leaked storage detail: %s", target, rr.Body.String())
		}
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	const secret = "test-secret"
	srv := newTestServer(t, func(d *Deps) {
		d.Auth = auth.New(secret, "default", PublicPaths, nil)
	})
	acme, err := auth.IssueToken(secret, "acme", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	globex, _ := auth.IssueToken(secret, "globex", time.Hour)

	if rr := do(t, srv, http.MethodGet, "/journeys", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}

	rr := do(t, srv, http.MethodPost, "/trips", "application/json", tripJSON, "Authorization", "Bearer "+acme)
	if rr.Code != http.StatusCreated {
		t.Fatalf("acme create status=%d", rr.Code)
	}

	count := func(token string) int {
		rr := do(t, srv, http.MethodGet, "/journeys", "", "", "Authorization", "Bearer "+token)
		return len(decode[struct {
			Journeys []core.Journey `json:"journeys"`
		}](t, rr).Journeys)
	}
	if got := count(acme); got != 2 {
		t.Fatalf("acme journeys=%d", got)
	}
	if got := count(globex); got != 0 {
		t.Fatalf("globex journeys=%d", got)
	}
}

func TestPostRateLimit(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) { d.RateLimitPerMinute = 1 })

	body := `{"expense_type":"Fuel","amount":1,"date":"2024-03-19"}`
	if rr := do(t, srv, http.MethodPost, "/expenses", "application/json", body); rr.Code != http.StatusCreated {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/expenses", "application/json", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second status=%d retry=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := do(t, srv, http.MethodGet, "/expenses", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET should not be limited, status=%d", rr.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := do(t, srv, http.MethodGet, "/expense-types", "", "", "X-Request-ID", "abc-123")
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID=%q", got)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("security headers missing: %v", rr.Header())
	}
	if rr := do(t, srv, http.MethodDelete, "/journeys", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE status=%d", rr.Code)
	}
}

// cancelAwareReports fails metrics computations whose context is done.
type cancelAwareReports struct {
	ReportService
}

func (c cancelAwareReports) ComputeMetrics(ctx context.Context, owner core.OwnerID, start, end core.Date) (core.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return core.Metrics{}, err
	}
	return c.ReportService.ComputeMetrics(ctx, owner, start, end)
}

func TestSharedReportSurvivesCallerCancellation(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) { d.Reports = cancelAwareReports{d.Reports} })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/reports/metrics", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancelled caller: status = %d, body = %s", rr.Code, rr.Body)
	}

	// The computed result is cached for the next caller.
	if rr := do(t, srv, http.MethodGet, "/reports/metrics", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
