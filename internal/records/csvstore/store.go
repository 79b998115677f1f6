// Package csvstore is the default record store: one directory per owner
// holding journeys.csv and expenses.csv, each a header row followed by one
// line per record.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"
)

// Store appends and scans CSV tables under a root directory. Appends from
// one process are serialized; there is no cross-process locking.
type Store struct {
	mu     sync.Mutex
	root   string
	logger *log.Logger
}

var _ records.Store = (*Store)(nil)

func New(root string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{root: root, logger: logger.WithComponent(log.ComponentStorage)}
}

type table struct {
	name    string
	columns []string
}

var (
	journeys = table{name: records.JourneysTable, columns: records.JourneyColumns}
	expenses = table{name: records.ExpensesTable, columns: records.ExpenseColumns}
)

func (s *Store) path(owner core.OwnerID, t table) string {
	return filepath.Join(s.root, string(owner), t.name+".csv")
}

// Ping reports whether the root directory exists or can be created.
func (s *Store) Ping(context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Initialize creates the owner directory and both tables with their headers.
// Existing files are left untouched once their header is verified.
func (s *Store) Initialize(ctx context.Context, owner core.OwnerID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range []table{journeys, expenses} {
		if err := s.ensureTable(owner, t); err != nil {
			return err
		}
	}
	s.logger.DebugContext(ctx, "Record tables ready", log.FieldOwner, owner)
	return nil
}

func (s *Store) ensureTable(owner core.OwnerID, t table) error {
	p := s.path(owner, t)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &core.StorageError{Op: log.OpInit, Table: t.name, Err: err}
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return &core.StorageError{Op: log.OpInit, Table: t.name, Err: err}
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	switch {
	case errors.Is(err, io.EOF):
		if err := writeRows(f, t.columns); err != nil {
			return &core.StorageError{Op: log.OpInit, Table: t.name, Err: err}
		}
		return nil
	case err != nil:
		return &core.StorageError{Op: log.OpInit, Table: t.name, Err: fmt.Errorf("%w: %v", core.ErrMalformedData, err)}
	case !records.HeaderMatches(header, t.columns):
		return &core.StorageError{Op: log.OpInit, Table: t.name, Err: fmt.Errorf("%w: header %v", core.ErrMalformedData, header)}
	}
	return nil
}

func (s *Store) AppendJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error {
	if err := s.append(owner, journeys, records.JourneyRow(j)); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Journey appended",
		log.FieldOwner, owner,
		log.FieldTable, journeys.name,
		log.FieldDate, j.Date.String(),
		log.FieldAmountCents, j.Fare.Cents)
	return nil
}

func (s *Store) AppendExpense(ctx context.Context, owner core.OwnerID, e core.Expense) error {
	if err := s.append(owner, expenses, records.ExpenseRow(e)); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense appended",
		log.FieldOwner, owner,
		log.FieldTable, expenses.name,
		log.FieldExpenseType, e.Type,
		log.FieldAmountCents, e.Amount.Cents)
	return nil
}

// append writes one line with O_APPEND. A missing or empty file gets the
// header first; a populated file's header is never rewritten. A last row
// missing its line terminator is closed off before the new row is written.
func (s *Store) append(owner core.OwnerID, t table, row []string) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(owner, t)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: t.name, Err: err}
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: t.name, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: t.name, Err: err}
	}
	rows := [][]string{row}
	if st.Size() == 0 {
		rows = [][]string{t.columns, row}
	} else if err := terminateLastLine(f, st.Size()); err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: t.name, Err: err}
	}
	if err := writeRows(f, rows...); err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: t.name, Err: err}
	}
	return nil
}

func terminateLastLine(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("read last byte: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("terminate last row: %w", err)
	}
	return nil
}

func writeRows(f *os.File, rows ...[]string) error {
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (s *Store) ReadJourneys(ctx context.Context, owner core.OwnerID) ([]core.Journey, error) {
	out := []core.Journey{}
	err := s.scan(owner, journeys, func(row []string) error {
		j, err := records.ParseJourneyRow(row)
		if err != nil {
			return err
		}
		out = append(out, j)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Journeys read", log.FieldOwner, owner, log.FieldRows, len(out))
	return out, nil
}

func (s *Store) ReadExpenses(ctx context.Context, owner core.OwnerID) ([]core.Expense, error) {
	out := []core.Expense{}
	err := s.scan(owner, expenses, func(row []string) error {
		e, err := records.ParseExpenseRow(row)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Expenses read", log.FieldOwner, owner, log.FieldRows, len(out))
	return out, nil
}

// scan feeds every data row to fn in file order. A missing or empty file
// yields no rows.
func (s *Store) scan(owner core.OwnerID, t table, fn func([]string) error) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	f, err := os.Open(s.path(owner, t))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &core.StorageError{Op: log.OpRead, Table: t.name, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(t.columns)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &core.StorageError{Op: log.OpRead, Table: t.name, Err: fmt.Errorf("%w: %v", core.ErrMalformedData, err)}
	}
	if !records.HeaderMatches(header, t.columns) {
		return &core.StorageError{Op: log.OpRead, Table: t.name, Err: fmt.Errorf("%w: header %v", core.ErrMalformedData, header)}
	}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &core.StorageError{Op: log.OpRead, Table: t.name, Err: fmt.Errorf("%w: %v", core.ErrMalformedData, err)}
		}
		if err := fn(row); err != nil {
			return &core.StorageError{Op: log.OpRead, Table: t.name, Err: fmt.Errorf("line %d: %w", line, err)}
		}
	}
}
