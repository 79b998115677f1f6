// Package storage is the SQLite record store. Both tables carry an owner_id
// column; the autoincrement id gives insertion order.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ records.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, creating its directory, and applies
// the embedded migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB, logger *log.Logger) *SQLiteRepository {
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const countTablesQuery = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('journeys', 'expenses')`

// Initialize verifies that the schema is in place. Tables are created by
// migrations, so there is nothing to write.
func (r *SQLiteRepository) Initialize(ctx context.Context, owner core.OwnerID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	var n int
	if err := r.db.QueryRowContext(ctx, countTablesQuery).Scan(&n); err != nil {
		return &core.StorageError{Op: log.OpInit, Err: err}
	}
	if n != 2 {
		return &core.StorageError{Op: log.OpInit, Err: fmt.Errorf("found %d of 2 record tables, migrations not applied", n)}
	}
	return nil
}

const insertJourney = `INSERT INTO journeys (owner_id, name, phone, origin, destination, fare_cents, journey_date)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) AppendJourney(ctx context.Context, owner core.OwnerID, j core.Journey) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, insertJourney,
		string(owner), j.Name, j.Phone, j.Origin, j.Destination, j.Fare.Cents, j.Date.String())
	if err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: records.JourneysTable, Err: err}
	}
	id, _ := res.LastInsertId()
	r.logger.InfoContext(ctx, "Journey saved to SQLite",
		"id", id,
		log.FieldOwner, owner,
		log.FieldDate, j.Date.String(),
		log.FieldAmountCents, j.Fare.Cents)
	return nil
}

const insertExpense = `INSERT INTO expenses (owner_id, expense_type, amount_cents, date, notes)
VALUES (?, ?, ?, ?, ?)`

func (r *SQLiteRepository) AppendExpense(ctx context.Context, owner core.OwnerID, e core.Expense) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, insertExpense,
		string(owner), string(e.Type), e.Amount.Cents, e.Date.String(), e.Notes)
	if err != nil {
		return &core.StorageError{Op: log.OpAppend, Table: records.ExpensesTable, Err: err}
	}
	id, _ := res.LastInsertId()
	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		log.FieldOwner, owner,
		log.FieldExpenseType, e.Type,
		log.FieldAmountCents, e.Amount.Cents)
	return nil
}

const selectJourneys = `SELECT name, phone, origin, destination, fare_cents, journey_date
FROM journeys WHERE owner_id = ? ORDER BY id`

func (r *SQLiteRepository) ReadJourneys(ctx context.Context, owner core.OwnerID) ([]core.Journey, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, selectJourneys, string(owner))
	if err != nil {
		return nil, &core.StorageError{Op: log.OpRead, Table: records.JourneysTable, Err: err}
	}
	defer rows.Close()

	out := []core.Journey{}
	for rows.Next() {
		var (
			j    core.Journey
			fare int64
			date string
		)
		if err := rows.Scan(&j.Name, &j.Phone, &j.Origin, &j.Destination, &fare, &date); err != nil {
			return nil, &core.StorageError{Op: log.OpRead, Table: records.JourneysTable, Err: err}
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, &core.StorageError{Op: log.OpRead, Table: records.JourneysTable, Err: fmt.Errorf("%w: %v", core.ErrMalformedData, err)}
		}
		j.Fare, j.Date = core.Cents(fare), d
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: log.OpRead, Table: records.JourneysTable, Err: err}
	}
	return out, nil
}

const selectExpenses = `SELECT expense_type, amount_cents, date, notes
FROM expenses WHERE owner_id = ? ORDER BY id`

func (r *SQLiteRepository) ReadExpenses(ctx context.Context, owner core.OwnerID) ([]core.Expense, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, selectExpenses, string(owner))
	if err != nil {
		return nil, &core.StorageError{Op: log.OpRead, Table: records.ExpensesTable, Err: err}
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var (
			e      core.Expense
			typ    string
			amount int64
			date   string
		)
		if err := rows.Scan(&typ, &amount, &date, &e.Notes); err != nil {
			return nil, &core.StorageError{Op: log.OpRead, Table: records.ExpensesTable, Err: err}
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, &core.StorageError{Op: log.OpRead, Table: records.ExpensesTable, Err: fmt.Errorf("%w: %v", core.ErrMalformedData, err)}
		}
		e.Type, e.Amount, e.Date = core.ExpenseType(typ), core.Cents(amount), d
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: log.OpRead, Table: records.ExpensesTable, Err: err}
	}
	return out, nil
}
