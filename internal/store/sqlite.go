package store

import (
	"context"
	"database/sql"
	"fmt"

	"tradeday/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ExceptionReader = (*SQLiteStore)(nil)
var _ ExceptionWriter = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS exceptions (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	flag TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exceptions_date ON exceptions(date);
`

// SQLiteStore keeps an exception list in the exceptions table of a SQLite
// database. Rows are returned in insertion order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// exceptions table if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating exceptions table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReadExceptions returns every row of the exceptions table.
func (s *SQLiteStore) ReadExceptions(ctx context.Context) ([]domain.ExceptionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, flag FROM exceptions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying exceptions: %w", err)
	}
	defer rows.Close()

	var records []domain.ExceptionRecord
	for rows.Next() {
		var rec domain.ExceptionRecord
		if err := rows.Scan(&rec.Date, &rec.Flag); err != nil {
			return nil, fmt.Errorf("scanning exception row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// WriteExceptions replaces the table content with records in one
// transaction.
func (s *SQLiteStore) WriteExceptions(ctx context.Context, records []domain.ExceptionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exceptions`); err != nil {
		return fmt.Errorf("clearing exceptions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO exceptions (date, flag) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Date, rec.Flag); err != nil {
			return fmt.Errorf("inserting exception %s: %w", rec.Date, err)
		}
	}
	return tx.Commit()
}
