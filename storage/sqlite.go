package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"

	"cleanistic/models"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := runSQLiteMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// runSQLiteMigrations applies the embedded schema on its own connection;
// the migrate driver closes the database it is given.
func runSQLiteMigrations(dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return err
	}

	src, err := iofs.New(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		driver.Close()
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		driver.Close()
		return err
	}
	defer m.Close()

	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, a *models.PropertyAnalysis) error {
	row, err := newAnalysisRow(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, address, address_key, cell_token, total_estimate, confidence, created_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Address, row.addressKey, row.cellToken, a.TotalEstimate, a.Confidence, a.Timestamp, string(row.record))
	if isUniqueViolation(err) {
		return fmt.Errorf("analysis %s: %w", a.ID, ErrDuplicate)
	}
	return err
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*models.PropertyAnalysis, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM analyses WHERE id = ?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeAnalysis([]byte(record))
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context) ([]*models.PropertyAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM analyses ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []*models.PropertyAnalysis{}
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		a, err := decodeAnalysis([]byte(record))
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func (s *SQLiteStore) CreateQuote(ctx context.Context, q *models.Quote) error {
	record, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, analysis_id, customer_id, status, total_price, valid_until, created_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.PropertyAnalysisID, q.CustomerID, q.Status, q.TotalPrice, q.ValidUntil, q.CreatedAt, string(record))
	if isUniqueViolation(err) {
		return fmt.Errorf("quote %s: %w", q.ID, ErrDuplicate)
	}
	return err
}

func (s *SQLiteStore) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM quotes WHERE id = ?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeQuote([]byte(record))
}

func (s *SQLiteStore) ListQuotes(ctx context.Context) ([]*models.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM quotes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := []*models.Quote{}
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		q, err := decodeQuote([]byte(record))
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (s *SQLiteStore) UpdateQuoteStatus(ctx context.Context, id string, from, to models.QuoteStatus) (*models.Quote, error) {
	q, err := s.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil || q.Status != from {
		return nil, statusMiss(q, id, from)
	}

	q.Status = to
	record, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quote %s: %w", id, err)
	}

	// the status guard makes the write lose to any update that landed
	// after the read above
	result, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET status = ?, record = ?
		WHERE id = ? AND status = ?`,
		string(to), string(record), id, string(from))
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		current, err := s.GetQuote(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, statusMiss(current, id, from)
	}
	return q, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
