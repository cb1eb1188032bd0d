package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cleanistic/models"
)

//go:embed schema/postgres.sql
var postgresSchema string

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Analyses
// =============================================================================

func (s *PostgresStore) CreateAnalysis(ctx context.Context, a *models.PropertyAnalysis) error {
	row, err := newAnalysisRow(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analyses (
			id, address, address_key, cell_token, total_estimate, confidence, created_at, record
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.Address, row.addressKey, row.cellToken, a.TotalEstimate, a.Confidence, a.Timestamp, row.record,
	)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("analysis %s: %w", a.ID, ErrDuplicate)
	}
	return err
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*models.PropertyAnalysis, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM analyses WHERE id = $1`, id).Scan(&record)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeAnalysis(record)
}

func (s *PostgresStore) ListAnalyses(ctx context.Context) ([]*models.PropertyAnalysis, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM analyses ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []*models.PropertyAnalysis{}
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		a, err := decodeAnalysis(record)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// =============================================================================
// Quotes
// =============================================================================

func (s *PostgresStore) CreateQuote(ctx context.Context, q *models.Quote) error {
	record, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.ID, err)
	}

	query := `
		INSERT INTO quotes (
			id, analysis_id, customer_id, status, total_price, valid_until, created_at, record
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		q.ID, q.PropertyAnalysisID, q.CustomerID, string(q.Status), q.TotalPrice, q.ValidUntil, q.CreatedAt, record,
	)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("quote %s: %w", q.ID, ErrDuplicate)
	}
	return err
}

func (s *PostgresStore) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM quotes WHERE id = $1`, id).Scan(&record)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeQuote(record)
}

func (s *PostgresStore) ListQuotes(ctx context.Context) ([]*models.Quote, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM quotes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := []*models.Quote{}
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		q, err := decodeQuote(record)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (s *PostgresStore) UpdateQuoteStatus(ctx context.Context, id string, from, to models.QuoteStatus) (*models.Quote, error) {
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

	tag, err := s.pool.Exec(ctx, `
		UPDATE quotes SET status = $2, record = $3
		WHERE id = $1 AND status = $4`,
		id, string(to), record, string(from),
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		current, err := s.GetQuote(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, statusMiss(current, id, from)
	}
	return q, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
