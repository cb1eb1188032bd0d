package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cleanistic/identity"
	"cleanistic/models"
)

var (
	// ErrDuplicate is returned when a record with the same id already exists
	ErrDuplicate = errors.New("record already exists")
	// ErrNotFound is returned when updating a record that does not exist
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a quote is no longer in the
	// status a conditional update expected
	ErrStatusConflict = errors.New("quote status changed")
)

// Store persists analyses and quotes. Get methods return nil, nil when no
// record exists. Lists are in insertion order. Implementations are safe for
// concurrent use.
type Store interface {
	CreateAnalysis(ctx context.Context, a *models.PropertyAnalysis) error
	GetAnalysis(ctx context.Context, id string) (*models.PropertyAnalysis, error)
	ListAnalyses(ctx context.Context) ([]*models.PropertyAnalysis, error)

	CreateQuote(ctx context.Context, q *models.Quote) error
	GetQuote(ctx context.Context, id string) (*models.Quote, error)
	ListQuotes(ctx context.Context) ([]*models.Quote, error)
	// UpdateQuoteStatus moves a quote from one status to another in a single
	// step. It fails with ErrStatusConflict when the stored status is not
	// from, and ErrNotFound when the quote does not exist.
	UpdateQuoteStatus(ctx context.Context, id string, from, to models.QuoteStatus) (*models.Quote, error)

	Close() error
}

// analysisRow holds the indexed columns stored next to the JSON record
type analysisRow struct {
	addressKey string
	cellToken  string
	record     []byte
}

func newAnalysisRow(a *models.PropertyAnalysis) (analysisRow, error) {
	record, err := json.Marshal(a)
	if err != nil {
		return analysisRow{}, fmt.Errorf("encode analysis %s: %w", a.ID, err)
	}
	return analysisRow{
		addressKey: identity.AddressKey(a.Address),
		cellToken:  a.Coordinates.CellToken(),
		record:     record,
	}, nil
}

func decodeAnalysis(record []byte) (*models.PropertyAnalysis, error) {
	var a models.PropertyAnalysis
	if err := json.Unmarshal(record, &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}

// statusMiss tells a missing quote apart from one whose status moved on
func statusMiss(current *models.Quote, id string, from models.QuoteStatus) error {
	if current == nil {
		return fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("quote %s is %s, not %s: %w", id, current.Status, from, ErrStatusConflict)
}

func decodeQuote(record []byte) (*models.Quote, error) {
	var q models.Quote
	if err := json.Unmarshal(record, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &q, nil
}
