package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"cleanistic/config"
	"cleanistic/models"
	"cleanistic/storage"
)

const (
	defaultValidityDays  = 30
	statusUpdateAttempts = 3
)

// QuoteService generates quotes from stored analyses and moves them through
// the sales workflow
type QuoteService struct {
	store        storage.Store
	validityDays int
	strict       bool

	now   func() time.Time
	newID func() string
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(store storage.Store, cfg config.QuoteConfig) *QuoteService {
	days := cfg.ValidityDays
	if days <= 0 {
		days = defaultValidityDays
	}
	return &QuoteService{
		store:        store,
		validityDays: days,
		strict:       cfg.StrictTransitions,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// QuoteFilter narrows ListQuotes. Zero value lists everything.
type QuoteFilter struct {
	Status     models.QuoteStatus
	AnalysisID string
}

// GenerateQuote creates a draft quote carrying the analysis services and
// total verbatim
func (s *QuoteService) GenerateQuote(ctx context.Context, analysisID string, customer models.CustomerInfo, notes string) (*models.Quote, error) {
	analysis, err := s.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	if analysis == nil {
		return nil, &models.AnalysisNotFoundError{ID: analysisID}
	}

	createdAt := s.now()
	quote := &models.Quote{
		ID:                 s.newID(),
		PropertyAnalysisID: analysis.ID,
		CustomerID:         s.newID(),
		CustomerInfo:       customer,
		Services:           models.CloneEstimates(analysis.Services),
		TotalPrice:         analysis.TotalEstimate,
		Status:             models.QuoteStatusDraft,
		ValidUntil:         createdAt.AddDate(0, 0, s.validityDays),
		CreatedAt:          createdAt,
		Notes:              notes,
	}

	if err := s.store.CreateQuote(ctx, quote); err != nil {
		return nil, fmt.Errorf("store quote: %w", err)
	}

	log.Printf("Quote: %s created for analysis %s (total %d, valid until %s)",
		quote.ID, analysis.ID, quote.TotalPrice, quote.ValidUntil.Format(time.DateOnly))
	return quote, nil
}

func (s *QuoteService) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if q == nil {
		return nil, &models.QuoteNotFoundError{ID: id}
	}
	return q, nil
}

func (s *QuoteService) ListQuotes(ctx context.Context, filter QuoteFilter) ([]*models.Quote, error) {
	all, err := s.store.ListQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}

	out := make([]*models.Quote, 0, len(all))
	for _, q := range all {
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.AnalysisID != "" && q.PropertyAnalysisID != filter.AnalysisID {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// UpdateQuoteStatus moves a quote to status. With strict transitions on,
// only the draft -> sent -> accepted|declined, accepted -> completed
// workflow is allowed. Setting the current status again changes nothing.
// The store applies the move only if the status read here is still current,
// so of two racing updates from the same status at most one is applied
// before the other is checked again.
func (s *QuoteService) UpdateQuoteStatus(ctx context.Context, id, status string) (*models.Quote, error) {
	next, ok := models.ParseQuoteStatus(status)
	if !ok {
		return nil, &models.InvalidStatusTransitionError{To: status}
	}

	var prev models.QuoteStatus
	for attempt := 0; attempt < statusUpdateAttempts; attempt++ {
		quote, err := s.GetQuote(ctx, id)
		if err != nil {
			return nil, err
		}
		if quote.Status == next {
			return quote, nil
		}
		if s.strict && !models.CanTransition(quote.Status, next) {
			return nil, &models.InvalidStatusTransitionError{From: quote.Status, To: string(next)}
		}

		prev = quote.Status
		updated, err := s.store.UpdateQuoteStatus(ctx, id, prev, next)
		switch {
		case err == nil:
			log.Printf("Quote: %s %s -> %s", id, prev, next)
			return updated, nil
		case errors.Is(err, storage.ErrStatusConflict):
			log.Printf("Quote: %s changed while moving to %s, retrying", id, next)
			continue
		case errors.Is(err, storage.ErrNotFound):
			return nil, &models.QuoteNotFoundError{ID: id}
		default:
			return nil, fmt.Errorf("update quote: %w", err)
		}
	}
	return nil, &models.InvalidStatusTransitionError{From: prev, To: string(next)}
}
