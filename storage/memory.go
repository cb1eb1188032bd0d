package storage

import (
	"context"
	"fmt"
	"sync"

	"cleanistic/models"
)

// MemoryStore keeps records in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	analyses      map[string]*models.PropertyAnalysis
	analysisOrder []string
	quotes        map[string]*models.Quote
	quoteOrder    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses: make(map[string]*models.PropertyAnalysis),
		quotes:   make(map[string]*models.Quote),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateAnalysis(ctx context.Context, a *models.PropertyAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analyses[a.ID]; ok {
		return fmt.Errorf("analysis %s: %w", a.ID, ErrDuplicate)
	}
	s.analyses[a.ID] = a.Clone()
	s.analysisOrder = append(s.analysisOrder, a.ID)
	return nil
}

func (s *MemoryStore) GetAnalysis(ctx context.Context, id string) (*models.PropertyAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyses[id].Clone(), nil
}

func (s *MemoryStore) ListAnalyses(ctx context.Context) ([]*models.PropertyAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.PropertyAnalysis, 0, len(s.analysisOrder))
	for _, id := range s.analysisOrder {
		out = append(out, s.analyses[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) CreateQuote(ctx context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quotes[q.ID]; ok {
		return fmt.Errorf("quote %s: %w", q.ID, ErrDuplicate)
	}
	s.quotes[q.ID] = q.Clone()
	s.quoteOrder = append(s.quoteOrder, q.ID)
	return nil
}

func (s *MemoryStore) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quotes[id].Clone(), nil
}

func (s *MemoryStore) ListQuotes(ctx context.Context) ([]*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Quote, 0, len(s.quoteOrder))
	for _, id := range s.quoteOrder {
		out = append(out, s.quotes[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) UpdateQuoteStatus(ctx context.Context, id string, from, to models.QuoteStatus) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[id]
	if !ok || q.Status != from {
		return nil, statusMiss(q, id, from)
	}
	q.Status = to
	return q.Clone(), nil
}
