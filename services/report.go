package services

import (
	"context"
	"fmt"
	"time"

	"cleanistic/models"
	"cleanistic/storage"
)

// MediaStats reports archive progress by media status
type MediaStats interface {
	QueueDepth() map[string]int
}

// Report is a point-in-time summary of the estimating pipeline
type Report struct {
	GeneratedAt time.Time                  `json:"generatedAt"`
	Analyses    int                        `json:"analyses"`
	Quotes      int                        `json:"quotes"`
	ByStatus    map[models.QuoteStatus]int `json:"byStatus"`
	// QuotedValue sums totalPrice over all quotes; WonValue over accepted and completed ones
	QuotedValue int `json:"quotedValue"`
	WonValue    int `json:"wonValue"`
	// Expired counts draft or sent quotes past their validity
	Expired int            `json:"expired"`
	Media   map[string]int `json:"media,omitempty"`
}

// ReportService builds pipeline summaries for the scheduler and the stats endpoint
type ReportService struct {
	store storage.Store
	media MediaStats

	now func() time.Time
}

// NewReportService creates a new ReportService. media may be nil.
func NewReportService(store storage.Store, media MediaStats) *ReportService {
	return &ReportService{
		store: store,
		media: media,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReportService) Build(ctx context.Context) (*Report, error) {
	analyses, err := s.store.ListAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	quotes, err := s.store.ListQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}

	now := s.now()
	r := &Report{
		GeneratedAt: now,
		Analyses:    len(analyses),
		Quotes:      len(quotes),
		ByStatus:    make(map[models.QuoteStatus]int, len(models.QuoteStatuses)),
	}
	for _, st := range models.QuoteStatuses {
		r.ByStatus[st] = 0
	}

	for _, q := range quotes {
		r.ByStatus[q.Status]++
		r.QuotedValue += q.TotalPrice
		switch q.Status {
		case models.QuoteStatusAccepted, models.QuoteStatusCompleted:
			r.WonValue += q.TotalPrice
		case models.QuoteStatusDraft, models.QuoteStatusSent:
			if q.Expired(now) {
				r.Expired++
			}
		}
	}

	if s.media != nil {
		r.Media = s.media.QueueDepth()
	}

	return r, nil
}
