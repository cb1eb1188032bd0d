package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"cleanistic/services"
)

// Reporter builds the pipeline summary logged on each tick
type Reporter interface {
	Build(ctx context.Context) (*services.Report, error)
}

type Scheduler struct {
	spec     string
	reporter Reporter
	cron     *cron.Cron
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(spec string, reporter Reporter) *Scheduler {
	return &Scheduler{
		spec:     spec,
		reporter: reporter,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		log.Println("No report schedule configured")
		return nil
	}

	log.Printf("Starting scheduler with cron: %s", s.spec)
	_, err := s.cron.AddFunc(s.spec, func() {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		if _, err := s.RunReport(ctx); err != nil {
			log.Printf("Scheduled report error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
	})
}

// RunReport builds and logs a report immediately
func (s *Scheduler) RunReport(ctx context.Context) (*services.Report, error) {
	r, err := s.reporter.Build(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("Report: %d analyses, %d quotes (%s), quoted %d, won %d, %d expired open quotes",
		r.Analyses, r.Quotes, formatCounts(r), r.QuotedValue, r.WonValue, r.Expired)
	return r, nil
}

func formatCounts(r *services.Report) string {
	parts := make([]string, 0, len(r.ByStatus))
	for status, n := range r.ByStatus {
		parts = append(parts, fmt.Sprintf("%s=%d", status, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
