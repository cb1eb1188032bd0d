package workers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"cleanistic/models"
)

// MediaWorker uploads analysis images to the archive
type MediaWorker struct {
	uploader Uploader
	queue    chan models.Media
	backoff  time.Duration

	mu     sync.Mutex
	counts map[string]int
}

// Uploader interface for uploading to S3-compatible storage
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ExistenceChecker is implemented by uploaders that can tell whether a key
// is already stored. The worker skips those uploads.
type ExistenceChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// NewMediaWorker creates a media worker with a bounded queue
func NewMediaWorker(uploader Uploader, queueSize int) *MediaWorker {
	if uploader == nil {
		uploader = NewNoOpUploader()
	}
	return &MediaWorker{
		uploader: uploader,
		queue:    make(chan models.Media, queueSize),
		backoff:  time.Second,
		counts:   make(map[string]int),
	}
}

// Enqueue adds a job without blocking. Returns false if the queue is full.
func (w *MediaWorker) Enqueue(m models.Media) bool {
	select {
	case w.queue <- m:
		w.count(models.MediaStatusPending, 1)
		return true
	default:
		log.Printf("Media worker: queue full, dropping %s", m.Key)
		return false
	}
}

// Process uploads one image, trying up to MediaMaxAttempts times.
// Images already in the archive count as uploaded without a new attempt.
func (w *MediaWorker) Process(ctx context.Context, m *models.Media) error {
	if checker, ok := w.uploader.(ExistenceChecker); ok {
		exists, err := checker.Exists(ctx, m.Key)
		if err != nil {
			log.Printf("Media worker: existence check for %s failed: %v", m.Key, err)
		} else if exists {
			m.Status = models.MediaStatusUploaded
			return nil
		}
	}

	var lastErr error
	for m.Attempts < models.MediaMaxAttempts {
		m.Attempts++
		err := w.uploader.Upload(ctx, m.Key, bytes.NewReader(m.Data), m.MimeType)
		if err == nil {
			m.Status = models.MediaStatusUploaded
			return nil
		}
		lastErr = err
		log.Printf("Media worker: attempt %d for %s failed: %v", m.Attempts, m.Key, err)

		if m.Attempts < models.MediaMaxAttempts {
			select {
			case <-ctx.Done():
				m.Status = models.MediaStatusFailed
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(m.Attempts)):
			}
		}
	}
	m.Status = models.MediaStatusFailed
	return fmt.Errorf("upload %s: %w", m.Key, lastErr)
}

// Run consumes the queue until ctx is cancelled
func (w *MediaWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case m := <-w.queue:
			w.handle(ctx, m)
		}
	}
}

// Drain processes whatever is queued and returns once the queue is empty
func (w *MediaWorker) Drain(ctx context.Context) {
	for {
		select {
		case m := <-w.queue:
			w.handle(ctx, m)
		default:
			return
		}
	}
}

func (w *MediaWorker) handle(ctx context.Context, m models.Media) {
	w.count(models.MediaStatusPending, -1)

	if err := w.Process(ctx, &m); err != nil {
		log.Printf("Media worker: failed %s for analysis %s: %v", m.Key, m.AnalysisID, err)
		w.count(models.MediaStatusFailed, 1)
		return
	}

	w.count(models.MediaStatusUploaded, 1)
	log.Printf("Media worker: uploaded %s -> %s (%d bytes)", m.ImageID, m.Key, len(m.Data))
}

func (w *MediaWorker) count(status string, delta int) {
	w.mu.Lock()
	w.counts[status] += delta
	w.mu.Unlock()
}

// QueueDepth returns media counts by status
func (w *MediaWorker) QueueDepth() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]int, len(w.counts))
	for status, n := range w.counts {
		out[status] = n
	}
	return out
}

// NoOpUploader is used when no bucket is configured
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	// Just drain the reader
	io.Copy(io.Discard, data)
	return nil
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
