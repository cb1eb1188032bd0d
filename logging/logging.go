// Package logging sends the standard logger to stdout and a size-capped file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxLogSize = 2 * 1024 * 1024 // 2MB
	defaultBackups    = 1
)

// Options controls the log file. Zero values pick the defaults.
type Options struct {
	Path     string
	MaxBytes int64
	// Backups is how many rotated files (path.1 ... path.N) are kept
	Backups int
}

// RotatingWriter is an io.Writer over a log file that rolls over once it
// grows past MaxBytes
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	opts    Options
	size    int64
	rotated int
}

// Setup points the standard logger at stdout and the rotating file
func Setup(opts Options) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(opts)
	if err != nil {
		return nil, err
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(io.MultiWriter(os.Stdout, rw))

	return rw, nil
}

func NewRotatingWriter(opts Options) (*RotatingWriter, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("log path not set")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxLogSize
	}
	if opts.Backups <= 0 {
		opts.Backups = defaultBackups
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	w := &RotatingWriter{opts: opts}

	// An oversized file left by a previous run is rolled over, not appended to
	if info, err := os.Stat(opts.Path); err == nil && info.Size() > opts.MaxBytes {
		if err := w.shift(); err != nil {
			return nil, err
		}
	}

	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)

	if w.size > w.opts.MaxBytes {
		if rerr := w.rotate(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return n, err
}

// Rotations reports how many times the file rolled over since it was opened
func (w *RotatingWriter) Rotations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotated
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *RotatingWriter) rotate() error {
	w.file.Close()
	if err := w.shift(); err != nil {
		return err
	}
	w.rotated++
	return w.open(os.O_TRUNC)
}

// shift renames path.N-1 -> path.N down to path -> path.1, dropping the oldest
func (w *RotatingWriter) shift() error {
	for i := w.opts.Backups; i > 1; i-- {
		older := backupName(w.opts.Path, i-1)
		if _, err := os.Stat(older); err == nil {
			os.Rename(older, backupName(w.opts.Path, i))
		}
	}
	if err := os.Rename(w.opts.Path, backupName(w.opts.Path, 1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate log: %w", err)
	}
	return nil
}

func (w *RotatingWriter) open(mode int) error {
	f, err := os.OpenFile(w.opts.Path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	w.file = f
	w.size = size
	return nil
}

func backupName(path string, i int) string {
	return fmt.Sprintf("%s.%d", path, i)
}
