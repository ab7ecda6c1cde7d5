package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter appends to one log file per ISO week, starts a fresh
// numbered file when the current one exceeds maxFileSize, and deletes files
// older than the retention period during its daily sweep.
type RotatingWriter struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	file        *os.File
	week        string
	seq         int
	currentSize int64

	done chan struct{}
	stop chan struct{}
}

// NewRotatingWriter creates a rotating writer under dir. The caller must
// Close it to release the current file and stop the cleanup goroutine.
func NewRotatingWriter(dir string, retentionWeeks int, maxFileSize int64) *RotatingWriter {
	rw := &RotatingWriter{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		done:        make(chan struct{}),
		stop:        make(chan struct{}),
	}

	go func() {
		defer close(rw.done)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-rw.stop:
				return
			case <-ticker.C:
				rw.sweep()
			}
		}
	}()

	return rw
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rw *RotatingWriter) fileName() string {
	if rw.seq == 0 {
		return fmt.Sprintf("app-%s.log", rw.week)
	}
	return fmt.Sprintf("app-%s_%02d.log", rw.week, rw.seq)
}

// rotate opens the log file for the given week, advancing the sequence
// number when the size cap forced the rotation. Caller holds the lock.
func (rw *RotatingWriter) rotate(week string, sizeRotation bool) error {
	if rw.file != nil {
		if err := rw.file.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
	}

	if week != rw.week {
		rw.week = week
		rw.seq = 0
	} else if sizeRotation {
		rw.seq++
	}

	path := filepath.Join(rw.dir, rw.fileName())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rw.file = file
	rw.currentSize = 0
	if info, err := os.Stat(path); err == nil {
		rw.currentSize = info.Size()
	}

	return nil
}

func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	week := weekKey(time.Now())
	sizeRotation := rw.maxFileSize > 0 && rw.currentSize+int64(len(p)) > rw.maxFileSize

	if rw.file == nil || week != rw.week || sizeRotation {
		if err := rw.rotate(week, sizeRotation); err != nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.currentSize += int64(n)
	return n, err
}

// sweep removes log files older than the retention period.
func (rw *RotatingWriter) sweep() {
	entries, err := os.ReadDir(rw.dir)
	if err != nil {
		slog.Warn("Failed to read log directory for cleanup", "error", err)
		return
	}

	cutoff := time.Now().Add(-rw.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rw.dir, name)); err == nil {
			removed++
		}
	}

	if removed > 0 {
		slog.Info("Removed expired log files", "count", removed)
	}
}

// Close stops the cleanup goroutine and releases the current file.
func (rw *RotatingWriter) Close() error {
	close(rw.stop)
	select {
	case <-rw.done:
	case <-time.After(5 * time.Second):
		slog.Warn("Log cleanup goroutine did not stop in time")
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file != nil {
		return rw.file.Close()
	}
	return nil
}

// Setup builds the combined console + file logger. If the log directory
// cannot be created, logging degrades to console only.
func Setup(logDir string, level slog.Level, retentionWeeks int, maxFileSize int64) *slog.Logger {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to create log directory, console only", "error", err)
		return logger
	}

	rw := NewRotatingWriter(logDir, retentionWeeks, maxFileSize)
	fileHandler := slog.NewJSONHandler(rw, &slog.HandlerOptions{Level: level})

	return slog.New(&teeHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
}
