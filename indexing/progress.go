package indexing

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Progress is a point-in-time view of an indexing run.
type Progress struct {
	Processed int
	Total     int
	Elapsed   time.Duration
	// Rate is documents per second.
	Rate float64
	// ETA is the estimated time to finish the remaining documents, zero when unknown.
	ETA time.Duration
}

// Percent returns the completed share in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100.0
}

// ProgressTracker tracks and reports progress of indexing runs.
type ProgressTracker struct {
	writer         io.Writer
	logger         *slog.Logger
	now            func() time.Time
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// ProgressOption configures a ProgressTracker.
type ProgressOption func(*ProgressTracker)

// WithProgressLogger also reports progress as structured log records.
func WithProgressLogger(logger *slog.Logger) ProgressOption {
	return func(p *ProgressTracker) {
		p.logger = logger
	}
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr, nil discards)
// total: total number of documents to process
// reportInterval: report progress every N documents
func NewProgressTracker(writer io.Writer, total, reportInterval int, opts ...ProgressOption) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	p := &ProgressTracker{
		writer:         writer,
		now:            time.Now,
		total:          total,
		reportInterval: reportInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = p.now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Increment increases the current progress by delta documents and reports
// when a report interval has been crossed.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = min(p.current+delta, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish marks the run as complete and prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Snapshot returns the current progress.
func (p *ProgressTracker) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	return p.Snapshot().Elapsed
}

// snapshot must be called with lock held.
func (p *ProgressTracker) snapshot() Progress {
	if !p.started {
		return Progress{Total: p.total}
	}
	s := Progress{
		Processed: p.current,
		Total:     p.total,
		Elapsed:   p.now().Sub(p.startTime),
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Rate = float64(s.Processed) / secs
	}
	if remaining := s.Total - s.Processed; remaining > 0 && s.Rate > 0 {
		s.ETA = time.Duration(float64(remaining) / s.Rate * float64(time.Second))
	}
	return s
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	s := p.snapshot()
	fmt.Fprintf(p.writer, "\rIndexed %d/%d (%.1f%%) - %.1f docs/s - ETA %s",
		s.Processed, s.Total, s.Percent(), s.Rate, s.ETA.Round(time.Second))
	if p.logger != nil {
		p.logger.Info("indexing progress",
			"processed", s.Processed,
			"total", s.Total,
			"docs_per_sec", s.Rate,
			"eta", s.ETA.Round(time.Second))
	}
}
