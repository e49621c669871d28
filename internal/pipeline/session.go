package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Limiter paces provider requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Session is the explicit run context shared by every state of a run: one
// request pacer and one failure log, plus the clock and observability.
// Sessions are safe for concurrent use.
//
// Pacing has two parts. The limiter caps how often requests may start across
// all workers. The request interval is a quiet gap measured from the end of
// the previous request to the start of the next one, so slow responses never
// eat into it.
type Session struct {
	RunID string

	limiter       Limiter
	interval      time.Duration
	stateInterval time.Duration
	failures      *FailureLog
	clock         clockwork.Clock
	logger        *slog.Logger
	metrics       *observability.Metrics

	mu       sync.Mutex
	lastDone time.Time
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLimiter replaces the interval-based limiter.
func WithLimiter(l Limiter) SessionOption {
	return func(s *Session) { s.limiter = l }
}

// WithClock sets the clock used for retry delays.
func WithClock(c clockwork.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithStateInterval sets the pause taken before every state except the
// first in table order.
func WithStateInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.stateInterval = d }
}

// WithRunID sets the run identifier instead of a random UUID.
func WithRunID(id string) SessionOption {
	return func(s *Session) { s.RunID = id }
}

// NewSession creates a session that keeps at least interval between the end
// of one provider request and the start of the next. A zero interval
// disables pacing.
func NewSession(interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...SessionOption) *Session {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	s := &Session{
		RunID:    uuid.NewString(),
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
		failures: &FailureLog{},
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// awaitTurn blocks until a new provider request may start: the limiter grants
// a slot and interval has passed since the last request completed.
func (s *Session) awaitTurn(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.interval <= 0 {
		return ctx.Err()
	}

	s.mu.Lock()
	last := s.lastDone
	s.mu.Unlock()
	if last.IsZero() {
		return ctx.Err()
	}
	if wait := s.interval - s.clock.Since(last); wait > 0 {
		if !sleepWithContext(ctx, s.clock, wait) {
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// requestDone marks the end of a provider request.
func (s *Session) requestDone() {
	s.mu.Lock()
	s.lastDone = s.clock.Now()
	s.mu.Unlock()
}

// pauseBetweenStates waits the state interval. Returns false if ctx ended.
func (s *Session) pauseBetweenStates(ctx context.Context) bool {
	return sleepWithContext(ctx, s.clock, s.stateInterval)
}

// Failures returns the session's failure log.
func (s *Session) Failures() *FailureLog { return s.failures }

func (s *Session) recordFailure(f domain.Failure, kind string) {
	s.failures.Record(f)
	s.metrics.FailedChunks.WithLabelValues(kind).Inc()
	s.logger.Warn("chunk failed",
		"state", f.State,
		"zone", f.Zone,
		"chunk", f.Chunk.Index,
		"start", f.Chunk.Range.Start.Format(time.DateOnly),
		"end", f.Chunk.Range.End.Format(time.DateOnly),
		"attempts", f.Attempts,
		"error", f.Reason,
	)
}

type failureKey struct {
	state string
	chunk int
}

// FailureLog is the append-only set of (state, chunk) pairs that could not be
// fetched. Recording the same pair twice keeps the latest entry.
type FailureLog struct {
	mu      sync.Mutex
	entries map[failureKey]domain.Failure
}

// Record adds or replaces the entry for f's (state, chunk) pair.
func (l *FailureLog) Record(f domain.Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[failureKey]domain.Failure)
	}
	l.entries[failureKey{state: f.State, chunk: f.Chunk.Index}] = f
}

// Len returns the number of entries.
func (l *FailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a snapshot ordered by state, then chunk index.
func (l *FailureLog) Entries() []domain.Failure {
	l.mu.Lock()
	out := make([]domain.Failure, 0, len(l.entries))
	for _, f := range l.entries {
		out = append(out, f)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Chunk.Index < out[j].Chunk.Index
	})
	return out
}
