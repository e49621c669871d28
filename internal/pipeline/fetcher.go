package pipeline

import (
	"context"
	"errors"
	"iter"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
)

// Provider returns daily observations for one location and date range.
type Provider interface {
	FetchDaily(ctx context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error)
}

// ChunkResult is the outcome of one chunk. Err is nil on success; failed
// chunks have already been recorded in the session's failure log.
type ChunkResult struct {
	Chunk       domain.Chunk
	Days        []domain.DailyObservation
	Attempts    int
	Err         error
	Interrupted bool
}

// Fetcher splits a state's period into chunks and fetches them one after
// another with retries.
type Fetcher struct {
	provider   Provider
	policy     RetryPolicy
	chunkYears int
}

// NewFetcher creates a Fetcher.
func NewFetcher(p Provider, policy RetryPolicy, chunkYears int) *Fetcher {
	return &Fetcher{provider: p, policy: policy, chunkYears: chunkYears}
}

// Chunks splits r with the fetcher's chunk size.
func (f *Fetcher) Chunks(r domain.DateRange) ([]domain.Chunk, error) {
	return domain.SplitRange(r, f.chunkYears)
}

// FetchChunk requests one chunk, waiting for the session's pacing before
// every attempt. Transient errors are retried up to the policy's attempt bound;
// permanent errors are not. A chunk that still fails, or that is cut short by
// ctx, is recorded in the session's failure log.
func (f *Fetcher) FetchChunk(ctx context.Context, s *Session, loc domain.Location, params []domain.Parameter, chunk domain.Chunk) ChunkResult {
	res := ChunkResult{Chunk: chunk}
	maxAttempts := f.policy.attempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.awaitTurn(ctx); err != nil {
			return f.interrupted(ctx, s, loc, res)
		}

		res.Attempts = attempt
		days, err := f.provider.FetchDaily(ctx, loc, params, chunk.Range)
		s.requestDone()
		if err == nil {
			res.Days = days
			s.logger.Debug("chunk fetched",
				"state", loc.State, "chunk", chunk.Index, "days", len(days), "attempt", attempt)
			return res
		}
		if ctx.Err() != nil {
			return f.interrupted(ctx, s, loc, res)
		}

		res.Err = err
		if errors.Is(err, domain.ErrPermanent) {
			s.recordFailure(failureOf(loc, res, true), "permanent")
			return res
		}
		if attempt == maxAttempts {
			break
		}

		s.metrics.ChunkRetries.Inc()
		wait := f.policy.delay(attempt)
		s.logger.Warn("chunk request failed, retrying",
			"state", loc.State, "chunk", chunk.Index, "attempt", attempt, "wait", wait, "error", err)
		if !sleepWithContext(ctx, s.clock, wait) {
			return f.interrupted(ctx, s, loc, res)
		}
	}

	s.recordFailure(failureOf(loc, res, false), "exhausted")
	return res
}

func (f *Fetcher) interrupted(ctx context.Context, s *Session, loc domain.Location, res ChunkResult) ChunkResult {
	res.Interrupted = true
	res.Err = ctx.Err()
	if res.Err == nil {
		res.Err = context.Canceled
	}
	res.Days = nil
	s.recordFailure(domain.Failure{
		Zone:     loc.Zone,
		State:    loc.State,
		Chunk:    res.Chunk,
		Attempts: res.Attempts,
		Reason:   domain.ReasonInterrupted,
	}, "interrupted")
	return res
}

func failureOf(loc domain.Location, res ChunkResult, permanent bool) domain.Failure {
	return domain.Failure{
		Zone:      loc.Zone,
		State:     loc.State,
		Chunk:     res.Chunk,
		Attempts:  res.Attempts,
		Reason:    res.Err.Error(),
		Permanent: permanent,
	}
}

// FetchRange returns a lazy sequence over the chunks of r, in order. Each
// chunk is fetched only when the consumer asks for it. Failed chunks are
// yielded with their error and the sequence moves on. Once ctx ends, every
// remaining chunk is recorded as interrupted and yielded without a request.
func (f *Fetcher) FetchRange(ctx context.Context, s *Session, loc domain.Location, params []domain.Parameter, r domain.DateRange) (iter.Seq[ChunkResult], error) {
	chunks, err := f.Chunks(r)
	if err != nil {
		return nil, err
	}

	return func(yield func(ChunkResult) bool) {
		for _, c := range chunks {
			var res ChunkResult
			if ctx.Err() != nil {
				res = f.interrupted(ctx, s, loc, ChunkResult{Chunk: c})
			} else {
				res = f.FetchChunk(ctx, s, loc, params, c)
			}
			if !yield(res) {
				return
			}
		}
	}, nil
}
