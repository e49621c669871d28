package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
	"github.com/couchcryptid/climate-data-etl/internal/pipeline"
)

// --- fakes ---

// fakeProvider returns one synthetic observation per day. fail decides the
// error for a request; nil means success.
type fakeProvider struct {
	mu    sync.Mutex
	calls []call
	fail  func(state string, r domain.DateRange, attempt int) error
}

type call struct {
	state string
	r     domain.DateRange
}

func (p *fakeProvider) FetchDaily(_ context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error) {
	p.mu.Lock()
	attempt := 1
	for _, c := range p.calls {
		if c.state == loc.State && c.r == r {
			attempt++
		}
	}
	p.calls = append(p.calls, call{state: loc.State, r: r})
	p.mu.Unlock()

	if p.fail != nil {
		if err := p.fail(loc.State, r, attempt); err != nil {
			return nil, err
		}
	}
	return syntheticDays(loc.State, params, r), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) callsFor(state string) []domain.DateRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.DateRange
	for _, c := range p.calls {
		if c.state == state {
			out = append(out, c.r)
		}
	}
	return out
}

func syntheticDays(state string, params []domain.Parameter, r domain.DateRange) []domain.DailyObservation {
	var out []domain.DailyObservation
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		base := 24 + float64(d.Day()%5)
		all := map[domain.Parameter]float64{
			domain.ParamTempAvg:       base,
			domain.ParamTempMax:       base + 7,
			domain.ParamTempMin:       base - 8,
			domain.ParamPrecipitation: float64((d.Day() % 3) * 2 * int(d.Month())),
			domain.ParamHumidity:      50 + float64(d.Month()),
		}
		values := make(map[domain.Parameter]float64, len(params))
		for _, p := range params {
			values[p] = all[p]
		}
		out = append(out, domain.DailyObservation{State: state, Date: d, Values: values})
	}
	return out
}

// timedProvider records when each request started and ended. latency is
// slept inside every call; fail, when set, decides the outcome per attempt.
type timedProvider struct {
	latency time.Duration
	fail    func(attempt int) error

	mu    sync.Mutex
	calls []span
}

type span struct {
	state      string
	start, end time.Time
}

func (p *timedProvider) FetchDaily(_ context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error) {
	start := time.Now()
	time.Sleep(p.latency)

	p.mu.Lock()
	p.calls = append(p.calls, span{state: loc.State, start: start, end: time.Now()})
	attempt := len(p.calls)
	p.mu.Unlock()

	if p.fail != nil {
		if err := p.fail(attempt); err != nil {
			return nil, err
		}
	}
	return syntheticDays(loc.State, params, r), nil
}

func (p *timedProvider) spans() []span {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]span(nil), p.calls...)
}

type countingLimiter struct {
	n atomic.Int64
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.n.Add(1)
	return nil
}

type captureLoader struct {
	name    string
	err     error
	loaded  []domain.Dataset
	ctxErrs []error
	closed  bool
}

func (l *captureLoader) Name() string { return l.name }

func (l *captureLoader) Load(ctx context.Context, ds domain.Dataset) error {
	l.loaded = append(l.loaded, ds)
	l.ctxErrs = append(l.ctxErrs, ctx.Err())
	return l.err
}

func (l *captureLoader) Close() error {
	l.closed = true
	return l.err
}

type fakeCO2 struct {
	records []domain.CO2Record
	err     error
}

func (f fakeCO2) FetchCO2(context.Context, domain.DateRange) ([]domain.CO2Record, error) {
	return f.records, f.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(opts ...pipeline.SessionOption) *pipeline.Session {
	opts = append([]pipeline.SessionOption{pipeline.WithRunID("run-test")}, opts...)
	return pipeline.NewSession(0, discardLogger(), observability.NewMetricsForTesting(), opts...)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	kaduna = domain.Location{Zone: "North-West", State: "Kaduna", Latitude: 10.52, Longitude: 7.44}
	lagos  = domain.Location{Zone: "South-West", State: "Lagos", Latitude: 6.52, Longitude: 3.38}
	borno  = domain.Location{Zone: "North-East", State: "Borno", Latitude: 11.85, Longitude: 13.09}

	fullPeriod = domain.DateRange{Start: day(1990, 1, 1), End: day(2023, 12, 31)}
)

func transientErr(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrTransient, msg)
}

func permanentErr(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrPermanent, msg)
}
