package pipeline_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
	"github.com/couchcryptid/climate-data-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noRetry() pipeline.RetryPolicy {
	return pipeline.RetryPolicy{MaxAttempts: 3, Delay: pipeline.NoDelay}
}

func TestAggregator_Run_ChunkFiveFails(t *testing.T) {
	chunks, err := domain.SplitRange(fullPeriod, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 12)
	bad := chunks[4].Range

	prov := &fakeProvider{fail: func(_ string, r domain.DateRange, _ int) error {
		if r == bad {
			return transientErr("status 500")
		}
		return nil
	}}
	s := newTestSession()
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 3), s, domain.Zones{kaduna}, fullPeriod, 1)

	res, err := agg.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.States, 1)
	assert.Equal(t, pipeline.StatusDone, res.States[0].Status)
	assert.Equal(t, 1, res.States[0].FailedChunks)

	records := res.Records()
	require.Len(t, records, 34*12)
	for _, rec := range records {
		if bad.Contains(rec.Date) {
			assert.False(t, rec.Complete(), "%s inside failed chunk", rec.Date.Format(time.DateOnly))
			assert.Nil(t, rec.RainfallMM)
			assert.Zero(t, rec.DaysObserved)
			continue
		}
		require.True(t, rec.Complete(), "%s should be complete", rec.Date.Format(time.DateOnly))
		assert.GreaterOrEqual(t, *rec.MaxTempC, *rec.AvgTempC)
		assert.GreaterOrEqual(t, *rec.AvgTempC, *rec.MinTempC)
		require.NotNil(t, rec.DroughtIndex)
		assert.GreaterOrEqual(t, *rec.DroughtIndex, 0.0)
		assert.LessOrEqual(t, *rec.DroughtIndex, 1.0)
		assert.GreaterOrEqual(t, *rec.FloodRiskIndex, 0.0)
		assert.LessOrEqual(t, *rec.FloodRiskIndex, 1.0)
	}

	failures := s.Failures().Entries()
	require.Len(t, failures, 1)
	assert.Equal(t, "Kaduna", failures[0].State)
	assert.Equal(t, 5, failures[0].Chunk.Index)
	assert.Equal(t, bad, failures[0].Chunk.Range)
	assert.Equal(t, 3, failures[0].Attempts)
}

func TestAggregator_Run_OneRowPerStateMonth(t *testing.T) {
	period := domain.DateRange{Start: day(2000, 1, 1), End: day(2003, 12, 31)}
	zones := domain.Zones{kaduna, borno, lagos}
	agg := pipeline.NewAggregator(pipeline.NewFetcher(&fakeProvider{}, noRetry(), 2), newTestSession(), zones, period, 1)

	res, err := agg.Run(context.Background())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, rec := range res.Records() {
		key := rec.State + "|" + rec.Date.Format(time.DateOnly)
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}
	assert.Len(t, seen, 3*48)
	assert.Equal(t, 3, res.Completed())
	require.NoError(t, agg.CheckReadiness(context.Background()))
}

func TestAggregator_Run_ParallelMatchesSequential(t *testing.T) {
	period := domain.DateRange{Start: day(2010, 1, 1), End: day(2012, 6, 30)}
	zones := domain.Zones{kaduna, borno, lagos}

	run := func(workers int) []domain.MonthlyRecord {
		agg := pipeline.NewAggregator(pipeline.NewFetcher(&fakeProvider{}, noRetry(), 1), newTestSession(), zones, period, workers)
		res, err := agg.Run(context.Background())
		require.NoError(t, err)
		return res.Records()
	}

	sequential := run(1)
	parallel := run(3)
	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Errorf("parallel output differs (-sequential +parallel):\n%s", diff)
	}
	assert.Equal(t, "Kaduna", parallel[0].State)
	assert.Equal(t, "Lagos", parallel[len(parallel)-1].State)
}

func TestAggregator_Run_SameInputSameRows(t *testing.T) {
	period := domain.DateRange{Start: day(1995, 1, 1), End: day(1996, 12, 31)}
	rows := func() [][]string {
		agg := pipeline.NewAggregator(pipeline.NewFetcher(&fakeProvider{}, noRetry(), 3), newTestSession(), domain.Zones{kaduna}, period, 1)
		res, err := agg.Run(context.Background())
		require.NoError(t, err)
		var out [][]string
		for _, rec := range res.Records() {
			for _, tbl := range domain.Tables {
				out = append(out, tbl.Row(rec))
			}
		}
		return out
	}
	assert.Equal(t, rows(), rows())
}

func TestAggregator_Run_InterruptedBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prov := &fakeProvider{}
	s := newTestSession()
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 3), s, domain.Zones{kaduna, lagos}, fullPeriod, 1)

	res, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Records())
	assert.Zero(t, prov.callCount())
	assert.Equal(t, 24, s.Failures().Len())
	for _, st := range res.States {
		assert.True(t, st.Interrupted)
		assert.Equal(t, 12, st.FailedChunks)
	}
	require.Error(t, agg.CheckReadiness(context.Background()))
}

func TestAggregator_Run_InterruptedMidState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prov := &fakeProvider{fail: func(_ string, r domain.DateRange, _ int) error {
		if r.Start.Year() == 1993 {
			cancel()
			return transientErr("request cancelled")
		}
		return nil
	}}
	s := newTestSession()
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 3), s, domain.Zones{kaduna, lagos}, fullPeriod, 1)

	res, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)

	// Kaduna keeps its first chunk and is flushed with gaps; Lagos never starts.
	kad := res.States[0]
	assert.Equal(t, pipeline.StatusDone, kad.Status)
	assert.True(t, kad.Interrupted)
	assert.Len(t, kad.Records, 34*12)
	assert.True(t, kad.Records[0].Complete())
	assert.False(t, kad.Records[36].Complete())
	assert.Equal(t, 11, kad.FailedChunks)

	assert.Empty(t, res.States[1].Records)
	assert.Equal(t, 11+12, s.Failures().Len())
}

func TestAggregator_Run_InvalidPeriod(t *testing.T) {
	agg := pipeline.NewAggregator(pipeline.NewFetcher(&fakeProvider{}, noRetry(), 0), newTestSession(), domain.Zones{kaduna}, fullPeriod, 1)
	_, err := agg.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestAggregateState_FillsEveryMonth(t *testing.T) {
	period := domain.DateRange{Start: day(2001, 1, 1), End: day(2001, 12, 31)}
	byMonth := map[time.Time][]domain.DailyObservation{
		day(2001, 3, 1): {{State: "Kaduna", Date: day(2001, 3, 4), Values: map[domain.Parameter]float64{domain.ParamPrecipitation: 12}}},
	}
	recs := pipeline.AggregateState(kaduna, period, byMonth)
	require.Len(t, recs, 12)
	assert.Equal(t, 12.0, *recs[2].RainfallMM)
	assert.Equal(t, 0.0, *recs[2].DroughtIndex, "rainfall equals its own baseline")
	assert.Nil(t, recs[0].RainfallMM)
}

func TestAggregator_Progress(t *testing.T) {
	period := domain.DateRange{Start: day(2010, 1, 1), End: day(2011, 12, 31)}
	bad := domain.DateRange{Start: day(2011, 1, 1), End: day(2011, 12, 31)}
	prov := &fakeProvider{fail: func(state string, r domain.DateRange, _ int) error {
		if state == "Lagos" && r == bad {
			return permanentErr("422 invalid request")
		}
		return nil
	}}
	s := newTestSession(pipeline.WithRunID("run-progress"))
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 1), s, domain.Zones{kaduna, lagos}, period, 1)

	before := agg.Progress()
	assert.Equal(t, pipeline.Progress{
		RunID:  "run-progress",
		States: 2,
		Start:  "2010-01-01",
		End:    "2011-12-31",
	}, before)
	require.Error(t, agg.CheckReadiness(context.Background()))

	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	after := agg.Progress()
	assert.Equal(t, 2, after.StatesCompleted)
	assert.Equal(t, 1, after.FailedChunks)
	assert.NoError(t, agg.CheckReadiness(context.Background()))
}

func TestAggregator_Run_PausesBetweenStates(t *testing.T) {
	const pause = 80 * time.Millisecond
	period := domain.DateRange{Start: day(2015, 1, 1), End: day(2015, 12, 31)}
	prov := &timedProvider{}
	s := newTestSession(pipeline.WithStateInterval(pause))
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 1), s, domain.Zones{kaduna, lagos, borno}, period, 1)

	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	spans := prov.spans()
	require.Len(t, spans, 3)
	assert.Equal(t, []string{"Kaduna", "Lagos", "Borno"}, []string{spans[0].state, spans[1].state, spans[2].state})
	for i := 1; i < len(spans); i++ {
		assert.GreaterOrEqual(t, spans[i].start.Sub(spans[i-1].end), pause-5*time.Millisecond)
	}
}

func TestAggregator_Run_StatePauseInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	period := domain.DateRange{Start: day(2015, 1, 1), End: day(2015, 12, 31)}
	prov := &timedProvider{fail: func(int) error {
		cancel()
		return nil
	}}
	s := newTestSession(pipeline.WithStateInterval(time.Hour))
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 1), s, domain.Zones{kaduna, lagos}, period, 1)

	done := make(chan struct{})
	var res pipeline.Result
	go func() {
		defer close(done)
		res, _ = agg.Run(ctx)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("state pause did not end on cancel")
	}

	assert.True(t, res.Interrupted)
	assert.Len(t, prov.spans(), 1)
	failures := s.Failures().Entries()
	require.Len(t, failures, 1)
	assert.Equal(t, "Lagos", failures[0].State)
	assert.Equal(t, domain.ReasonInterrupted, failures[0].Reason)
}

type providerFunc func(ctx context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error)

func (f providerFunc) FetchDaily(ctx context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error) {
	return f(ctx, loc, params, r)
}

func TestAggregator_Run_LogsInvertedTemperatures(t *testing.T) {
	period := domain.DateRange{Start: day(2005, 7, 1), End: day(2005, 7, 31)}
	prov := providerFunc(func(_ context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error) {
		days := syntheticDays(loc.State, params, r)
		for i := range days {
			days[i].Values[domain.ParamTempMin] = 45
		}
		return days, nil
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := pipeline.NewSession(0, logger, observability.NewMetricsForTesting())
	agg := pipeline.NewAggregator(pipeline.NewFetcher(prov, noRetry(), 1), s, domain.Zones{kaduna}, period, 1)

	res, err := agg.Run(context.Background())
	require.NoError(t, err)
	records := res.Records()
	require.Len(t, records, 1)
	assert.Nil(t, records[0].TempRangeC)
	assert.Contains(t, buf.String(), "minimum temperature above maximum")
	assert.Contains(t, buf.String(), "month=2005-07")
}
