package harvest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource serves professors by tid; failures maps a tid to its error.
type fakeSource struct {
	failures map[int]error
	visited  []int
	onVisit  func(tid int)
}

func (f *fakeSource) Professor(ctx context.Context, tid int) (scrape.Professor, error) {
	f.visited = append(f.visited, tid)
	if f.onVisit != nil {
		f.onVisit(tid)
	}
	if err, ok := f.failures[tid]; ok {
		return scrape.Professor{}, err
	}
	return scrape.Professor{ProfessorId: tid, Fname: "Jane", Lname: "Doe"}, nil
}

type memSink struct {
	rows []scrape.Professor
	err  error
}

func (m *memSink) Append(p scrape.Professor) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, p)
	return nil
}

func tids(rows []scrape.Professor) []int {
	var out []int
	for _, r := range rows {
		out = append(out, r.ProfessorId)
	}
	return out
}

func newTestHarvester(src Source, sink Sink, stop StopCondition) *Harvester {
	return New(src, sink, WithStop(stop), WithLogger(zap.NewNop()))
}

func TestStep_Harvested(t *testing.T) {
	sink := &memSink{}
	h := newTestHarvester(&fakeSource{}, sink, Forever())

	res := h.Step(context.Background(), 5)
	assert.Equal(t, Harvested, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, 5, res.Professor.ProfessorId)
	assert.Len(t, sink.rows, 1)
}

func TestStep_Classification(t *testing.T) {
	src := &fakeSource{failures: map[int]error{
		1: eris.Wrap(scrape.ErrFetch, "Not Found"),
		2: eris.Wrap(scrape.ErrParse, "no first name"),
		3: errors.New("something else"),
	}}
	sink := &memSink{}
	h := newTestHarvester(src, sink, Forever())

	assert.Equal(t, SkippedNetwork, h.Step(context.Background(), 1).Outcome)
	assert.Equal(t, SkippedParse, h.Step(context.Background(), 2).Outcome)
	assert.Equal(t, SkippedNetwork, h.Step(context.Background(), 3).Outcome)
	assert.Empty(t, sink.rows)
}

func TestStep_SinkFailure(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	h := newTestHarvester(&fakeSource{}, sink, Forever())

	res := h.Step(context.Background(), 1)
	assert.Equal(t, SkippedSink, res.Outcome)
	assert.EqualError(t, res.Err, "disk full")
}

func TestStep_CancelledDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{onVisit: func(int) { cancel() }}
	sink := &memSink{}
	h := newTestHarvester(src, sink, Forever())

	// The source still returns a professor, but nothing may be written
	res := h.Step(ctx, 1)
	assert.Equal(t, Cancelled, res.Outcome)
	assert.Empty(t, sink.rows)
}

func TestRun_SkipsFailuresAndAdvances(t *testing.T) {
	src := &fakeSource{failures: map[int]error{
		11: eris.Wrap(scrape.ErrFetch, "connection refused"),
		13: eris.Wrap(scrape.ErrParse, "found 1 of 3 grades"),
	}}
	sink := &memSink{}
	h := newTestHarvester(src, sink, After(5))

	stats, err := h.Run(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11, 12, 13, 14}, src.visited)
	assert.Equal(t, []int{10, 12, 14}, tids(sink.rows))
	assert.Equal(t, Stats{Start: 10, Next: 15, Harvested: 3, Skipped: 2}, stats)
}

func TestRun_Through(t *testing.T) {
	src := &fakeSource{}
	h := newTestHarvester(src, &memSink{}, Through(3))

	stats, err := h.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, src.visited)
	assert.Equal(t, 4, stats.Next)
}

func TestRun_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{onVisit: func(tid int) {
		if tid == 3 {
			cancel()
		}
	}}
	sink := &memSink{}
	h := newTestHarvester(src, sink, Forever())

	stats, err := h.Run(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 2}, tids(sink.rows))
	assert.Equal(t, Stats{Start: 1, Next: 3, Harvested: 2}, stats)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{failures: map[int]error{1: context.Canceled}}
	h := newTestHarvester(src, &memSink{}, Forever())

	stats, err := h.Run(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Harvested+stats.Skipped)
}

func TestSequence_Restartable(t *testing.T) {
	seq := Sequence(7, func(tid int) bool { return tid >= 10 })

	assert.Equal(t, []int{7, 8, 9}, slices.Collect(seq))
	assert.Equal(t, []int{7, 8, 9}, slices.Collect(seq))
}

func TestSequence_EarlyBreak(t *testing.T) {
	var got []int
	for tid := range Sequence(0, func(int) bool { return false }) {
		if tid == 3 {
			break
		}
		got = append(got, tid)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestStopConditions(t *testing.T) {
	assert.False(t, Forever()(1<<30, Stats{Harvested: 1 << 30}))
	assert.True(t, After(2)(0, Stats{Harvested: 1, Skipped: 1}))
	assert.False(t, After(2)(0, Stats{Harvested: 1}))
	assert.True(t, Through(5)(6, Stats{}))
	assert.False(t, Through(5)(5, Stats{}))

	cond := Any(Through(5), After(1))
	assert.True(t, cond(1, Stats{Skipped: 1}))
	assert.True(t, cond(6, Stats{}))
	assert.False(t, cond(1, Stats{}))
}

func TestStep_MirrorFailureStillHarvested(t *testing.T) {
	sink, broken, ok := &memSink{}, &memSink{err: errors.New("locked")}, &memSink{}
	h := New(&fakeSource{}, sink, WithMirrors(broken, ok), WithLogger(zap.NewNop()))

	res := h.Step(context.Background(), 1)
	assert.Equal(t, Harvested, res.Outcome)
	assert.NoError(t, res.Err)
	assert.ErrorContains(t, res.MirrorErr, "mirror 0")
	assert.Len(t, sink.rows, 1)
	assert.Len(t, ok.rows, 1, "later mirrors still receive the row")
}

func TestStep_SinkFailureSkipsMirrors(t *testing.T) {
	mirror := &memSink{}
	h := New(&fakeSource{}, &memSink{err: errors.New("disk full")}, WithMirrors(mirror), WithLogger(zap.NewNop()))

	res := h.Step(context.Background(), 1)
	assert.Equal(t, SkippedSink, res.Outcome)
	assert.Empty(t, mirror.rows)
}

func TestRun_MirrorFailureCountsAsHarvested(t *testing.T) {
	sink := &memSink{}
	h := New(&fakeSource{}, sink,
		WithMirrors(&memSink{err: errors.New("bigquery unavailable")}),
		WithStop(After(3)),
		WithLogger(zap.NewNop()))

	stats, err := h.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Stats{Start: 1, Next: 4, Harvested: 3}, stats)
	assert.Len(t, sink.rows, stats.Harvested)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "parse", SkippedParse.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
