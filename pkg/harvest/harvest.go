// Package harvest walks professor tids in order, turning each page into a row
// of an append-only sink. A failed tid is logged and skipped; only
// cancellation stops the walk early.
package harvest

import (
	"context"
	"errors"
	"iter"

	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultStart is the first tid of a fresh harvest.
const DefaultStart = 23330069

// Source fetches and parses the professor page for a tid.
type Source interface {
	Professor(ctx context.Context, tid int) (scrape.Professor, error)
}

// Sink receives every successfully parsed professor.
type Sink interface {
	Append(scrape.Professor) error
}

type Outcome int

const (
	Harvested Outcome = iota
	SkippedNetwork
	SkippedParse
	SkippedSink
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Harvested:
		return "harvested"
	case SkippedNetwork:
		return "network"
	case SkippedParse:
		return "parse"
	case SkippedSink:
		return "sink"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is the outcome of a single tid. Professor is set only when
// Outcome is Harvested. MirrorErr reports mirrors that failed to store a
// harvested row; the row is still counted since the sink holds it.
type Result struct {
	Tid       int
	Outcome   Outcome
	Professor scrape.Professor
	Err       error
	MirrorErr error
}

type Stats struct {
	Start     int `json:"start"`
	Next      int `json:"next"`
	Harvested int `json:"harvested"`
	Skipped   int `json:"skipped"`
}

func (s *Stats) record(r Result) {
	switch r.Outcome {
	case Harvested:
		s.Harvested++
	default:
		s.Skipped++
	}
	s.Next = r.Tid + 1
}

type Harvester struct {
	source  Source
	sink    Sink
	mirrors []Sink
	stop    StopCondition
	log     *zap.Logger
}

type Option func(*Harvester)

// WithStop bounds the walk; the default never stops.
func WithStop(stop StopCondition) Option {
	return func(h *Harvester) { h.stop = stop }
}

// WithMirrors copies every row the sink accepted into mirrors. A mirror
// failure never turns a harvested tid into a skipped one.
func WithMirrors(mirrors ...Sink) Option {
	return func(h *Harvester) { h.mirrors = append(h.mirrors, mirrors...) }
}

func WithLogger(log *zap.Logger) Option {
	return func(h *Harvester) { h.log = log }
}

func New(source Source, sink Sink, opts ...Option) *Harvester {
	h := &Harvester{source: source, sink: sink, stop: Forever(), log: zap.L()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Step fetches, parses and stores a single tid.
func (h *Harvester) Step(ctx context.Context, tid int) Result {
	prof, err := h.source.Professor(ctx, tid)
	if err != nil {
		return Result{Tid: tid, Outcome: classify(ctx, err), Err: err}
	}

	// An interrupt that lands while the page is being parsed must not
	// produce a row.
	if ctx.Err() != nil {
		return Result{Tid: tid, Outcome: Cancelled, Err: ctx.Err()}
	}

	if err := h.sink.Append(prof); err != nil {
		return Result{Tid: tid, Outcome: SkippedSink, Err: err}
	}
	return Result{Tid: tid, Outcome: Harvested, Professor: prof, MirrorErr: h.mirror(prof)}
}

func classify(ctx context.Context, err error) Outcome {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return Cancelled
	case eris.Is(err, scrape.ErrParse):
		return SkippedParse
	default:
		// Anything the source could not classify is treated as a failed fetch
		return SkippedNetwork
	}
}

// Run walks tids from start until the stop condition holds or ctx is
// cancelled. The returned Stats are valid in both cases; a cancelled run
// also returns ctx's error.
func (h *Harvester) Run(ctx context.Context, start int) (Stats, error) {
	stats := Stats{Start: start, Next: start}
	for tid := range h.Sequence(start, &stats) {
		h.log.Info("harvesting", zap.Int("tid", tid))

		res := h.Step(ctx, tid)
		if res.Outcome == Cancelled {
			h.log.Info("harvest interrupted", zap.Int("tid", tid))
			return stats, ctx.Err()
		}
		stats.record(res)

		if res.Err != nil {
			h.log.Warn("skipping tid",
				zap.Int("tid", tid),
				zap.Stringer("reason", res.Outcome),
				zap.Error(res.Err))
		}
		if res.MirrorErr != nil {
			h.log.Warn("failed to mirror tid", zap.Int("tid", tid), zap.Error(res.MirrorErr))
		}
	}
	return stats, nil
}

// Sequence yields tids from start upwards, consulting stop before each one.
// Ranging over it again restarts from start.
func (h *Harvester) Sequence(start int, stats *Stats) iter.Seq[int] {
	return Sequence(start, func(tid int) bool { return h.stop(tid, *stats) })
}

// Sequence yields start, start+1, ... until done reports true for the next
// tid.
func Sequence(start int, done func(tid int) bool) iter.Seq[int] {
	return func(yield func(int) bool) {
		for tid := start; !done(tid); tid++ {
			if !yield(tid) {
				return
			}
		}
	}
}
