package distribution

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/grantvest/core/allocation"
	"github.com/kilianp07/grantvest/core/logger"
	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/vesting"
)

// Processor computes hybrid and flat allocations for funded records.
type Processor struct {
	splitter *allocation.Splitter
	engine   *vesting.Engine
	flat     *allocation.FlatAllocator
	workers  int
	log      logger.Logger
}

// Option customizes a Processor.
type Option func(*Processor)

// WithWorkers bounds the number of records processed concurrently.
// Values below 1 fall back to runtime.NumCPU.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the processor logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProcessor returns a Processor using the given splitter and engine.
func NewProcessor(s *allocation.Splitter, e *vesting.Engine, opts ...Option) (*Processor, error) {
	if s == nil || e == nil {
		return nil, errors.New("splitter and engine are required")
	}
	p := &Processor{
		splitter: s,
		engine:   e,
		flat:     allocation.NewFlatAllocator(s, e.Config().Milestones),
		workers:  runtime.NumCPU(),
		log:      logger.Nop{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Hybrid computes the cliff + milestone + linear allocation for one record.
func (p *Processor) Hybrid(rec model.FundingRecord) model.HybridAllocation {
	cfg := p.engine.Config()
	total := p.splitter.Tokens(rec.AmountUSD)
	tokens := p.splitter.Split(rec.AmountUSD)
	schedule := p.engine.BuildSchedule(tokens)
	return model.HybridAllocation{
		ProposalName:          rec.Name,
		RequestedFundingUSD:   rec.AmountUSD,
		TotalTokens:           total,
		Tokens:                tokens,
		CliffDays:             cfg.CliffPeriodDays,
		MilestonePeriodMonths: cfg.MilestonePeriodMonths,
		TailVestingMonths:     cfg.TailVestingMonths,
		TotalDurationMonths:   cfg.TotalDuration(),
		MilestoneTokens:       total * (1.0 - cfg.TailVestingRatio),
		TailTokens:            total * cfg.TailVestingRatio,
		MilestoneSchedule:     schedule,
		MonthlyTimeline:       p.engine.Simulate(tokens, schedule),
	}
}

// Flat computes the milestone-percentage allocation for one record.
func (p *Processor) Flat(rec model.FundingRecord) model.FlatAllocation {
	return p.flat.Allocate(rec)
}

// ProcessHybrid computes hybrid allocations for all records. The result has
// the same order as recs.
func (p *Processor) ProcessHybrid(ctx context.Context, recs []model.FundingRecord) ([]model.HybridAllocation, error) {
	out, err := fanOut(ctx, p.workers, recs, p.Hybrid)
	if err != nil {
		return nil, err
	}
	p.log.Infow("hybrid vesting calculated", map[string]any{"projects": len(out)})
	return out, nil
}

// ProcessFlat computes flat allocations for all records in input order.
func (p *Processor) ProcessFlat(ctx context.Context, recs []model.FundingRecord) ([]model.FlatAllocation, error) {
	out, err := fanOut(ctx, p.workers, recs, p.Flat)
	if err != nil {
		return nil, err
	}
	p.log.Infow("flat allocations calculated", map[string]any{"projects": len(out)})
	return out, nil
}

// fanOut applies fn to every record using at most workers goroutines. Each
// goroutine writes only its own slot, so no locking is needed.
func fanOut[T any](ctx context.Context, workers int, recs []model.FundingRecord, fn func(model.FundingRecord) T) ([]T, error) {
	out := make([]T, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range recs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = fn(recs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
