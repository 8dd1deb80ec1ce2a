package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/grantvest/config"
	"github.com/kilianp07/grantvest/core/allocation"
	"github.com/kilianp07/grantvest/core/distribution"
	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/core/vesting"
	"github.com/kilianp07/grantvest/infra/loader"
	"github.com/kilianp07/grantvest/infra/logger"
	"github.com/kilianp07/grantvest/infra/metrics"
	"github.com/kilianp07/grantvest/pkg/export"

	// registers the built-in report sinks
	_ "github.com/kilianp07/grantvest/infra/sinks"
)

// ErrNoExample is returned by Example when no record was loaded.
var ErrNoExample = errors.New("no allocation to show")

// Service wires the loader, the processor, the sinks and run metrics.
type Service struct {
	cfg       config.Config
	engine    *vesting.Engine
	splitter  *allocation.Splitter
	proc      *distribution.Processor
	sink      report.Sink
	collector *metrics.Collector
	registry  *prometheus.Registry
	out       io.Writer
	log       logger.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithOutput sets where the console report is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Service) { s.out = w }
}

// WithLogger replaces the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSink replaces the sinks listed in the configuration.
func WithSink(sink report.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithClock overrides the time source used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New validates cfg and builds a Service from it.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      *cfg,
		out:      os.Stdout,
		log:      logger.New("app"),
		now:      time.Now,
		registry: prometheus.NewRegistry(),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.splitter, err = allocation.NewSplitter(cfg.Distribution); err != nil {
		return nil, fmt.Errorf("splitter: %w", err)
	}
	if s.engine, err = vesting.NewEngine(cfg.Vesting); err != nil {
		return nil, fmt.Errorf("vesting engine: %w", err)
	}
	for _, m := range s.engine.UnreachableMilestones() {
		s.log.Warnf("milestone %q targets month %d, before vesting starts at month %d; its pool never unlocks",
			m.Name, m.TargetMonth, s.engine.FirstVestingMonth())
	}
	s.proc, err = distribution.NewProcessor(s.splitter, s.engine,
		distribution.WithWorkers(cfg.Workers),
		distribution.WithLogger(logger.New("distribution")))
	if err != nil {
		return nil, err
	}
	if s.collector, err = metrics.NewCollector(s.registry); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if s.sink == nil {
		if s.sink, err = report.NewSink(cfg.Report.Sinks); err != nil {
			return nil, fmt.Errorf("report sinks: %w", err)
		}
	}
	return s, nil
}

// Load reads the funded records from the CSV at path.
func (s *Service) Load(path string) ([]model.FundingRecord, error) {
	return loader.LoadFile(path, s.cfg.Input, logger.New("loader"))
}

// Run computes the report for recs under policy, publishes it to the sinks
// and prints the console summary. Hybrid runs also print one example
// timeline.
func (s *Service) Run(ctx context.Context, policy report.Policy, recs []model.FundingRecord) (report.Report, error) {
	start := time.Now()
	r, err := s.compute(ctx, policy, recs)
	if err != nil {
		return report.Report{}, err
	}
	if err := export.WriteSummary(s.out, r); err != nil {
		return r, err
	}
	if policy == report.PolicyHybrid {
		if ex, ok := distribution.PickExample(r.Hybrid, s.cfg.ExampleProject); ok {
			if err := export.WriteTimeline(s.out, ex); err != nil {
				return r, err
			}
		}
	}
	if err := s.sink.Write(ctx, r); err != nil {
		return r, fmt.Errorf("publish report: %w", err)
	}
	s.collector.ObserveRun(r, time.Since(start))
	if err := metrics.WriteTextfile(s.cfg.Metrics.TextfilePath, s.registry); err != nil {
		s.log.Errorf("metrics textfile: %v", err)
	}
	s.log.Infow("run complete", map[string]any{
		"run_id":   r.RunID,
		"policy":   string(policy),
		"projects": r.Len(),
		"duration": time.Since(start).String(),
	})
	return r, nil
}

// RunFile loads path and runs policy over its records.
func (s *Service) RunFile(ctx context.Context, policy report.Policy, path string) (report.Report, error) {
	recs, err := s.Load(path)
	if err != nil {
		return report.Report{}, err
	}
	return s.Run(ctx, policy, recs)
}

// Example prints the hybrid timeline of the configured example project, or of
// name when it is not empty. Nothing is published.
func (s *Service) Example(ctx context.Context, recs []model.FundingRecord, name string) (model.HybridAllocation, error) {
	if name == "" {
		name = s.cfg.ExampleProject
	}
	allocs, err := s.proc.ProcessHybrid(ctx, recs)
	if err != nil {
		return model.HybridAllocation{}, err
	}
	ex, ok := distribution.PickExample(allocs, name)
	if !ok {
		return model.HybridAllocation{}, ErrNoExample
	}
	return ex, export.WriteTimeline(s.out, ex)
}

func (s *Service) compute(ctx context.Context, policy report.Policy, recs []model.FundingRecord) (report.Report, error) {
	if len(recs) == 0 {
		s.log.Warnf("no funded projects to process")
	}
	r := report.Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  s.now().UTC(),
		Policy:       policy,
		Distribution: s.splitter.Config(),
		Vesting:      s.engine.Config(),
	}
	var err error
	switch policy {
	case report.PolicyHybrid:
		s.log.Infof("Calculating hybrid vesting for %d projects", len(recs))
		if r.Hybrid, err = s.proc.ProcessHybrid(ctx, recs); err != nil {
			return report.Report{}, err
		}
		r.Summary = distribution.SummarizeHybrid(r.Hybrid, r.Vesting)
	case report.PolicyFlat:
		s.log.Infof("Calculating flat allocations for %d projects", len(recs))
		if r.Flat, err = s.proc.ProcessFlat(ctx, recs); err != nil {
			return report.Report{}, err
		}
		r.Summary = distribution.SummarizeFlat(r.Flat)
	default:
		return report.Report{}, fmt.Errorf("unknown policy %q", policy)
	}
	return r, nil
}

// Close releases the sinks.
func (s *Service) Close() error { return report.Close(s.sink) }
