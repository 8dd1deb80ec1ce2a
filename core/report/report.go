package report

import (
	"context"
	"time"

	"github.com/kilianp07/grantvest/core/allocation"
	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/vesting"
)

// Policy names the vesting policy a report was computed with.
type Policy string

const (
	PolicyHybrid Policy = "hybrid"
	PolicyFlat   Policy = "flat"
)

// Report is everything a run produced. Exactly one of Hybrid and Flat is
// populated, matching Policy.
type Report struct {
	RunID        string
	GeneratedAt  time.Time
	Policy       Policy
	Distribution allocation.Config
	Vesting      vesting.Config
	Summary      model.Summary
	Hybrid       []model.HybridAllocation
	Flat         []model.FlatAllocation
}

// Len returns the number of allocations in the report.
func (r Report) Len() int {
	if r.Policy == PolicyFlat {
		return len(r.Flat)
	}
	return len(r.Hybrid)
}

// Sink publishes a report somewhere. Sinks holding resources also implement
// io.Closer.
type Sink interface {
	Write(ctx context.Context, r Report) error
}

// NopSink discards reports.
type NopSink struct{}

func (NopSink) Write(context.Context, Report) error { return nil }
