package vesting

import (
	"errors"
	"fmt"
	"math"
)

// DaysPerMonth approximates a month when converting month indexes to days.
const DaysPerMonth = 30

// ErrInvalidConfig is returned when a vesting configuration breaks an invariant.
var ErrInvalidConfig = errors.New("invalid vesting config")

// Milestone describes one delivery milestone of a funded proposal.
type Milestone struct {
	Name string `json:"name" yaml:"name"`
	// CompletionPct is the cumulative share of the proposal delivered, in (0,1].
	CompletionPct float64 `json:"completion_pct" yaml:"completion_pct"`
	TargetMonth   int     `json:"target_month" yaml:"target_month"`
}

// Config holds the hybrid vesting parameters.
type Config struct {
	CliffPeriodDays        int         `json:"cliff_period_days" yaml:"cliff_period_days"`
	MilestonePeriodMonths  int         `json:"milestone_period_months" yaml:"milestone_period_months"`
	TailVestingMonths      int         `json:"tail_vesting_months" yaml:"tail_vesting_months"`
	TailVestingRatio       float64     `json:"tail_vesting_ratio" yaml:"tail_vesting_ratio"`
	MilestoneVestingMonths int         `json:"milestone_vesting_months" yaml:"milestone_vesting_months"`
	Milestones             []Milestone `json:"milestones" yaml:"milestones"`
}

// DefaultMilestones returns the four quarter milestones at months 1, 2, 4 and 6.
func DefaultMilestones() []Milestone {
	return []Milestone{
		{Name: "Milestone 1 (25%)", CompletionPct: 0.25, TargetMonth: 1},
		{Name: "Milestone 2 (50%)", CompletionPct: 0.50, TargetMonth: 2},
		{Name: "Milestone 3 (75%)", CompletionPct: 0.75, TargetMonth: 4},
		{Name: "Milestone 4 (100%)", CompletionPct: 1.00, TargetMonth: 6},
	}
}

// DefaultConfig returns a one month cliff, six milestone months and a six
// month tail carrying 10% of the tokens.
func DefaultConfig() Config {
	return Config{
		CliffPeriodDays:        30,
		MilestonePeriodMonths:  6,
		TailVestingMonths:      6,
		TailVestingRatio:       0.10,
		MilestoneVestingMonths: 2,
		Milestones:             DefaultMilestones(),
	}
}

// TotalDuration is the number of months simulated after month 0.
func (c Config) TotalDuration() int {
	return c.MilestonePeriodMonths + c.TailVestingMonths
}

// Validate checks durations, the tail ratio and the milestone set.
func (c Config) Validate() error {
	if c.CliffPeriodDays < 0 {
		return fmt.Errorf("%w: cliff_period_days must not be negative", ErrInvalidConfig)
	}
	if c.MilestonePeriodMonths <= 0 {
		return fmt.Errorf("%w: milestone_period_months must be positive", ErrInvalidConfig)
	}
	if c.TailVestingMonths <= 0 {
		return fmt.Errorf("%w: tail_vesting_months must be positive", ErrInvalidConfig)
	}
	if c.MilestoneVestingMonths <= 0 {
		return fmt.Errorf("%w: milestone_vesting_months must be positive", ErrInvalidConfig)
	}
	if math.IsNaN(c.TailVestingRatio) || c.TailVestingRatio < 0 || c.TailVestingRatio >= 1 {
		return fmt.Errorf("%w: tail_vesting_ratio %v outside [0,1)", ErrInvalidConfig, c.TailVestingRatio)
	}
	return validateMilestones(c.Milestones, c.TotalDuration())
}

func validateMilestones(ms []Milestone, horizon int) error {
	if len(ms) == 0 {
		return fmt.Errorf("%w: at least one milestone is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(ms))
	prev := 0.0
	for i, m := range ms {
		if m.Name == "" {
			return fmt.Errorf("%w: milestone %d has no name", ErrInvalidConfig, i)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate milestone %q", ErrInvalidConfig, m.Name)
		}
		seen[m.Name] = true
		if !(m.CompletionPct > prev) || m.CompletionPct > 1 {
			return fmt.Errorf("%w: milestone %q completion %v must increase within (0,1]", ErrInvalidConfig, m.Name, m.CompletionPct)
		}
		prev = m.CompletionPct
		if m.TargetMonth < 0 || m.TargetMonth > horizon {
			return fmt.Errorf("%w: milestone %q target month %d outside [0,%d]", ErrInvalidConfig, m.Name, m.TargetMonth, horizon)
		}
	}
	if math.Abs(prev-1) > 1e-9 {
		return fmt.Errorf("%w: last milestone must reach 100%% completion, got %v", ErrInvalidConfig, prev)
	}
	return nil
}
