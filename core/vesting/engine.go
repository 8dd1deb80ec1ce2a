package vesting

import (
	"math"

	"github.com/kilianp07/grantvest/core/model"
)

// Engine builds milestone schedules and simulates monthly vesting.
// It is immutable and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine bound to a private copy of it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Milestones = append([]Milestone(nil), cfg.Milestones...)
	return &Engine{cfg: cfg}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	c := e.cfg
	c.Milestones = append([]Milestone(nil), e.cfg.Milestones...)
	return c
}

// BuildSchedule splits the milestone-eligible part of each category total
// equally across the configured milestones.
func (e *Engine) BuildSchedule(totals model.CategorySplit) []model.MilestonePool {
	eligible := totals.Scale(1.0 - e.cfg.TailVestingRatio)
	share := 1.0 / float64(len(e.cfg.Milestones))
	schedule := make([]model.MilestonePool, 0, len(e.cfg.Milestones))
	for _, m := range e.cfg.Milestones {
		pool := eligible.Scale(share)
		schedule = append(schedule, model.MilestonePool{
			Name:          m.Name,
			UnlockMonth:   m.TargetMonth,
			PoolSize:      pool,
			VestingMonths: e.cfg.MilestoneVestingMonths,
			MonthlyVest:   pool.Div(float64(e.cfg.MilestoneVestingMonths)),
		})
	}
	return schedule
}

// activePool tracks an unlocked pool that still has months left to vest.
type activePool struct {
	pool      *model.MilestonePool
	remaining int
}

// Simulate projects vesting for months 0 through TotalDuration inclusive.
// Month m depends on the active pools left by month m-1, so the loop is
// strictly sequential.
func (e *Engine) Simulate(totals model.CategorySplit, schedule []model.MilestonePool) []model.MonthlySnapshot {
	duration := e.cfg.TotalDuration()
	tailMonthly := totals.Scale(e.cfg.TailVestingRatio).Div(float64(e.cfg.TailVestingMonths))

	var (
		active        []activePool
		cumMilestone  model.CategorySplit
		cumTail       model.CategorySplit
		cumulative    model.CategorySplit
		blendedTokens = totals.Total()
	)
	timeline := make([]model.MonthlySnapshot, 0, duration+1)

	for month := 0; month <= duration; month++ {
		days := month * DaysPerMonth
		pastCliff := days >= e.cfg.CliffPeriodDays

		var unlocked model.CategorySplit
		achieved := []string{}
		if pastCliff {
			for i := range schedule {
				ms := &schedule[i]
				if ms.UnlockMonth != month {
					continue
				}
				active = append(active, activePool{pool: ms, remaining: ms.VestingMonths})
				unlocked = unlocked.Add(ms.PoolSize)
				achieved = append(achieved, ms.Name)
			}
		}

		var fromPools, fromTail model.CategorySplit
		if pastCliff && month > 0 {
			fromPools, active = vestPools(active)
			if month > e.cfg.MilestonePeriodMonths {
				fromTail = tailMonthly
			}
		}

		vested := fromPools.Add(fromTail)
		cumMilestone = cumMilestone.Add(fromPools)
		cumTail = cumTail.Add(fromTail)
		cumulative = cumulative.Add(vested)

		timeline = append(timeline, model.MonthlySnapshot{
			Month:                     month,
			DaysElapsed:               days,
			PastCliff:                 pastCliff,
			MilestonesAchieved:        achieved,
			NewUnlocked:               unlocked,
			VestedThisMonth:           vested,
			CumulativeVested:          cumulative,
			CumulativeMilestoneVested: cumMilestone,
			CumulativeTailVested:      cumTail,
			VestedPct: model.CategoryPct{
				Project:     percent(cumulative.Project, totals.Project),
				Participant: percent(cumulative.Participant, totals.Participant),
				Auditor:     percent(cumulative.Auditor, totals.Auditor),
			},
			TotalVestedPct: percent(cumulative.Total(), blendedTokens),
		})
	}
	return timeline
}

// vestPools releases one month from every pool with time left and returns the
// released amount together with the pools still vesting. The input slice is
// not modified.
func vestPools(active []activePool) (model.CategorySplit, []activePool) {
	var vested model.CategorySplit
	next := make([]activePool, 0, len(active))
	for _, p := range active {
		if p.remaining <= 0 {
			continue
		}
		vested = vested.Add(p.pool.MonthlyVest)
		p.remaining--
		if p.remaining > 0 {
			next = append(next, p)
		}
	}
	return vested, next
}

// percent returns part/whole*100 clamped to [0,100], or 0 when whole is 0.
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Max(0, math.Min(100, part/whole*100))
}

// FirstVestingMonth is the first month index whose elapsed days clear the cliff.
func (e *Engine) FirstVestingMonth() int {
	return (e.cfg.CliffPeriodDays + DaysPerMonth - 1) / DaysPerMonth
}

// UnreachableMilestones lists milestones targeted before the cliff clears.
// Their pools never unlock: the unlock check only fires in the target month.
func (e *Engine) UnreachableMilestones() []Milestone {
	first := e.FirstVestingMonth()
	var out []Milestone
	for _, m := range e.cfg.Milestones {
		if m.TargetMonth < first {
			out = append(out, m)
		}
	}
	return out
}
