package model

// MilestonePool is the token allotment released by a single milestone.
// Pools are built once per record and never modified afterwards.
type MilestonePool struct {
	Name          string
	UnlockMonth   int
	PoolSize      CategorySplit
	VestingMonths int
	MonthlyVest   CategorySplit
}

// CategoryPct holds a vested percentage per category.
type CategoryPct struct {
	Project     float64 `json:"project"`
	Participant float64 `json:"participant"`
	Auditor     float64 `json:"auditor"`
}

// Get returns the percentage for c.
func (p CategoryPct) Get(c Category) float64 {
	return CategorySplit(p).Get(c)
}

// MonthlySnapshot is the state of a hybrid vesting simulation at one month.
type MonthlySnapshot struct {
	Month              int
	DaysElapsed        int
	PastCliff          bool
	MilestonesAchieved []string

	NewUnlocked     CategorySplit
	VestedThisMonth CategorySplit

	CumulativeVested CategorySplit
	// CumulativeMilestoneVested and CumulativeTailVested break CumulativeVested
	// down by source.
	CumulativeMilestoneVested CategorySplit
	CumulativeTailVested      CategorySplit

	VestedPct      CategoryPct
	TotalVestedPct float64
}

// HybridAllocation is the cliff + milestone + linear result for one record.
type HybridAllocation struct {
	ProposalName        string
	RequestedFundingUSD float64
	TotalTokens         float64
	Tokens              CategorySplit

	CliffDays             int
	MilestonePeriodMonths int
	TailVestingMonths     int
	TotalDurationMonths   int

	MilestoneTokens float64
	TailTokens      float64

	MilestoneSchedule []MilestonePool
	MonthlyTimeline   []MonthlySnapshot
}

// Final returns the last snapshot of the timeline, or the zero value when
// the timeline is empty.
func (a HybridAllocation) Final() MonthlySnapshot {
	if len(a.MonthlyTimeline) == 0 {
		return MonthlySnapshot{}
	}
	return a.MonthlyTimeline[len(a.MonthlyTimeline)-1]
}

// MilestoneRelease is the share of a flat allocation released at one milestone.
type MilestoneRelease struct {
	Name         string
	ReleasePct   float64
	Tokens       CategorySplit
	TotalRelease float64
}

// FlatAllocation is the milestone-percentage result for one record.
type FlatAllocation struct {
	ProposalName        string
	RequestedFundingUSD float64
	TotalTokens         float64
	Tokens              CategorySplit
	Releases            []MilestoneRelease
}

// Summary aggregates a run across all records. Milestone and tail totals,
// duration and cliff are only meaningful for hybrid runs.
type Summary struct {
	TotalProjects            int
	TotalFundingUSD          float64
	TotalTokens              float64
	TotalProjectTokens       float64
	TotalParticipantTokens   float64
	TotalAuditorTokens       float64
	TotalMilestoneTokens     float64
	TotalTailTokens          float64
	AvgProjectDurationMonths float64
	CliffPeriodDays          int
}
