package distribution

import (
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/vesting"
)

// SummarizeHybrid aggregates hybrid allocations. Duration and cliff are
// echoed from cfg since every record shares them.
func SummarizeHybrid(allocs []model.HybridAllocation, cfg vesting.Config) model.Summary {
	n := len(allocs)
	funding, tokens := make([]float64, n), make([]float64, n)
	project, participant, auditor := make([]float64, n), make([]float64, n), make([]float64, n)
	milestone, tail := make([]float64, n), make([]float64, n)
	for i, a := range allocs {
		funding[i] = a.RequestedFundingUSD
		tokens[i] = a.TotalTokens
		project[i] = a.Tokens.Project
		participant[i] = a.Tokens.Participant
		auditor[i] = a.Tokens.Auditor
		milestone[i] = a.MilestoneTokens
		tail[i] = a.TailTokens
	}
	return model.Summary{
		TotalProjects:            n,
		TotalFundingUSD:          floats.Sum(funding),
		TotalTokens:              floats.Sum(tokens),
		TotalProjectTokens:       floats.Sum(project),
		TotalParticipantTokens:   floats.Sum(participant),
		TotalAuditorTokens:       floats.Sum(auditor),
		TotalMilestoneTokens:     floats.Sum(milestone),
		TotalTailTokens:          floats.Sum(tail),
		AvgProjectDurationMonths: float64(cfg.TotalDuration()),
		CliffPeriodDays:          cfg.CliffPeriodDays,
	}
}

// SummarizeFlat aggregates flat allocations.
func SummarizeFlat(allocs []model.FlatAllocation) model.Summary {
	n := len(allocs)
	funding, tokens := make([]float64, n), make([]float64, n)
	project, participant, auditor := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, a := range allocs {
		funding[i] = a.RequestedFundingUSD
		tokens[i] = a.TotalTokens
		project[i] = a.Tokens.Project
		participant[i] = a.Tokens.Participant
		auditor[i] = a.Tokens.Auditor
	}
	return model.Summary{
		TotalProjects:          n,
		TotalFundingUSD:        floats.Sum(funding),
		TotalTokens:            floats.Sum(tokens),
		TotalProjectTokens:     floats.Sum(project),
		TotalParticipantTokens: floats.Sum(participant),
		TotalAuditorTokens:     floats.Sum(auditor),
	}
}

// PickExample returns the allocation used for the detailed console timeline:
// the first whose name contains needle, else the second, else the first.
// ok is false when allocs is empty.
func PickExample(allocs []model.HybridAllocation, needle string) (model.HybridAllocation, bool) {
	if len(allocs) == 0 {
		return model.HybridAllocation{}, false
	}
	if needle != "" {
		for _, a := range allocs {
			if strings.Contains(a.ProposalName, needle) {
				return a, true
			}
		}
	}
	if len(allocs) > 1 {
		return allocs[1], true
	}
	return allocs[0], true
}
