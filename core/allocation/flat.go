package allocation

import (
	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/vesting"
)

// FlatAllocator releases tokens in steps equal to the increase in cumulative
// completion at each milestone.
type FlatAllocator struct {
	splitter   *Splitter
	milestones []vesting.Milestone
}

// NewFlatAllocator returns a FlatAllocator over a copy of milestones, which
// are expected to be validated already.
func NewFlatAllocator(s *Splitter, milestones []vesting.Milestone) *FlatAllocator {
	return &FlatAllocator{splitter: s, milestones: append([]vesting.Milestone(nil), milestones...)}
}

// Allocate computes the flat milestone releases for rec.
func (f *FlatAllocator) Allocate(rec model.FundingRecord) model.FlatAllocation {
	total := f.splitter.Tokens(rec.AmountUSD)
	tokens := f.splitter.Split(rec.AmountUSD)
	releases := make([]model.MilestoneRelease, 0, len(f.milestones))
	prev := 0.0
	for _, m := range f.milestones {
		pct := m.CompletionPct - prev
		prev = m.CompletionPct
		releases = append(releases, model.MilestoneRelease{
			Name:         m.Name,
			ReleasePct:   pct,
			Tokens:       tokens.Scale(pct),
			TotalRelease: total * pct,
		})
	}
	return model.FlatAllocation{
		ProposalName:        rec.Name,
		RequestedFundingUSD: rec.AmountUSD,
		TotalTokens:         total,
		Tokens:              tokens,
		Releases:            releases,
	}
}
