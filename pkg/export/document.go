package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
)

// Framework versions stamped in document metadata.
const (
	HybridFrameworkVersion = "2.0-hybrid"
	FlatFrameworkVersion   = "1.0"
	hybridVestingType      = "Cliff + Milestone + Linear"
)

// Metadata echoes the configuration a document was computed with.
type Metadata struct {
	GeneratedAt          string                `json:"generated_at"`
	RunID                string                `json:"run_id,omitempty"`
	FrameworkVersion     string                `json:"framework_version"`
	VestingType          string                `json:"vesting_type,omitempty"`
	TokenConversionRate  float64               `json:"token_conversion_rate"`
	DistributionRatios   TokenDistribution     `json:"distribution_ratios"`
	VestingConfiguration *VestingConfiguration `json:"vesting_configuration,omitempty"`
	Milestones           []string              `json:"milestones"`
}

// VestingConfiguration is the hybrid vesting block of the metadata.
type VestingConfiguration struct {
	CliffPeriodDays        int     `json:"cliff_period_days"`
	MilestonePeriodMonths  int     `json:"milestone_period_months"`
	TailVestingMonths      int     `json:"tail_vesting_months"`
	TailVestingRatio       float64 `json:"tail_vesting_ratio"`
	MilestoneVestingMonths int     `json:"milestone_vesting_months"`
}

// TokenDistribution holds one value per category, keyed the way the
// dashboard expects.
type TokenDistribution struct {
	ProjectTokens     float64 `json:"project_tokens"`
	ParticipantTokens float64 `json:"participant_tokens"`
	AuditorTokens     float64 `json:"auditor_tokens"`
}

// HybridSummary is the summary block of a hybrid document.
type HybridSummary struct {
	TotalProjects            int     `json:"total_projects"`
	TotalFundingUSD          float64 `json:"total_funding_usd"`
	TotalTokens              float64 `json:"total_tokens"`
	TotalProjectTokens       float64 `json:"total_project_tokens"`
	TotalParticipantTokens   float64 `json:"total_participant_tokens"`
	TotalAuditorTokens       float64 `json:"total_auditor_tokens"`
	TotalMilestoneTokens     float64 `json:"total_milestone_tokens"`
	TotalTailTokens          float64 `json:"total_tail_tokens"`
	AvgProjectDurationMonths float64 `json:"avg_project_duration_months"`
	CliffPeriodDays          int     `json:"cliff_period_days"`
}

// FlatSummary is the summary block of a flat document.
type FlatSummary struct {
	TotalProjects          int     `json:"total_projects"`
	TotalFundingUSD        float64 `json:"total_funding_usd"`
	TotalTokens            float64 `json:"total_tokens"`
	TotalProjectTokens     float64 `json:"total_project_tokens"`
	TotalParticipantTokens float64 `json:"total_participant_tokens"`
	TotalAuditorTokens     float64 `json:"total_auditor_tokens"`
}

// VestingStructure is the per-allocation milestone/tail split.
type VestingStructure struct {
	CliffDays             int     `json:"cliff_days"`
	MilestonePeriodMonths int     `json:"milestone_period_months"`
	TailVestingMonths     int     `json:"tail_vesting_months"`
	TotalDurationMonths   int     `json:"total_duration_months"`
	MilestoneTokens       float64 `json:"milestone_tokens"`
	TailTokens            float64 `json:"tail_tokens"`
}

// MilestoneScheduleEntry is one pool of the hybrid schedule.
type MilestoneScheduleEntry struct {
	MilestoneName string              `json:"milestone_name"`
	UnlockMonth   int                 `json:"unlock_month"`
	PoolSizes     model.CategorySplit `json:"pool_sizes"`
	VestingMonths int                 `json:"vesting_months"`
	MonthlyVest   model.CategorySplit `json:"monthly_vest"`
}

// VestedPercentages adds the blended total to the per-category percentages.
type VestedPercentages struct {
	Project     float64 `json:"project"`
	Participant float64 `json:"participant"`
	Auditor     float64 `json:"auditor"`
	Total       float64 `json:"total"`
}

// TimelineEntry is one month of the hybrid timeline.
type TimelineEntry struct {
	Month                     int                 `json:"month"`
	DaysElapsed               int                 `json:"days_elapsed"`
	PastCliff                 bool                `json:"past_cliff"`
	MilestonesAchieved        []string            `json:"milestones_achieved"`
	NewUnlocked               model.CategorySplit `json:"new_unlocked"`
	VestedThisMonth           model.CategorySplit `json:"vested_this_month"`
	CumulativeVested          model.CategorySplit `json:"cumulative_vested"`
	CumulativeMilestoneVested model.CategorySplit `json:"cumulative_milestone_vested"`
	CumulativeTailVested      model.CategorySplit `json:"cumulative_tail_vested"`
	VestedPercentages         VestedPercentages   `json:"vested_percentages"`
}

// HybridAllocationEntry is one project in a hybrid document.
type HybridAllocationEntry struct {
	ProposalName        string                   `json:"proposal_name"`
	RequestedFundingUSD float64                  `json:"requested_funding_usd"`
	TotalTokens         float64                  `json:"total_tokens"`
	TokenDistribution   TokenDistribution        `json:"token_distribution"`
	VestingStructure    VestingStructure         `json:"vesting_structure"`
	MilestoneSchedule   []MilestoneScheduleEntry `json:"milestone_schedule"`
	MonthlyTimeline     []TimelineEntry          `json:"monthly_timeline"`
}

// ReleaseEntry is one milestone release of a flat allocation.
type ReleaseEntry struct {
	ProjectTokens     float64 `json:"project_tokens"`
	ParticipantTokens float64 `json:"participant_tokens"`
	AuditorTokens     float64 `json:"auditor_tokens"`
	TotalRelease      float64 `json:"total_release"`
}

// FlatAllocationEntry is one project in a flat document.
type FlatAllocationEntry struct {
	ProposalName        string                  `json:"proposal_name"`
	RequestedFundingUSD float64                 `json:"requested_funding_usd"`
	TotalTokens         float64                 `json:"total_tokens"`
	TokenDistribution   TokenDistribution       `json:"token_distribution"`
	MilestoneReleases   map[string]ReleaseEntry `json:"milestone_releases"`
}

// HybridDocument is the nested document written for hybrid runs.
type HybridDocument struct {
	Metadata    Metadata                `json:"metadata"`
	Summary     HybridSummary           `json:"summary"`
	Allocations []HybridAllocationEntry `json:"allocations"`
}

// FlatDocument is the nested document written for flat runs.
type FlatDocument struct {
	Metadata    Metadata              `json:"metadata"`
	Summary     FlatSummary           `json:"summary"`
	Allocations []FlatAllocationEntry `json:"allocations"`
}

func tokenDistribution(s model.CategorySplit) TokenDistribution {
	return TokenDistribution{ProjectTokens: s.Project, ParticipantTokens: s.Participant, AuditorTokens: s.Auditor}
}

func (d TokenDistribution) split() model.CategorySplit {
	return model.CategorySplit{Project: d.ProjectTokens, Participant: d.ParticipantTokens, Auditor: d.AuditorTokens}
}

func metadata(r report.Report, version string) Metadata {
	names := make([]string, 0, len(r.Vesting.Milestones))
	for _, m := range r.Vesting.Milestones {
		names = append(names, m.Name)
	}
	return Metadata{
		GeneratedAt:         r.GeneratedAt.Format(time.RFC3339),
		RunID:               r.RunID,
		FrameworkVersion:    version,
		TokenConversionRate: r.Distribution.TokenConversionRate,
		DistributionRatios:  tokenDistribution(r.Distribution.Ratios()),
		Milestones:          names,
	}
}

// NewHybridDocument converts a hybrid report into its document form.
func NewHybridDocument(r report.Report) HybridDocument {
	md := metadata(r, HybridFrameworkVersion)
	md.VestingType = hybridVestingType
	md.VestingConfiguration = &VestingConfiguration{
		CliffPeriodDays:        r.Vesting.CliffPeriodDays,
		MilestonePeriodMonths:  r.Vesting.MilestonePeriodMonths,
		TailVestingMonths:      r.Vesting.TailVestingMonths,
		TailVestingRatio:       r.Vesting.TailVestingRatio,
		MilestoneVestingMonths: r.Vesting.MilestoneVestingMonths,
	}
	s := r.Summary
	doc := HybridDocument{
		Metadata: md,
		Summary: HybridSummary{
			TotalProjects:            s.TotalProjects,
			TotalFundingUSD:          s.TotalFundingUSD,
			TotalTokens:              s.TotalTokens,
			TotalProjectTokens:       s.TotalProjectTokens,
			TotalParticipantTokens:   s.TotalParticipantTokens,
			TotalAuditorTokens:       s.TotalAuditorTokens,
			TotalMilestoneTokens:     s.TotalMilestoneTokens,
			TotalTailTokens:          s.TotalTailTokens,
			AvgProjectDurationMonths: s.AvgProjectDurationMonths,
			CliffPeriodDays:          s.CliffPeriodDays,
		},
		Allocations: make([]HybridAllocationEntry, 0, len(r.Hybrid)),
	}
	for _, a := range r.Hybrid {
		doc.Allocations = append(doc.Allocations, HybridEntry(a))
	}
	return doc
}

// HybridEntry converts one hybrid allocation into its document form.
func HybridEntry(a model.HybridAllocation) HybridAllocationEntry {
	e := HybridAllocationEntry{
		ProposalName:        a.ProposalName,
		RequestedFundingUSD: a.RequestedFundingUSD,
		TotalTokens:         a.TotalTokens,
		TokenDistribution:   tokenDistribution(a.Tokens),
		VestingStructure: VestingStructure{
			CliffDays:             a.CliffDays,
			MilestonePeriodMonths: a.MilestonePeriodMonths,
			TailVestingMonths:     a.TailVestingMonths,
			TotalDurationMonths:   a.TotalDurationMonths,
			MilestoneTokens:       a.MilestoneTokens,
			TailTokens:            a.TailTokens,
		},
		MilestoneSchedule: make([]MilestoneScheduleEntry, 0, len(a.MilestoneSchedule)),
		MonthlyTimeline:   make([]TimelineEntry, 0, len(a.MonthlyTimeline)),
	}
	for _, p := range a.MilestoneSchedule {
		e.MilestoneSchedule = append(e.MilestoneSchedule, MilestoneScheduleEntry{
			MilestoneName: p.Name,
			UnlockMonth:   p.UnlockMonth,
			PoolSizes:     p.PoolSize,
			VestingMonths: p.VestingMonths,
			MonthlyVest:   p.MonthlyVest,
		})
	}
	for _, s := range a.MonthlyTimeline {
		achieved := s.MilestonesAchieved
		if achieved == nil {
			achieved = []string{}
		}
		e.MonthlyTimeline = append(e.MonthlyTimeline, TimelineEntry{
			Month:                     s.Month,
			DaysElapsed:               s.DaysElapsed,
			PastCliff:                 s.PastCliff,
			MilestonesAchieved:        achieved,
			NewUnlocked:               s.NewUnlocked,
			VestedThisMonth:           s.VestedThisMonth,
			CumulativeVested:          s.CumulativeVested,
			CumulativeMilestoneVested: s.CumulativeMilestoneVested,
			CumulativeTailVested:      s.CumulativeTailVested,
			VestedPercentages: VestedPercentages{
				Project:     s.VestedPct.Project,
				Participant: s.VestedPct.Participant,
				Auditor:     s.VestedPct.Auditor,
				Total:       s.TotalVestedPct,
			},
		})
	}
	return e
}

// Allocation converts a document entry back into the domain type.
func (e HybridAllocationEntry) Allocation() model.HybridAllocation {
	a := model.HybridAllocation{
		ProposalName:          e.ProposalName,
		RequestedFundingUSD:   e.RequestedFundingUSD,
		TotalTokens:           e.TotalTokens,
		Tokens:                e.TokenDistribution.split(),
		CliffDays:             e.VestingStructure.CliffDays,
		MilestonePeriodMonths: e.VestingStructure.MilestonePeriodMonths,
		TailVestingMonths:     e.VestingStructure.TailVestingMonths,
		TotalDurationMonths:   e.VestingStructure.TotalDurationMonths,
		MilestoneTokens:       e.VestingStructure.MilestoneTokens,
		TailTokens:            e.VestingStructure.TailTokens,
	}
	for _, p := range e.MilestoneSchedule {
		a.MilestoneSchedule = append(a.MilestoneSchedule, model.MilestonePool{
			Name:          p.MilestoneName,
			UnlockMonth:   p.UnlockMonth,
			PoolSize:      p.PoolSizes,
			VestingMonths: p.VestingMonths,
			MonthlyVest:   p.MonthlyVest,
		})
	}
	for _, s := range e.MonthlyTimeline {
		a.MonthlyTimeline = append(a.MonthlyTimeline, model.MonthlySnapshot{
			Month:                     s.Month,
			DaysElapsed:               s.DaysElapsed,
			PastCliff:                 s.PastCliff,
			MilestonesAchieved:        s.MilestonesAchieved,
			NewUnlocked:               s.NewUnlocked,
			VestedThisMonth:           s.VestedThisMonth,
			CumulativeVested:          s.CumulativeVested,
			CumulativeMilestoneVested: s.CumulativeMilestoneVested,
			CumulativeTailVested:      s.CumulativeTailVested,
			VestedPct: model.CategoryPct{
				Project:     s.VestedPercentages.Project,
				Participant: s.VestedPercentages.Participant,
				Auditor:     s.VestedPercentages.Auditor,
			},
			TotalVestedPct: s.VestedPercentages.Total,
		})
	}
	return a
}

// NewFlatDocument converts a flat report into its document form.
func NewFlatDocument(r report.Report) FlatDocument {
	s := r.Summary
	doc := FlatDocument{
		Metadata: metadata(r, FlatFrameworkVersion),
		Summary: FlatSummary{
			TotalProjects:          s.TotalProjects,
			TotalFundingUSD:        s.TotalFundingUSD,
			TotalTokens:            s.TotalTokens,
			TotalProjectTokens:     s.TotalProjectTokens,
			TotalParticipantTokens: s.TotalParticipantTokens,
			TotalAuditorTokens:     s.TotalAuditorTokens,
		},
		Allocations: make([]FlatAllocationEntry, 0, len(r.Flat)),
	}
	for _, a := range r.Flat {
		releases := make(map[string]ReleaseEntry, len(a.Releases))
		for _, rel := range a.Releases {
			releases[rel.Name] = ReleaseEntry{
				ProjectTokens:     rel.Tokens.Project,
				ParticipantTokens: rel.Tokens.Participant,
				AuditorTokens:     rel.Tokens.Auditor,
				TotalRelease:      rel.TotalRelease,
			}
		}
		doc.Allocations = append(doc.Allocations, FlatAllocationEntry{
			ProposalName:        a.ProposalName,
			RequestedFundingUSD: a.RequestedFundingUSD,
			TotalTokens:         a.TotalTokens,
			TokenDistribution:   tokenDistribution(a.Tokens),
			MilestoneReleases:   releases,
		})
	}
	return doc
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteHybridJSON writes the hybrid document for r to w.
func WriteHybridJSON(w io.Writer, r report.Report) error {
	return writeIndented(w, NewHybridDocument(r))
}

// WriteFlatJSON writes the flat document for r to w.
func WriteFlatJSON(w io.Writer, r report.Report) error {
	return writeIndented(w, NewFlatDocument(r))
}

// WriteJSON writes the document matching the report policy.
func WriteJSON(w io.Writer, r report.Report) error {
	switch r.Policy {
	case report.PolicyHybrid:
		return WriteHybridJSON(w, r)
	case report.PolicyFlat:
		return WriteFlatJSON(w, r)
	default:
		return fmt.Errorf("unknown policy %q", r.Policy)
	}
}

// ReadHybridJSON decodes a hybrid document.
func ReadHybridJSON(r io.Reader) (HybridDocument, error) {
	var doc HybridDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return HybridDocument{}, err
	}
	if doc.Metadata.FrameworkVersion != HybridFrameworkVersion {
		return HybridDocument{}, fmt.Errorf("not a hybrid document: framework_version %q", doc.Metadata.FrameworkVersion)
	}
	return doc, nil
}

// ReadFlatJSON decodes a flat document.
func ReadFlatJSON(r io.Reader) (FlatDocument, error) {
	var doc FlatDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return FlatDocument{}, err
	}
	if doc.Metadata.FrameworkVersion != FlatFrameworkVersion {
		return FlatDocument{}, fmt.Errorf("not a flat document: framework_version %q", doc.Metadata.FrameworkVersion)
	}
	return doc, nil
}
