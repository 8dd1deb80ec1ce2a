package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/grantvest/core/report"
)

// WriteCSV writes the tabular report matching the report policy.
func WriteCSV(w io.Writer, r report.Report) error {
	switch r.Policy {
	case report.PolicyHybrid:
		return WriteHybridCSV(w, r)
	case report.PolicyFlat:
		return WriteFlatCSV(w, r)
	default:
		return fmt.Errorf("unknown policy %q", r.Policy)
	}
}

// WriteHybridCSV writes one row per project with the cumulative vested total
// and percentage of every month, followed by summary rows padded to the
// header width.
func WriteHybridCSV(w io.Writer, r report.Report) error {
	cw := csv.NewWriter(w)
	milestoneLabel := fmt.Sprintf("Milestone Tokens (%s)", ratioLabel(1-r.Vesting.TailVestingRatio))
	tailLabel := fmt.Sprintf("Tail Tokens (%s)", ratioLabel(r.Vesting.TailVestingRatio))

	header := []string{
		"Proposal",
		"Funding (USD)",
		"Total Tokens",
		"Project Tokens",
		"Participant Tokens",
		"Auditor Tokens",
		"Cliff (Days)",
		"Duration (Months)",
		milestoneLabel,
		tailLabel,
	}
	for m := 0; m <= r.Vesting.TotalDuration(); m++ {
		header = append(header, fmt.Sprintf("Month %d Total Vested", m), fmt.Sprintf("Month %d Vested %%", m))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, a := range r.Hybrid {
		row := []string{
			a.ProposalName,
			usd(a.RequestedFundingUSD),
			amount(a.TotalTokens),
			amount(a.Tokens.Project),
			amount(a.Tokens.Participant),
			amount(a.Tokens.Auditor),
			strconv.Itoa(a.CliffDays),
			strconv.Itoa(a.TotalDurationMonths),
			amount(a.MilestoneTokens),
			amount(a.TailTokens),
		}
		for _, s := range a.MonthlyTimeline {
			row = append(row, amount(s.CumulativeVested.Total()), fmt.Sprintf("%.1f%%", s.TotalVestedPct))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	s := r.Summary
	pad := func(cells ...string) []string {
		row := make([]string, len(header))
		copy(row, cells)
		return row
	}
	rows := [][]string{
		pad(),
		pad("HYBRID VESTING SUMMARY"),
		pad("Total Projects", strconv.Itoa(s.TotalProjects)),
		pad("Total Funding (USD)", usd(s.TotalFundingUSD)),
		pad("Total Tokens", amount(s.TotalTokens)),
		pad(milestoneLabel, amount(s.TotalMilestoneTokens)),
		pad(tailLabel, amount(s.TotalTailTokens)),
		pad("Cliff Period", fmt.Sprintf("%d days", s.CliffPeriodDays)),
		pad("Avg Duration", fmt.Sprintf("%g months", s.AvgProjectDurationMonths)),
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFlatCSV writes per-category releases for every milestone, followed by
// summary statistics.
func WriteFlatCSV(w io.Writer, r report.Report) error {
	cw := csv.NewWriter(w)
	ratios := r.Distribution
	header := []string{
		"Proposal",
		"Requested Funding (USD)",
		"Total Tokens",
		fmt.Sprintf("Project Tokens (%s)", ratioLabel(ratios.ProjectRatio)),
		fmt.Sprintf("Participant Tokens (%s)", ratioLabel(ratios.ParticipantRatio)),
		fmt.Sprintf("Auditor Tokens (%s)", ratioLabel(ratios.AuditorRatio)),
	}
	for i := range r.Vesting.Milestones {
		n := i + 1
		header = append(header,
			fmt.Sprintf("M%d Project Release", n),
			fmt.Sprintf("M%d Participant Release", n),
			fmt.Sprintf("M%d Auditor Release", n),
		)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, a := range r.Flat {
		row := []string{
			a.ProposalName,
			usd(a.RequestedFundingUSD),
			amount(a.TotalTokens),
			amount(a.Tokens.Project),
			amount(a.Tokens.Participant),
			amount(a.Tokens.Auditor),
		}
		for _, rel := range a.Releases {
			row = append(row, amount(rel.Tokens.Project), amount(rel.Tokens.Participant), amount(rel.Tokens.Auditor))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	s := r.Summary
	rows := [][]string{
		{},
		{"SUMMARY STATISTICS"},
		{"Total Projects", strconv.Itoa(s.TotalProjects)},
		{"Total Funding (USD)", usd(s.TotalFundingUSD)},
		{"Total Tokens", amount(s.TotalTokens)},
		{header[3], amount(s.TotalProjectTokens)},
		{header[4], amount(s.TotalParticipantTokens)},
		{header[5], amount(s.TotalAuditorTokens)},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
