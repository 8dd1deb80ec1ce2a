package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
)

const rule = "======================================================================"

// WriteSummary prints the run summary in a fixed-width console layout.
func WriteSummary(w io.Writer, r report.Report) error {
	s := r.Summary
	d := r.Distribution
	var b strings.Builder
	title := "TOKEN DISTRIBUTION SUMMARY"
	if r.Policy == report.PolicyHybrid {
		title = "HYBRID VESTING SUMMARY (Cliff + Milestone + Linear)"
	}
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, title, rule)
	fmt.Fprintf(&b, "%-30s%d\n", "Total Funded Projects:", s.TotalProjects)
	fmt.Fprintf(&b, "%-30s%s\n", "Total Funding:", usd(s.TotalFundingUSD))
	fmt.Fprintf(&b, "%-30s%s\n", "Total Tokens Issued:", amount(s.TotalTokens))
	b.WriteString("\nToken Distribution by Category:\n")
	fmt.Fprintf(&b, "  %-28s%s\n", fmt.Sprintf("Project Tokens (%s):", ratioLabel(d.ProjectRatio)), amount(s.TotalProjectTokens))
	fmt.Fprintf(&b, "  %-28s%s\n", fmt.Sprintf("Participant Tokens (%s):", ratioLabel(d.ParticipantRatio)), amount(s.TotalParticipantTokens))
	fmt.Fprintf(&b, "  %-28s%s\n", fmt.Sprintf("Auditor Tokens (%s):", ratioLabel(d.AuditorRatio)), amount(s.TotalAuditorTokens))
	if r.Policy == report.PolicyHybrid {
		tail := r.Vesting.TailVestingRatio
		b.WriteString("\nVesting Structure:\n")
		fmt.Fprintf(&b, "  %-28s%s\n", fmt.Sprintf("Milestone Tokens (%s):", ratioLabel(1-tail)), amount(s.TotalMilestoneTokens))
		fmt.Fprintf(&b, "  %-28s%s\n", fmt.Sprintf("Tail Tokens (%s):", ratioLabel(tail)), amount(s.TotalTailTokens))
		fmt.Fprintf(&b, "  %-28s%d days\n", "Cliff Period:", s.CliffPeriodDays)
		fmt.Fprintf(&b, "  %-28s%g months\n", "Total Duration:", s.AvgProjectDurationMonths)
	}
	fmt.Fprintf(&b, "%s\n\n", rule)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTimeline prints the month-by-month vesting table of one allocation.
// Months still inside the cliff are marked [CLIFF].
func WriteTimeline(w io.Writer, a model.HybridAllocation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nEXAMPLE: Detailed Hybrid Vesting Timeline\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Project: %s\n", a.ProposalName)
	fmt.Fprintf(&b, "Funding: %s\n", usd(a.RequestedFundingUSD))
	fmt.Fprintf(&b, "Total Tokens: %s\n", amount(a.TotalTokens))
	b.WriteString("\nVesting Parameters:\n")
	fmt.Fprintf(&b, "  Cliff Period: %d days\n", a.CliffDays)
	fmt.Fprintf(&b, "  Milestone Period: %d months\n", a.MilestonePeriodMonths)
	fmt.Fprintf(&b, "  Tail Period: %d months\n", a.TailVestingMonths)
	fmt.Fprintf(&b, "  Total Duration: %d months\n", a.TotalDurationMonths)
	dash := strings.Repeat("-", len(rule))
	fmt.Fprintf(&b, "\n%s\n%-8s %-8s %-25s %-15s %-10s\n%s\n", dash, "Month", "Days", "Milestone", "Vested", "%", dash)
	for _, s := range a.MonthlyTimeline {
		label := "-"
		if len(s.MilestonesAchieved) > 0 {
			label = strings.Join(s.MilestonesAchieved, ", ")
		}
		if len(label) > 24 {
			label = label[:21] + "..."
		}
		marker := ""
		if !s.PastCliff {
			marker = " [CLIFF]"
		}
		fmt.Fprintf(&b, "%-8d %-8d %-25s %12s   %5.1f%%%s\n",
			s.Month, s.DaysElapsed, label, wholeAmount(s.CumulativeVested.Total()), s.TotalVestedPct, marker)
	}
	fmt.Fprintf(&b, "%s\n\n", rule)
	_, err := io.WriteString(w, b.String())
	return err
}
