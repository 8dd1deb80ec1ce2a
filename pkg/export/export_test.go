package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/grantvest/core/allocation"
	"github.com/kilianp07/grantvest/core/distribution"
	"github.com/kilianp07/grantvest/core/model"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/core/vesting"
)

var fixtureRecords = []model.FundingRecord{
	{Name: "Rust SDK for Cardano", AmountUSD: 50000},
	{Name: "Developer Portal", AmountUSD: 12345.67},
}

func newReport(t *testing.T, policy report.Policy) report.Report {
	t.Helper()
	s, err := allocation.NewSplitter(allocation.DefaultConfig())
	require.NoError(t, err)
	e, err := vesting.NewEngine(vesting.DefaultConfig())
	require.NoError(t, err)
	p, err := distribution.NewProcessor(s, e, distribution.WithWorkers(2))
	require.NoError(t, err)

	r := report.Report{
		RunID:        "run-1",
		GeneratedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Policy:       policy,
		Distribution: s.Config(),
		Vesting:      e.Config(),
	}
	switch policy {
	case report.PolicyHybrid:
		r.Hybrid, err = p.ProcessHybrid(context.Background(), fixtureRecords)
		require.NoError(t, err)
		r.Summary = distribution.SummarizeHybrid(r.Hybrid, r.Vesting)
	case report.PolicyFlat:
		r.Flat, err = p.ProcessFlat(context.Background(), fixtureRecords)
		require.NoError(t, err)
		r.Summary = distribution.SummarizeFlat(r.Flat)
	}
	return r
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestHybridJSON_RoundTrip(t *testing.T) {
	r := newReport(t, report.PolicyHybrid)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	doc, err := ReadHybridJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", doc.Metadata.GeneratedAt)
	assert.Equal(t, "run-1", doc.Metadata.RunID)
	assert.Equal(t, hybridVestingType, doc.Metadata.VestingType)
	require.NotNil(t, doc.Metadata.VestingConfiguration)
	assert.Equal(t, 30, doc.Metadata.VestingConfiguration.CliffPeriodDays)
	assert.Len(t, doc.Metadata.Milestones, 4)
	assert.Equal(t, 2, doc.Summary.TotalProjects)
	assert.InDelta(t, 62345.67, doc.Summary.TotalFundingUSD, 1e-6)

	require.Len(t, doc.Allocations, len(r.Hybrid))
	for i, e := range doc.Allocations {
		got := e.Allocation()
		want := r.Hybrid[i]
		assert.Equal(t, want.Tokens, got.Tokens)
		assert.Equal(t, want.MilestoneSchedule, got.MilestoneSchedule)
		require.Len(t, got.MonthlyTimeline, len(want.MonthlyTimeline))
		for m := range want.MonthlyTimeline {
			assert.Equal(t, want.MonthlyTimeline[m].CumulativeVested, got.MonthlyTimeline[m].CumulativeVested, "month %d", m)
			assert.Equal(t, want.MonthlyTimeline[m].TotalVestedPct, got.MonthlyTimeline[m].TotalVestedPct, "month %d", m)
		}
	}
}

func TestHybridJSON_EmptyAchievedIsArray(t *testing.T) {
	r := newReport(t, report.PolicyHybrid)
	var buf bytes.Buffer
	require.NoError(t, WriteHybridJSON(&buf, r))
	assert.Contains(t, buf.String(), `"milestones_achieved": []`)
}

func TestFlatJSON(t *testing.T) {
	r := newReport(t, report.PolicyFlat)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	doc, err := ReadFlatJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, FlatFrameworkVersion, doc.Metadata.FrameworkVersion)
	assert.Nil(t, doc.Metadata.VestingConfiguration)
	require.Len(t, doc.Allocations, 2)

	rel, ok := doc.Allocations[0].MilestoneReleases["Milestone 2 (50%)"]
	require.True(t, ok)
	assert.InDelta(t, 6250, rel.ProjectTokens, 1e-9)
	assert.InDelta(t, 12500, rel.TotalRelease, 1e-9)
}

func TestReadJSON_RejectsOtherPolicy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, newReport(t, report.PolicyFlat)))
	_, err := ReadHybridJSON(&buf)
	assert.Error(t, err)
}

func TestWrite_UnknownPolicy(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteJSON(&buf, report.Report{Policy: "weird"}))
	assert.Error(t, WriteCSV(&buf, report.Report{Policy: "weird"}))
}

func TestHybridCSV(t *testing.T) {
	r := newReport(t, report.PolicyHybrid)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r))
	rows := readCSV(t, buf.Bytes())

	header := rows[0]
	require.Len(t, header, 10+2*13)
	assert.Equal(t, "Milestone Tokens (90%)", header[8])
	assert.Equal(t, "Tail Tokens (10%)", header[9])
	assert.Equal(t, "Month 0 Total Vested", header[10])
	assert.Equal(t, "Month 12 Vested %", header[len(header)-1])

	row := rows[1]
	assert.Equal(t, "Rust SDK for Cardano", row[0])
	assert.Equal(t, "$50,000.00", row[1])
	assert.Equal(t, "25,000.00", row[3])
	assert.Equal(t, "30", row[6])
	assert.Equal(t, "12", row[7])
	assert.Equal(t, "45,000.00", row[8])
	assert.Equal(t, "0.00", row[10])
	assert.Equal(t, "0.0%", row[11])
	assert.Equal(t, "100.0%", row[len(row)-1])

	for _, row := range rows[3:] {
		assert.Len(t, row, len(header))
	}
	assert.Equal(t, "HYBRID VESTING SUMMARY", rows[4][0])
	assert.Equal(t, []string{"Total Projects", "2"}, rows[5][:2])
	assert.Equal(t, "30 days", rows[10][1])
	assert.Equal(t, "12 months", rows[11][1])
}

func TestFlatCSV(t *testing.T) {
	r := newReport(t, report.PolicyFlat)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r))
	rows := readCSV(t, buf.Bytes())

	header := rows[0]
	require.Len(t, header, 6+3*4)
	assert.Equal(t, "Project Tokens (50%)", header[3])
	assert.Equal(t, "Participant Tokens (30%)", header[4])
	assert.Equal(t, "Auditor Tokens (20%)", header[5])
	assert.Equal(t, "M4 Auditor Release", header[len(header)-1])

	row := rows[1]
	assert.Equal(t, "6,250.00", row[6])
	assert.Equal(t, "2,500.00", row[len(row)-1])

	// the blank separator line is skipped by the reader
	assert.Equal(t, "SUMMARY STATISTICS", rows[3][0])
	assert.Equal(t, []string{"Total Projects", "2"}, rows[4])
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, newReport(t, report.PolicyHybrid)))
	out := buf.String()
	assert.Contains(t, out, "HYBRID VESTING SUMMARY")
	assert.Contains(t, out, "$62,345.67")
	assert.Contains(t, out, "Tail Tokens (10%):")
	assert.Contains(t, out, "30 days")

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, newReport(t, report.PolicyFlat)))
	assert.Contains(t, buf.String(), "TOKEN DISTRIBUTION SUMMARY")
	assert.NotContains(t, buf.String(), "Vesting Structure")
}

func TestWriteTimeline(t *testing.T) {
	r := newReport(t, report.PolicyHybrid)
	var buf bytes.Buffer
	require.NoError(t, WriteTimeline(&buf, r.Hybrid[0]))
	lines := strings.Split(buf.String(), "\n")

	var cliff, month1 string
	for _, l := range lines {
		if strings.HasPrefix(l, "0 ") {
			cliff = l
		}
		if strings.HasPrefix(l, "1 ") {
			month1 = l
		}
	}
	assert.Contains(t, cliff, "[CLIFF]")
	assert.NotContains(t, month1, "[CLIFF]")
	assert.Contains(t, month1, "Milestone 1 (25%)")
	assert.Contains(t, month1, fmt.Sprintf("%5.1f%%", r.Hybrid[0].MonthlyTimeline[1].TotalVestedPct))
}

func TestWriteTimeline_TruncatesLongLabels(t *testing.T) {
	a := model.HybridAllocation{
		ProposalName: "x",
		MonthlyTimeline: []model.MonthlySnapshot{{
			Month:              3,
			PastCliff:          true,
			MilestonesAchieved: []string{"Milestone 1 (25%)", "Milestone 2 (50%)"},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTimeline(&buf, a))
	assert.Contains(t, buf.String(), "Milestone 1 (25%), Mi...")
}
