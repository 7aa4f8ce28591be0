package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MatterDesk/MatterDesk/app/models"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt64(v int64) *int64        { return &v }

func fixtures(now time.Time) ([]models.Matter, []models.MatterType, []models.TeamMember) {
	matters := []models.Matter{
		{
			// active, heavy type, unassigned, at risk in 10 days
			ID: 1, Status: "Drafting", MatterTypeID: ptrInt64(31), MatterType: "H-1B",
			FlatFee: 4000, BillingStatus: models.BillingStatusDue,
			EstimatedDeadline:   ptrTime(now.AddDate(0, 0, 10)),
			DocketwiseCreatedAt: ptrTime(now.AddDate(0, 0, -3)),
		},
		{
			// active, overdue, assigned, filed on the filing axis
			ID: 2, Status: "In Review", StatusForFiling: "Filed",
			MatterTypeID: ptrInt64(31), MatterType: "H-1B",
			FlatFee: 2000, BillingStatus: models.BillingStatusPaid,
			AssigneeIDs:         "[11]",
			EstimatedDeadline:   ptrTime(now.AddDate(0, 0, -2)),
			DocketwiseCreatedAt: ptrTime(now.AddDate(0, 0, -20)),
		},
		{
			// completed on time last month, no pricing info
			ID: 3, Status: "Closed", RFECount: 2,
			DocketwiseCreatedAt: ptrTime(now.AddDate(0, -1, -10)),
			ClosedAt:            ptrTime(now.AddDate(0, 0, -10)),
			EstimatedDeadline:   ptrTime(now.AddDate(0, 0, -5)),
		},
	}
	types := []models.MatterType{
		{DocketwiseID: 31, Name: "H-1B", ComplexityWeight: 2, FlatFee: 3500},
	}
	members := []models.TeamMember{
		{DocketwiseID: 11, Name: "Ada Reyes", UtilizationTarget: 80},
		{DocketwiseID: 12, Name: "Ben Okafor", UtilizationTarget: 60},
		{DocketwiseID: 13, Name: "No Target"},
	}
	return matters, types, members
}

func TestComputeDashboardStats(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	matters, types, members := fixtures(now)

	a := NewAggregator(nil, nil, nil).WithNow(func() time.Time { return now })
	stats := a.compute(7, matters, types, members, now)

	assert.Equal(t, 2, stats.ActiveMatters)
	assert.Equal(t, 4.0, stats.WeightedActiveMatters, "both active matters carry the type weight of 2")
	assert.Equal(t, 1, stats.UnassignedMatters)
	assert.Equal(t, 1, stats.OverdueMatters)
	assert.Equal(t, 1, stats.AtRiskMatters)

	// matter 3 has no flat fee of its own and no type, so nothing to add
	assert.Equal(t, 6000.0, stats.TotalRevenue)
	assert.Equal(t, 2000.0, stats.CollectedRevenue)
	assert.Equal(t, 4000.0, stats.PendingRevenue)
	assert.Equal(t, 6000.0, stats.RevenueAtRisk, "overdue and at-risk fees both count")

	assert.Equal(t, 100.0, stats.DeadlineComplianceRate, "the only closure with a deadline landed on time")
	assert.InDelta(t, 28.0, stats.AvgCycleTimeDays, 0.01)
	assert.InDelta(t, 20.0, stats.AvgDaysToFile, 0.01)
	assert.Equal(t, 70.0, stats.UtilizationRate, "members without a target are excluded from the mean")

	assert.Equal(t, 1, stats.NewMattersThisMonth)
	assert.Equal(t, 2, stats.NewMattersLastMonth)
	assert.InDelta(t, 100-10.0/3, stats.QualityScore, 0.01, "two RFEs cost 10 penalty points over three matters")
	assert.InDelta(t, 100-1.0/3*100, stats.DataQualityScore, 0.01, "one of three matters misses pricing data")
}

func TestComputeIsDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	matters, types, members := fixtures(now)

	a := NewAggregator(nil, nil, nil).WithNow(func() time.Time { return now })
	first := a.compute(7, matters, types, members, now)
	second := a.compute(7, matters, types, members, now)

	assert.Equal(t, first, second)
}

func TestIsCompletedStatus(t *testing.T) {
	cases := map[string]bool{
		"Filed":            true,
		"Case Approved":    true,
		"Denied":           true,
		"Closed - Won":     true,
		"Drafting":         false,
		"In Review":        false,
		"Case Evaluation":  false,
		"RFE Received":     false,
		"Awaiting Receipt": false,
	}
	for status, want := range cases {
		assert.Equal(t, want, isCompletedStatus(status), status)
	}
}
