package statistics

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MatterDesk/MatterDesk/app/models"
	"github.com/MatterDesk/MatterDesk/app/repository"
	"github.com/MatterDesk/MatterDesk/internal/pkg/cache"
)

const (
	// CacheKeyDashboard caches the serialized stats row per user.
	CacheKeyDashboard = "dashboard:stats:%d"
	CacheExpiration   = 30 * time.Minute

	// revenueRiskWindow is how close a deadline must be before its
	// matter's fee counts as revenue at risk.
	revenueRiskWindow = 14
)

// Aggregator recomputes the dashboard KPI row from relational state.
// The pass is a pure function of the stored rows, so recomputing at
// any time is safe and two runs over unchanged data agree exactly.
type Aggregator struct {
	matters repository.MatterRepository
	refs    repository.ReferenceRepository
	stats   repository.StatsRepository
	now     func() time.Time
}

// NewAggregator creates a dashboard stats aggregator.
func NewAggregator(
	matters repository.MatterRepository,
	refs repository.ReferenceRepository,
	stats repository.StatsRepository,
) *Aggregator {
	return &Aggregator{matters: matters, refs: refs, stats: stats, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (a *Aggregator) WithNow(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// completedStatusMarkers classify a matter as finished. Everything
// else counts as active.
var completedStatusMarkers = []string{"filed", "approved", "denied", "closed", "completed"}

// isCompletedStatus reports whether the workflow stage means the
// matter is done.
func isCompletedStatus(status string) bool {
	s := strings.ToLower(status)
	for _, marker := range completedStatusMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isFiledStatus(status string) bool {
	return strings.Contains(strings.ToLower(status), "filed")
}

// RecomputeDashboardStats rebuilds and upserts the KPI row for the
// user, then refreshes the cached copy.
func (a *Aggregator) RecomputeDashboardStats(userID uint) (*models.DashboardStats, error) {
	matters, err := a.matters.ListForDashboard(userID)
	if err != nil {
		return nil, fmt.Errorf("load matters: %w", err)
	}
	types, err := a.refs.AllMatterTypes()
	if err != nil {
		return nil, fmt.Errorf("load matter types: %w", err)
	}
	members, err := a.refs.ActiveTeamMembers()
	if err != nil {
		return nil, fmt.Errorf("load team members: %w", err)
	}

	now := a.now()
	stats := a.compute(userID, matters, types, members, now)

	if err := a.stats.Upsert(stats); err != nil {
		return nil, fmt.Errorf("upsert dashboard stats: %w", err)
	}
	a.cacheStats(stats)
	return stats, nil
}

func (a *Aggregator) compute(userID uint, matters []models.Matter, types []models.MatterType, members []models.TeamMember, now time.Time) *models.DashboardStats {
	typeWeight := make(map[int64]float64, len(types))
	typeFee := make(map[int64]float64, len(types))
	for _, t := range types {
		typeWeight[t.DocketwiseID] = t.ComplexityWeight
		typeFee[t.DocketwiseID] = t.FlatFee
	}

	stats := &models.DashboardStats{UserID: userID, ComputedAt: now}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	riskCutoff := now.AddDate(0, 0, revenueRiskWindow)

	var (
		cycleDaysSum    float64
		cycleCount      int
		fileDaysSum     float64
		fileCount       int
		onTimeClosures  int
		closuresWithDue int
		penalty         float64
		incomplete      int
	)

	for i := range matters {
		m := &matters[i]
		completed := isCompletedStatus(m.Status)

		fee := m.FlatFee
		if fee == 0 && m.MatterTypeID != nil {
			fee = typeFee[*m.MatterTypeID]
		}
		stats.TotalRevenue += fee
		switch m.BillingStatus {
		case models.BillingStatusPaid:
			stats.CollectedRevenue += fee
		default:
			stats.PendingRevenue += fee
		}

		created := m.DocketwiseCreatedAt
		if created == nil {
			created = &m.CreatedAt
		}
		if !created.Before(monthStart) {
			stats.NewMattersThisMonth++
		} else if !created.Before(lastMonthStart) {
			stats.NewMattersLastMonth++
		}

		if m.FlatFee == 0 || m.EstimatedDeadline == nil || m.MatterType == "" {
			incomplete++
		}
		penalty += float64(m.RFECount)*5 + float64(m.RevisionCount)*3 + float64(m.ErrorCount)*2

		if completed {
			if m.ClosedAt != nil {
				cycleDaysSum += m.ClosedAt.Sub(*created).Hours() / 24
				cycleCount++
				if m.EstimatedDeadline != nil {
					closuresWithDue++
					if !m.ClosedAt.After(*m.EstimatedDeadline) {
						onTimeClosures++
					}
				}
			}
			continue
		}

		stats.ActiveMatters++
		weight := 1.0
		if m.MatterTypeID != nil {
			if w, ok := typeWeight[*m.MatterTypeID]; ok && w > 0 {
				weight = w
			}
		}
		stats.WeightedActiveMatters += weight

		if m.AssigneeIDs == "" {
			stats.UnassignedMatters++
		}
		if m.EstimatedDeadline != nil {
			switch {
			case m.EstimatedDeadline.Before(now):
				stats.OverdueMatters++
				stats.RevenueAtRisk += fee
			case m.EstimatedDeadline.Before(riskCutoff):
				stats.AtRiskMatters++
				stats.RevenueAtRisk += fee
			}
		}

		if isFiledStatus(m.StatusForFiling) {
			fileDaysSum += now.Sub(*created).Hours() / 24
			fileCount++
		}
	}

	if closuresWithDue > 0 {
		stats.DeadlineComplianceRate = float64(onTimeClosures) / float64(closuresWithDue) * 100
	}
	if cycleCount > 0 {
		stats.AvgCycleTimeDays = cycleDaysSum / float64(cycleCount)
	}
	if fileCount > 0 {
		stats.AvgDaysToFile = fileDaysSum / float64(fileCount)
	}

	var utilizationSum float64
	var utilizationCount int
	for _, member := range members {
		if member.UtilizationTarget > 0 {
			utilizationSum += member.UtilizationTarget
			utilizationCount++
		}
	}
	if utilizationCount > 0 {
		stats.UtilizationRate = utilizationSum / float64(utilizationCount)
	}

	if n := len(matters); n > 0 {
		stats.QualityScore = clampScore(100 - penalty/float64(n))
		stats.DataQualityScore = clampScore(100 - float64(incomplete)/float64(n)*100)
	} else {
		stats.QualityScore = 100
		stats.DataQualityScore = 100
	}

	return stats
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (a *Aggregator) cacheStats(stats *models.DashboardStats) {
	key := fmt.Sprintf(CacheKeyDashboard, stats.UserID)
	if err := cache.SetJSON(key, stats, CacheExpiration); err != nil {
		log.Warnf("[Statistics] Caching dashboard stats for user %d failed: %v", stats.UserID, err)
	}
}
