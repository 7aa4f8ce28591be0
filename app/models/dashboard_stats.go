package models

import (
	"time"
)

// DashboardStats is the cached KPI row the dashboard cards read. One
// row per user, fully recomputed by the aggregator on each pass.
type DashboardStats struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	ActiveMatters         int     `json:"active_matters"`
	NewMattersThisMonth   int     `json:"new_matters_this_month"`
	NewMattersLastMonth   int     `json:"new_matters_last_month"`
	WeightedActiveMatters float64 `json:"weighted_active_matters"`

	RevenueAtRisk    float64 `json:"revenue_at_risk"`
	TotalRevenue     float64 `json:"total_revenue"`
	PendingRevenue   float64 `json:"pending_revenue"`
	CollectedRevenue float64 `json:"collected_revenue"`

	DeadlineComplianceRate float64 `json:"deadline_compliance_rate"`
	AvgCycleTimeDays       float64 `json:"avg_cycle_time_days"`
	AvgDaysToFile          float64 `json:"avg_days_to_file"`
	UtilizationRate        float64 `json:"utilization_rate"`

	OverdueMatters    int `json:"overdue_matters"`
	AtRiskMatters     int `json:"at_risk_matters"`
	UnassignedMatters int `json:"unassigned_matters"`

	QualityScore     float64 `json:"quality_score"`
	DataQualityScore float64 `json:"data_quality_score"`

	ComputedAt time.Time `json:"computed_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
