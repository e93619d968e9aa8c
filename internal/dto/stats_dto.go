package dto

// StatsResponse aggregates counts for the admin dashboard. Empty maps and a
// nil recent-activity slice are valid states for a fresh installation.
type StatsResponse struct {
	UsersByRole     map[string]int64     `json:"users_by_role"`
	PapersByStatus  map[string]int64     `json:"papers_by_status"`
	DepartmentCount int64                `json:"department_count"`
	SubjectCount    int64                `json:"subject_count"`
	RecentActivity  []AuditEntryResponse `json:"recent_activity"`
	CacheHit        bool                 `json:"cache_hit"`
}
