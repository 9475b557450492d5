package entities

import "time"

// GroupCount is a count for one value of a grouping column
type GroupCount struct {
	Key   string `json:"key" db:"key"`
	Count int    `json:"count" db:"count"`
}

// DailyCount is the number of requests created on a day
type DailyCount struct {
	Day   time.Time `json:"day" db:"day"`
	Count int       `json:"count" db:"count"`
}

// RequestAnalytics is the admin reporting snapshot
type RequestAnalytics struct {
	Total              int            `json:"total"`
	StatusCounts       map[string]int `json:"status_counts"`
	VisualRoleCounts   map[string]int `json:"visual_role_counts"`
	EvaluationCounts   map[string]int `json:"evaluation_counts"`
	CategoryCounts     map[string]int `json:"category_counts"`
	UrgencyCounts      map[string]int `json:"urgency_counts"`
	MonthlyUrgency     map[string]int `json:"monthly_urgency"`
	TimeSeries         []DailyCount   `json:"time_series"`
	AverageResolutionH float64        `json:"average_resolution_hours"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// NewRequestAnalytics returns a snapshot with every known status, category,
// urgency and evaluation present so charts always show zero buckets.
func NewRequestAnalytics(now time.Time) *RequestAnalytics {
	a := &RequestAnalytics{
		StatusCounts:     make(map[string]int, len(RequestStatuses)),
		VisualRoleCounts: make(map[string]int, len(VisualRoles)),
		EvaluationCounts: make(map[string]int, len(WorkEvaluations)),
		CategoryCounts:   make(map[string]int, len(RequestCategories)),
		UrgencyCounts:    make(map[string]int, len(UrgencyLevels)),
		MonthlyUrgency:   make(map[string]int, len(UrgencyLevels)),
		TimeSeries:       []DailyCount{},
		GeneratedAt:      now,
	}
	for _, s := range RequestStatuses {
		a.StatusCounts[string(s)] = 0
	}
	for _, v := range VisualRoles {
		a.VisualRoleCounts[string(v)] = 0
	}
	for _, e := range WorkEvaluations {
		a.EvaluationCounts[string(e)] = 0
	}
	for _, c := range RequestCategories {
		a.CategoryCounts[string(c)] = 0
	}
	for _, u := range UrgencyLevels {
		a.UrgencyCounts[string(u)] = 0
		a.MonthlyUrgency[string(u)] = 0
	}
	return a
}

// FillDailySeries returns one entry per day in [from, to], filling gaps with zero.
func FillDailySeries(counts []DailyCount, from, to time.Time) []DailyCount {
	byDay := make(map[string]int, len(counts))
	for _, c := range counts {
		byDay[c.Day.UTC().Format("2006-01-02")] += c.Count
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	series := make([]DailyCount, 0, int(end.Sub(start).Hours()/24)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		series = append(series, DailyCount{Day: day, Count: byDay[day.Format("2006-01-02")]})
	}
	return series
}

// UserDashboard is the landing data for a standard user
type UserDashboard struct {
	Profile      *Profile              `json:"profile"`
	StatusCounts map[string]int        `json:"status_counts"`
	Total        int                   `json:"total"`
	Recent       []*MaintenanceRequest `json:"recent_requests"`
}

// AdminDashboard is the landing data for an administrator
type AdminDashboard struct {
	StatusCounts       map[string]int        `json:"status_counts"`
	Total              int                   `json:"total"`
	PendingEmergencies int                   `json:"pending_emergencies"`
	ProfileCount       int                   `json:"profile_count"`
	ActiveFacilities   int                   `json:"active_facilities"`
	Recent             []*MaintenanceRequest `json:"recent_requests"`
}
