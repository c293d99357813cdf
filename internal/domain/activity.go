package domain

import "time"

// ActivitySummary aggregates activity over a trailing window of days.
type ActivitySummary struct {
	TotalActivities int            `json:"total_activities"`
	PeriodDays      int            `json:"period_days"`
	ActionBreakdown map[string]int `json:"action_breakdown"`
	DailyBreakdown  map[string]int `json:"daily_breakdown"`
}

// ActivityFilter narrows an activity listing. Zero values mean "no filter".
type ActivityFilter struct {
	UserID *int64
	Kinds  []EventKind
	From   time.Time
	To     time.Time
	Limit  int
}
