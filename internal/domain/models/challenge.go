package models

import "time"

const (
	ChallengeActive    = "active"
	ChallengeCompleted = "completed"
)

// Challenge is a user-scoped goal that optionally prescribes an activity.
// Completing it records the prescribed activity on the user's log.
type Challenge struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RewardXP    int        `json:"rewardXP"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	MetricType        string   `json:"metricType,omitempty"`
	MetricDurationMin int      `json:"metricDurationMin,omitempty"`
	MetricDistanceKm  *float64 `json:"metricDistanceKm,omitempty"`
	MetricIntensity   string   `json:"metricIntensity,omitempty"`
}
