package models

import "time"

// Activity types known to the calorie estimator.
const (
	ActivityAlongamento = "alongamento"
	ActivityCaminhada   = "caminhada"
	ActivityCorrida     = "corrida"
	ActivityPedalada    = "pedalada"
	ActivityYoga        = "yoga"
	ActivityOutro       = "outro"
)

// Activity is a single recorded workout session.
type Activity struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"-"`
	Type        string    `json:"type"`
	Date        time.Time `json:"dateISO"`
	DurationMin int       `json:"durationMin"`
	DistanceKm  *float64  `json:"distanceKm,omitempty"`
	Intensity   string    `json:"intensity"`
	Mood        int       `json:"mood"`
	Environment string    `json:"environment"`
	Notes       string    `json:"notes,omitempty"`
	Calories    int       `json:"calories"`
}

// WeeklyMetrics aggregates a user's activities over one week.
type WeeklyMetrics struct {
	WeekStart     time.Time `json:"weekStart"`
	ActiveDays    int       `json:"activeDays"`
	ActiveMinutes int       `json:"activeMinutes"`
	DistanceKm    float64   `json:"distanceKm"`
	Calories      int       `json:"calories"`
}
