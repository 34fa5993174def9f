package activity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/lib/sl"
)

type Activity struct {
	logger *slog.Logger
	store  ActivityStore
}

type ActivityStore interface {
	SaveActivity(ctx context.Context, a *models.Activity) (int64, error)
	Activities(ctx context.Context, userID int64) ([]models.Activity, error)
}

// New returns a new instance of the Activity service.
func New(logger *slog.Logger, store ActivityStore) *Activity {
	return &Activity{logger: logger, store: store}
}

// Record stores a new activity for the user. When calories are not supplied
// they are estimated from the MET table.
func (s *Activity) Record(ctx context.Context, a *models.Activity) (*models.Activity, error) {
	const op = "activity.Record"
	log := s.logger.With(slog.String("op", op), slog.Int64("userID", a.UserID))

	if a.Calories == 0 {
		a.Calories = EstimateCalories(a.Type, a.DurationMin, a.Intensity)
	}

	id, err := s.store.SaveActivity(ctx, a)
	if err != nil {
		log.Error("failed to save activity", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ID = id

	log.Info("activity recorded", slog.Int64("activityID", id), slog.String("type", a.Type))

	return a, nil
}

func (s *Activity) List(ctx context.Context, userID int64) ([]models.Activity, error) {
	const op = "activity.List"

	list, err := s.store.Activities(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list activities", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Weekly aggregates the user's activities over [weekStart, weekStart+7d).
// A zero weekStart defaults to the Monday of the current week.
func (s *Activity) Weekly(ctx context.Context, userID int64, weekStart time.Time) (*models.WeeklyMetrics, error) {
	const op = "activity.Weekly"

	if weekStart.IsZero() {
		weekStart = StartOfWeek(time.Now())
	}
	weekEnd := weekStart.AddDate(0, 0, 7)

	list, err := s.store.Activities(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list activities", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics := &models.WeeklyMetrics{WeekStart: weekStart}
	days := make(map[string]struct{})
	for _, a := range list {
		if a.Date.Before(weekStart) || !a.Date.Before(weekEnd) {
			continue
		}
		days[a.Date.Format("2006-01-02")] = struct{}{}
		metrics.ActiveMinutes += a.DurationMin
		if a.DistanceKm != nil {
			metrics.DistanceKm += *a.DistanceKm
		}
		metrics.Calories += a.Calories
	}
	metrics.ActiveDays = len(days)
	metrics.DistanceKm = math.Round(metrics.DistanceKm*10) / 10

	return metrics, nil
}

// StartOfWeek returns the Monday midnight preceding t.
func StartOfWeek(t time.Time) time.Time {
	day := int(t.Weekday())
	if day == 0 {
		day = 7
	}
	y, m, d := t.AddDate(0, 0, -(day - 1)).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EstimateCalories mirrors the client app's MET-based estimate for a 70 kg
// reference weight.
func EstimateCalories(activityType string, durationMin int, intensity string) int {
	const kg = 70.0

	mets := map[string]float64{
		models.ActivityAlongamento: 2.3,
		models.ActivityCaminhada:   3.5,
		models.ActivityCorrida:     9,
		models.ActivityPedalada:    7,
		models.ActivityYoga:        3,
		models.ActivityOutro:       3.5,
	}
	mult := map[string]float64{
		"low":    0.85,
		"medium": 1,
		"high":   1.15,
	}

	met, ok := mets[activityType]
	if !ok {
		met = 3.5
	}
	m, ok := mult[intensity]
	if !ok {
		m = 1
	}

	return int(math.Round((met * m * 3.5 * kg / 200) * float64(durationMin)))
}
