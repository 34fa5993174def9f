package activity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaizoo/internal/domain/models"
)

type fakeStore struct {
	nextID     int64
	activities []models.Activity
}

func (f *fakeStore) SaveActivity(_ context.Context, a *models.Activity) (int64, error) {
	f.nextID++
	a.ID = f.nextID
	f.activities = append(f.activities, *a)
	return f.nextID, nil
}

func (f *fakeStore) Activities(_ context.Context, userID int64) ([]models.Activity, error) {
	var out []models.Activity
	for _, a := range f.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestService(store *fakeStore) *Activity {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
}

func TestEstimateCalories(t *testing.T) {
	tests := []struct {
		name         string
		activityType string
		durationMin  int
		intensity    string
		want         int
	}{
		{name: "caminhada medium 30min", activityType: "caminhada", durationMin: 30, intensity: "medium", want: 129},
		{name: "corrida high 30min", activityType: "corrida", durationMin: 30, intensity: "high", want: 380},
		{name: "yoga low 60min", activityType: "yoga", durationMin: 60, intensity: "low", want: 187},
		{name: "unknown type falls back", activityType: "parkour", durationMin: 30, intensity: "medium", want: 129},
		{name: "zero duration", activityType: "corrida", durationMin: 0, intensity: "high", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCalories(tt.activityType, tt.durationMin, tt.intensity)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_EstimatesCaloriesWhenAbsent(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store)

	recorded, err := s.Record(context.Background(), &models.Activity{
		UserID:      1,
		Type:        models.ActivityCorrida,
		Date:        time.Now(),
		DurationMin: 30,
		Intensity:   "high",
		Mood:        4,
		Environment: "open",
	})
	require.NoError(t, err)
	assert.Equal(t, 380, recorded.Calories)
	assert.NotZero(t, recorded.ID)
}

func TestRecord_KeepsProvidedCalories(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store)

	recorded, err := s.Record(context.Background(), &models.Activity{
		UserID:      1,
		Type:        models.ActivityCorrida,
		Date:        time.Now(),
		DurationMin: 30,
		Intensity:   "high",
		Mood:        4,
		Environment: "open",
		Calories:    500,
	})
	require.NoError(t, err)
	assert.Equal(t, 500, recorded.Calories)
}

func TestStartOfWeek(t *testing.T) {
	// 2026-08-26 is a Wednesday; its week starts Monday 2026-08-24.
	wednesday := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), StartOfWeek(wednesday))

	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), StartOfWeek(sunday))

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, StartOfWeek(monday))
}

func TestWeekly(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store)

	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	km := 5.0

	inWeek := []models.Activity{
		{UserID: 1, Type: "corrida", Date: weekStart.Add(10 * time.Hour), DurationMin: 30, DistanceKm: &km, Intensity: "high", Calories: 380},
		{UserID: 1, Type: "yoga", Date: weekStart.AddDate(0, 0, 2), DurationMin: 60, Intensity: "low", Calories: 187},
		{UserID: 1, Type: "caminhada", Date: weekStart.AddDate(0, 0, 2).Add(8 * time.Hour), DurationMin: 20, Intensity: "medium", Calories: 86},
	}
	outOfWeek := []models.Activity{
		{UserID: 1, Type: "corrida", Date: weekStart.AddDate(0, 0, -1), DurationMin: 45, Calories: 500},
		{UserID: 1, Type: "corrida", Date: weekStart.AddDate(0, 0, 7), DurationMin: 45, Calories: 500},
		{UserID: 2, Type: "corrida", Date: weekStart.AddDate(0, 0, 1), DurationMin: 45, Calories: 500},
	}
	for _, a := range append(inWeek, outOfWeek...) {
		_, err := s.Record(context.Background(), &a)
		require.NoError(t, err)
	}

	metrics, err := s.Weekly(context.Background(), 1, weekStart)
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.ActiveDays)
	assert.Equal(t, 110, metrics.ActiveMinutes)
	assert.Equal(t, 5.0, metrics.DistanceKm)
	assert.Equal(t, 653, metrics.Calories)
}
