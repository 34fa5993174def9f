package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/lib/sl"
	"kaizoo/internal/storage"
)

type Challenge struct {
	logger     *slog.Logger
	store      ChallengeStore
	activities ActivityRecorder
}

type ChallengeStore interface {
	SaveChallenge(ctx context.Context, c *models.Challenge) (int64, error)
	Challenges(ctx context.Context, userID int64, status string) ([]models.Challenge, error)
	ChallengeByID(ctx context.Context, userID, challengeID int64) (*models.Challenge, error)
	CompleteChallenge(ctx context.Context, userID, challengeID int64, completedAt time.Time) error
}

// ActivityRecorder feeds completed challenges into the activity log so that
// weekly metrics see them.
type ActivityRecorder interface {
	Record(ctx context.Context, a *models.Activity) (*models.Activity, error)
}

var (
	ErrNotFound         = errors.New("challenge not found")
	ErrAlreadyCompleted = errors.New("challenge already completed")
)

// New returns a new instance of the Challenge service.
func New(logger *slog.Logger, store ChallengeStore, activities ActivityRecorder) *Challenge {
	return &Challenge{logger: logger, store: store, activities: activities}
}

func (s *Challenge) Start(ctx context.Context, c *models.Challenge) (*models.Challenge, error) {
	const op = "challenge.Start"
	log := s.logger.With(slog.String("op", op), slog.Int64("userID", c.UserID))

	c.Status = models.ChallengeActive
	c.StartedAt = time.Now()

	id, err := s.store.SaveChallenge(ctx, c)
	if err != nil {
		log.Error("failed to save challenge", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.ID = id

	log.Info("challenge started", slog.Int64("challengeID", id), slog.String("title", c.Title))

	return c, nil
}

func (s *Challenge) List(ctx context.Context, userID int64, status string) ([]models.Challenge, error) {
	const op = "challenge.List"

	list, err := s.store.Challenges(ctx, userID, status)
	if err != nil {
		s.logger.Error("failed to list challenges", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Complete flips the challenge to completed (at most once) and records the
// prescribed activity, if any, on the user's log.
func (s *Challenge) Complete(ctx context.Context, userID, challengeID int64) (*models.Challenge, error) {
	const op = "challenge.Complete"
	log := s.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	c, err := s.store.ChallengeByID(ctx, userID, challengeID)
	if err != nil {
		if errors.Is(err, storage.ErrChallengeNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		log.Error("failed to get challenge", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	if err := s.store.CompleteChallenge(ctx, userID, challengeID, now); err != nil {
		if errors.Is(err, storage.ErrChallengeCompleted) {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyCompleted)
		}
		log.Error("failed to complete challenge", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.Status = models.ChallengeCompleted
	c.CompletedAt = &now

	if c.MetricType != "" {
		intensity := c.MetricIntensity
		if intensity == "" {
			intensity = defaultIntensityFor(c.MetricType)
		}
		activity := &models.Activity{
			UserID:      userID,
			Type:        c.MetricType,
			Date:        now,
			DurationMin: c.MetricDurationMin,
			DistanceKm:  c.MetricDistanceKm,
			Intensity:   intensity,
			Mood:        4,
			Environment: "open",
			Notes:       "Desafio: " + c.Title,
		}
		if _, err := s.activities.Record(ctx, activity); err != nil {
			log.Error("failed to record challenge activity", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("challenge completed", slog.Int64("challengeID", challengeID))

	return c, nil
}

func defaultIntensityFor(activityType string) string {
	switch activityType {
	case models.ActivityAlongamento:
		return "low"
	case models.ActivityCorrida:
		return "high"
	default:
		return "medium"
	}
}
