package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/lib/sl"
	"kaizoo/internal/storage"
)

type Profile struct {
	logger *slog.Logger
	store  ProfileStore
}

type ProfileStore interface {
	Profile(ctx context.Context, userID int64) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
}

// New returns a new instance of the Profile service.
func New(logger *slog.Logger, store ProfileStore) *Profile {
	return &Profile{logger: logger, store: store}
}

// Get returns the user's profile, creating an empty one on first access.
func (s *Profile) Get(ctx context.Context, userID int64) (*models.Profile, error) {
	const op = "profile.Get"

	p, err := s.store.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			p = &models.Profile{UserID: userID}
			if err := s.store.SaveProfile(ctx, p); err != nil {
				s.logger.Error("failed to create profile", slog.String("op", op), sl.Err(err))
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return p, nil
		}
		s.logger.Error("failed to get profile", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CompleteOnboarding records the mascot choice and marks onboarding done.
func (s *Profile) CompleteOnboarding(ctx context.Context, userID int64, mascot string) (*models.Profile, error) {
	const op = "profile.CompleteOnboarding"
	log := s.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.Mascot = mascot
	p.OnboardingCompleted = true
	if err := s.store.SaveProfile(ctx, p); err != nil {
		log.Error("failed to save profile", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("onboarding completed", slog.String("mascot", mascot))

	return p, nil
}

// SetPreferences stores the onboarding quiz answers.
func (s *Profile) SetPreferences(ctx context.Context, userID int64, quiz models.Quiz) (*models.Profile, error) {
	const op = "profile.SetPreferences"
	log := s.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.Quiz = &quiz
	if err := s.store.SaveProfile(ctx, p); err != nil {
		log.Error("failed to save profile", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}
