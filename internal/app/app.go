package app

import (
	"context"
	"log/slog"
	"time"

	"kaizoo/internal/app/httpapp"
	"kaizoo/internal/config"
	"kaizoo/internal/domain/models"
	apphttp "kaizoo/internal/http"
	"kaizoo/internal/http/handler"
	"kaizoo/internal/services/activity"
	authservice "kaizoo/internal/services/auth"
	"kaizoo/internal/services/challenge"
	"kaizoo/internal/services/profile"
	"kaizoo/internal/storage/mongodb"
	"kaizoo/internal/storage/sqlite"
)

type App struct {
	HTTPSrv *httpapp.App

	closeStorage func(context.Context) error
}

// Storage is the union of what the services need from a backend; both the
// sqlite and the mongo implementations satisfy it.
type Storage interface {
	SaveUser(ctx context.Context, email string, passHash []byte) (int64, error)
	User(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, userID int64) (*models.User, error)
	SaveRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error)
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID int64, replacedByHash *string) error
	RevokeAllRefreshTokens(ctx context.Context, userID int64) error
	SaveActivity(ctx context.Context, a *models.Activity) (int64, error)
	Activities(ctx context.Context, userID int64) ([]models.Activity, error)
	Profile(ctx context.Context, userID int64) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
	SaveChallenge(ctx context.Context, c *models.Challenge) (int64, error)
	Challenges(ctx context.Context, userID int64, status string) ([]models.Challenge, error)
	ChallengeByID(ctx context.Context, userID, challengeID int64) (*models.Challenge, error)
	CompleteChallenge(ctx context.Context, userID, challengeID int64, completedAt time.Time) error
}

func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) *App {
	var store Storage
	var closeStorage func(context.Context) error

	switch cfg.Storage {
	case "mongo":
		mongoStore, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			panic(err)
		}
		store = mongoStore
		closeStorage = mongoStore.Close
	default:
		sqliteStore, err := sqlite.New(cfg.StoragePath)
		if err != nil {
			panic(err)
		}
		store = sqliteStore
		closeStorage = func(context.Context) error { return sqliteStore.Close() }
	}

	authService := authservice.New(
		logger,
		store,
		store,
		store,
		cfg.Tokens.AccessSecret,
		cfg.Tokens.RefreshPepper,
		cfg.Tokens.AccessTTL,
		cfg.Tokens.RefreshTTL,
	)
	activityService := activity.New(logger, store)
	challengeService := challenge.New(logger, store, activityService)
	profileService := profile.New(logger, store)

	router := apphttp.NewRouter(
		logger,
		cfg.Tokens.AccessSecret,
		handler.NewAuthHandler(authService),
		handler.NewActivityHandler(activityService),
		handler.NewProfileHandler(profileService),
		handler.NewChallengeHandler(challengeService),
	)

	httpApp := httpapp.New(logger, router, cfg.HTTP.Port, cfg.HTTP.Timeout)

	return &App{
		HTTPSrv:      httpApp,
		closeStorage: closeStorage,
	}
}

// Close releases the storage backend after the HTTP server has stopped.
func (a *App) Close(ctx context.Context) error {
	return a.closeStorage(ctx)
}
