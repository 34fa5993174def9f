package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/lib/jwt"
	"kaizoo/internal/lib/sl"
	"kaizoo/internal/storage"
)

type Auth struct {
	logger          *slog.Logger
	userSaver       UserSaver
	userProvider    UserProvider
	tokenLedger     RefreshTokenLedger
	accessSecret    string
	refreshPepper   string
	tokenTTL        time.Duration
	refreshTokenTTL time.Duration
}

type UserSaver interface {
	SaveUser(
		ctx context.Context,
		email string,
		passHash []byte,
	) (uid int64, err error)
}

type UserProvider interface {
	User(
		ctx context.Context,
		email string,
	) (user *models.User, err error)
	UserByID(
		ctx context.Context,
		userID int64,
	) (user *models.User, err error)
}

type RefreshTokenLedger interface {
	SaveRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error)
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID int64, replacedByHash *string) error
	RevokeAllRefreshTokens(ctx context.Context, userID int64) error
}

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// New returns a new instance of the Auth service.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	tokenLedger RefreshTokenLedger,
	accessSecret string,
	refreshPepper string,
	tokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) *Auth {
	return &Auth{
		logger:          logger,
		userSaver:       userSaver,
		userProvider:    userProvider,
		tokenLedger:     tokenLedger,
		accessSecret:    accessSecret,
		refreshPepper:   refreshPepper,
		tokenTTL:        tokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (a *Auth) Register(
	ctx context.Context,
	email string,
	password string,
) (*models.User, error) {
	const op = "auth.Register"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	log.Info("register request")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := a.userSaver.SaveUser(ctx, email, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("user already exists", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		}
		log.Error("failed to save user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("userID", userID))

	return &models.User{ID: userID, Email: email}, nil
}

// Login authenticates a user and returns the user together with a fresh
// access/refresh token pair. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *Auth) Login(
	ctx context.Context,
	email string,
	password string,
) (user *models.User, accessToken, refreshToken string, err error) {
	const op = "auth.Login"
	log := a.logger.With(slog.String("op", op))
	log.Info("login request", slog.String("email", email))

	user, err = a.userProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Warn("invalid password")
		return nil, "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	accessToken, err = jwt.NewToken(user, a.accessSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return nil, "", "", fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err = a.generateAndSaveRefreshToken(ctx, user.ID)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return nil, "", "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("userID", user.ID))

	return user, accessToken, refreshToken, nil
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
// The presented token is revoked in the same conditional update that admits
// the rotation, so a given raw value can be rotated at most once: of two
// concurrent calls exactly one succeeds and the other gets
// ErrInvalidRefreshToken.
func (a *Auth) Refresh(
	ctx context.Context,
	refreshToken string,
) (newAccessToken, newRefreshToken string, err error) {
	const op = "auth.Refresh"
	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	tokenHash := a.hashRefreshToken(refreshToken)

	tokenDoc, err := a.tokenLedger.RefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("refresh token not found or revoked")
			return "", "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}
		log.Error("failed to look up refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	// Expired tokens are revoked on sight, never left active.
	if time.Now().After(tokenDoc.ExpiresAt) {
		log.Warn("refresh token expired", slog.Int64("userID", tokenDoc.UserID))
		if err := a.tokenLedger.RevokeRefreshToken(ctx, tokenDoc.ID, nil); err != nil &&
			!errors.Is(err, storage.ErrTokenRevoked) {
			log.Error("failed to revoke expired refresh token", sl.Err(err))
		}
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	user, err := a.userProvider.UserByID(ctx, tokenDoc.UserID)
	if err != nil {
		log.Error("failed to get user", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	newRefreshTokenRaw, err := generateRefreshTokenRaw()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	newHash := a.hashRefreshToken(newRefreshTokenRaw)

	// Conditional revoke: the loser of a concurrent rotation observes the
	// row as already revoked and must be rejected.
	if err := a.tokenLedger.RevokeRefreshToken(ctx, tokenDoc.ID, &newHash); err != nil {
		if errors.Is(err, storage.ErrTokenRevoked) {
			log.Warn("refresh token lost rotation race", slog.Int64("userID", tokenDoc.UserID))
			return "", "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}
		log.Error("failed to revoke refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	newExpiresAt := time.Now().Add(a.refreshTokenTTL)
	if _, err := a.tokenLedger.SaveRefreshToken(ctx, user.ID, newHash, newExpiresAt); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	newAccessToken, err = jwt.NewToken(user, a.accessSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens refreshed", slog.Int64("userID", user.ID))

	return newAccessToken, newRefreshTokenRaw, nil
}

// Logout revokes one refresh token by its raw value, scoped to the given
// user. Revoking an unknown or already-revoked token is a no-op.
func (a *Auth) Logout(ctx context.Context, userID int64, refreshToken string) error {
	const op = "auth.Logout"
	log := a.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	tokenHash := a.hashRefreshToken(refreshToken)

	tokenDoc, err := a.tokenLedger.RefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Info("logout: token not found or already revoked")
			return nil
		}
		log.Error("failed to look up refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if tokenDoc.UserID != userID {
		log.Warn("logout: token belongs to another user")
		return nil
	}

	if err := a.tokenLedger.RevokeRefreshToken(ctx, tokenDoc.ID, nil); err != nil &&
		!errors.Is(err, storage.ErrTokenRevoked) {
		log.Error("failed to revoke refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh token revoked")
	return nil
}

// LogoutAll revokes every active refresh token of the user.
func (a *Auth) LogoutAll(ctx context.Context, userID int64) error {
	const op = "auth.LogoutAll"
	log := a.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	if err := a.tokenLedger.RevokeAllRefreshTokens(ctx, userID); err != nil {
		log.Error("failed to revoke refresh tokens", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("all refresh tokens revoked")
	return nil
}

func (a *Auth) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "auth.UserByID"
	log := a.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	user, err := a.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// generateAndSaveRefreshToken creates a new refresh token, stores its hash, and returns the raw token.
func (a *Auth) generateAndSaveRefreshToken(ctx context.Context, userID int64) (string, error) {
	rawToken, err := generateRefreshTokenRaw()
	if err != nil {
		return "", err
	}

	tokenHash := a.hashRefreshToken(rawToken)
	expiresAt := time.Now().Add(a.refreshTokenTTL)

	if _, err := a.tokenLedger.SaveRefreshToken(ctx, userID, tokenHash, expiresAt); err != nil {
		return "", err
	}

	return rawToken, nil
}

// hashRefreshToken computes SHA-256 hash of the token with pepper.
func (a *Auth) hashRefreshToken(token string) string {
	h := sha256.New()
	h.Write([]byte(token + a.refreshPepper))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// generateRefreshTokenRaw generates a cryptographically secure random token.
func generateRefreshTokenRaw() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
