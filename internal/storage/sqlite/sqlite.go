package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	_ "github.com/mattn/go-sqlite3"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/storage"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"
	db, err := sql.Open("sqlite3", storagePath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, email string, passHash []byte) (int64, error) {
	const op = "storage.sqlite.SaveUser"
	stmt, err := s.db.Prepare("INSERT INTO users (email, pass_hash, created_at) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()
	result, err := stmt.ExecContext(ctx, email, passHash, time.Now().UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return result.LastInsertId()
}

// SeedUser inserts a user if the email is not taken yet (for dev/test).
func (s *Storage) SeedUser(ctx context.Context, email, name string, passHash []byte, profileReady bool) error {
	const op = "storage.sqlite.SeedUser"
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, name, pass_hash, profile_ready, created_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT(email) DO NOTHING",
		email, name, passHash, profileReady, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.sqlite.User"
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, pass_hash, profile_ready FROM users WHERE email = ?", email)
	return scanUser(row, op)
}

func (s *Storage) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.sqlite.UserByID"
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, pass_hash, profile_ready FROM users WHERE id = ?", userID)
	return scanUser(row, op)
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var user models.User
	var name sql.NullString
	err := row.Scan(&user.ID, &user.Email, &name, &user.PassHash, &user.ProfileReady)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.Name = name.String
	return &user, nil
}

// SaveRefreshToken stores the hash of a newly issued refresh token.
func (s *Storage) SaveRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	const op = "storage.sqlite.SaveRefreshToken"
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, created_at, expires_at) VALUES (?, ?, ?, ?)",
		userID, tokenHash, time.Now().UTC(), expiresAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return result.LastInsertId()
}

// RefreshTokenByHash returns the active (non-revoked) row for the hash.
// Revoked and never-issued hashes are indistinguishable to the caller.
func (s *Storage) RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const op = "storage.sqlite.RefreshTokenByHash"
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, created_at, expires_at
		 FROM refresh_tokens WHERE token_hash = ? AND revoked_at IS NULL`, tokenHash)

	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

// RevokeRefreshToken marks a token revoked. The update is conditional on the
// row still being active, so of two concurrent rotations of the same token
// exactly one observes success; the other gets ErrTokenRevoked.
func (s *Storage) RevokeRefreshToken(ctx context.Context, tokenID int64, replacedByHash *string) error {
	const op = "storage.sqlite.RevokeRefreshToken"
	result, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ?, replaced_by_hash = ? WHERE id = ? AND revoked_at IS NULL",
		time.Now().UTC(), replacedByHash, tokenID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenRevoked)
	}
	return nil
}

// RevokeAllRefreshTokens revokes every active token of a user. Idempotent.
func (s *Storage) RevokeAllRefreshTokens(ctx context.Context, userID int64) error {
	const op = "storage.sqlite.RevokeAllRefreshTokens"
	_, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL",
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) SaveActivity(ctx context.Context, a *models.Activity) (int64, error) {
	const op = "storage.sqlite.SaveActivity"
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (user_id, type, date, duration_min, distance_km, intensity, mood, environment, notes, calories)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Type, a.Date.UTC(), a.DurationMin, a.DistanceKm, a.Intensity, a.Mood, a.Environment, a.Notes, a.Calories,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return result.LastInsertId()
}

func (s *Storage) Activities(ctx context.Context, userID int64) ([]models.Activity, error) {
	const op = "storage.sqlite.Activities"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, date, duration_min, distance_km, intensity, mood, environment, notes, calories
		 FROM activities WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var list []models.Activity
	for rows.Next() {
		var a models.Activity
		var notes sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Date, &a.DurationMin, &a.DistanceKm,
			&a.Intensity, &a.Mood, &a.Environment, &notes, &a.Calories); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.Notes = notes.String
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *Storage) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	const op = "storage.sqlite.Profile"
	row := s.db.QueryRowContext(ctx,
		"SELECT user_id, onboarding_completed, mascot, quiz_goal, quiz_freq, quiz_likes FROM profiles WHERE user_id = ?",
		userID)

	var p models.Profile
	var mascot, goal, freq, likes sql.NullString
	err := row.Scan(&p.UserID, &p.OnboardingCompleted, &mascot, &goal, &freq, &likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Mascot = mascot.String
	if goal.Valid || freq.Valid || likes.Valid {
		p.Quiz = &models.Quiz{Goal: goal.String, Freq: freq.String, Likes: splitLikes(likes.String)}
	}
	return &p, nil
}

// SaveProfile upserts the user's profile row.
func (s *Storage) SaveProfile(ctx context.Context, p *models.Profile) error {
	const op = "storage.sqlite.SaveProfile"
	var goal, freq, likes *string
	if p.Quiz != nil {
		goal, freq = &p.Quiz.Goal, &p.Quiz.Freq
		joined := joinLikes(p.Quiz.Likes)
		likes = &joined
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, onboarding_completed, mascot, quiz_goal, quiz_freq, quiz_likes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			onboarding_completed = excluded.onboarding_completed,
			mascot = excluded.mascot,
			quiz_goal = excluded.quiz_goal,
			quiz_freq = excluded.quiz_freq,
			quiz_likes = excluded.quiz_likes`,
		p.UserID, p.OnboardingCompleted, nullable(p.Mascot), goal, freq, likes,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) SaveChallenge(ctx context.Context, c *models.Challenge) (int64, error) {
	const op = "storage.sqlite.SaveChallenge"
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges (user_id, title, description, reward_xp, status, started_at,
			metric_type, metric_duration_min, metric_distance_km, metric_intensity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Title, c.Description, c.RewardXP, c.Status, c.StartedAt.UTC(),
		nullable(c.MetricType), c.MetricDurationMin, c.MetricDistanceKm, nullable(c.MetricIntensity),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return result.LastInsertId()
}

func (s *Storage) Challenges(ctx context.Context, userID int64, status string) ([]models.Challenge, error) {
	const op = "storage.sqlite.Challenges"
	query := `SELECT id, user_id, title, description, reward_xp, status, started_at, completed_at,
			metric_type, metric_duration_min, metric_distance_km, metric_intensity
		 FROM challenges WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var list []models.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *Storage) ChallengeByID(ctx context.Context, userID, challengeID int64) (*models.Challenge, error) {
	const op = "storage.sqlite.ChallengeByID"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, reward_xp, status, started_at, completed_at,
			metric_type, metric_duration_min, metric_distance_km, metric_intensity
		 FROM challenges WHERE id = ? AND user_id = ?`, challengeID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, storage.ErrChallengeNotFound)
	}
	c, err := scanChallenge(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// CompleteChallenge flips status active -> completed. Conditional, so a
// challenge can be completed at most once.
func (s *Storage) CompleteChallenge(ctx context.Context, userID, challengeID int64, completedAt time.Time) error {
	const op = "storage.sqlite.CompleteChallenge"
	result, err := s.db.ExecContext(ctx,
		"UPDATE challenges SET status = ?, completed_at = ? WHERE id = ? AND user_id = ? AND status = ?",
		models.ChallengeCompleted, completedAt.UTC(), challengeID, userID, models.ChallengeActive,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrChallengeCompleted)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*models.Challenge, error) {
	var c models.Challenge
	var description, metricType, metricIntensity sql.NullString
	var completedAt sql.NullTime
	var metricDuration sql.NullInt64
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &description, &c.RewardXP, &c.Status,
		&c.StartedAt, &completedAt, &metricType, &metricDuration, &c.MetricDistanceKm, &metricIntensity)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.MetricType = metricType.String
	c.MetricIntensity = metricIntensity.String
	c.MetricDurationMin = int(metricDuration.Int64)
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return &c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitLikes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func joinLikes(likes []string) string {
	return strings.Join(likes, "\n")
}
