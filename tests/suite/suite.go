package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	apphttp "kaizoo/internal/http"
	"kaizoo/internal/http/handler"
	"kaizoo/internal/services/activity"
	authservice "kaizoo/internal/services/auth"
	"kaizoo/internal/services/challenge"
	"kaizoo/internal/services/profile"
	"kaizoo/internal/storage/sqlite"
)

const (
	AccessSecret  = "test-access-secret"
	RefreshPepper = "test-pepper"
)

type Suite struct {
	*testing.T
	Server     *httptest.Server
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Option func(*options)

type options struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// WithAccessTTL overrides the access token lifetime for expiry tests.
func WithAccessTTL(ttl time.Duration) Option {
	return func(o *options) { o.accessTTL = ttl }
}

// WithRefreshTTL overrides the refresh token lifetime for expiry tests.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(o *options) { o.refreshTTL = ttl }
}

// New spins up the full HTTP application against a fresh sqlite database.
func New(t *testing.T, opts ...Option) (context.Context, *Suite) {
	t.Helper()
	t.Parallel()

	o := options{
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "kaizoo_test.db")

	m, err := migrate.New("file://../migrations", "sqlite3://"+dbPath)
	if err != nil {
		t.Fatalf("failed to init migrations: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		t.Fatalf("failed to close migrator: %v %v", srcErr, dbErr)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open sqlite storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authService := authservice.New(
		logger, store, store, store,
		AccessSecret, RefreshPepper,
		o.accessTTL, o.refreshTTL,
	)
	activityService := activity.New(logger, store)
	challengeService := challenge.New(logger, store, activityService)
	profileService := profile.New(logger, store)

	gin.SetMode(gin.TestMode)
	router := apphttp.NewRouter(
		logger,
		AccessSecret,
		handler.NewAuthHandler(authService),
		handler.NewActivityHandler(activityService),
		handler.NewProfileHandler(profileService),
		handler.NewChallengeHandler(challengeService),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return ctx, &Suite{
		T:          t,
		Server:     server,
		AccessTTL:  o.accessTTL,
		RefreshTTL: o.refreshTTL,
	}
}

// PostJSON sends a JSON POST and decodes the JSON response body, if any.
func (s *Suite) PostJSON(path, bearer string, body any) (int, map[string]any) {
	s.T.Helper()
	return s.do(http.MethodPost, path, bearer, body)
}

// GetJSON sends a GET and decodes the JSON response body, if any.
func (s *Suite) GetJSON(path, bearer string) (int, map[string]any) {
	s.T.Helper()
	return s.do(http.MethodGet, path, bearer, nil)
}

// GetList sends a GET whose response body is a JSON array.
func (s *Suite) GetList(path, bearer string) (int, []map[string]any) {
	s.T.Helper()

	resp := s.roundTrip(http.MethodGet, path, bearer, nil)
	defer resp.Body.Close()

	var decoded []map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.T.Fatalf("failed to read response body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			s.T.Fatalf("failed to decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func (s *Suite) do(method, path, bearer string, body any) (int, map[string]any) {
	s.T.Helper()

	resp := s.roundTrip(method, path, bearer, body)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.T.Fatalf("failed to read response body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			s.T.Fatalf("failed to decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func (s *Suite) roundTrip(method, path, bearer string, body any) *http.Response {
	s.T.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			s.T.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, s.Server.URL+path, reader)
	if err != nil {
		s.T.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.Server.Client().Do(req)
	if err != nil {
		s.T.Fatalf("request failed: %v", err)
	}
	return resp
}
