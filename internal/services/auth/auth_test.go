package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/storage"
)

const (
	testAccessSecret = "test-access-secret"
	testPepper       = "test-pepper"
)

// fakeStorage mimics the durable backends: the conditional revoke holds the
// mutex for the whole check-and-set, matching the single-statement UPDATE
// the real backends use.
type fakeStorage struct {
	mu         sync.Mutex
	nextUserID int64
	nextTokID  int64
	users      map[int64]*models.User
	byEmail    map[string]int64
	tokens     map[int64]*models.RefreshToken
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:   make(map[int64]*models.User),
		byEmail: make(map[string]int64),
		tokens:  make(map[int64]*models.RefreshToken),
	}
}

func (f *fakeStorage) SaveUser(_ context.Context, email string, passHash []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[email]; ok {
		return 0, storage.ErrUserAlreadyExists
	}
	f.nextUserID++
	f.users[f.nextUserID] = &models.User{ID: f.nextUserID, Email: email, PassHash: passHash}
	f.byEmail[email] = f.nextUserID
	return f.nextUserID, nil
}

func (f *fakeStorage) User(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *f.users[id]
	return &u, nil
}

func (f *fakeStorage) UserByID(_ context.Context, userID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStorage) SaveRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTokID++
	f.tokens[f.nextTokID] = &models.RefreshToken{
		ID:        f.nextTokID,
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	return f.nextTokID, nil
}

func (f *fakeStorage) RefreshTokenByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			copied := *t
			return &copied, nil
		}
	}
	return nil, storage.ErrTokenNotFound
}

func (f *fakeStorage) RevokeRefreshToken(_ context.Context, tokenID int64, replacedByHash *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[tokenID]
	if !ok || t.RevokedAt != nil {
		return storage.ErrTokenRevoked
	}
	now := time.Now()
	t.RevokedAt = &now
	t.ReplacedByHash = replacedByHash
	return nil
}

func (f *fakeStorage) RevokeAllRefreshTokens(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, t := range f.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeStorage) activeTokenCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

func newTestAuth(store *fakeStorage, refreshTTL time.Duration) *Auth {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, store, store, store, testAccessSecret, testPepper, 15*time.Minute, refreshTTL)
}

func registerAndLogin(t *testing.T, a *Auth) (email, password, accessToken, refreshToken string) {
	t.Helper()
	email = gofakeit.Email()
	password = gofakeit.Password(true, true, true, true, false, 10)

	_, err := a.Register(context.Background(), email, password)
	require.NoError(t, err)

	_, accessToken, refreshToken, err = a.Login(context.Background(), email, password)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	return email, password, accessToken, refreshToken
}

func TestRegisterLogin(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	email, password, _, _ := registerAndLogin(t, a)

	user, access, refresh, err := a.Login(context.Background(), email, password)
	require.NoError(t, err)
	assert.Equal(t, email, user.Email)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestRegister_Duplicate(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	email := gofakeit.Email()
	password := gofakeit.Password(true, true, true, true, false, 10)

	_, err := a.Register(context.Background(), email, password)
	require.NoError(t, err)

	_, err = a.Register(context.Background(), email, password)
	require.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	email, _, _, _ := registerAndLogin(t, a)

	_, _, _, wrongPassErr := a.Login(context.Background(), email, "wrong-password-123")
	require.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)

	_, _, _, unknownErr := a.Login(context.Background(), "nobody@example.com", "wrong-password-123")
	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)

	// Unknown email and wrong password must be indistinguishable.
	assert.Equal(t, errors.Unwrap(wrongPassErr), errors.Unwrap(unknownErr))
}

func TestRefresh_Rotation(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	_, _, _, refresh1 := registerAndLogin(t, a)

	access2, refresh2, err := a.Refresh(context.Background(), refresh1)
	require.NoError(t, err)
	require.NotEmpty(t, access2)
	require.NotEmpty(t, refresh2)
	assert.NotEqual(t, refresh1, refresh2)

	// The rotated token must never work again.
	_, _, err = a.Refresh(context.Background(), refresh1)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The replacement keeps working.
	_, refresh3, err := a.Refresh(context.Background(), refresh2)
	require.NoError(t, err)
	require.NotEmpty(t, refresh3)
}

func TestRefresh_Unknown(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	_, _, err := a.Refresh(context.Background(), "never-issued-token")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_ExpiredRevokedOnSight(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, -time.Minute)

	_, _, _, refresh := registerAndLogin(t, a)

	_, _, err := a.Refresh(context.Background(), refresh)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The expired token must be marked revoked as a side effect.
	assert.Equal(t, 0, store.activeTokenCount(1))
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	_, _, _, refresh := registerAndLogin(t, a)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := a.Refresh(context.Background(), refresh)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrInvalidRefreshToken) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
}

func TestLogout_SingleToken(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	_, _, _, refresh := registerAndLogin(t, a)

	require.NoError(t, a.Logout(context.Background(), 1, refresh))

	_, _, err := a.Refresh(context.Background(), refresh)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Logging out an already-revoked token is a no-op.
	require.NoError(t, a.Logout(context.Background(), 1, refresh))
}

func TestLogout_OtherUsersToken(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	_, _, _, refresh := registerAndLogin(t, a)

	// User 2 cannot revoke user 1's token.
	require.NoError(t, a.Logout(context.Background(), 2, refresh))

	_, _, err := a.Refresh(context.Background(), refresh)
	require.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	email, password, _, refresh1 := registerAndLogin(t, a)

	_, _, refresh2, err := a.Login(context.Background(), email, password)
	require.NoError(t, err)

	require.NoError(t, a.LogoutAll(context.Background(), 1))

	_, _, err = a.Refresh(context.Background(), refresh1)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = a.Refresh(context.Background(), refresh2)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogin_PasswordHashNeverReturned(t *testing.T) {
	store := newFakeStorage()
	a := newTestAuth(store, 7*24*time.Hour)

	email, password, _, _ := registerAndLogin(t, a)

	user, _, _, err := a.Login(context.Background(), email, password)
	require.NoError(t, err)

	// The model keeps the hash server-side; the JSON shape must drop it.
	assert.NotEmpty(t, user.PassHash)
	assert.NotContains(t, string(mustJSON(t, user)), "pass")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
