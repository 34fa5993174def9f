package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/lib/jwt"
	"kaizoo/tests/suite"
)

const passDefaultLen = 10

func randomPassword() string {
	return gofakeit.Password(true, true, true, true, false, passDefaultLen)
}

func registerAndLogin(st *suite.Suite, email, password string) (accessToken, refreshToken string) {
	st.Helper()

	status, _ := st.PostJSON("/auth/register", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(st.T, http.StatusCreated, status)

	status, body := st.PostJSON("/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(st.T, http.StatusOK, status)
	accessToken, _ = body["accessToken"].(string)
	refreshToken, _ = body["refreshToken"].(string)
	require.NotEmpty(st.T, accessToken)
	require.NotEmpty(st.T, refreshToken)
	return accessToken, refreshToken
}

func TestAuthScenario(t *testing.T) {
	_, st := suite.New(t)

	// Register.
	status, body := st.PostJSON("/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotEmpty(t, user["id"])

	// Login with the wrong password.
	status, body = st.PostJSON("/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_credentials", body["error"])

	// Login with the right password.
	status, body = st.PostJSON("/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, status)
	accessToken := body["accessToken"].(string)
	refreshToken := body["refreshToken"].(string)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)

	// The login response must never carry password material.
	loginUser := body["user"].(map[string]any)
	assert.NotContains(t, loginUser, "password")
	assert.NotContains(t, loginUser, "passHash")
	assert.NotContains(t, loginUser, "pass_hash")

	// Authenticated read.
	status, body = st.GetJSON("/auth/me", accessToken)
	require.Equal(t, http.StatusOK, status)
	meUser := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", meUser["email"])
	assert.NotEmpty(t, meUser["id"])

	// Rotate the refresh token.
	status, body = st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": refreshToken})
	require.Equal(t, http.StatusOK, status)
	newAccess := body["accessToken"].(string)
	newRefresh := body["refreshToken"].(string)
	require.NotEmpty(t, newAccess)
	require.NotEmpty(t, newRefresh)
	assert.NotEqual(t, refreshToken, newRefresh)

	// The original refresh token is spent.
	status, body = st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": refreshToken})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "refresh_invalid", body["error"])

	// The replacement still works.
	status, _ = st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": newRefresh})
	require.Equal(t, http.StatusOK, status)
}

func TestRegister_FailCases(t *testing.T) {
	_, st := suite.New(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: randomPassword()},
		{name: "malformed email", email: "not-an-email", password: randomPassword()},
		{name: "empty password", email: gofakeit.Email(), password: ""},
		{name: "short password", email: gofakeit.Email(), password: "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := st.PostJSON("/auth/register", "", map[string]string{
				"email": tt.email, "password": tt.password,
			})
			require.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "invalid_request", body["error"])
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	_, st := suite.New(t)

	email := gofakeit.Email()
	password := randomPassword()

	status, _ := st.PostJSON("/auth/register", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := st.PostJSON("/auth/register", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "email_in_use", body["error"])
}

func TestLogin_UnknownAndWrongAreIdentical(t *testing.T) {
	_, st := suite.New(t)

	email := gofakeit.Email()
	registerAndLogin(st, email, randomPassword())

	wrongStatus, wrongBody := st.PostJSON("/auth/login", "", map[string]string{
		"email": email, "password": "definitely-wrong",
	})
	unknownStatus, unknownBody := st.PostJSON("/auth/login", "", map[string]string{
		"email": gofakeit.Email(), "password": "definitely-wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, wrongBody, unknownBody)
}

func TestRefresh_FailCases(t *testing.T) {
	_, st := suite.New(t)

	t.Run("missing field", func(t *testing.T) {
		status, body := st.PostJSON("/auth/refresh", "", map[string]string{})
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "missing_refresh", body["error"])
	})

	t.Run("never issued", func(t *testing.T) {
		status, body := st.PostJSON("/auth/refresh", "", map[string]string{
			"refreshToken": "invalid-token-that-does-not-exist",
		})
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "refresh_invalid", body["error"])
	})
}

func TestRefresh_ExpiredToken(t *testing.T) {
	_, st := suite.New(t, suite.WithRefreshTTL(-time.Minute))

	_, refreshToken := registerAndLogin(st, gofakeit.Email(), randomPassword())

	status, body := st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": refreshToken})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "refresh_invalid", body["error"])

	// Still invalid on a second attempt; the row was revoked on sight.
	status, _ = st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": refreshToken})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestLogout_SingleSession(t *testing.T) {
	_, st := suite.New(t)

	accessToken, refreshToken := registerAndLogin(st, gofakeit.Email(), randomPassword())

	status, _ := st.PostJSON("/auth/logout", accessToken, map[string]string{"refreshToken": refreshToken})
	require.Equal(t, http.StatusNoContent, status)

	status, body := st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": refreshToken})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "refresh_invalid", body["error"])
}

func TestLogout_Everywhere(t *testing.T) {
	_, st := suite.New(t)

	email := gofakeit.Email()
	password := randomPassword()
	accessToken, refresh1 := registerAndLogin(st, email, password)

	// A second session for the same user.
	status, body := st.PostJSON("/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	refresh2 := body["refreshToken"].(string)

	// No body: revoke every active session.
	status, _ = st.PostJSON("/auth/logout", accessToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	for _, refresh := range []string{refresh1, refresh2} {
		status, _ := st.PostJSON("/auth/refresh", "", map[string]string{"refreshToken": refresh})
		assert.Equal(t, http.StatusUnauthorized, status)
	}

	// The short-lived access token stays valid until it expires.
	status, _ = st.GetJSON("/auth/me", accessToken)
	assert.Equal(t, http.StatusOK, status)
}

func TestLogout_RequiresAuth(t *testing.T) {
	_, st := suite.New(t)

	status, body := st.PostJSON("/auth/logout", "", map[string]string{"refreshToken": "whatever"})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing_token", body["error"])
}

func TestMe_Unauthorized(t *testing.T) {
	_, st := suite.New(t)

	expired, err := jwt.NewToken(&models.User{ID: 1}, suite.AccessSecret, -time.Minute)
	require.NoError(t, err)

	forged, err := jwt.NewToken(&models.User{ID: 1}, "attacker-secret", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name        string
		bearer      string
		expectedErr string
	}{
		{name: "no token", bearer: "", expectedErr: "missing_token"},
		{name: "garbage token", bearer: "garbage", expectedErr: "invalid_token"},
		{name: "expired token", bearer: expired, expectedErr: "invalid_token"},
		{name: "forged signature", bearer: forged, expectedErr: "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := st.GetJSON("/auth/me", tt.bearer)
			require.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tt.expectedErr, body["error"])
		})
	}
}
