package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func newProtectedEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	}, mw...)
	return e
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	token, err := NewToken(testSecret, "user_1", "", time.Hour)
	require.NoError(t, err)

	rec := do(newProtectedEcho(AuthMiddleware(testSecret)), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_1", rec.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	e := newProtectedEcho(AuthMiddleware(testSecret))

	expired, err := NewToken(testSecret, "user_1", "", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewToken("other-secret", "user_1", "", time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user_1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing":   "",
		"garbage":   "not-a-jwt",
		"expired":   expired,
		"wrong key": wrongKey,
		"no expiry": noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, do(e, token).Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := newProtectedEcho(AuthMiddleware(testSecret), RequireRole(RoleAdmin))

	user, err := NewToken(testSecret, "user_1", "", time.Hour)
	require.NoError(t, err)
	admin, err := NewToken(testSecret, "admin_1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(e, user).Code)
	assert.Equal(t, http.StatusOK, do(e, admin).Code)
}

func TestNewTokenRequiresSecret(t *testing.T) {
	_, err := NewToken("", "user_1", "", time.Hour)
	require.Error(t, err)
}
