package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"

	RoleAdmin = "admin"
)

// Claims are the app-issued access token claims. The subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 access token for userID.
func NewToken(secret, userID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthMiddleware accepts a bearer token signed with secret and stores the
// user id and role on the context.
func AuthMiddleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			var claims Claims
			_, err := jwt.ParseWithClaims(raw, &claims,
				func(t *jwt.Token) (any, error) { return key, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(userIDKey, claims.Subject)
			c.Set(roleKey, claims.Role)
			return next(c)
		}
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if got, _ := c.Get(roleKey).(string); got != role {
				return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("%s role required", role))
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user id.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
