// Package middleware contains reusable HTTP middleware for the
// reservation API: bearer token authentication, role enforcement and
// distributed rate limiting.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and read by handlers.
const (
	ctxUserID   = "user_id"
	ctxUserType = "user_type"
	ctxRole     = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects its claims into the request context.  The token
// must be signed with HS256 and the given secret, and carry the
// subject (user id), a user_type claim and a role claim.  Handlers
// read the typed values back via UserID, UserTypeClaim and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			uid, ok := subjectID(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set(ctxUserID, uid)
			if v, ok := claims["user_type"].(string); ok {
				c.Set(ctxUserType, v)
			}
			if v, ok := claims["role"].(string); ok {
				c.Set(ctxRole, v)
			}
			return next(c)
		}
	}
}

// subjectID extracts the numeric user id from the sub claim, which may
// arrive as a string or as a JSON number.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	switch v := claims["sub"].(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	}
	return 0, false
}

// UserID returns the authenticated user's id from the context.
func UserID(c echo.Context) (uint64, bool) {
	v, ok := c.Get(ctxUserID).(uint64)
	return v, ok
}

// UserTypeClaim returns the user_type claim, empty when absent.
func UserTypeClaim(c echo.Context) string {
	v, _ := c.Get(ctxUserType).(string)
	return v
}

// Role returns the role claim, empty when absent.
func Role(c echo.Context) string {
	v, _ := c.Get(ctxRole).(string)
	return v
}

// IsAdmin reports whether the request carries the admin role.
func IsAdmin(c echo.Context) bool { return Role(c) == "admin" }
