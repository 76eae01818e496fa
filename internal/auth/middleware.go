package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const CookieName = "vm_token"

const cookieMaxAge = 7 * 24 * time.Hour

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	ClaimsKey contextKey = "claims"
)

// Attach resolves the session token from the vm_token cookie or a Bearer
// header. Requests without a valid token continue anonymously.
func Attach(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c.Request())
			if raw == "" {
				return next(c)
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				return next(c)
			}
			c.Set(string(ClaimsKey), claims)
			c.Set(string(UserIDKey), claims.UserID)
			return next(c)
		}
	}
}

// Require rejects requests that Attach left anonymous.
func Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := GetUserIDFromContext(c); err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		}
		return next(c)
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// GetUserIDFromContext helper to retrieve the user ID
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	val := c.Get(string(UserIDKey))
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return id, nil
}

func GetClaimsFromContext(c echo.Context) (Claims, bool) {
	claims, ok := c.Get(string(ClaimsKey)).(Claims)
	return claims, ok
}

func SetCookie(c echo.Context, token string, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
	})
}

func ClearCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
