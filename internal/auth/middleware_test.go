package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/volunteermd/internal/models"
)

func TestAttachAndRequire(t *testing.T) {
	tokens := NewTokens("mw-secret", time.Hour)
	user := models.User{ID: uuid.New(), Email: "mw@example.com"}
	signed, err := tokens.Sign(user)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	e.Use(Attach(tokens))
	e.GET("/private", func(c echo.Context) error {
		id, err := GetUserIDFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id.String())
	}, Require)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{"anonymous", func(r *http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: signed}) }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed) }, http.StatusOK},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+signed) }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != user.ID.String() {
				t.Errorf("expected user id, got %s", rec.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "Authentication required") {
				t.Errorf("unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestCookies(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	SetCookie(c, "abc", true)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != CookieName || ck.Value != "abc" || !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected cookie %+v", ck)
	}
	if ck.MaxAge != 7*24*60*60 {
		t.Errorf("expected 7 day max age, got %d", ck.MaxAge)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	ClearCookie(c, false)
	cleared := rec.Result().Cookies()[0]
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("expected cleared cookie, got %+v", cleared)
	}
}
