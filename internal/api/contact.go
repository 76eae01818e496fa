package api

import (
	"html"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/david/volunteermd/internal/auth"
	"github.com/david/volunteermd/internal/config"
	"github.com/david/volunteermd/internal/models"
)

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (s *Server) handleContact(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	message := strings.TrimSpace(req.Message)

	if name == "" || email == "" || message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Name, email, and message are required."})
	}
	if !auth.ValidEmail(email) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please provide a valid email address."})
	}
	if utf8.RuneCountInString(message) < 10 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message should be at least 10 characters long."})
	}

	_, err := s.Store.CreateContactMessage(c.Request().Context(), models.ContactMessage{
		Name:    s.stripMarkup(name),
		Email:   email,
		Message: s.stripMarkup(message),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]bool{"success": true})
}

// stripMarkup removes HTML tags, leaving plain text.
func (s *Server) stripMarkup(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(v)))
}

type analyticsConfig struct {
	Provider   string `json:"provider"`
	Domain     string `json:"domain,omitempty"`
	ScriptHost string `json:"scriptHost,omitempty"`
	Token      string `json:"token,omitempty"`
}

func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"analytics": analyticsFor(s.Config)})
}

func analyticsFor(cfg config.Config) *analyticsConfig {
	switch {
	case cfg.AnalyticsProvider == "plausible" && cfg.PlausibleDomain != "":
		host := cfg.PlausibleScriptHost
		if host == "" {
			host = "https://plausible.io"
		}
		return &analyticsConfig{Provider: "plausible", Domain: cfg.PlausibleDomain, ScriptHost: host}
	case cfg.AnalyticsProvider == "cloudflare" && cfg.CloudflareToken != "":
		return &analyticsConfig{Provider: "cloudflare", Token: cfg.CloudflareToken}
	}
	return nil
}
