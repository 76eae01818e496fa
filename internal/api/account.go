package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/volunteermd/internal/auth"
	"github.com/david/volunteermd/internal/db"
	"github.com/david/volunteermd/internal/ingest"
	"github.com/david/volunteermd/internal/models"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Register(c.Request().Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please provide a valid email address."})
	case errors.Is(err, auth.ErrWeakPassword):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Password must be at least 8 characters and include a number."})
	case errors.Is(err, auth.ErrUserExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "An account with this email already exists."})
	case err != nil:
		return err
	}

	auth.SetCookie(c, resp.Token, s.Config.CookieSecure)
	return c.JSON(http.StatusCreated, map[string]any{"user": resp.User})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCreds) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password."})
	}
	if err != nil {
		return err
	}

	auth.SetCookie(c, resp.Token, s.Config.CookieSecure)
	return c.JSON(http.StatusOK, map[string]any{"user": resp.User})
}

func (s *Server) handleLogout(c echo.Context) error {
	auth.ClearCookie(c, s.Config.CookieSecure)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{"user": nil})
	}

	user, err := s.AuthService.User(c.Request().Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		auth.ClearCookie(c, s.Config.CookieSecure)
		return c.JSON(http.StatusOK, map[string]any{"user": nil})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleListFavorites(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	ids, err := s.Store.ListFavoriteIDs(ctx, userID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return c.JSON(http.StatusOK, map[string]any{"data": []models.Opportunity{}, "ids": []string{}})
	}

	items, err := s.Cache.Opportunities(ctx, false)
	if err != nil {
		return err
	}
	byID := make(map[string]models.Opportunity, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	// Favorites whose opportunity left the feed stay in ids but not in data.
	data := []models.Opportunity{}
	for _, id := range ids {
		if opp, ok := byID[id]; ok {
			data = append(data, opp)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": data, "ids": ids})
}

func (s *Server) handleAddFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	opp, err := s.Cache.OpportunityByID(ctx, c.Param("id"))
	if errors.Is(err, ingest.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Opportunity not found"})
	}
	if err != nil {
		return err
	}

	if _, err := s.AuthService.User(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "User session is no longer valid."})
		}
		return err
	}

	if err := s.Store.AddFavorite(ctx, userID, opp.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "User session is no longer valid."})
		}
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{"data": opp})
}

func (s *Server) handleRemoveFavorite(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	removed, err := s.Store.RemoveFavorite(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	if !removed {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Favorite not found"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
