package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/volunteermd/internal/ingest"
	"github.com/david/volunteermd/internal/models"
)

func (s *Server) handleListOpportunities(c echo.Context) error {
	ctx := c.Request().Context()
	filter := ingest.Filter{
		Location:       c.QueryParam("location"),
		Subject:        c.QueryParam("subject"),
		TimeCommitment: c.QueryParam("time"),
		Search:         c.QueryParam("search"),
	}

	var (
		items []models.Opportunity
		err   error
	)
	if filter.IsZero() {
		items, err = s.Cache.Opportunities(ctx, false)
	} else {
		items, err = s.Cache.Filter(ctx, filter)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": items})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, err := s.Cache.OpportunityByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ingest.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Opportunity not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": opp})
}

func (s *Server) handleFilterOptions(c echo.Context) error {
	opts, err := s.Cache.FilterOptions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opts)
}

func (s *Server) handleCacheStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Cache.Stats())
}

func (s *Server) handleRefresh(c echo.Context) error {
	s.Cache.Clear()
	items, err := s.Cache.Opportunities(c.Request().Context(), true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": items, "refreshed": true})
}
