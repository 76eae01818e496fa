package api

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleStatic serves files from the public directory and falls back to
// index.html so client-side routes load the app.
func (s *Server) handleStatic(c echo.Context) error {
	rel := path.Clean("/" + c.Param("*"))
	if rel == "/api" || strings.HasPrefix(rel, "/api/") {
		return s.handleAPINotFound(c)
	}

	root := s.Config.PublicDir
	full := filepath.Join(root, filepath.FromSlash(rel))
	if info, err := os.Stat(full); err == nil {
		if info.IsDir() {
			full = filepath.Join(full, "index.html")
			info, err = os.Stat(full)
			if err != nil || info.IsDir() {
				return s.serveIndex(c)
			}
		}
		s.setCacheHeaders(c, full)
		return c.File(full)
	}

	return s.serveIndex(c)
}

func (s *Server) serveIndex(c echo.Context) error {
	index := filepath.Join(s.Config.PublicDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return echo.ErrNotFound
	}
	s.setCacheHeaders(c, index)
	return c.File(index)
}

func (s *Server) setCacheHeaders(c echo.Context, file string) {
	seconds := s.Config.StaticCacheSeconds
	if seconds <= 0 {
		return
	}
	if strings.HasSuffix(file, ".html") {
		c.Response().Header().Set("Cache-Control", "no-cache")
		return
	}
	c.Response().Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", seconds))
}
