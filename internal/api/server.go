package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/david/volunteermd/internal/auth"
	"github.com/david/volunteermd/internal/config"
	"github.com/david/volunteermd/internal/db"
	"github.com/david/volunteermd/internal/ingest"
)

type Server struct {
	Echo        *echo.Echo
	Cache       *ingest.Cache
	Store       db.Store
	AuthService *auth.Service
	Config      config.Config
	Logger      *zap.Logger

	adminSecret string
	sanitizer   *bluemonday.Policy
}

// Options carries the dependencies of a Server.
type Options struct {
	Config      config.Config
	Cache       *ingest.Cache
	Store       db.Store
	AuthService *auth.Service
	Logger      *zap.Logger
	// AdminSecret unlocks the refresh endpoint without a user session.
	AdminSecret string
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:        e,
		Cache:       opts.Cache,
		Store:       opts.Store,
		AuthService: opts.AuthService,
		Config:      opts.Config,
		Logger:      logger,
		adminSecret: opts.AdminSecret,
		sanitizer:   bluemonday.StrictPolicy(),
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if len(opts.Config.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     opts.Config.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
			AllowCredentials: true,
		}))
	}
	if opts.Config.EnableCompression {
		e.Use(middleware.Gzip())
	}
	e.Use(auth.Attach(opts.AuthService.Tokens()))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api")

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout)
	api.GET("/auth/me", s.handleMe)

	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/filters", s.handleFilterOptions)
	api.GET("/opportunities/status", s.handleCacheStatus)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.POST("/opportunities/refresh", s.handleRefresh, s.userOrAdmin)

	// Protected Routes (Favorites)
	favorites := api.Group("/favorites")
	favorites.Use(auth.Require)
	favorites.GET("", s.handleListFavorites)
	favorites.POST("/:id", s.handleAddFavorite)
	favorites.DELETE("/:id", s.handleRemoveFavorite)

	api.POST("/contact", s.handleContact)
	api.GET("/config", s.handleConfig)

	api.Any("", s.handleAPINotFound)
	api.Any("/*", s.handleAPINotFound)

	s.Echo.GET("/*", s.handleStatic)
	s.Echo.HEAD("/*", s.handleStatic)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleAPINotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
}

// handleError renders every error as {"error": "..."}; anything that is not
// an echo.HTTPError is logged and reported as a generic 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Code == http.StatusNotFound {
			msg = "Not found"
		} else if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = c.JSON(he.Code, map[string]string{"error": msg})
		return
	}

	s.Logger.Error("unhandled error",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err))
	_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "Unexpected server error."})
}

// userOrAdmin admits a signed-in user or a caller presenting the admin
// secret in X-Admin-Secret or as a Bearer token.
func (s *Server) userOrAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.GetUserIDFromContext(c); err == nil {
			return next(c)
		}
		if s.isAdmin(c.Request()) {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}
}

func (s *Server) isAdmin(r *http.Request) bool {
	if s.adminSecret == "" {
		return false
	}
	candidate := r.Header.Get("X-Admin-Secret")
	if candidate == "" {
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			candidate = authHeader[7:]
		}
	}
	return candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminSecret)) == 1
}
