package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/engine"
)

// Server exposes the generation engine to automation callers over HTTP.
// It is a thin layer: all pipeline semantics live in the engine.
type Server struct {
	echo    *echo.Echo
	store   *catalog.Store
	service *engine.Service
	logger  zerolog.Logger

	// apiKeyHash is the bcrypt hash requests must match via X-Api-Key.
	// Empty disables authentication (local development).
	apiKeyHash string
}

// NewServer builds the HTTP server around an engine service.
func NewServer(store *catalog.Store, service *engine.Service, apiKeyHash string) *Server {
	s := &Server{
		echo:       echo.New(),
		store:      store,
		service:    service,
		logger:     zerolog.New(os.Stderr).With().Timestamp().Str("component", "api").Logger(),
		apiKeyHash: apiKeyHash,
	}

	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())

	s.echo.GET("/healthz", s.Health)

	v1 := s.echo.Group("/v1", s.apiKeyAuth())
	v1.POST("/generate", s.Generate)
	v1.GET("/patterns", s.ListPatterns)
	v1.POST("/catalog/reload", s.ReloadCatalog)

	return s
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start(listen string) error {
	s.logger.Info().Str("listen", listen).Msg("starting API server")
	return s.echo.Start(listen)
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Health reports liveness plus the current catalog snapshot size.
func (s *Server) Health(c echo.Context) error {
	snapshot := s.store.Current()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"patterns":          snapshot.Len(),
		"catalog_loaded_at": snapshot.LoadedAt(),
	})
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			s.logger.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Msg("request")
			return err
		}
	}
}

// apiKeyAuth validates the X-Api-Key header against the configured
// bcrypt hash. With no hash configured the check is skipped.
func (s *Server) apiKeyAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.apiKeyHash == "" {
				return next(c)
			}
			key := c.Request().Header.Get("X-Api-Key")
			if key == "" {
				return errorResponse(c, http.StatusUnauthorized, "MISSING_API_KEY", "X-Api-Key header is required")
			}
			if bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(key)) != nil {
				return errorResponse(c, http.StatusUnauthorized, "INVALID_API_KEY", "API key is not valid")
			}
			return next(c)
		}
	}
}

func errorResponse(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
