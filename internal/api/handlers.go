package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/engine"
	"github.com/lysithea/internal/extract"
	"github.com/lysithea/internal/logging"
	"github.com/lysithea/pkg/models"
)

// GenerateRequest is the POST /v1/generate payload.
type GenerateRequest struct {
	Prompt        string            `json:"prompt"`
	Domain        string            `json:"domain"`
	SlotOverrides map[string]string `json:"slot_overrides"`
}

// GenerateResponse wraps the engine results for one API call. Persisting
// artifacts is the caller's job; the API only returns them.
type GenerateResponse struct {
	RunID   string                     `json:"run_id"`
	Results []*models.GenerationResult `json:"results"`
}

// Generate runs the full pipeline for a prompt. Multi-operation prompts
// ("CRUD for products") return one result per operation.
func (s *Server) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
	}
	if req.Prompt == "" {
		return errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required")
	}

	runID := uuid.NewString()
	logger, err := logging.StartRunLogging(runID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start run logging")
		return errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to start generation run")
	}
	defer logger.Close()

	results, err := s.service.RunAll(c.Request().Context(), engine.Request{
		Prompt:        req.Prompt,
		Domain:        req.Domain,
		RunID:         runID,
		SlotOverrides: req.SlotOverrides,
	})
	if err != nil {
		var ambiguous *extract.AmbiguousRequestError
		if errors.As(err, &ambiguous) {
			return errorResponse(c, http.StatusUnprocessableEntity, "AMBIGUOUS_REQUEST", ambiguous.Error())
		}
		s.logger.Error().Err(err).Str("run_id", runID).Msg("generation failed")
		return errorResponse(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}

	// Per-operation rejection (no pattern matched) is reported inside the
	// result entries rather than failing the whole call.
	return c.JSON(http.StatusOK, GenerateResponse{RunID: runID, Results: results})
}

// PatternSummary is one catalog entry in the listing.
type PatternSummary struct {
	ID           string              `json:"id"`
	Domain       string              `json:"domain"`
	Operation    models.Operation    `json:"operation"`
	Capabilities []models.Capability `json:"capabilities"`
	Slots        []models.Slot       `json:"slots"`
}

// ListPatterns returns the current catalog snapshot's metadata.
func (s *Server) ListPatterns(c echo.Context) error {
	snapshot := s.store.Current()
	patterns := make([]PatternSummary, 0, snapshot.Len())
	for _, rec := range snapshot.All() {
		patterns = append(patterns, PatternSummary{
			ID:           rec.ID,
			Domain:       rec.Domain,
			Operation:    rec.Operation,
			Capabilities: rec.Capabilities,
			Slots:        rec.Slots,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"loaded_at": snapshot.LoadedAt(),
		"patterns":  patterns,
	})
}

// ReloadCatalog swaps in a freshly loaded snapshot. On integrity failure
// the previous snapshot stays live and the error is reported.
func (s *Server) ReloadCatalog(c echo.Context) error {
	next, err := s.store.Reload()
	if err != nil {
		var integrity *catalog.IntegrityError
		if errors.As(err, &integrity) {
			return errorResponse(c, http.StatusConflict, "CATALOG_INTEGRITY", integrity.Error())
		}
		return errorResponse(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
	s.logger.Info().Int("patterns", next.Len()).Msg("catalog reloaded")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patterns":  next.Len(),
		"loaded_at": next.LoadedAt(),
	})
}
