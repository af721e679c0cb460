package engine

import (
	"context"
	"errors"
	"time"

	"github.com/lysithea/internal/adapt"
	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/extract"
	"github.com/lysithea/internal/llm"
	"github.com/lysithea/internal/logging"
	"github.com/lysithea/internal/match"
	"github.com/lysithea/internal/validate"
	"github.com/lysithea/pkg/models"
)

// Service orchestrates the generation pipeline: extraction, matching,
// adaptation, validation, and the repair/fallback loop. It holds no
// per-request state; concurrent runs share only the immutable catalog
// snapshot they each take at start.
type Service struct {
	store     *catalog.Store
	extractor *extract.Extractor
	ranker    *match.Ranker
	adapter   *adapt.Adapter
	config    Config
}

// Config holds the orchestrator's tunables.
type Config struct {
	// MaxRepairAttempts bounds re-adaptation cycles per pattern after a
	// failed validation before falling back to the next-ranked pattern.
	MaxRepairAttempts int
	// DefaultDomain is used when a request names no target domain.
	DefaultDomain string
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxRepairAttempts: 2,
		DefaultDomain:     "http-route",
	}
}

// Request is one generation invocation.
type Request struct {
	Prompt        string
	Domain        string
	RunID         string
	SlotOverrides map[string]string
}

// NewService wires the orchestrator from its components.
func NewService(store *catalog.Store, extractor *extract.Extractor, ranker *match.Ranker, adapter *adapt.Adapter, cfg Config) *Service {
	if cfg.MaxRepairAttempts <= 0 {
		cfg.MaxRepairAttempts = 2
	}
	if cfg.DefaultDomain == "" {
		cfg.DefaultDomain = "http-route"
	}
	return &Service{
		store:     store,
		extractor: extractor,
		ranker:    ranker,
		adapter:   adapter,
		config:    cfg,
	}
}

// Run executes the pipeline for a single-operation prompt. The returned
// error is non-nil only for request rejection (ambiguous prompt, no
// pattern); Accepted and Exhausted outcomes are reported through the
// result's State, and an Exhausted result still carries the best-scoring
// artifact and its report so the caller can accept it explicitly.
func (s *Service) Run(ctx context.Context, req Request) (*models.GenerationResult, error) {
	start := time.Now()
	ctx = llm.ContextWithRunID(ctx, req.RunID)
	logger := logging.GetLoggerByRunID(req.RunID)

	result := &models.GenerationResult{RunID: req.RunID}
	snapshot := s.store.Current()

	logger.LogSection("EXTRACTION")
	query, err := s.extractor.Extract(ctx, req.Prompt)
	if err != nil {
		logger.LogError("Extraction rejected the request: %v", err)
		result.State = models.RunRejected
		result.Duration = time.Since(start)
		return result, err
	}
	result.Query = query
	logger.Log("Query: resource=%s operation=%s required=%v", query.Resource, query.Operation, query.RequiredCapabilities)

	s.runQuery(ctx, snapshot, query, req, result)
	result.Duration = time.Since(start)
	if result.State == models.RunRejected {
		return result, &match.NoPatternFoundError{Domain: s.domain(req), Resource: query.Resource, Operation: query.Operation}
	}
	return result, nil
}

// RunAll executes the pipeline once per operation the prompt requests;
// "CRUD for products" expands to five sequential runs sharing one catalog
// snapshot. Results are returned in expansion order.
func (s *Service) RunAll(ctx context.Context, req Request) ([]*models.GenerationResult, error) {
	ctx = llm.ContextWithRunID(ctx, req.RunID)
	logger := logging.GetLoggerByRunID(req.RunID)

	logger.LogSection("EXTRACTION")
	queries, err := s.extractor.ExtractAll(ctx, req.Prompt)
	if err != nil {
		logger.LogError("Extraction rejected the request: %v", err)
		return nil, err
	}

	snapshot := s.store.Current()
	results := make([]*models.GenerationResult, 0, len(queries))
	for i, query := range queries {
		opStart := time.Now()
		logger.Log("Operation %d/%d: %s %s", i+1, len(queries), query.Operation, query.Resource)
		result := &models.GenerationResult{RunID: req.RunID, Query: query}
		s.runQuery(ctx, snapshot, query, req, result)
		result.Duration = time.Since(opStart)
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) domain(req Request) string {
	if req.Domain != "" {
		return req.Domain
	}
	return s.config.DefaultDomain
}

// runQuery drives matching, adaptation, and validation for one query,
// filling result in place. States: Accepted on a passing artifact,
// Exhausted when every ranked candidate ran out of repair attempts,
// Rejected when nothing matched at all.
func (s *Service) runQuery(ctx context.Context, snapshot *catalog.Catalog, query *models.RequestQuery, req Request, result *models.GenerationResult) {
	logger := logging.GetLoggerByRunID(req.RunID)
	domain := s.domain(req)
	actx := &adapt.Context{SlotOverrides: req.SlotOverrides}

	logger.LogSection("MATCHING")
	ranked, err := s.ranker.Rank(query, snapshot, domain)
	if err != nil {
		logger.LogError("Matching found no candidates: %v", err)
		result.State = models.RunRejected
		return
	}
	logger.Log("Ranked %d candidate pattern(s); best: %s (score %.2f, %d missing capabilities)",
		len(ranked), ranked[0].PatternID, ranked[0].Score, len(ranked[0].MissingCapabilities))

	var bestArtifact *models.AdaptedArtifact
	var bestReport *models.ValidationReport
	attempts := 0

	for _, candidate := range ranked {
		pattern, ok := snapshot.Get(candidate.PatternID)
		if !ok {
			// Snapshot is immutable, so a ranked id always resolves; this
			// guards against a ranker/catalog mismatch in future changes.
			continue
		}

		logger.LogSection("ADAPTING " + pattern.ID)
		artifact, err := s.adapter.Adapt(ctx, pattern, query, candidate.MissingCapabilities, actx)
		if err != nil {
			var unresolved *adapt.UnresolvedSlotError
			if errors.As(err, &unresolved) {
				logger.LogError("Skipping pattern %s: %v", pattern.ID, err)
				continue
			}
			// Repair-phase failure (regression, timeout, model error):
			// fall back to the mechanical artifact and let the validation
			// loop spend a repair attempt on it.
			logger.LogError("Initial repair failed for pattern %s, keeping mechanical output: %v", pattern.ID, err)
			artifact, err = s.adapter.Adapt(ctx, pattern, query, nil, actx)
			if err != nil {
				logger.LogError("Skipping pattern %s: %v", pattern.ID, err)
				continue
			}
			attempts++
		}

		for repair := 0; ; repair++ {
			attempts++
			report := validate.Validate(artifact, query.RequiredCapabilities)
			logger.Log("Validation: score=%.2f passed=%v violations=%d", report.Score, report.Passed, len(report.Violations))

			if bestReport == nil || report.Score > bestReport.Score {
				bestArtifact, bestReport = artifact, report
			}
			if report.Passed {
				result.State = models.RunAccepted
				result.Artifact = artifact
				result.Report = report
				result.Attempts = attempts
				logger.Log("Artifact accepted from pattern %s after %d attempt(s)", pattern.ID, attempts)
				return
			}
			if repair >= s.config.MaxRepairAttempts {
				logger.Log("Repair attempts exhausted for pattern %s, advancing to next candidate", pattern.ID)
				break
			}

			missing := make([]models.Capability, 0, len(report.Violations))
			for _, v := range report.Violations {
				missing = append(missing, v.Capability)
			}
			logger.Log("Repair attempt %d/%d for pattern %s: %v", repair+1, s.config.MaxRepairAttempts, pattern.ID, missing)

			repaired, err := s.adapter.Repair(ctx, artifact, query, missing)
			if err != nil {
				// A failed rewrite (including timeouts) burns the attempt
				// but never degrades the artifact in hand.
				logger.LogError("Repair attempt failed: %v", err)
				continue
			}
			artifact = repaired
		}
	}

	result.State = models.RunExhausted
	result.Artifact = bestArtifact
	result.Report = bestReport
	result.Attempts = attempts
	logger.Log("All candidates exhausted after %d attempt(s); returning best effort (score %.2f)",
		attempts, bestScore(bestReport))
}

func bestScore(r *models.ValidationReport) float64 {
	if r == nil {
		return 0
	}
	return r.Score
}
