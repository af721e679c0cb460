package adapt

import (
	"context"
	"fmt"
	"strings"

	"github.com/lysithea/internal/llm"
	"github.com/lysithea/internal/logging"
	"github.com/lysithea/internal/validate"
	"github.com/lysithea/pkg/models"
)

// RegressionError means a model rewrite dropped a capability the body
// previously satisfied. The rewrite is discarded; degraded code is never
// returned.
type RegressionError struct {
	PatternID string
	Lost      []models.Capability
}

func (e *RegressionError) Error() string {
	names := make([]string, len(e.Lost))
	for i, c := range e.Lost {
		names[i] = string(c)
	}
	return fmt.Sprintf("pattern %s: model rewrite lost previously-satisfied capabilities: %s",
		e.PatternID, strings.Join(names, ", "))
}

// Context carries caller-supplied adaptation inputs: slot overrides and
// anything else the mechanical rules cannot derive.
type Context struct {
	SlotOverrides map[string]string
}

// Adapter rewrites a chosen pattern for the requested resource. Phase one
// (mechanical substitution) is deterministic and total over the declared
// slots; phase two (capability repair) is the only place the model is
// consulted, and only when the match left capabilities missing.
type Adapter struct {
	model llm.Client
}

// New creates an adapter. model may be nil; repair rewrites then fail
// cleanly and the orchestrator falls back per its state machine.
func New(model llm.Client) *Adapter {
	return &Adapter{model: model}
}

// Adapt performs mechanical substitution and, when the match reported
// missing capabilities, a model-assisted repair rewrite. The returned
// artifact always inherits the source pattern's full capability set.
func (a *Adapter) Adapt(ctx context.Context, pattern *models.PatternRecord, query *models.RequestQuery, missing []models.Capability, actx *Context) (*models.AdaptedArtifact, error) {
	var overrides map[string]string
	if actx != nil {
		overrides = actx.SlotOverrides
	}

	values, err := resolveSlots(pattern, query, overrides)
	if err != nil {
		return nil, err
	}

	artifact := &models.AdaptedArtifact{
		SourcePatternID:       pattern.ID,
		Body:                  substitute(pattern.Template, values),
		Substitutions:         values,
		CapabilitiesInherited: append([]models.Capability(nil), pattern.Capabilities...),
	}

	if len(missing) == 0 {
		return artifact, nil
	}
	return a.Repair(ctx, artifact, query, missing)
}

// repairDirectives spells out the accepted implementation shape for each
// capability a repair rewrite must add. The model gets exactly these, no
// open-ended instructions.
var repairDirectives = map[models.Capability]string{
	models.CapAuthRequired:     "add authentication: the route handler must be guarded by the authenticateToken middleware before any handler logic runs",
	models.CapPagination:       "add pagination: read query params `page` and `limit` (default 20, max 100), clamp limit with Math.min(limit, 100), apply LIMIT/OFFSET in the query, and include a `pagination` object in the response",
	models.CapParameterizedSQL: "use parameterized SQL: every request-derived value must be passed as a positional bound parameter ($1, $2, ...), never concatenated or interpolated into the query string",
	models.CapDuplicateCheck:   "add a duplicate check: run an existence SELECT on the unique field before the INSERT/UPDATE and respond 409 with code 'DUPLICATE' when a row already exists",
	models.CapSoftDelete:       "use soft delete: set deleted_at = NOW() with an UPDATE instead of issuing DELETE FROM, and exclude soft-deleted rows from reads",
	models.CapErrorHandling:    "add error handling: wrap fallible operations in try/catch and return a non-2xx status with a machine-readable `code` field on failure",
}

const repairPromptTemplate = `You are upgrading a generated code file so it satisfies specific quality guarantees.

=== CURRENT CODE ===
%s
=== END CODE ===

REQUIRED CHANGES (mandatory additions, not optional extras):
%s

CRITICAL INSTRUCTIONS:
1. Apply ONLY the changes listed above.
2. Do NOT remove or weaken any existing validation, authentication, error handling, or parameterized queries.
3. Keep all existing SQL parameterized ($1, $2, ...).
4. Keep the existing response structures.

Output the COMPLETE updated file in a single code block, then 2-3 sentences describing what you changed.`

// Repair asks the model to add the missing capabilities to an artifact,
// then re-runs the same detectors the validator uses to confirm nothing
// previously satisfied was lost. On regression the rewrite is discarded.
func (a *Adapter) Repair(ctx context.Context, artifact *models.AdaptedArtifact, query *models.RequestQuery, missing []models.Capability) (*models.AdaptedArtifact, error) {
	if a.model == nil {
		return nil, fmt.Errorf("pattern %s: capability repair needs a model and none is configured", artifact.SourcePatternID)
	}

	logger := logging.GetLoggerByRunID(llm.RunIDFromContext(ctx))

	var directives []string
	for _, cap := range missing {
		d, ok := repairDirectives[cap]
		if !ok {
			d = fmt.Sprintf("satisfy the %q capability", cap)
		}
		directives = append(directives, "- "+d)
	}

	// Record which capabilities hold before the rewrite; those must all
	// still hold afterwards.
	var present []models.Capability
	for _, cap := range checkedCapabilities {
		if ok, _ := validate.Detect(artifact.Body, cap); ok {
			present = append(present, cap)
		}
	}

	prompt := fmt.Sprintf(repairPromptTemplate, artifact.Body, strings.Join(directives, "\n"))
	response, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: repair rewrite failed: %w", artifact.SourcePatternID, err)
	}
	logger.LogModelExchange("repair", prompt, response)

	code := extractCodeBlock(response)
	if code == "" {
		return nil, fmt.Errorf("pattern %s: repair reply contained no code block", artifact.SourcePatternID)
	}

	var lost []models.Capability
	for _, cap := range present {
		if ok, _ := validate.Detect(code, cap); !ok {
			lost = append(lost, cap)
		}
	}
	if len(lost) > 0 {
		return nil, &RegressionError{PatternID: artifact.SourcePatternID, Lost: lost}
	}

	repaired := &models.AdaptedArtifact{
		SourcePatternID:       artifact.SourcePatternID,
		Body:                  code,
		Substitutions:         artifact.Substitutions,
		CapabilitiesInherited: append([]models.Capability(nil), artifact.CapabilitiesInherited...),
	}
	return repaired, nil
}

// checkedCapabilities fixes the order the regression guard walks
// capabilities in, keeping RegressionError contents deterministic.
var checkedCapabilities = []models.Capability{
	models.CapAuthRequired,
	models.CapPagination,
	models.CapParameterizedSQL,
	models.CapDuplicateCheck,
	models.CapSoftDelete,
	models.CapErrorHandling,
}
