package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/lysithea/internal/llm"
	"github.com/lysithea/internal/logging"
	"github.com/lysithea/pkg/models"
)

const analysisPromptTemplate = `You are a parser that extracts the resource and operation from a code-generation request.

Input: "%s"

Rules:
1. Find the resource name (products, users, orders, ...).
2. Map EXACTLY what the user requests - do not infer additional operations.
3. The operation must be one of: create, read-one, read-many, update, delete, auth, other.
   - "GET" or "GET all" or "list" means read-many
   - "GET by ID" means read-one
   - "POST" or "create" means create
   - "PUT" or "PATCH" or "update" means update
   - "DELETE" or "remove" means delete
4. confidence is your certainty from 0.0 to 1.0. Use a low value when the request does not clearly name an operation.

Respond with ONLY a JSON object, no explanations:
{"resource": "<noun>", "operation": "<operation>", "confidence": <0.0-1.0>}`

type analysisReply struct {
	Resource   string  `json:"resource"`
	Operation  string  `json:"operation"`
	Confidence float64 `json:"confidence"`
}

// modelAssisted resolves a prompt the deterministic rules could not. It
// is the only extraction path that touches the model; any failure (call
// error, unparseable reply, low confidence) becomes an
// AmbiguousRequestError for the caller.
func (e *Extractor) modelAssisted(ctx context.Context, prompt string, explicit []models.Capability) ([]*models.RequestQuery, error) {
	if e.model == nil {
		return nil, &AmbiguousRequestError{Prompt: prompt, Detail: "no operation keyword found and model-assisted extraction is disabled"}
	}

	logger := logging.GetLoggerByRunID(llm.RunIDFromContext(ctx))
	logger.Log("Rules could not interpret prompt, invoking model-assisted extraction")

	analysisPrompt := fmt.Sprintf(analysisPromptTemplate, prompt)
	raw, err := e.model.Complete(ctx, analysisPrompt)
	if err != nil {
		return nil, &AmbiguousRequestError{Prompt: prompt, Detail: fmt.Sprintf("model-assisted extraction failed: %v", err)}
	}
	logger.LogModelExchange("extraction", analysisPrompt, raw)

	var reply analysisReply
	if _, err := llm.UnmarshalReply(raw, &reply); err != nil {
		return nil, &AmbiguousRequestError{Prompt: prompt, Detail: fmt.Sprintf("model reply was not interpretable: %v", err)}
	}

	if reply.Confidence < e.confidenceThreshold {
		return nil, &AmbiguousRequestError{
			Prompt: prompt,
			Detail: fmt.Sprintf("model confidence %.2f below threshold %.2f", reply.Confidence, e.confidenceThreshold),
		}
	}

	op := models.Operation(strings.TrimSpace(reply.Operation))
	if !op.Valid() || op == models.OpOther {
		return nil, &AmbiguousRequestError{Prompt: prompt, Detail: fmt.Sprintf("model returned unusable operation %q", reply.Operation)}
	}

	resource := cleanToken(strings.ToLower(strings.TrimSpace(reply.Resource)))
	if resource == "" {
		return nil, &AmbiguousRequestError{Prompt: prompt, Detail: "model returned no resource name"}
	}

	logger.Log("Model-assisted extraction: resource=%s operation=%s confidence=%.2f", resource, op, reply.Confidence)
	return []*models.RequestQuery{buildQuery(resource, op, explicit)}, nil
}
