package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lysithea/internal/llm"
	"github.com/lysithea/pkg/models"
)

// AmbiguousRequestError is returned when neither the deterministic rules
// nor the model-assisted pass could interpret the prompt with enough
// confidence. The orchestrator surfaces it to the caller instead of
// guessing.
type AmbiguousRequestError struct {
	Prompt string
	Detail string
}

func (e *AmbiguousRequestError) Error() string {
	return fmt.Sprintf("ambiguous request %q: %s", e.Prompt, e.Detail)
}

// Extractor turns free-form prompts into structured queries. The model
// client is optional; without it, prompts the rules cannot interpret are
// rejected outright.
type Extractor struct {
	model               llm.Client
	confidenceThreshold float64
}

// New creates an extractor. model may be nil to disable the
// model-assisted pass; threshold is the minimum model confidence
// accepted on that pass.
func New(model llm.Client, threshold float64) *Extractor {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &Extractor{model: model, confidenceThreshold: threshold}
}

var (
	byAttributeRe = regexp.MustCompile(`\b(get|fetch|retrieve|show|find)\b.*\bby[ -]?(id|[a-z]+)\b`)
	readManyRe    = regexp.MustCompile(`\b(get|list|fetch|retrieve|show)\b`)
	createRe      = regexp.MustCompile(`\b(post|create|add|insert|register)\b`)
	updateRe      = regexp.MustCompile(`\b(put|patch|update|edit|modify|change)\b`)
	deleteRe      = regexp.MustCompile(`\b(delete|remove|destroy)\b`)
	authRe        = regexp.MustCompile(`\b(auth|authentication|login)\s+(middleware|guard|handler)\b`)
	crudRe        = regexp.MustCompile(`\bcrud\b`)

	wordRe = regexp.MustCompile(`[a-zA-Z][a-zA-Z_-]*`)
)

// crudOperations is the expansion order for "CRUD for X" prompts,
// matching the literal mapping the generator has always used.
var crudOperations = []models.Operation{
	models.OpReadMany,
	models.OpReadOne,
	models.OpCreate,
	models.OpUpdate,
	models.OpDelete,
}

// Extract interprets a single-operation prompt. For "CRUD" prompts it
// returns the first expanded query; callers wanting the full expansion
// use ExtractAll.
func (e *Extractor) Extract(ctx context.Context, prompt string) (*models.RequestQuery, error) {
	queries, err := e.ExtractAll(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return queries[0], nil
}

// ExtractAll interprets a prompt into one query per requested operation.
// Non-CRUD prompts yield exactly one query.
func (e *Extractor) ExtractAll(ctx context.Context, prompt string) ([]*models.RequestQuery, error) {
	lower := strings.ToLower(prompt)
	caps := explicitCapabilities(lower)

	if crudRe.MatchString(lower) {
		resource := findResource(lower)
		if resource == "" {
			return nil, &AmbiguousRequestError{Prompt: prompt, Detail: "CRUD requested but no resource name found"}
		}
		queries := make([]*models.RequestQuery, 0, len(crudOperations))
		for _, op := range crudOperations {
			queries = append(queries, buildQuery(resource, op, caps))
		}
		return queries, nil
	}

	op, ok := detectOperation(lower)
	if !ok {
		return e.modelAssisted(ctx, prompt, caps)
	}

	resource := findResource(lower)
	if resource == "" {
		return e.modelAssisted(ctx, prompt, caps)
	}

	return []*models.RequestQuery{buildQuery(resource, op, caps)}, nil
}

// detectOperation applies the keyword rules in specificity order: "get X
// by id" (and "get X by <attribute>") must win over the generic read-many
// verbs, and HTTP method names win over overloaded verbs like "add".
func detectOperation(lower string) (models.Operation, bool) {
	switch {
	case authRe.MatchString(lower):
		return models.OpAuth, true
	case byAttributeRe.MatchString(lower):
		return models.OpReadOne, true
	case readManyRe.MatchString(lower):
		return models.OpReadMany, true
	case updateRe.MatchString(lower):
		return models.OpUpdate, true
	case deleteRe.MatchString(lower):
		return models.OpDelete, true
	case createRe.MatchString(lower):
		return models.OpCreate, true
	}
	return models.OpOther, false
}

// resourceStopwords are tokens that can never be the requested resource.
var resourceStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "all": true, "for": true, "of": true,
	"with": true, "and": true, "or": true, "to": true, "by": true, "id": true,
	"get": true, "post": true, "put": true, "patch": true, "delete": true,
	"create": true, "add": true, "insert": true, "register": true,
	"update": true, "edit": true, "modify": true, "change": true,
	"remove": true, "destroy": true, "list": true, "fetch": true,
	"retrieve": true, "show": true, "find": true, "new": true, "single": true,
	"endpoint": true, "endpoints": true, "route": true, "routes": true,
	"api": true, "crud": true, "paginated": true, "pagination": true,
	"auth": true, "authentication": true, "authenticated": true,
	"middleware": true, "query": true, "queries": true, "sql": true,
	"s": true, "its": true, "their": true, "my": true,
	"request": true, "response": true, "handler": true, "handlers": true,
	"soft": true, "hard": true, "check": true, "checks": true, "field": true,
	"price": true, "name": true, "email": true, "date": true,
}

// findResource picks the requested noun: the token following "for"/"of"
// when present, otherwise the first non-stopword token after the
// operation verb.
func findResource(lower string) string {
	tokens := wordRe.FindAllString(lower, -1)

	for i, tok := range tokens {
		if (tok == "for" || tok == "of") && i+1 < len(tokens) {
			for j := i + 1; j < len(tokens); j++ {
				cand := cleanToken(tokens[j])
				if cand != "" && !resourceStopwords[cand] {
					return cand
				}
			}
		}
	}

	for _, tok := range tokens {
		cand := cleanToken(tok)
		if cand != "" && !resourceStopwords[cand] {
			return cand
		}
	}
	return ""
}

func cleanToken(tok string) string {
	tok = strings.TrimSuffix(tok, "'s")
	return strings.Trim(tok, "-_")
}

// explicitCapabilities collects the capability tags the prompt asks for
// by name.
func explicitCapabilities(lower string) []models.Capability {
	var caps []models.Capability
	add := func(c models.Capability) {
		for _, existing := range caps {
			if existing == c {
				return
			}
		}
		caps = append(caps, c)
	}

	if strings.Contains(lower, "auth") || strings.Contains(lower, "protected") {
		add(models.CapAuthRequired)
	}
	if strings.Contains(lower, "paginat") {
		add(models.CapPagination)
	}
	if strings.Contains(lower, "parameterized") || strings.Contains(lower, "sql injection") {
		add(models.CapParameterizedSQL)
	}
	if strings.Contains(lower, "duplicate") {
		add(models.CapDuplicateCheck)
	}
	if strings.Contains(lower, "soft delete") || strings.Contains(lower, "soft-delete") {
		add(models.CapSoftDelete)
	}
	if strings.Contains(lower, "error handling") || strings.Contains(lower, "error-handling") {
		add(models.CapErrorHandling)
	}
	return caps
}

// buildQuery assembles the final query, folding in operation-default
// capabilities (listing endpoints always require pagination).
func buildQuery(resource string, op models.Operation, explicit []models.Capability) *models.RequestQuery {
	q := &models.RequestQuery{
		Resource:             resource,
		Operation:            op,
		RequiredCapabilities: append([]models.Capability(nil), explicit...),
	}
	if op == models.OpReadMany && !q.RequiresCapability(models.CapPagination) {
		q.RequiredCapabilities = append(q.RequiredCapabilities, models.CapPagination)
	}
	return q
}
