package match

import (
	"fmt"
	"sort"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/pkg/models"
)

// NoPatternFoundError is returned when nothing in the catalog scores
// above zero for a query. The caller decides whether to fall back to an
// un-pattern-guided baseline; the engine never does that silently.
type NoPatternFoundError struct {
	Domain    string
	Resource  string
	Operation models.Operation
}

func (e *NoPatternFoundError) Error() string {
	return fmt.Sprintf("no pattern found for %s/%s on resource %q", e.Domain, e.Operation, e.Resource)
}

// Default scoring weights. Operation correctness dominates: swapping CRUD
// semantics is a correctness bug, while a missing capability is a quality
// gap the validator flags and a repair attempt can close.
const (
	DefaultOperationWeight  = 0.6
	DefaultCapabilityWeight = 0.4

	// crudFamilyCredit is the partial operation credit for a pattern in
	// the same CRUD family as the query but with a different operation.
	crudFamilyCredit = 0.4
)

// Ranker scores catalog entries against a structured query. The scoring
// function is fully deterministic; identical (query, catalog) pairs
// always produce the identical ordered result sequence.
type Ranker struct {
	OperationWeight  float64
	CapabilityWeight float64
}

// NewRanker returns a ranker with the default weights.
func NewRanker() *Ranker {
	return &Ranker{
		OperationWeight:  DefaultOperationWeight,
		CapabilityWeight: DefaultCapabilityWeight,
	}
}

// Rank scores every pattern in the caller-specified domain against the
// query and returns the ordered result list. Zero-score entries are
// excluded entirely; an empty list is a NoPatternFoundError.
func (r *Ranker) Rank(query *models.RequestQuery, cat *catalog.Catalog, domain string) ([]models.MatchResult, error) {
	candidates := cat.FindByDomain(domain)

	type scored struct {
		result   models.MatchResult
		position int
	}
	var results []scored

	for _, rec := range candidates {
		opScore := 0.0
		exact := rec.Operation == query.Operation
		switch {
		case exact:
			opScore = 1.0
		case rec.Operation.CRUDFamily() && query.Operation.CRUDFamily():
			opScore = crudFamilyCredit
		}

		capScore := 1.0
		missing := missingCapabilities(query, rec)
		if len(query.RequiredCapabilities) > 0 {
			provided := len(query.RequiredCapabilities) - len(missing)
			capScore = float64(provided) / float64(len(query.RequiredCapabilities))
		}

		score := r.OperationWeight*opScore + r.CapabilityWeight*capScore
		if score == 0 {
			continue
		}

		results = append(results, scored{
			result: models.MatchResult{
				PatternID:           rec.ID,
				Score:               score,
				ExactOperation:      exact,
				MissingCapabilities: missing,
			},
			position: rec.Position,
		})
	}

	if len(results) == 0 {
		return nil, &NoPatternFoundError{Domain: domain, Resource: query.Resource, Operation: query.Operation}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.result.ExactOperation != b.result.ExactOperation {
			return a.result.ExactOperation
		}
		if len(a.result.MissingCapabilities) != len(b.result.MissingCapabilities) {
			return len(a.result.MissingCapabilities) < len(b.result.MissingCapabilities)
		}
		return a.position < b.position
	})

	out := make([]models.MatchResult, len(results))
	for i, s := range results {
		out[i] = s.result
	}
	return out, nil
}

// missingCapabilities returns required minus provided, preserving the
// required order so match results are deterministic.
func missingCapabilities(query *models.RequestQuery, rec *models.PatternRecord) []models.Capability {
	var missing []models.Capability
	for _, cap := range query.RequiredCapabilities {
		if !rec.HasCapability(cap) {
			missing = append(missing, cap)
		}
	}
	return missing
}
