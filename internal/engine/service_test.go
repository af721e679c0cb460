package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/extract"
	"github.com/lysithea/internal/match"
	"github.com/lysithea/pkg/models"
)

// newTestService builds a model-less pipeline over the shipped pattern
// catalog. Without a model the pipeline is purely mechanical, which is
// exactly what these tests want: deterministic end-to-end behavior.
func newTestService(t *testing.T) *Service {
	t.Helper()
	cat, err := catalog.Load("../../patterns")
	require.NoError(t, err)
	return Build(catalog.NewStore(cat), nil, 0, DefaultConfig())
}

func TestRunAcceptsFullMatch(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Prompt: "GET list of products with auth and pagination",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunAccepted, result.State)
	assert.Equal(t, 1, result.Attempts)

	require.NotNil(t, result.Query)
	assert.Equal(t, "products", result.Query.Resource)
	assert.Equal(t, models.OpReadMany, result.Query.Operation)

	require.NotNil(t, result.Artifact)
	assert.Equal(t, "http-get-list-auth", result.Artifact.SourcePatternID)
	assert.Equal(t, map[string]string{
		"resource":   "products",
		"table":      "products",
		"sort_field": "created_at",
	}, result.Artifact.Substitutions)
	assert.Contains(t, result.Artifact.Body, "router.get('/products',")
	assert.Contains(t, result.Artifact.Body, "FROM products WHERE deleted_at IS NULL")
	assert.NotContains(t, result.Artifact.Body, "{resource}")
	assert.NotContains(t, result.Artifact.Body, "{table}")

	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Passed)
	assert.InDelta(t, 1.0, result.Report.Score, 1e-9)
}

func TestRunFallsBackToCapabilityHolder(t *testing.T) {
	svc := newTestService(t)

	// No delete pattern carries duplicate-check, but the create pattern
	// does; capability scoring puts it ahead and validation accepts it.
	result, err := svc.Run(context.Background(), Request{
		Prompt: "delete products with duplicate check",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunAccepted, result.State)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, "http-post-auth", result.Artifact.SourcePatternID)
}

func TestRunExhaustsWithoutModel(t *testing.T) {
	svc := newTestService(t)

	// The listing pattern cannot satisfy soft-delete mechanically and no
	// model is wired to repair it, so every candidate runs out of attempts.
	result, err := svc.Run(context.Background(), Request{
		Prompt: "get all products with soft delete",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunExhausted, result.State)
	assert.Greater(t, result.Attempts, 0)

	// Exhaustion still hands back the best-scoring artifact so the caller
	// can accept it explicitly.
	require.NotNil(t, result.Artifact)
	require.NotNil(t, result.Report)
	assert.False(t, result.Report.Passed)
	assert.Greater(t, result.Report.Score, 0.0)
	assert.NotEmpty(t, result.Report.Violations)
}

func TestRunRejectsUnknownDomain(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Prompt: "GET all products",
		Domain: "grpc",
	})
	require.Error(t, err)
	var notFound *match.NoPatternFoundError
	assert.True(t, errors.As(err, &notFound), "want NoPatternFoundError, got %v", err)
	assert.Equal(t, models.RunRejected, result.State)
	assert.Nil(t, result.Artifact)
}

func TestRunRejectsAmbiguousPrompt(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Run(context.Background(), Request{Prompt: "please make it nice"})
	require.Error(t, err)
	var ambiguous *extract.AmbiguousRequestError
	assert.True(t, errors.As(err, &ambiguous), "want AmbiguousRequestError, got %v", err)
	assert.Equal(t, models.RunRejected, result.State)
}

func TestRunAllExpandsCRUD(t *testing.T) {
	svc := newTestService(t)

	started := time.Now()
	results, err := svc.RunAll(context.Background(), Request{
		Prompt: "Create CRUD endpoints for products",
	})
	elapsed := time.Since(started)
	require.NoError(t, err)
	require.Len(t, results, 5)

	wantPatterns := []string{
		"http-get-list-auth",
		"http-get-by-id-auth",
		"http-post-auth",
		"http-put-auth",
		"http-delete-soft-auth",
	}
	for i, result := range results {
		assert.Equal(t, models.RunAccepted, result.State, "operation %d", i)
		require.NotNil(t, result.Artifact, "operation %d", i)
		assert.Equal(t, wantPatterns[i], result.Artifact.SourcePatternID, "operation %d", i)
		assert.Equal(t, "products", result.Query.Resource)
	}

	// Durations are per operation, so the sum stays within the wall time
	// of the whole call.
	var total time.Duration
	for _, result := range results {
		total += result.Duration
	}
	assert.LessOrEqual(t, total, elapsed)
}

func TestRunSlotOverrides(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Prompt:        "GET all products",
		SlotOverrides: map[string]string{"sort_field": "price"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Artifact)
	assert.Contains(t, result.Artifact.Body, "ORDER BY price DESC")
	assert.Equal(t, "price", result.Artifact.Substitutions["sort_field"])
}

func TestRunDomainSelection(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Prompt: "soft delete for products",
		Domain: "sql-query",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunAccepted, result.State)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, "sql-soft-delete", result.Artifact.SourcePatternID)
	assert.Contains(t, result.Artifact.Body, "UPDATE products")
}

func TestRunIsDeterministic(t *testing.T) {
	svc := newTestService(t)
	req := Request{Prompt: "GET list of products with auth and pagination"}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := svc.Run(context.Background(), req)
		require.NoError(t, err)
		if diff := cmp.Diff(first.Artifact, again.Artifact); diff != "" {
			t.Fatalf("artifact mismatch between identical runs (-first +again):\n%s", diff)
		}
		if diff := cmp.Diff(first.Report, again.Report); diff != "" {
			t.Fatalf("report mismatch between identical runs (-first +again):\n%s", diff)
		}
	}
}
