package match

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/pkg/models"
)

// loadTestCatalog builds a catalog from annotated pattern sources keyed by
// file name. File names control insertion order (the loader sorts paths).
func loadTestCatalog(t *testing.T, files map[string]string) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	cat, err := catalog.Load(dir)
	require.NoError(t, err)
	return cat
}

func pattern(id, domain, op, caps string) string {
	src := "// @id " + id + "\n// @domain " + domain + "\n// @operation " + op + "\n"
	if caps != "" {
		src += "// @capabilities " + caps + "\n"
	}
	return src + "\nhandler();\n"
}

func TestRankPrefersExactOperationAndCapabilities(t *testing.T) {
	cat := loadTestCatalog(t, map[string]string{
		"a.js": pattern("list-full", "http-route", "read-many", "auth-required, pagination"),
		"b.js": pattern("list-bare", "http-route", "read-many", ""),
		"c.js": pattern("create-one", "http-route", "create", "auth-required, pagination"),
	})

	query := &models.RequestQuery{
		Resource:             "products",
		Operation:            models.OpReadMany,
		RequiredCapabilities: []models.Capability{models.CapAuthRequired, models.CapPagination},
	}

	ranked, err := NewRanker().Rank(query, cat, "http-route")
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// Exact operation with every capability: full marks.
	assert.Equal(t, "list-full", ranked[0].PatternID)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-9)
	assert.True(t, ranked[0].ExactOperation)
	assert.Empty(t, ranked[0].MissingCapabilities)

	// CRUD-family pattern with the capabilities (0.24 + 0.4) outscores the
	// exact-operation pattern that provides none (0.6 + 0).
	assert.Equal(t, "create-one", ranked[1].PatternID)
	assert.InDelta(t, 0.64, ranked[1].Score, 1e-9)
	assert.False(t, ranked[1].ExactOperation)

	assert.Equal(t, "list-bare", ranked[2].PatternID)
	assert.InDelta(t, 0.6, ranked[2].Score, 1e-9)
	assert.Equal(t,
		[]models.Capability{models.CapAuthRequired, models.CapPagination},
		ranked[2].MissingCapabilities)
}

func TestRankTieBreaksByInsertionOrder(t *testing.T) {
	cat := loadTestCatalog(t, map[string]string{
		"a.js": pattern("first", "http-route", "read-many", "pagination"),
		"b.js": pattern("second", "http-route", "read-many", "pagination"),
	})

	query := &models.RequestQuery{
		Resource:             "products",
		Operation:            models.OpReadMany,
		RequiredCapabilities: []models.Capability{models.CapPagination},
	}

	ranked, err := NewRanker().Rank(query, cat, "http-route")
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].PatternID)
	assert.Equal(t, "second", ranked[1].PatternID)
}

func TestRankExcludesZeroScores(t *testing.T) {
	// An auth query scores zero against a CRUD pattern lacking every
	// required capability: no operation credit outside the CRUD family and
	// no capability credit either.
	cat := loadTestCatalog(t, map[string]string{
		"a.js": pattern("create-bare", "http-route", "create", ""),
	})

	query := &models.RequestQuery{
		Resource:             "sessions",
		Operation:            models.OpAuth,
		RequiredCapabilities: []models.Capability{models.CapAuthRequired},
	}

	_, err := NewRanker().Rank(query, cat, "http-route")
	var notFound *NoPatternFoundError
	require.True(t, errors.As(err, &notFound), "want NoPatternFoundError, got %v", err)
	assert.Equal(t, "http-route", notFound.Domain)
	assert.Equal(t, models.OpAuth, notFound.Operation)
}

func TestRankUnknownDomain(t *testing.T) {
	cat := loadTestCatalog(t, map[string]string{
		"a.js": pattern("list-bare", "http-route", "read-many", ""),
	})

	query := &models.RequestQuery{Resource: "products", Operation: models.OpReadMany}

	_, err := NewRanker().Rank(query, cat, "grpc")
	var notFound *NoPatternFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestRankIsDeterministic(t *testing.T) {
	cat := loadTestCatalog(t, map[string]string{
		"a.js": pattern("list-full", "http-route", "read-many", "auth-required, pagination"),
		"b.js": pattern("list-bare", "http-route", "read-many", ""),
		"c.js": pattern("update-one", "http-route", "update", "auth-required"),
	})

	query := &models.RequestQuery{
		Resource:             "products",
		Operation:            models.OpReadMany,
		RequiredCapabilities: []models.Capability{models.CapAuthRequired},
	}

	first, err := NewRanker().Rank(query, cat, "http-route")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := NewRanker().Rank(query, cat, "http-route")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
