package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysithea/pkg/models"
)

// stubModel satisfies llm.Client with a canned reply.
type stubModel struct {
	reply string
	err   error
}

func (s *stubModel) Complete(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func TestExtractKeywordRules(t *testing.T) {
	e := New(nil, 0.6)
	ctx := context.Background()

	cases := []struct {
		prompt string
		want   models.RequestQuery
	}{
		{
			prompt: "GET all products",
			want: models.RequestQuery{
				Resource:             "products",
				Operation:            models.OpReadMany,
				RequiredCapabilities: []models.Capability{models.CapPagination},
			},
		},
		{
			prompt: "get user by id",
			want: models.RequestQuery{
				Resource:  "user",
				Operation: models.OpReadOne,
			},
		},
		{
			prompt: "create a new order with duplicate check",
			want: models.RequestQuery{
				Resource:             "order",
				Operation:            models.OpCreate,
				RequiredCapabilities: []models.Capability{models.CapDuplicateCheck},
			},
		},
		{
			prompt: "update the user's email",
			want: models.RequestQuery{
				Resource:  "user",
				Operation: models.OpUpdate,
			},
		},
		{
			prompt: "soft delete for invoices",
			want: models.RequestQuery{
				Resource:             "invoices",
				Operation:            models.OpDelete,
				RequiredCapabilities: []models.Capability{models.CapSoftDelete},
			},
		},
		{
			prompt: "auth middleware for sessions",
			want: models.RequestQuery{
				Resource:             "sessions",
				Operation:            models.OpAuth,
				RequiredCapabilities: []models.Capability{models.CapAuthRequired},
			},
		},
		{
			prompt: "GET list of products with auth and pagination",
			want: models.RequestQuery{
				Resource:             "products",
				Operation:            models.OpReadMany,
				RequiredCapabilities: []models.Capability{models.CapAuthRequired, models.CapPagination},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.prompt, func(t *testing.T) {
			got, err := e.Extract(ctx, tc.prompt)
			require.NoError(t, err)
			if diff := cmp.Diff(&tc.want, got); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractAllExpandsCRUD(t *testing.T) {
	e := New(nil, 0.6)

	queries, err := e.ExtractAll(context.Background(), "Create CRUD endpoints for products")
	require.NoError(t, err)
	require.Len(t, queries, 5)

	wantOps := []models.Operation{
		models.OpReadMany,
		models.OpReadOne,
		models.OpCreate,
		models.OpUpdate,
		models.OpDelete,
	}
	for i, q := range queries {
		assert.Equal(t, "products", q.Resource)
		assert.Equal(t, wantOps[i], q.Operation)
	}
	// The listing query picks up the pagination default, the others stay
	// without requirements.
	assert.Equal(t, []models.Capability{models.CapPagination}, queries[0].RequiredCapabilities)
	assert.Empty(t, queries[2].RequiredCapabilities)
}

func TestExtractAmbiguousWithoutModel(t *testing.T) {
	e := New(nil, 0.6)

	_, err := e.Extract(context.Background(), "please make it nice")
	var ambiguous *AmbiguousRequestError
	require.True(t, errors.As(err, &ambiguous), "want AmbiguousRequestError, got %v", err)
}

func TestExtractModelAssisted(t *testing.T) {
	e := New(&stubModel{
		reply: "Here is the result:\n```json\n{\"resource\": \"invoices\", \"operation\": \"read-many\", \"confidence\": 0.9}\n```",
	}, 0.6)

	q, err := e.Extract(context.Background(), "the invoices need an endpoint")
	require.NoError(t, err)
	assert.Equal(t, "invoices", q.Resource)
	assert.Equal(t, models.OpReadMany, q.Operation)
	assert.Contains(t, q.RequiredCapabilities, models.CapPagination)
}

func TestExtractModelAssistedFailures(t *testing.T) {
	ctx := context.Background()
	prompt := "the invoices need an endpoint"

	cases := map[string]*stubModel{
		"call error":     {err: errors.New("connection refused")},
		"low confidence": {reply: `{"resource": "invoices", "operation": "read-many", "confidence": 0.3}`},
		"bad operation":  {reply: `{"resource": "invoices", "operation": "other", "confidence": 0.9}`},
		"no resource":    {reply: `{"resource": "", "operation": "create", "confidence": 0.9}`},
		"unparseable":    {reply: "I cannot help with that."},
	}

	for name, model := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(model, 0.6).Extract(ctx, prompt)
			var ambiguous *AmbiguousRequestError
			require.True(t, errors.As(err, &ambiguous), "want AmbiguousRequestError, got %v", err)
		})
	}
}
