package engine

import (
	"github.com/lysithea/internal/adapt"
	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/extract"
	"github.com/lysithea/internal/llm"
	"github.com/lysithea/internal/match"
)

// Build wires a Service with the default ranker and the given model
// client. model may be nil, which disables the model-assisted extraction
// and repair paths; the pipeline then runs purely mechanically.
func Build(store *catalog.Store, model llm.Client, extractThreshold float64, cfg Config) *Service {
	return NewService(
		store,
		extract.New(model, extractThreshold),
		match.NewRanker(),
		adapt.New(model),
		cfg,
	)
}
