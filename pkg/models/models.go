package models

import (
	"time"
)

// Operation classifies what a pattern (or a request) does to a resource.
type Operation string

const (
	OpCreate   Operation = "create"
	OpReadOne  Operation = "read-one"
	OpReadMany Operation = "read-many"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpAuth     Operation = "auth"
	OpOther    Operation = "other"
)

// CRUDFamily reports whether the operation is one of the five CRUD
// operations. Partial ranking credit is only given inside this family.
func (o Operation) CRUDFamily() bool {
	switch o {
	case OpCreate, OpReadOne, OpReadMany, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Valid reports whether o is a known operation value.
func (o Operation) Valid() bool {
	return o.CRUDFamily() || o == OpAuth || o == OpOther
}

// Capability names a quality guarantee a pattern provides and an adapted
// artifact must preserve.
type Capability string

const (
	CapAuthRequired     Capability = "auth-required"
	CapPagination       Capability = "pagination"
	CapParameterizedSQL Capability = "parameterized-sql"
	CapDuplicateCheck   Capability = "duplicate-check"
	CapSoftDelete       Capability = "soft-delete"
	CapErrorHandling    Capability = "error-handling"
)

// SlotType describes how a substitution slot is filled.
type SlotType string

const (
	SlotIdentifier SlotType = "identifier"
	SlotFieldList  SlotType = "field-list"
	SlotLiteral    SlotType = "literal"
)

// Slot is a named substitution point declared by a pattern.
type Slot struct {
	Name string   `json:"name"`
	Type SlotType `json:"type"`
}

// PatternRecord is one cataloged, vetted code template. Records are
// immutable after catalog load.
type PatternRecord struct {
	ID           string       `json:"id"`
	Domain       string       `json:"domain"`
	Operation    Operation    `json:"operation"`
	Capabilities []Capability `json:"capabilities"`
	Template     string       `json:"template"`
	Slots        []Slot       `json:"slots"`

	// OutputDir and FileNaming come from the pattern's @output-dir and
	// @file-naming annotations and control where an accepted artifact is
	// written. FileNaming may reference {resource}.
	OutputDir  string `json:"output_dir"`
	FileNaming string `json:"file_naming"`

	// Position is the record's insertion order within its catalog, used as
	// the final ranking tie-break.
	Position int `json:"-"`
}

// HasCapability reports whether the pattern declares cap.
func (p *PatternRecord) HasCapability(cap Capability) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// RequestQuery is the structured interpretation of a user prompt. It is
// built per request and discarded when the request completes.
type RequestQuery struct {
	Resource             string       `json:"resource"`
	Operation            Operation    `json:"operation"`
	RequiredCapabilities []Capability `json:"required_capabilities"`
}

// RequiresCapability reports whether cap was asked for.
func (q *RequestQuery) RequiresCapability(cap Capability) bool {
	for _, c := range q.RequiredCapabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// MatchResult is one ranked outcome of matching a query against the
// catalog. Results are ordered by score descending with deterministic
// tie-breaks (exact operation match, fewer missing capabilities, catalog
// insertion order).
type MatchResult struct {
	PatternID           string       `json:"pattern_id"`
	Score               float64      `json:"score"`
	ExactOperation      bool         `json:"exact_operation"`
	MissingCapabilities []Capability `json:"missing_capabilities"`
}

// AdaptedArtifact is the generated, resource-specialized code.
type AdaptedArtifact struct {
	SourcePatternID string            `json:"source_pattern_id"`
	Body            string            `json:"body"`
	Substitutions   map[string]string `json:"substitutions"`

	// CapabilitiesInherited is copied verbatim from the source pattern;
	// adaptation must never silently drop a guarantee.
	CapabilitiesInherited []Capability `json:"capabilities_inherited"`
}

// Violation explains one unmet capability in a validation report.
type Violation struct {
	Capability Capability `json:"capability"`
	Reason     string     `json:"reason"`
}

// ValidationReport is the outcome of quality-checking one artifact. It is
// produced fresh per artifact and never mutated afterwards.
type ValidationReport struct {
	Passed     bool        `json:"passed"`
	Score      float64     `json:"score"`
	Violations []Violation `json:"violations"`
}

// RunState is the terminal state of one orchestrated generation run.
type RunState string

const (
	RunAccepted  RunState = "accepted"
	RunExhausted RunState = "exhausted"
	RunRejected  RunState = "rejected"
)

// GenerationResult is what the orchestrator hands back to its caller: the
// best artifact obtained, its report, and how the run ended. A non-passing
// artifact is only ever returned under RunExhausted, never RunAccepted.
type GenerationResult struct {
	RunID    string            `json:"run_id"`
	State    RunState          `json:"state"`
	Query    *RequestQuery     `json:"query,omitempty"`
	Artifact *AdaptedArtifact  `json:"artifact,omitempty"`
	Report   *ValidationReport `json:"report,omitempty"`
	Attempts int               `json:"attempts"`
	Duration time.Duration     `json:"duration"`
}
