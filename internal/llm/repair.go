package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStats tracks what it took to turn a model reply into valid JSON.
type RepairStats struct {
	OriginalBytes int           `json:"original_bytes"`
	RepairedBytes int           `json:"repaired_bytes"`
	Strategies    []string      `json:"strategies"`
	RepairTime    time.Duration `json:"repair_time"`
	WasRepaired   bool          `json:"was_repaired"`
}

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)(\s*:)`)
)

// RepairJSON normalizes a model reply into parseable JSON. Local models
// routinely fence their JSON, leave trailing commas, drop key quotes, or
// truncate the tail; each is handled by a cheap strategy before falling
// back to the jsonrepair library.
func RepairJSON(raw string) (string, RepairStats, error) {
	start := time.Now()
	stats := RepairStats{OriginalBytes: len(raw)}

	candidate := strings.TrimSpace(raw)

	if parses(candidate) {
		stats.RepairedBytes = len(candidate)
		stats.RepairTime = time.Since(start)
		return candidate, stats, nil
	}
	stats.WasRepaired = true

	// Strategy: unwrap markdown code fences.
	if m := fenceRe.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
		stats.Strategies = append(stats.Strategies, "code_fence")
	}

	// Strategy: cut leading/trailing prose around the outermost JSON value.
	if !parses(candidate) {
		if trimmed := extractJSONValue(candidate); trimmed != "" && trimmed != candidate {
			candidate = trimmed
			stats.Strategies = append(stats.Strategies, "prose_trim")
		}
	}

	// Strategy: remove trailing commas.
	if !parses(candidate) && trailingCommaRe.MatchString(candidate) {
		candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
		stats.Strategies = append(stats.Strategies, "trailing_commas")
	}

	// Strategy: quote bare object keys.
	if !parses(candidate) && unquotedKeyRe.MatchString(candidate) {
		candidate = unquotedKeyRe.ReplaceAllString(candidate, `$1"$2"$3`)
		stats.Strategies = append(stats.Strategies, "key_quotes")
	}

	// Strategy: close truncated objects/arrays.
	if !parses(candidate) {
		if completed := closeOpenBrackets(candidate); completed != candidate {
			candidate = completed
			stats.Strategies = append(stats.Strategies, "completion")
		}
	}

	// Library fallback for everything the cheap strategies missed.
	if !parses(candidate) {
		repaired, err := jsonrepair.JSONRepair(candidate)
		if err == nil {
			candidate = repaired
			stats.Strategies = append(stats.Strategies, "jsonrepair_library")
		}
	}

	stats.RepairedBytes = len(candidate)
	stats.RepairTime = time.Since(start)

	if !parses(candidate) {
		return candidate, stats, fmt.Errorf("JSON repair failed after %d strategies", len(stats.Strategies))
	}
	return candidate, stats, nil
}

// UnmarshalReply repairs and decodes a model reply into target.
func UnmarshalReply(raw string, target interface{}) (RepairStats, error) {
	repaired, stats, err := RepairJSON(raw)
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return stats, fmt.Errorf("decoding model reply: %w", err)
	}
	return stats, nil
}

func parses(s string) bool {
	var v interface{}
	return json.Unmarshal([]byte(s), &v) == nil
}

// extractJSONValue returns the substring from the first { or [ to the
// matching region's last } or ], dropping surrounding prose.
func extractJSONValue(s string) string {
	first := strings.IndexAny(s, "{[")
	if first < 0 {
		return ""
	}
	last := strings.LastIndexAny(s, "}]")
	if last <= first {
		return s[first:]
	}
	return s[first : last+1]
}

// closeOpenBrackets appends the closers for any unbalanced { or [ in
// last-opened-first-closed order. Brackets inside string literals are
// ignored.
func closeOpenBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}
