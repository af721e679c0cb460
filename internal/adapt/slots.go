package adapt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lysithea/pkg/models"
	"github.com/lysithea/pkg/shared"
)

// UnresolvedSlotError means a declared slot had neither a deterministic
// rule nor an override in the adaptation context. Mechanical substitution
// is otherwise total over the declared slot set.
type UnresolvedSlotError struct {
	PatternID string
	Slot      string
}

func (e *UnresolvedSlotError) Error() string {
	return fmt.Sprintf("pattern %s: no rule or override resolves slot {%s}", e.PatternID, e.Slot)
}

// slotRule derives a slot value from the query. Rules are pure; phase one
// never touches the model.
type slotRule func(query *models.RequestQuery) string

// slotRules maps well-known slot names to their derivation. Table and
// route names are the pluralized snake-case resource; record-level names
// are the singular form. The resource is singularized before pluralizing
// so an already-plural prompt noun ("products") stays "products".
var slotRules = map[string]slotRule{
	"resource": func(q *models.RequestQuery) string {
		return shared.Pluralize(shared.Singularize(shared.SnakeCase(q.Resource)))
	},
	"resource_singular": func(q *models.RequestQuery) string {
		return shared.Singularize(shared.SnakeCase(q.Resource))
	},
	"table": func(q *models.RequestQuery) string {
		return shared.Pluralize(shared.Singularize(shared.SnakeCase(q.Resource)))
	},
	"primary_key_field": func(q *models.RequestQuery) string {
		return "id"
	},
	"unique_field": func(q *models.RequestQuery) string {
		return "name"
	},
	"searchable_fields": func(q *models.RequestQuery) string {
		return "name"
	},
	"sort_field": func(q *models.RequestQuery) string {
		return "created_at"
	},
}

// resolveSlots computes the value for every declared slot. Overrides from
// the caller-supplied context win over rules.
func resolveSlots(pattern *models.PatternRecord, query *models.RequestQuery, overrides map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(pattern.Slots))
	for _, slot := range pattern.Slots {
		if v, ok := overrides[slot.Name]; ok {
			values[slot.Name] = v
			continue
		}
		rule, ok := slotRules[slot.Name]
		if !ok {
			return nil, &UnresolvedSlotError{PatternID: pattern.ID, Slot: slot.Name}
		}
		values[slot.Name] = rule(query)
	}
	return values, nil
}

var slotRefRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// substitute fills every slot reference in the template, including
// adjacent ones. References preceded by $ are JS template-literal
// interpolations and are left alone, mirroring the catalog loader's
// reference syntax. Values are inserted verbatim.
func substitute(template string, values map[string]string) string {
	var b strings.Builder
	last := 0
	for _, m := range slotRefRe.FindAllStringSubmatchIndex(template, -1) {
		if m[0] > 0 && template[m[0]-1] == '$' {
			continue
		}
		value, ok := values[template[m[2]:m[3]]]
		if !ok {
			continue
		}
		b.WriteString(template[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(template[last:])
	return b.String()
}
