package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lysithea/pkg/models"
)

// Pattern files carry their metadata as @-annotations in leading comment
// lines, the same shape the catalog's exemplar files use:
//
//	// @id get-users-auth
//	// @domain http-route
//	// @operation read-many
//	// @capabilities auth-required, pagination, parameterized-sql
//	// @slot resource identifier
//	// @output-dir routes
//	// @file-naming {resource}.js
//
// Everything after the annotation block is the template body. SQL patterns
// use `--` comment markers instead of `//`.

var (
	annotationRe = regexp.MustCompile(`^\s*(?://|--)\s*@([a-z-]+)\s+(.+?)\s*$`)

	// Slot references are lowercase snake-case names in single braces. A
	// leading $ marks a JS template-literal interpolation, not a slot;
	// templateRefs filters those out so adjacent references like {a}{b}
	// are both seen.
	slotRefRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)
)

// templateRefs returns every slot name a template references, in order of
// appearance, duplicates included.
func templateRefs(template string) []string {
	var names []string
	for _, m := range slotRefRe.FindAllStringSubmatchIndex(template, -1) {
		if m[0] > 0 && template[m[0]-1] == '$' {
			continue
		}
		names = append(names, template[m[2]:m[3]])
	}
	return names
}

// parsePattern parses one annotated pattern file into a PatternRecord.
// The returned record has Position unset; Load assigns it.
func parsePattern(path string, content []byte) (*models.PatternRecord, error) {
	rec := &models.PatternRecord{
		OutputDir:  "output",
		FileNaming: "{resource}.js",
	}

	lines := strings.Split(string(content), "\n")
	bodyStart := 0
	sawAnnotation := false

	for i, line := range lines {
		m := annotationRe.FindStringSubmatch(line)
		if m == nil {
			// Blank lines and plain comments may sit between annotations;
			// the first non-comment, non-blank line starts the body.
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "--") {
				continue
			}
			bodyStart = i
			break
		}
		sawAnnotation = true
		bodyStart = i + 1

		key, value := m[1], m[2]
		switch key {
		case "id":
			rec.ID = value
		case "domain":
			rec.Domain = value
		case "operation":
			op := models.Operation(value)
			if !op.Valid() {
				return nil, &IntegrityError{File: path, Reason: fmt.Sprintf("unknown operation %q", value)}
			}
			rec.Operation = op
		case "capabilities":
			for _, c := range strings.Split(value, ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					rec.Capabilities = append(rec.Capabilities, models.Capability(c))
				}
			}
		case "slot":
			fields := strings.Fields(value)
			if len(fields) != 2 {
				return nil, &IntegrityError{File: path, Reason: fmt.Sprintf("malformed @slot annotation %q (want: name type)", value)}
			}
			st := models.SlotType(fields[1])
			switch st {
			case models.SlotIdentifier, models.SlotFieldList, models.SlotLiteral:
			default:
				return nil, &IntegrityError{File: path, Reason: fmt.Sprintf("unknown slot type %q", fields[1])}
			}
			rec.Slots = append(rec.Slots, models.Slot{Name: fields[0], Type: st})
		case "output-dir":
			rec.OutputDir = value
		case "file-naming":
			rec.FileNaming = value
		default:
			return nil, &IntegrityError{File: path, Reason: fmt.Sprintf("unknown annotation @%s", key)}
		}
	}

	if !sawAnnotation {
		return nil, &IntegrityError{File: path, Reason: "no @-annotations found"}
	}
	if rec.ID == "" {
		return nil, &IntegrityError{File: path, Reason: "missing @id annotation"}
	}
	if rec.Domain == "" {
		return nil, &IntegrityError{File: path, Reason: "missing @domain annotation"}
	}
	if rec.Operation == "" {
		return nil, &IntegrityError{File: path, Reason: "missing @operation annotation"}
	}

	rec.Template = strings.TrimLeft(strings.Join(lines[bodyStart:], "\n"), "\n")
	if strings.TrimSpace(rec.Template) == "" {
		return nil, &IntegrityError{File: path, Reason: "empty template body"}
	}

	if err := checkSlotRoundTrip(path, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// checkSlotRoundTrip enforces the load-time invariant: the template
// references exactly the slots the record declares, no more, no fewer.
func checkSlotRoundTrip(path string, rec *models.PatternRecord) error {
	declared := make(map[string]bool, len(rec.Slots))
	for _, s := range rec.Slots {
		if declared[s.Name] {
			return &IntegrityError{File: path, Reason: fmt.Sprintf("slot %q declared twice", s.Name)}
		}
		declared[s.Name] = true
	}

	referenced := make(map[string]bool)
	for _, name := range templateRefs(rec.Template) {
		referenced[name] = true
	}

	for name := range referenced {
		if !declared[name] {
			return &IntegrityError{File: path, Reason: fmt.Sprintf("template references undeclared slot {%s}", name)}
		}
	}
	for name := range declared {
		if !referenced[name] {
			return &IntegrityError{File: path, Reason: fmt.Sprintf("declared slot %q is never referenced by the template", name)}
		}
	}
	return nil
}

// ReferencedSlots returns the distinct slot names a template body
// references, in order of first appearance. The adapter reuses this after
// a model rewrite to make sure no unexpected slot markers survived.
func ReferencedSlots(template string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range templateRefs(template) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
