package shared

import (
	"regexp"
	"strings"
)

// Lightweight English inflection for resource identifiers. This only needs
// to cover the nouns that show up in API resource names; irregulars that
// matter for seed data are listed explicitly.

var irregularSingulars = map[string]string{
	"people":   "person",
	"children": "child",
	"men":      "man",
	"women":    "woman",
	"statuses": "status",
}

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"status": "statuses",
}

// Singularize returns the singular form of a resource noun.
func Singularize(word string) string {
	w := strings.ToLower(word)
	if s, ok := irregularSingulars[w]; ok {
		return s
	}
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 3:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "shes"), strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "xes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// Pluralize returns the plural form of a resource noun.
func Pluralize(word string) string {
	w := strings.ToLower(word)
	if p, ok := irregularPlurals[w]; ok {
		return p
	}
	switch {
	case strings.HasSuffix(w, "y") && len(w) > 1 && !isVowel(w[len(w)-2]):
		return w[:len(w)-1] + "ies"
	case strings.HasSuffix(w, "s"), strings.HasSuffix(w, "sh"), strings.HasSuffix(w, "ch"), strings.HasSuffix(w, "x"), strings.HasSuffix(w, "z"):
		return w + "es"
	}
	return w + "s"
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

var nonIdentRe = regexp.MustCompile(`[^a-z0-9]+`)

// SnakeCase normalizes a resource noun into a lower-snake-case SQL
// identifier ("Order Items" -> "order_items").
func SnakeCase(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	w = nonIdentRe.ReplaceAllString(w, "_")
	return strings.Trim(w, "_")
}
