package convention

import "strings"

// Pluralize returns the plural form of a word.
// Words that already read as plural are returned unchanged, so
// Pluralize(Pluralize(w)) == Pluralize(w).
func Pluralize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	if uncountable[lower] {
		return word
	}

	// Check irregular plurals first
	if plural, ok := irregularPlurals[lower]; ok {
		return matchFirstCase(word, plural)
	}
	if _, ok := irregularSingulars[lower]; ok {
		return word
	}

	if looksPlural(lower) {
		return word
	}

	// Words ending in 's', 'x', 'z', 'ch', 'sh' → add 'es'
	if strings.HasSuffix(lower, "s") ||
		strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "z") ||
		strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh") {
		return word + "es"
	}

	// Words ending in consonant + 'y' → change 'y' to 'ies'
	if strings.HasSuffix(lower, "y") && len(word) > 1 {
		if !isVowel(rune(lower[len(lower)-2])) {
			return word[:len(word)-1] + "ies"
		}
	}

	// Words ending in 'fe' or 'f' → change to 'ves'
	if strings.HasSuffix(lower, "fe") {
		return word[:len(word)-2] + "ves"
	}
	if strings.HasSuffix(lower, "f") && !strings.HasSuffix(lower, "ff") {
		return word[:len(word)-1] + "ves"
	}

	return word + "s"
}

// Singularize returns the singular form of a word.
// Words that already read as singular are returned unchanged.
func Singularize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	if uncountable[lower] {
		return word
	}
	if singular, ok := irregularSingulars[lower]; ok {
		return matchFirstCase(word, singular)
	}
	if _, ok := irregularPlurals[lower]; ok {
		return word
	}

	if !looksPlural(lower) {
		return word
	}

	switch {
	case strings.HasSuffix(lower, "ies"):
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "ves"):
		return word[:len(word)-3] + "f"
	case strings.HasSuffix(lower, "sses"),
		strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zes"),
		strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "shes"):
		return word[:len(word)-2]
	default:
		return word[:len(word)-1]
	}
}

// looksPlural reports whether a lowercase word carries a plural suffix.
// Singular words ending in s (status, address, analysis) are excluded.
func looksPlural(lower string) bool {
	if !strings.HasSuffix(lower, "s") {
		return false
	}
	for _, suffix := range singularSSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return true
}

var singularSSuffixes = []string{"ss", "us", "is", "os"}

func matchFirstCase(word, replacement string) string {
	if word[0] >= 'A' && word[0] <= 'Z' {
		return strings.ToUpper(replacement[:1]) + replacement[1:]
	}
	return replacement
}

// isVowel returns true if the rune is a vowel.
func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}

// Common irregular plurals.
var irregularPlurals = map[string]string{
	"person":   "people",
	"man":      "men",
	"woman":    "women",
	"child":    "children",
	"foot":     "feet",
	"tooth":    "teeth",
	"goose":    "geese",
	"mouse":    "mice",
	"ox":       "oxen",
	"index":    "indices",
	"matrix":   "matrices",
	"vertex":   "vertices",
	"analysis": "analyses",
	"crisis":   "crises",
	"thesis":   "theses",
	"datum":    "data",
	"medium":   "media",
	"schema":   "schemas",
	"status":   "statuses",
	"photo":    "photos",
	"video":    "videos",
	"movie":    "movies",
}

var irregularSingulars = func() map[string]string {
	m := make(map[string]string, len(irregularPlurals))
	for singular, plural := range irregularPlurals {
		m[plural] = singular
	}
	return m
}()

var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"news":        true,
	"series":      true,
	"sheep":       true,
	"species":     true,
	"fish":        true,
	"metadata":    true,
}
