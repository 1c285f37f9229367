// Package convention derives names from minimal module definitions.
// It applies the casing and pluralization rules every derived artifact shares.
package convention

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Names holds the canonical names derived for one module key.
type Names struct {
	// Singular is the camelCase singular form (e.g., "blogPost").
	Singular string

	// Plural is the camelCase plural form (e.g., "blogPosts").
	Plural string
}

// ModuleNames derives singular and plural names from an authored module key.
// The key may be written in either form and in any casing.
func ModuleNames(key string) Names {
	camel := CamelCase(key)
	if camel == "" {
		return Names{}
	}

	head, last := splitLastWord(camel)
	return Names{
		Singular: head + Singularize(last),
		Plural:   head + Pluralize(last),
	}
}

// EnumName returns the declaration name for an enumerated attribute:
// the PascalCase plural of the attribute name (e.g., "status" -> "Statuses").
func EnumName(attribute string) string {
	camel := CamelCase(attribute)
	head, last := splitLastWord(camel)
	return PascalCase(head + Pluralize(last))
}

// EnumTypeName returns the literal-union type name for an enumerated attribute
// (e.g., "status" -> "StatusEnum").
func EnumTypeName(attribute string) string {
	return PascalCase(attribute) + "Enum"
}

// CamelCase converts an identifier to lowerCamelCase.
// Separators (space, '-', '_', '.') and case boundaries start a new word.
func CamelCase(text string) string {
	words := splitWords(text)
	if len(words) == 0 {
		return ""
	}

	title := cases.Title(language.Und)
	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i == 0 {
			b.WriteString(w)
			continue
		}
		b.WriteString(title.String(w))
	}
	return b.String()
}

// PascalCase converts an identifier to UpperCamelCase.
func PascalCase(text string) string {
	camel := CamelCase(text)
	if camel == "" {
		return ""
	}
	r := []rune(camel)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// splitWords breaks an identifier at separators and case boundaries.
// Acronym runs stay together: "URLPath" -> ["URL", "Path"].
func splitWords(text string) []string {
	var words []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}

		if unicode.IsUpper(r) && len(current) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()

	return words
}

// splitLastWord splits a camelCase identifier before its last word, so
// pluralization only touches the final noun ("blogPost" -> "blog", "Post").
func splitLastWord(camel string) (string, string) {
	runes := []rune(camel)
	for i := len(runes) - 1; i > 0; i-- {
		if unicode.IsUpper(runes[i]) {
			return string(runes[:i]), string(runes[i:])
		}
	}
	return "", camel
}
