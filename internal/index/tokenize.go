package index

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the input and splits it into alphanumeric tokens.
// Used both at build time (token postings) and at query time.
func Tokenize(parts ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		for _, tok := range strings.FieldsFunc(strings.ToLower(p), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// NormalizeText lowercases text for substring matching.
func NormalizeText(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}
