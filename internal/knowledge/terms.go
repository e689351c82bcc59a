package knowledge

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {}, "have": {},
	"has": {}, "are": {}, "was": {}, "were": {}, "you": {}, "your": {}, "not": {},
	"but": {}, "from": {}, "any": {}, "can": {}, "what": {}, "when": {}, "how": {},
	"does": {}, "did": {}, "its": {}, "about": {}, "been": {}, "some": {}, "other": {},
}

// terms returns the distinct lowercase words of text worth matching on.
func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// overlap is the overlap coefficient |a∩b| / min(|a|,|b|) of two term sets.
func overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(min(len(a), len(b)))
}
