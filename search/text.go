package search

import "strings"

// Stop words ignored when checking for verbatim matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "how": true, "which": true, "does": true,
}

// terms splits text into lowercase words without punctuation or stop words.
func terms(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.ToLower(strings.Trim(field, ".,!?;:'\"-()[]{}"))
		if word != "" && !stopWords[word] {
			out = append(out, word)
		}
	}
	return out
}

// verbatimMatch reports whether every query term appears in the chunk text.
// A query made only of stop words never matches.
func verbatimMatch(text string, queryTerms []string) bool {
	if len(queryTerms) == 0 {
		return false
	}
	present := make(map[string]struct{})
	for _, word := range terms(text) {
		present[word] = struct{}{}
	}
	for _, term := range queryTerms {
		if _, ok := present[term]; !ok {
			return false
		}
	}
	return true
}
