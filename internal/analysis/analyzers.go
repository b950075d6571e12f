package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

// Analyzer splits a raw field value into an ordered token sequence. Each
// invocation is stateless; args come from the field's schema entry.
type Analyzer func(text string, args []string) ([]string, error)

// Analyzers resolves analyzer factory names from field schemas.
type Analyzers map[string]Analyzer

// Analyze runs the named analyzer over text. Failures, including unknown
// factory names, wrap errors.ErrAnalyzer.
func (a Analyzers) Analyze(text, factory string, args []string) ([]string, error) {
	an, ok := a[factory]
	if !ok {
		return nil, unknownAnalyzerError(factory)
	}
	tokens, err := an(text, args)
	if err != nil {
		return nil, fmt.Errorf("%w: factory %q: %v", apperrors.ErrAnalyzer, factory, err)
	}
	return tokens, nil
}

// DefaultAnalyzers returns the built-in analyzer set: "whitespace" and
// "standard".
func DefaultAnalyzers() Analyzers {
	return Analyzers{
		"whitespace": Whitespace,
		"standard":   Standard,
	}
}

// Whitespace splits text on whitespace and keeps tokens verbatim.
func Whitespace(text string, _ []string) ([]string, error) {
	return strings.Fields(text), nil
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Standard lower-cases text, splits on non-alphanumeric boundaries, removes
// stop words and short tokens, and applies a suffix-based stemmer. An
// optional first arg overrides the minimum token length (default 2).
func Standard(text string, args []string) ([]string, error) {
	minLen := 2
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid minimum token length %q", args[0])
		}
		minLen = n
	}
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < minLen {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		stemmed := stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens, nil
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ling", "l", 3},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"est", "", 3},
		{"ful", "", 3},
		{"ous", "", 3},
		{"ess", "", 3},
		{"ble", "", 3},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
