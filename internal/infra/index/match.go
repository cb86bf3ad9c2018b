package index

import (
	"strings"
	"time"
	"unicode"

	"github.com/totegamma/logbook/internal/search"
)

// textFields are analyzed: values are lower-cased and split into word tokens before matching.
// Every other field is matched as a single exact keyword.
var textFields = map[string]bool{
	search.FieldDescription: true,
	"source":                true,
}

// scope is the object a query is evaluated against. Inside a nested query the scope is one
// element of the nested collection and prefix is the nested path.
type scope struct {
	obj    map[string]any
	prefix string
}

func (s scope) relative(field string) string {
	if s.prefix == "" {
		return field
	}
	return strings.TrimPrefix(field, s.prefix+".")
}

func matches(q search.Query, s scope) bool {
	switch q := q.(type) {
	case search.MatchAllQuery:
		return true
	case search.BoolQuery:
		for _, m := range q.Must {
			if !matches(m, s) {
				return false
			}
		}
		return true
	case search.DisMaxQuery:
		for _, m := range q.Queries {
			if matches(m, s) {
				return true
			}
		}
		return false
	case search.NestedQuery:
		for _, v := range lookup(s.obj, s.relative(q.Path)) {
			child, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if matches(q.Query, scope{obj: child, prefix: q.Path}) {
				return true
			}
		}
		return false
	case search.WildcardQuery:
		pattern := q.Value
		if q.CaseInsensitive {
			pattern = strings.ToLower(pattern)
		}
		return anyTerm(s, q.Field, q.CaseInsensitive, func(term string) bool {
			return wildcard(pattern, term)
		})
	case search.FuzzyQuery:
		return anyTerm(s, q.Field, false, func(term string) bool {
			return levenshtein(q.Value, term) <= autoFuzziness(q.Value)
		})
	case search.MatchPhraseQuery:
		phrase := analyze(q.Phrase)
		if len(phrase) == 0 {
			return false
		}
		for _, v := range lookup(s.obj, s.relative(q.Field)) {
			str, ok := v.(string)
			if ok && containsRun(analyze(str), phrase) {
				return true
			}
		}
		return false
	case search.RangeQuery:
		for _, v := range lookup(s.obj, s.relative(q.Field)) {
			str, ok := v.(string)
			if !ok {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				continue
			}
			if !t.Before(q.Gte) && !t.After(q.Lte) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// anyTerm applies fn to the terms of field: analyzed tokens for text fields, whole values otherwise.
func anyTerm(s scope, field string, fold bool, fn func(string) bool) bool {
	for _, v := range lookup(s.obj, s.relative(field)) {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if textFields[field] {
			for _, token := range analyze(str) {
				if fn(token) {
					return true
				}
			}
			continue
		}
		if fold {
			str = strings.ToLower(str)
		}
		if fn(str) {
			return true
		}
	}
	return false
}

// lookup resolves a dotted path, flattening arrays along the way.
func lookup(obj map[string]any, path string) []any {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := obj[head]
	if !ok || v == nil {
		return nil
	}
	var values []any
	if arr, ok := v.([]any); ok {
		values = arr
	} else {
		values = []any{v}
	}
	if !nested {
		return values
	}
	var out []any
	for _, item := range values {
		if child, ok := item.(map[string]any); ok {
			out = append(out, lookup(child, rest)...)
		}
	}
	return out
}

// analyze lower-cases s and splits it into letter/digit tokens.
func analyze(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsRun(tokens, run []string) bool {
	for i := 0; i+len(run) <= len(tokens); i++ {
		found := true
		for j := range run {
			if tokens[i+j] != run[j] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// wildcard matches s against a pattern where * is any run and ? is any single rune.
func wildcard(pattern, s string) bool {
	p := []rune(pattern)
	r := []rune(s)
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(r) {
		switch {
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = si
			pi++
		case pi < len(p) && (p[pi] == '?' || p[pi] == r[si]):
			pi++
			si++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

func autoFuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
