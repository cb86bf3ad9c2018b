package search

import (
	"time"
)

// Query is an immutable node of a structured search request.
// Source renders the node in Elasticsearch query DSL.
type Query interface {
	Source() map[string]any
}

// ScoreMode controls how nested matches contribute to relevance.
type ScoreMode string

const (
	ScoreModeNone ScoreMode = "none"
	ScoreModeAvg  ScoreMode = "avg"
	ScoreModeMax  ScoreMode = "max"
)

// Fuzziness used for description terms. AUTO allows 0, 1 or 2 edits depending on term length.
const FuzzinessAuto = "AUTO"

// RangeFormat is the date format range bounds are rendered in.
const RangeFormat = "2006-01-02T15:04:05.000Z07:00"

type MatchAllQuery struct{}

func (q MatchAllQuery) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// BoolQuery is a conjunction of its Must clauses.
type BoolQuery struct {
	Must []Query
}

func (q BoolQuery) Source() map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"must": sources(q.Must),
		},
	}
}

// DisMaxQuery matches when any of its queries matches.
type DisMaxQuery struct {
	Queries []Query
}

func (q DisMaxQuery) Source() map[string]any {
	return map[string]any{
		"dis_max": map[string]any{
			"queries": sources(q.Queries),
		},
	}
}

// WildcardQuery is a glob match supporting * and ?.
type WildcardQuery struct {
	Field           string
	Value           string
	CaseInsensitive bool
}

func (q WildcardQuery) Source() map[string]any {
	body := map[string]any{"value": q.Value}
	if q.CaseInsensitive {
		body["case_insensitive"] = true
	}
	return map[string]any{
		"wildcard": map[string]any{q.Field: body},
	}
}

// FuzzyQuery is an edit-distance tolerant term match.
type FuzzyQuery struct {
	Field     string
	Value     string
	Fuzziness string
}

func (q FuzzyQuery) Source() map[string]any {
	fuzziness := q.Fuzziness
	if fuzziness == "" {
		fuzziness = FuzzinessAuto
	}
	return map[string]any{
		"fuzzy": map[string]any{
			q.Field: map[string]any{
				"value":     q.Value,
				"fuzziness": fuzziness,
			},
		},
	}
}

// MatchPhraseQuery matches the analyzed phrase as a contiguous, ordered token run.
type MatchPhraseQuery struct {
	Field  string
	Phrase string
}

func (q MatchPhraseQuery) Source() map[string]any {
	return map[string]any{
		"match_phrase": map[string]any{
			q.Field: map[string]any{"query": q.Phrase},
		},
	}
}

// NestedQuery runs Query against each element of the nested collection at Path.
type NestedQuery struct {
	Path      string
	Query     Query
	ScoreMode ScoreMode
}

func (q NestedQuery) Source() map[string]any {
	mode := q.ScoreMode
	if mode == "" {
		mode = ScoreModeAvg
	}
	return map[string]any{
		"nested": map[string]any{
			"path":       q.Path,
			"query":      q.Query.Source(),
			"score_mode": string(mode),
		},
	}
}

// RangeQuery matches date values in the closed interval [Gte, Lte].
type RangeQuery struct {
	Field string
	Gte   time.Time
	Lte   time.Time
}

func (q RangeQuery) Source() map[string]any {
	return map[string]any{
		"range": map[string]any{
			q.Field: map[string]any{
				"gte":    q.Gte.Format(RangeFormat),
				"lte":    q.Lte.Format(RangeFormat),
				"format": "strict_date_optional_time",
			},
		},
	}
}

func sources(queries []Query) []any {
	out := make([]any, 0, len(queries))
	for _, q := range queries {
		out = append(out, q.Source())
	}
	return out
}
