package search

import (
	"fmt"
	"strings"
	"time"
)

// Document fields the builder addresses.
const (
	FieldID             = "id"
	FieldDescription    = "description"
	FieldOwner          = "owner"
	FieldCreatedDate    = "createdDate"
	PathTags            = "tags"
	PathLogbooks        = "logbooks"
	PathProperties      = "properties"
	PathAttributes      = "properties.attributes"
	PathEvents          = "events"
	FieldTagName        = "tags.name"
	FieldLogbookName    = "logbooks.name"
	FieldPropertyName   = "properties.name"
	FieldAttributeName  = "properties.attributes.name"
	FieldAttributeValue = "properties.attributes.value"
	FieldEventInstant   = "events.instant"
)

const (
	DefaultIndex   = "olog_logs"
	DefaultSize    = 100
	DefaultTimeout = 60 * time.Second

	SortAscending  = "asc"
	SortDescending = "desc"
)

// Config carries the request parameters that are not derived from client input.
type Config struct {
	Index    string
	Size     int
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
}

// SortField orders results by a document field.
type SortField struct {
	Field string
	Order string
}

// Request is a complete search request against the log index.
type Request struct {
	Index   string
	Query   Query
	From    int
	Size    int
	Timeout time.Duration
	Sort    []SortField
}

// Source renders the request body in Elasticsearch search DSL.
func (r Request) Source() map[string]any {
	sorts := make([]any, 0, len(r.Sort))
	for _, s := range r.Sort {
		sorts = append(sorts, map[string]any{s.Field: map[string]any{"order": s.Order}})
	}
	return map[string]any{
		"from":             r.From,
		"size":             r.Size,
		"timeout":          formatTimeout(r.Timeout),
		"sort":             sorts,
		"track_total_hits": true,
		"query":            r.Query.Source(),
	}
}

// BuildSearchRequest parses params and builds the request in one step.
// It performs no I/O and holds no state between calls.
func BuildSearchRequest(params map[string][]string, conf Config) (Request, error) {
	criteria, err := ParseCriteria(params, ParseOptions{Location: conf.Location, Now: conf.Now})
	if err != nil {
		return Request{}, err
	}

	index := conf.Index
	if index == "" {
		index = DefaultIndex
	}
	size := conf.Size
	if size <= 0 {
		size = DefaultSize
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return Request{
		Index:   index,
		Query:   BuildQuery(criteria),
		From:    0,
		Size:    size,
		Timeout: timeout,
		Sort:    []SortField{{Field: FieldCreatedDate, Order: SortDescending}},
	}, nil
}

// BuildQuery combines every present clause of c with AND. Empty criteria match all documents.
func BuildQuery(c Criteria) Query {
	var must []Query

	if len(c.Phrases) > 0 {
		var phrases []Query
		for _, p := range c.Phrases {
			phrases = append(phrases, MatchPhraseQuery{Field: FieldDescription, Phrase: p})
		}
		must = append(must, DisMaxQuery{Queries: phrases})
	}

	if len(c.Owners) > 0 {
		var owners []Query
		for _, o := range c.Owners {
			owners = append(owners, WildcardQuery{Field: FieldOwner, Value: o})
		}
		must = append(must, DisMaxQuery{Queries: owners})
	}

	if len(c.Tags) > 0 {
		must = append(must, nestedNames(PathTags, FieldTagName, c.Tags))
	}

	if len(c.Logbooks) > 0 {
		must = append(must, nestedNames(PathLogbooks, FieldLogbookName, c.Logbooks))
	}

	if len(c.Properties) > 0 {
		var properties []Query
		for _, p := range c.Properties {
			if q, ok := propertyQuery(p); ok {
				properties = append(properties, q)
			}
		}
		if len(properties) > 0 {
			must = append(must, DisMaxQuery{Queries: properties})
		}
	}

	if c.HasTimeRange() {
		created := RangeQuery{Field: FieldCreatedDate, Gte: c.Start, Lte: c.End}
		if c.IncludeEvents {
			must = append(must, DisMaxQuery{Queries: []Query{
				created,
				NestedQuery{
					Path:      PathEvents,
					Query:     RangeQuery{Field: FieldEventInstant, Gte: c.Start, Lte: c.End},
					ScoreMode: ScoreModeNone,
				},
			}})
		} else {
			must = append(must, created)
		}
	}

	if len(c.DescriptionTerms) > 0 {
		var terms []Query
		for _, term := range c.DescriptionTerms {
			if c.Fuzzy {
				terms = append(terms, FuzzyQuery{
					Field:     FieldDescription,
					Value:     strings.ToLower(term),
					Fuzziness: FuzzinessAuto,
				})
			} else {
				terms = append(terms, WildcardQuery{
					Field:           FieldDescription,
					Value:           term,
					CaseInsensitive: true,
				})
			}
		}
		must = append(must, DisMaxQuery{Queries: terms})
	}

	if len(must) == 0 {
		return MatchAllQuery{}
	}
	return BoolQuery{Must: must}
}

func nestedNames(path, field string, patterns []string) Query {
	var names []Query
	for _, p := range patterns {
		names = append(names, WildcardQuery{Field: field, Value: p})
	}
	return NestedQuery{
		Path:      path,
		Query:     DisMaxQuery{Queries: names},
		ScoreMode: ScoreModeNone,
	}
}

// propertyQuery matches attribute name and value independently within one
// property, so they may be satisfied by different attributes.
func propertyQuery(p PropertyPattern) (Query, bool) {
	var must []Query
	if p.Name != "" {
		must = append(must, WildcardQuery{Field: FieldPropertyName, Value: p.Name})
	}
	if p.Attribute != "" {
		must = append(must, NestedQuery{
			Path:      PathAttributes,
			Query:     WildcardQuery{Field: FieldAttributeName, Value: p.Attribute},
			ScoreMode: ScoreModeNone,
		})
	}
	if p.Value != "" {
		must = append(must, NestedQuery{
			Path:      PathAttributes,
			Query:     WildcardQuery{Field: FieldAttributeValue, Value: p.Value},
			ScoreMode: ScoreModeNone,
		})
	}
	if len(must) == 0 {
		return nil, false
	}
	return NestedQuery{
		Path:      PathProperties,
		Query:     BoolQuery{Must: must},
		ScoreMode: ScoreModeNone,
	}, true
}

func formatTimeout(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}
