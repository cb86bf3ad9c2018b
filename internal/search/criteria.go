package search

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
)

var (
	textSeparator  = regexp.MustCompile(`[|,;\s]+`)
	facetSeparator = regexp.MustCompile(`[|,;]`)
)

// PropertyPattern is one `name.attribute.value` token of the properties parameter.
// Empty parts are not matched.
type PropertyPattern struct {
	Name      string
	Attribute string
	Value     string
}

// Criteria is the validated, typed form of a search parameter map.
type Criteria struct {
	DescriptionTerms []string
	Fuzzy            bool
	Phrases          []string
	Owners           []string
	Tags             []string
	Logbooks         []string
	Properties       []PropertyPattern

	// Temporal is set when start or end was supplied.
	Temporal      bool
	Start         time.Time
	End           time.Time
	IncludeEvents bool
}

// ParseOptions controls how temporal parameters are interpreted.
type ParseOptions struct {
	Location *time.Location
	Now      func() time.Time
}

// ParseCriteria converts raw query parameters into Criteria.
// Keys are case-insensitive and unknown keys are ignored. A malformed start or end
// value fails the whole parse with domain.ErrInvalidSearchParameter.
func ParseCriteria(params map[string][]string, opts ParseOptions) (Criteria, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var c Criteria
	var starts, ends []time.Time

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := params[key]
		switch strings.ToLower(key) {
		case "desc", "description":
			c.DescriptionTerms = append(c.DescriptionTerms, splitTokens(values, textSeparator)...)
		case "fuzzy":
			c.Fuzzy = true
		case "phrase":
			for _, v := range values {
				if v = strings.TrimSpace(v); v != "" {
					c.Phrases = append(c.Phrases, v)
				}
			}
		case "owner":
			c.Owners = append(c.Owners, splitTokens(values, textSeparator)...)
		case "tags":
			c.Tags = append(c.Tags, splitTokens(values, facetSeparator)...)
		case "logbooks":
			c.Logbooks = append(c.Logbooks, splitTokens(values, facetSeparator)...)
		case "properties":
			for _, token := range splitTokens(values, facetSeparator) {
				c.Properties = append(c.Properties, parsePropertyPattern(token))
			}
		case "start":
			for _, v := range values {
				t, err := parseTime(key, v, loc)
				if err != nil {
					return Criteria{}, err
				}
				starts = append(starts, t)
			}
		case "end":
			for _, v := range values {
				t, err := parseTime(key, v, loc)
				if err != nil {
					return Criteria{}, err
				}
				ends = append(ends, t)
			}
		case "includeevents", "includeevent":
			c.IncludeEvents = true
		}
	}

	if len(starts) > 0 || len(ends) > 0 {
		c.Temporal = true
		c.Start = time.Unix(0, 0).In(loc)
		c.End = now().In(loc)
		if len(starts) > 0 {
			c.Start = earliest(starts)
		}
		if len(ends) > 0 {
			c.End = latest(ends)
		}
	}

	return c, nil
}

// HasTimeRange reports whether a temporal filter applies. A range whose start is not
// strictly before its end is ignored rather than rejected.
func (c Criteria) HasTimeRange() bool {
	return c.Temporal && c.Start.Before(c.End)
}

func splitTokens(values []string, sep *regexp.Regexp) []string {
	var tokens []string
	for _, v := range values {
		for _, t := range sep.Split(v, -1) {
			if t = strings.TrimSpace(t); t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	return tokens
}

func parsePropertyPattern(token string) PropertyPattern {
	parts := strings.SplitN(token, ".", 3)
	var p PropertyPattern
	p.Name = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		p.Attribute = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		p.Value = strings.TrimSpace(parts[2])
	}
	return p
}

func parseTime(key, value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(domain.SearchTimeLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(domain.ErrInvalidSearchParameter, "%s=%q: %v", key, value, err)
	}
	return t, nil
}

func earliest(ts []time.Time) time.Time {
	min := ts[0]
	for _, t := range ts[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min
}

func latest(ts []time.Time) time.Time {
	max := ts[0]
	for _, t := range ts[1:] {
		if t.After(max) {
			max = t
		}
	}
	return max
}
