package regex

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"

	"log-onboarding-engine/internal/fields"
)

const (
	namedGroupConfidence    = 0.9
	numberedGroupConfidence = 0.7
	wholeMatchConfidence    = 0.6

	HighlightOpen  = "<mark>"
	HighlightClose = "</mark>"

	noMatchMessage = "No matches found for this regex."
)

// Options bounds how a user or AI supplied pattern is executed
type Options struct {
	MatchTimeout time.Duration
	MaxMatches   int
}

// DefaultOptions returns the limits used when the caller supplies none
func DefaultOptions() Options {
	return Options{
		MatchTimeout: 2 * time.Second,
		MaxMatches:   1000,
	}
}

// Span is a match location in rune offsets, End exclusive
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is the outcome of applying a custom pattern to a sample
type Result struct {
	Fields      []fields.FieldRecord `json:"fields"`
	GroupNames  []string             `json:"groupNames"`
	Pattern     string               `json:"pattern"`
	// Highlighted is the HTML-escaped sample with matches in <mark> tags
	Highlighted string               `json:"highlighted"`
	Spans       []Span               `json:"spans"`
	MatchCount  int                  `json:"matchCount"`
	Truncated   bool                 `json:"truncated,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// NoMatch reports the soft condition of a valid pattern matching nothing
func (r *Result) NoMatch() bool {
	return r.MatchCount == 0
}

// Compiled is a pattern ready to run against samples
type Compiled struct {
	source     string
	re         *regexp2.Regexp
	groupNames []string
	numbered   int
}

// Compile normalizes named-group syntax and compiles pattern. A compile failure is
// returned as *InvalidPatternError carrying the compiler message.
func Compile(pattern string, opts Options) (*Compiled, error) {
	normalized := ToJS(pattern)
	re, err := regexp2.Compile(normalized, regexp2.None)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	if opts.MatchTimeout > 0 {
		re.MatchTimeout = opts.MatchTimeout
	}

	return &Compiled{
		source:     normalized,
		re:         re,
		groupNames: GroupNames(normalized),
		numbered:   CountNumberedGroups(normalized),
	}, nil
}

// String returns the normalized pattern
func (c *Compiled) String() string {
	return c.source
}

// GroupNames returns the named groups in source order
func (c *Compiled) GroupNames() []string {
	return c.groupNames
}

// FindAll returns every match in sample. After an empty match the scan moves one
// rune forward, so the loop runs at most len(sample in runes)+1 times for any pattern.
func (c *Compiled) FindAll(runes []rune, maxMatches int) ([]*regexp2.Match, bool, error) {
	var matches []*regexp2.Match
	pos := 0
	for iterations := 0; pos <= len(runes) && iterations <= len(runes); iterations++ {
		m, err := c.re.FindRunesMatchStartingAt(runes, pos)
		if err != nil {
			return nil, false, errors.Wrapf(ErrMatchTimeout, "after %d matches: %v", len(matches), err)
		}
		if m == nil {
			break
		}
		matches = append(matches, m)
		if maxMatches > 0 && len(matches) >= maxMatches {
			return matches, true, nil
		}

		next := m.Index + m.Length
		if m.Length == 0 {
			next++
		}
		pos = next
	}
	return matches, false, nil
}

// Apply runs a custom pattern against sample and turns the matches into fields with
// provenance custom_regex. A pattern that compiles but matches nothing yields an
// empty result with Message set and a nil error.
func Apply(sample, pattern string, opts Options) (*Result, error) {
	compiled, err := Compile(pattern, opts)
	if err != nil {
		return nil, err
	}
	return compiled.Apply(sample, opts)
}

// Apply runs the compiled pattern against sample
func (c *Compiled) Apply(sample string, opts Options) (*Result, error) {
	runes := []rune(sample)
	matches, truncated, err := c.FindAll(runes, opts.MaxMatches)
	if err != nil {
		return nil, err
	}

	result := &Result{
		GroupNames:  c.groupNames,
		Pattern:     c.source,
		Highlighted: html.EscapeString(sample),
		MatchCount:  len(matches),
		Truncated:   truncated,
	}
	if len(matches) == 0 {
		result.Message = noMatchMessage
		return result, nil
	}

	switch {
	case len(c.groupNames) > 0:
		result.Fields = c.namedGroupFields(matches[0])
	case c.numbered > 0:
		result.Fields = c.numberedGroupFields(matches[0])
	default:
		result.Fields = wholeMatchFields(matches)
	}

	result.Spans = spansOf(matches)
	result.Highlighted = Highlight(runes, result.Spans)
	return result, nil
}

func (c *Compiled) namedGroupFields(m *regexp2.Match) []fields.FieldRecord {
	var out []fields.FieldRecord
	seen := make(map[string]bool)
	for _, name := range c.groupNames {
		if seen[name] {
			continue
		}
		seen[name] = true

		g := m.GroupByName(name)
		if g == nil || len(g.Captures) == 0 || g.String() == "" {
			continue
		}
		out = append(out, fields.New(name, g.String(), namedGroupConfidence, fields.SourceCustomRegex, true))
	}
	return out
}

func (c *Compiled) numberedGroupFields(m *regexp2.Match) []fields.FieldRecord {
	var out []fields.FieldRecord
	for i := 1; i <= c.numbered; i++ {
		g := m.GroupByNumber(i)
		if g == nil || len(g.Captures) == 0 || g.String() == "" {
			continue
		}
		out = append(out, fields.New(NumberedGroupName(i), g.String(), numberedGroupConfidence, fields.SourceCustomRegex, true))
	}
	return out
}

func wholeMatchFields(matches []*regexp2.Match) []fields.FieldRecord {
	var out []fields.FieldRecord
	for i, m := range matches {
		value := m.String()
		if value == "" {
			continue
		}
		name := fmt.Sprintf("regex_match_%d", i+1)
		out = append(out, fields.New(name, value, wholeMatchConfidence, fields.SourceCustomRegex, true))
	}
	return out
}

func spansOf(matches []*regexp2.Match) []Span {
	spans := make([]Span, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, Span{Start: m.Index, End: m.Index + m.Length})
	}
	return spans
}

// Highlight HTML-escapes text and wraps every non-empty span in
// HighlightOpen/HighlightClose. Spans overlapping an earlier one are skipped.
func Highlight(text []rune, spans []Span) string {
	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	var b strings.Builder
	pos := 0
	for _, s := range ordered {
		if s.End <= s.Start || s.Start < pos || s.End > len(text) {
			continue
		}
		b.WriteString(html.EscapeString(string(text[pos:s.Start])))
		b.WriteString(HighlightOpen)
		b.WriteString(html.EscapeString(string(text[s.Start:s.End])))
		b.WriteString(HighlightClose)
		pos = s.End
	}
	b.WriteString(html.EscapeString(string(text[pos:])))
	return b.String()
}
