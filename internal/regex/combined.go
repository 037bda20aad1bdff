package regex

import (
	"log-onboarding-engine/internal/fields"
)

const combinedConfidence = 0.9

// PreviewMatch is one match of a combined pattern: its named groups, or the raw
// matched text when the pattern has none.
type PreviewMatch struct {
	Groups map[string]string `json:"groups,omitempty"`
	Raw    string            `json:"raw,omitempty"`
	Span   Span              `json:"span"`
}

// Preview lists every match of pattern across sample
func Preview(sample, pattern string, opts Options) ([]PreviewMatch, error) {
	compiled, err := Compile(pattern, opts)
	if err != nil {
		return nil, err
	}

	matches, _, err := compiled.FindAll([]rune(sample), opts.MaxMatches)
	if err != nil {
		return nil, err
	}

	previews := make([]PreviewMatch, 0, len(matches))
	for _, m := range matches {
		p := PreviewMatch{Span: Span{Start: m.Index, End: m.Index + m.Length}}
		if len(compiled.groupNames) > 0 {
			p.Groups = make(map[string]string, len(compiled.groupNames))
			for _, name := range compiled.groupNames {
				if g := m.GroupByName(name); g != nil && len(g.Captures) > 0 {
					p.Groups[name] = g.String()
				}
			}
		} else {
			if m.Length == 0 {
				continue
			}
			p.Raw = m.String()
		}
		previews = append(previews, p)
	}
	return previews, nil
}

// ApplyCombined runs a combined extraction pattern, typically one proposed by the AI
// detector in either (?P<name>) or (?<name>) syntax, and returns one field per named
// group that participated in the first match, tagged with provenance.
func ApplyCombined(sample, pattern string, provenance fields.Provenance, opts Options) ([]fields.FieldRecord, error) {
	compiled, err := Compile(pattern, opts)
	if err != nil {
		return nil, err
	}

	matches, _, err := compiled.FindAll([]rune(sample), 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	var out []fields.FieldRecord
	seen := make(map[string]bool)
	for _, name := range compiled.groupNames {
		if seen[name] {
			continue
		}
		seen[name] = true
		g := matches[0].GroupByName(name)
		if g == nil || len(g.Captures) == 0 {
			continue
		}
		out = append(out, fields.New(name, g.String(), combinedConfidence, provenance, true))
	}
	return out, nil
}

// FirstValue returns the value a single-field pattern captures on its first match:
// the group called name if present, otherwise group 1. An empty string means no match.
func FirstValue(sample, pattern, name string, opts Options) (string, error) {
	compiled, err := Compile(pattern, opts)
	if err != nil {
		return "", err
	}

	matches, _, err := compiled.FindAll([]rune(sample), 1)
	if err != nil || len(matches) == 0 {
		return "", err
	}

	m := matches[0]
	if g := m.GroupByName(name); g != nil && len(g.Captures) > 0 && g.String() != "" {
		return g.String(), nil
	}
	if g := m.GroupByNumber(1); g != nil && len(g.Captures) > 0 {
		return g.String(), nil
	}
	return "", nil
}
