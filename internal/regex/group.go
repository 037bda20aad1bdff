package regex

import (
	"strings"
)

// Dialect selects the named-group syntax a pattern is rendered in
type Dialect int

const (
	// DialectJS writes named groups as (?<name>...), understood by Go, JavaScript, .NET and PCRE.
	DialectJS Dialect = iota
	// DialectPCRE2 writes named groups as (?P<name>...), the Python/SPL2 spelling.
	DialectPCRE2
)

func (d Dialect) open(name string) string {
	if d == DialectPCRE2 {
		return "(?P<" + name + ">"
	}
	return "(?<" + name + ">"
}

type groupKind int

const (
	groupNumbered groupKind = iota
	groupNamed
	groupOther
)

// groupToken is one opening parenthesis found in a pattern. pattern[start:end] is the
// opener text, e.g. "(", "(?:", "(?<host>" or "(?P<host>".
type groupToken struct {
	start int
	end   int
	kind  groupKind
	name  string
}

// scanGroups walks a pattern and returns every group opener in source order. Escaped
// characters and character classes are skipped so "\(" and "[(]" are not groups.
func scanGroups(pattern string) []groupToken {
	var tokens []groupToken
	inClass := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			// a ']' right after '[' or '[^' is a literal member
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				i++
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
			}
		case c == '(':
			tokens = append(tokens, classifyOpener(pattern, i))
		}
	}
	return tokens
}

func classifyOpener(pattern string, i int) groupToken {
	rest := pattern[i+1:]
	if !strings.HasPrefix(rest, "?") {
		return groupToken{start: i, end: i + 1, kind: groupNumbered}
	}

	var nameStart int
	var closer byte
	switch {
	case strings.HasPrefix(rest, "?P<"):
		nameStart, closer = i+4, '>'
	case strings.HasPrefix(rest, "?<") && len(rest) > 2 && rest[2] != '=' && rest[2] != '!':
		nameStart, closer = i+3, '>'
	case strings.HasPrefix(rest, "?'"):
		nameStart, closer = i+3, '\''
	default:
		return groupToken{start: i, end: i + 2, kind: groupOther}
	}

	nameEnd := strings.IndexByte(pattern[nameStart:], closer)
	if nameEnd < 0 {
		return groupToken{start: i, end: i + 2, kind: groupOther}
	}
	return groupToken{
		start: i,
		end:   nameStart + nameEnd + 1,
		kind:  groupNamed,
		name:  pattern[nameStart : nameStart+nameEnd],
	}
}

// rewriteGroups replaces every group opener with the text returned by fn
func rewriteGroups(pattern string, fn func(groupToken) string) string {
	tokens := scanGroups(pattern)
	if len(tokens) == 0 {
		return pattern
	}

	var b strings.Builder
	last := 0
	for _, tok := range tokens {
		b.WriteString(pattern[last:tok.start])
		b.WriteString(fn(tok))
		last = tok.end
	}
	b.WriteString(pattern[last:])
	return b.String()
}

// Render rewrites every named group of pattern into the given dialect
func Render(pattern string, d Dialect) string {
	return rewriteGroups(pattern, func(tok groupToken) string {
		if tok.kind == groupNamed {
			return d.open(tok.name)
		}
		return pattern[tok.start:tok.end]
	})
}

// ToPCRE2 renders named groups as (?P<name>...)
func ToPCRE2(pattern string) string {
	return Render(pattern, DialectPCRE2)
}

// ToJS renders named groups as (?<name>...)
func ToJS(pattern string) string {
	return Render(pattern, DialectJS)
}

// GroupNames returns the named groups of pattern in source order
func GroupNames(pattern string) []string {
	var names []string
	for _, tok := range scanGroups(pattern) {
		if tok.kind == groupNamed {
			names = append(names, tok.name)
		}
	}
	return names
}

// CountNumberedGroups returns how many plain capturing groups pattern has
func CountNumberedGroups(pattern string) int {
	n := 0
	for _, tok := range scanGroups(pattern) {
		if tok.kind == groupNumbered {
			n++
		}
	}
	return n
}

// Group is one capture group: a field name bound to a pattern fragment
type Group struct {
	Name     string `json:"name"`
	Fragment string `json:"fragment"`
}

// Pattern is a regular expression kept as literal text interleaved with capture
// groups, so it can be rendered in any dialect without string surgery.
type Pattern struct {
	parts []patternPart
	names *Namer
}

type patternPart struct {
	literal string
	group   *Group

	// nested is a sub-pattern wrapped in a group named nestName, or in a
	// non-capturing group when nestName is empty
	nested   *Pattern
	nestName string
}

// NewPattern starts an empty pattern whose group names are kept unique
func NewPattern() *Pattern {
	return &Pattern{names: NewNamer()}
}

// Literal appends raw regex text
func (p *Pattern) Literal(text string) *Pattern {
	p.parts = append(p.parts, patternPart{literal: text})
	return p
}

// Capture appends a named group and returns the name actually used, which differs
// from name when it had to be sanitized or disambiguated.
func (p *Pattern) Capture(name, fragment string) string {
	unique := p.names.Unique(name)
	p.parts = append(p.parts, patternPart{group: &Group{Name: unique, Fragment: fragment}})
	return unique
}

// Sub starts an empty pattern sharing p's group names, to be added with Nest
func (p *Pattern) Sub() *Pattern {
	return &Pattern{names: p.names}
}

// Nest appends inner wrapped in a group called name, or in a non-capturing group
// when name is empty. It returns the name actually used.
func (p *Pattern) Nest(name string, inner *Pattern) string {
	if name != "" {
		name = p.names.Unique(name)
	}
	p.parts = append(p.parts, patternPart{nested: inner, nestName: name})
	return name
}

// Groups returns the capture groups in the order their openers appear
func (p *Pattern) Groups() []Group {
	var groups []Group
	for _, part := range p.parts {
		switch {
		case part.group != nil:
			groups = append(groups, *part.group)
		case part.nested != nil:
			if part.nestName != "" {
				groups = append(groups, Group{Name: part.nestName, Fragment: part.nested.String()})
			}
			groups = append(groups, part.nested.Groups()...)
		}
	}
	return groups
}

// Empty reports whether the pattern has no capture groups
func (p *Pattern) Empty() bool {
	return len(p.Groups()) == 0
}

// Render serializes the pattern in dialect d
func (p *Pattern) Render(d Dialect) string {
	var b strings.Builder
	for _, part := range p.parts {
		switch {
		case part.group != nil:
			b.WriteString(d.open(part.group.Name))
			b.WriteString(part.group.Fragment)
			b.WriteByte(')')
		case part.nested != nil:
			if part.nestName != "" {
				b.WriteString(d.open(part.nestName))
			} else {
				b.WriteString("(?:")
			}
			b.WriteString(part.nested.Render(d))
			b.WriteByte(')')
		default:
			b.WriteString(part.literal)
		}
	}
	return b.String()
}

func (p *Pattern) String() string {
	return p.Render(DialectJS)
}
