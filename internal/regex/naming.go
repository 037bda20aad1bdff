package regex

import (
	"fmt"
	"strings"
)

// CommonFieldNames are assigned by position to unnamed capture groups
var CommonFieldNames = []string{
	"clientip", "ident", "auth", "timestamp", "request", "method", "uri", "protocol",
	"status", "bytes", "referer", "useragent", "req_time", "cookie", "respTime", "version",
	"host", "port", "path", "query", "fragment", "scheme", "user", "password",
}

// NumberedGroupName returns the name for the n-th (1-based) unnamed group
func NumberedGroupName(n int) string {
	if n >= 1 && n <= len(CommonFieldNames) {
		return CommonFieldNames[n-1]
	}
	return fmt.Sprintf("field_%d", n)
}

// SanitizeName turns an arbitrary field name into a valid group identifier:
// letters, digits and underscores only, never starting with a digit.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if s == "" {
		return "field"
	}
	if s[0] >= '0' && s[0] <= '9' {
		return "f_" + s
	}
	return s
}

// Namer hands out sanitized group names, suffixing repeats with _2, _3, ...
type Namer struct {
	used map[string]bool
}

// NewNamer returns a namer with nothing reserved
func NewNamer() *Namer {
	return &Namer{used: make(map[string]bool)}
}

// Reserve marks names as taken without sanitizing them
func (n *Namer) Reserve(names ...string) {
	for _, name := range names {
		n.used[name] = true
	}
}

// Unique returns a sanitized form of name not handed out before
func (n *Namer) Unique(name string) string {
	base := SanitizeName(name)
	candidate := base
	for i := 2; n.used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	n.used[candidate] = true
	return candidate
}

// NameNumberedGroups converts every unnamed capture group into a named one, taking
// names from CommonFieldNames by position. Groups that already carry a name pass
// through unchanged and keep their names reserved. The rewritten pattern and the
// names assigned to the numbered groups are returned.
func NameNumberedGroups(pattern string) (string, []string) {
	namer := NewNamer()
	namer.Reserve(GroupNames(pattern)...)

	var assigned []string
	position := 0
	named := rewriteGroups(pattern, func(tok groupToken) string {
		if tok.kind != groupNumbered {
			return pattern[tok.start:tok.end]
		}
		position++
		name := namer.Unique(NumberedGroupName(position))
		assigned = append(assigned, name)
		return DialectJS.open(name)
	})
	return named, assigned
}
