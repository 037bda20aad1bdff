package regex

import (
	"regexp"

	"log-onboarding-engine/internal/fields"
)

const (
	IPFragment    = `\d{1,3}(?:\.\d{1,3}){3}`
	EmailFragment = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
)

// Context is the surrounding syntax a captured value sits in
type Context int

const (
	ContextGeneric Context = iota
	ContextCSV
	ContextJSON
	ContextApache
)

// Fragment returns the sub-pattern used to capture a value of type t in context ctx
func Fragment(t fields.FieldType, ctx Context) string {
	switch t {
	case fields.TypeIP:
		return IPFragment
	case fields.TypeEmail:
		return EmailFragment
	case fields.TypeTimestamp:
		switch ctx {
		case ContextApache:
			return `[^\]]+`
		case ContextJSON:
			return `[^"]+`
		case ContextCSV:
			return `[^,]+`
		}
	}

	switch ctx {
	case ContextCSV:
		return `[^,]*`
	case ContextJSON:
		return `[^"]*`
	default:
		return `[^\s]*`
	}
}

// Quote escapes text for literal use inside a pattern
func Quote(text string) string {
	return regexp.QuoteMeta(text)
}

// KeyValue appends `key=(?<name>...)` to p, where key is the text as it appears in
// the line and the group is named after record. Quoted values get optional quotes
// outside the group so the captured value never includes them.
func (p *Pattern) KeyValue(key string, record fields.FieldRecord, quoted bool) string {
	p.Literal(`\b` + Quote(key) + "=")
	if quoted {
		p.Literal(`"?`)
		name := p.Capture(record.Name, `[^"\s]*`)
		p.Literal(`"?`)
		return name
	}
	return p.Capture(record.Name, Fragment(record.Type, ContextGeneric))
}

// Generic builds the fallback extraction `^.*(?<a>...).*(?<b>...).*$` for fields
// whose position in the line is unknown.
func Generic(records []fields.FieldRecord) *Pattern {
	p := NewPattern()
	if len(records) == 0 {
		return p
	}
	p.Literal("^.*")
	for i, r := range records {
		if i > 0 {
			p.Literal(".*")
		}
		p.Capture(r.Name, Fragment(r.Type, ContextGeneric))
	}
	p.Literal(".*$")
	return p
}
