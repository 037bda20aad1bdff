package parser

import (
	"regexp"
	"strings"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

const xmlConfidence = 0.8

type xmlShape int

const (
	xmlSimple xmlShape = iota
	xmlSelfClosing
	xmlWithAttributes
	xmlCDATA
)

// xmlPatterns are tried in order over the whole sample; the first one with at least
// one match decides the field set
var xmlPatterns = []struct {
	shape xmlShape
	regex *regexp.Regexp
}{
	{xmlSimple, regexp.MustCompile(`<(\w+)>([^<]+)</\w+>`)},
	{xmlSelfClosing, regexp.MustCompile(`<(\w+)\s+([^>]+?)\s*/>`)},
	{xmlWithAttributes, regexp.MustCompile(`<(\w+)\s+([^>]+)>([^<]+)</\w+>`)},
	{xmlCDATA, regexp.MustCompile(`(?s)<(\w+)><!\[CDATA\[(.*?)\]\]></\w+>`)},
}

var xmlAttributeRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// xmlField is a field found in an XML sample and where it sits
type xmlField struct {
	name  string
	value string
	tag   string
	attr  string
	shape xmlShape
	elem  int
}

// XMLParser handles samples of XML elements
type XMLParser struct{}

// NewXMLParser creates a new XML parser
func NewXMLParser() LogParser {
	return &XMLParser{}
}

// CanParse requires a leading '<' and at least one element any pattern recognizes
func (p *XMLParser) CanParse(sample string) bool {
	return len(p.scan(sample)) > 0
}

// Parse emits one field per element, and one per attribute named tag_attr
func (p *XMLParser) Parse(sample string) (*Extraction, error) {
	found := p.scan(sample)
	if len(found) == 0 {
		return nil, errNotParsable(FormatXML)
	}

	records := make([]fields.FieldRecord, 0, len(found))
	for _, f := range found {
		records = append(records, fields.New(f.name, f.value, xmlConfidence, fields.SourceAutoDetect, true))
	}
	return &Extraction{Fields: dedupeFirst(records)}, nil
}

// Synthesize emits one group per element or attribute joined by lazy wildcards.
// XML spans lines and elements repeat, so the pattern is not anchored.
func (p *XMLParser) Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern {
	pattern := regex.NewPattern()
	wanted := fields.NameSet(records)

	first := true
	open := false // the last group left the start tag of its element unclosed
	prev := -1
	emitted := make(map[string]bool)
	for _, f := range p.scan(sample) {
		if !wanted[f.name] || emitted[f.name] {
			continue
		}
		emitted[f.name] = true

		inTag := open && f.elem == prev
		switch {
		case first:
			pattern.Literal("(?s)")
			first = false
		case !inTag:
			pattern.Literal(".*?")
		}

		tag := regex.Quote(f.tag)
		start := `<` + tag + `\b`
		if inTag {
			start = ""
		}
		open = false
		switch {
		case f.attr != "":
			pattern.Literal(start + `[^>]*\b` + regex.Quote(f.attr) + `="`)
			pattern.Capture(f.name, `[^"]*`)
			pattern.Literal(`"`)
			open = true
		case f.shape == xmlSelfClosing:
			pattern.Literal(`<` + tag + `\s+`)
			pattern.Capture(f.name, `[^>]*?`)
			pattern.Literal(`\s*/>`)
		case f.shape == xmlCDATA:
			pattern.Literal(`<` + tag + `><!\[CDATA\[`)
			pattern.Capture(f.name, `.*?`)
			pattern.Literal(`\]\]></` + tag + `>`)
		case f.shape == xmlWithAttributes:
			pattern.Literal(start + `[^>]*>`)
			pattern.Capture(f.name, `[^<]*`)
			pattern.Literal(`</` + tag + `>`)
		default:
			pattern.Literal(`<` + tag + `>`)
			pattern.Capture(f.name, `[^<]*`)
			pattern.Literal(`</` + tag + `>`)
		}
		prev = f.elem
	}
	return pattern
}

// GetFormat returns the format name
func (p *XMLParser) GetFormat() Format {
	return FormatXML
}

func (p *XMLParser) scan(sample string) []xmlField {
	trimmed := strings.TrimSpace(sample)
	if !strings.HasPrefix(trimmed, "<") {
		return nil
	}

	for _, xp := range xmlPatterns {
		matches := xp.regex.FindAllStringSubmatch(trimmed, -1)
		if len(matches) == 0 {
			continue
		}

		var found []xmlField
		for elem, m := range matches {
			tag := m[1]
			switch xp.shape {
			case xmlSelfClosing:
				attrs := xmlAttributeRegex.FindAllStringSubmatch(m[2], -1)
				if len(attrs) == 0 {
					found = append(found, xmlField{name: tag, value: strings.TrimSpace(m[2]), tag: tag, shape: xp.shape, elem: elem})
				}
				for _, a := range attrs {
					found = append(found, xmlField{name: tag + "_" + a[1], value: a[2], tag: tag, attr: a[1], shape: xp.shape, elem: elem})
				}
			case xmlWithAttributes:
				for _, a := range xmlAttributeRegex.FindAllStringSubmatch(m[2], -1) {
					found = append(found, xmlField{name: tag + "_" + a[1], value: a[2], tag: tag, attr: a[1], shape: xp.shape, elem: elem})
				}
				found = append(found, xmlField{name: tag, value: m[3], tag: tag, shape: xp.shape, elem: elem})
			default:
				found = append(found, xmlField{name: tag, value: m[2], tag: tag, shape: xp.shape, elem: elem})
			}
		}
		return found
	}
	return nil
}
