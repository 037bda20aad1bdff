package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

// DefaultParserManager implements the ParserManager interface
type DefaultParserManager struct {
	parsers []LogParser
}

// NewParserManager creates a parser manager with the built-in formats registered
// from most to least specific: a JSON object can look like CSV or key=value under
// weaker checks, so it is tried first and bare key=value last.
func NewParserManager() ParserManager {
	manager := &DefaultParserManager{
		parsers: make([]LogParser, 0, 8),
	}

	manager.RegisterParser(NewJSONParser())
	manager.RegisterParser(NewCSVParser())
	manager.RegisterParser(NewApacheParser())
	for _, format := range SyslogFormats() {
		manager.RegisterParser(NewSyslogParser(format))
	}
	manager.RegisterParser(NewXMLParser())
	manager.RegisterParser(NewKeyValueParser())

	return manager
}

// RegisterParser registers a new log parser
func (m *DefaultParserManager) RegisterParser(parser LogParser) {
	if parser == nil {
		return
	}
	m.parsers = append(m.parsers, parser)
}

// DetectFormat detects the log format from the sample
func (m *DefaultParserManager) DetectFormat(sample string) Format {
	sample = normalizeSample(sample)
	for _, parser := range m.parsers {
		if parser.CanParse(sample) {
			return parser.GetFormat()
		}
	}
	return FormatNone
}

// Extract runs the detection list and returns the first successful extraction.
// A parser that accepts the sample but fails to parse it hands over to the next
// one; when nothing matches the result is an empty FormatNone extraction.
func (m *DefaultParserManager) Extract(sample string, opts Options) *Extraction {
	sample = normalizeSample(sample)

	var warnings []string
	for _, parser := range m.parsers {
		if !parser.CanParse(sample) {
			continue
		}
		ext, err := m.run(parser, sample, opts)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", parser.GetFormat(), err))
			continue
		}
		ext.Timestamp = ResolveTimestamp(ext.Format, sample)
		ext.Warnings = append(warnings, ext.Warnings...)
		return ext
	}

	ext := m.none(sample, opts)
	ext.Timestamp = ResolveTimestamp(FormatNone, sample)
	ext.Warnings = warnings
	return ext
}

// ExtractAs extracts the sample with the parser registered for format
func (m *DefaultParserManager) ExtractAs(format Format, sample string, opts Options) (*Extraction, error) {
	sample = normalizeSample(sample)
	if format == FormatNone {
		return m.none(sample, opts), nil
	}

	parser := m.parserFor(format)
	if parser == nil {
		return nil, fmt.Errorf("no parser registered for format %q", format)
	}
	return m.run(parser, sample, opts)
}

// Synthesize builds the extraction pattern for records under format. Records the
// platform already extracts are left out. Without a known grammar the pattern is
// the generic one, or a key=value combination over the uncovered names when the
// platform has parsed part of the event.
func (m *DefaultParserManager) Synthesize(format Format, records []fields.FieldRecord, sample string, opts Options) string {
	sample = normalizeSample(sample)
	records = withoutCovered(records, opts.covered())
	pattern, _ := render(m.synthesize(format, records, sample, opts))
	return pattern
}

func (m *DefaultParserManager) synthesize(format Format, records []fields.FieldRecord, sample string, opts Options) *regex.Pattern {
	if parser := m.parserFor(format); parser != nil {
		return parser.Synthesize(sample, records)
	}
	if len(opts.covered()) > 0 {
		return keyValueCombination(records)
	}
	return regex.Generic(records)
}

// GetSupportedFormats returns the formats in detection order
func (m *DefaultParserManager) GetSupportedFormats() []Format {
	formats := make([]Format, 0, len(m.parsers)+1)
	for _, parser := range m.parsers {
		formats = append(formats, parser.GetFormat())
	}
	return append(formats, FormatNone)
}

func (m *DefaultParserManager) run(parser LogParser, sample string, opts Options) (*Extraction, error) {
	ext, err := parser.Parse(sample)
	if err != nil {
		return nil, err
	}

	ext.Format = parser.GetFormat()
	ext.Sourcetype = ext.Format.Sourcetype()
	ext.Warnings = append(ext.Warnings, staleCovered(ext.Fields, opts.Existing)...)
	ext.Fields = withoutCovered(ext.Fields, opts.covered())

	ext.Pattern, ext.Groups = render(parser.Synthesize(sample, ext.Fields))
	return ext, nil
}

// render serializes a synthesized pattern; one without capture groups extracts
// nothing and is reported as empty
func render(pattern *regex.Pattern) (string, []regex.Group) {
	if pattern == nil || pattern.Empty() {
		return "", nil
	}
	return pattern.String(), pattern.Groups()
}

func (m *DefaultParserManager) none(sample string, opts Options) *Extraction {
	return &Extraction{
		Format:     FormatNone,
		Sourcetype: FormatNone.Sourcetype(),
		Fields:     []fields.FieldRecord{},
	}
}

func (m *DefaultParserManager) parserFor(format Format) LogParser {
	for _, parser := range m.parsers {
		if parser.GetFormat() == format {
			return parser
		}
	}
	return nil
}

// staleCovered reports platform fields whose value disagrees with what the
// local grammar reads from the sample; those stay uncaptured but need a look
func staleCovered(parsed, existing []fields.FieldRecord) []string {
	local := make(map[string]string, len(parsed))
	for _, r := range parsed {
		if _, ok := local[r.Name]; !ok {
			local[r.Name] = r.Value
		}
	}

	var warnings []string
	for _, r := range fields.BySource(existing, fields.SourceSplunkExisting) {
		value, ok := local[r.Name]
		if !ok || r.Value == "" || r.Value == value {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("covered field %q reads %q from the sample but the platform reports %q", r.Name, value, r.Value))
	}
	return warnings
}

func withoutCovered(records []fields.FieldRecord, covered map[string]bool) []fields.FieldRecord {
	out := make([]fields.FieldRecord, 0, len(records))
	for _, r := range records {
		if r.Source == fields.SourceSplunkExisting || covered[r.Name] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// keyValueCombination is `^.*\ba=(?<a>...).*\bb=(?<b>...).*$` over records
func keyValueCombination(records []fields.FieldRecord) *regex.Pattern {
	p := regex.NewPattern()
	if len(records) == 0 {
		return p
	}
	p.Literal("^.*")
	for i, r := range records {
		if i > 0 {
			p.Literal(".*")
		}
		p.KeyValue(r.Name, r, false)
	}
	p.Literal(".*$")
	return p
}

// normalizeSample replaces invalid UTF-8 and drops carriage returns
func normalizeSample(sample string) string {
	if !utf8.ValidString(sample) {
		sample = strings.ToValidUTF8(sample, "�")
	}
	return strings.ReplaceAll(sample, "\r\n", "\n")
}

// sampleLines returns the non-blank lines of sample, trimmed
func sampleLines(sample string) []string {
	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// firstLine returns the first non-blank line of sample
func firstLine(sample string) string {
	for _, line := range strings.Split(sample, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// dedupeFirst keeps the first record for every name
func dedupeFirst(records []fields.FieldRecord) []fields.FieldRecord {
	seen := make(map[string]bool, len(records))
	out := make([]fields.FieldRecord, 0, len(records))
	for _, r := range records {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		out = append(out, r)
	}
	return out
}
