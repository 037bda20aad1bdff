package parser

import (
	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

// Format is the structural grammar a sample was classified as
type Format string

const (
	FormatJSON           Format = "json"
	FormatCSV            Format = "csv"
	FormatApache         Format = "apache_clf"
	FormatSyslogStandard Format = "syslog_standard"
	FormatSyslogRFC3164  Format = "syslog_rfc3164"
	FormatSyslogRFC5424  Format = "syslog_rfc5424"
	FormatKeyValue       Format = "keyvalue"
	FormatXML            Format = "xml"
	FormatNone           Format = "none"
)

// Sourcetype hints used when the caller does not supply one
const (
	SourcetypeApache = "apache_access"
	SourcetypeJSON   = "json_log"
	SourcetypeCSV    = "csv_log"
	SourcetypeKV     = "kv_log"
	SourcetypeSyslog = "syslog"
	SourcetypeXML    = "xml_log"
	SourcetypeSample = "sample_log"
	SourcetypeCustom = "custom_log"
)

// Sourcetype returns the default sourcetype for the format
func (f Format) Sourcetype() string {
	switch f {
	case FormatJSON:
		return SourcetypeJSON
	case FormatCSV:
		return SourcetypeCSV
	case FormatApache:
		return SourcetypeApache
	case FormatSyslogStandard, FormatSyslogRFC3164, FormatSyslogRFC5424:
		return SourcetypeSyslog
	case FormatKeyValue:
		return SourcetypeKV
	case FormatXML:
		return SourcetypeXML
	default:
		return SourcetypeSample
	}
}

// LogParser is one entry of the ordered detection list: a cheap predicate, the
// extractor it guards and the regex synthesis for the same grammar.
type LogParser interface {
	// CanParse reports whether the sample belongs to this grammar. When it returns
	// true, Parse must not fail for structural reasons.
	CanParse(sample string) bool

	// Parse extracts auto_detect fields from the sample
	Parse(sample string) (*Extraction, error)

	// Synthesize builds one extraction pattern that captures exactly the given fields
	Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern

	// GetFormat returns the format this parser handles
	GetFormat() Format
}

// Options carries what the caller already knows about the sample
type Options struct {
	// Existing are fields the platform already extracts (provenance splunk_existing).
	// They are never re-extracted and get no capture group.
	Existing []fields.FieldRecord
}

func (o Options) covered() map[string]bool {
	return fields.NameSet(fields.BySource(o.Existing, fields.SourceSplunkExisting))
}

// Extraction is the result of one detection and extraction pass
type Extraction struct {
	Format     Format               `json:"format"`
	Sourcetype string               `json:"sourcetype"`
	Fields     []fields.FieldRecord `json:"fields"`
	Pattern    string               `json:"pattern"`
	Groups     []regex.Group        `json:"groups,omitempty"`
	Timestamp  TimestampProfile     `json:"timestamp"`
	Warnings   []string             `json:"warnings,omitempty"`
}

// ParserManager runs the ordered detection list
type ParserManager interface {
	// RegisterParser appends a parser; earlier registrations take precedence
	RegisterParser(parser LogParser)

	// DetectFormat returns the format of the first parser whose predicate accepts the sample
	DetectFormat(sample string) Format

	// Extract detects, extracts, synthesizes and resolves the timestamp profile,
	// falling through to weaker formats when a parser fails
	Extract(sample string, opts Options) *Extraction

	// ExtractAs extracts with an already chosen format, without timestamp resolution
	ExtractAs(format Format, sample string, opts Options) (*Extraction, error)

	// Synthesize builds the extraction pattern for records under format
	Synthesize(format Format, records []fields.FieldRecord, sample string, opts Options) string

	// GetSupportedFormats lists the formats in detection order
	GetSupportedFormats() []Format
}
