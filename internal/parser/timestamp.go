package parser

import (
	"regexp"
	"strings"
)

// CurrentTime marks a profile that does not extract a timestamp: events are stamped
// with ingestion time. It is never a valid strptime format.
const CurrentTime = "CURRENT_TIME"

// DefaultMaxLookahead is used wherever a format does not fix its own lookahead
const DefaultMaxLookahead = "25"

// TimestampProfile describes where a timestamp sits in a line and how to parse it
type TimestampProfile struct {
	Prefix       string `json:"prefix"`
	Format       string `json:"format"`
	MaxLookahead string `json:"maxLookahead"`
}

// UsesIngestTime reports whether the profile is the CurrentTime sentinel
func (p TimestampProfile) UsesIngestTime() bool {
	return p.Format == CurrentTime
}

// kvTimestampPatterns are tried in order against the first line; an input that
// matches several keeps the earliest entry
var kvTimestampPatterns = []struct {
	fragment string
	regex    *regexp.Regexp
	format   string
}{
	{`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}:\d{2}`, nil, "%d/%m/%Y %H:%M:%S"},
	{`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`, nil, "%Y-%m-%d %H:%M:%S"},
	{`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`, nil, "%Y-%m-%dT%H:%M:%S"},
	{`\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`, nil, "%b %d %H:%M:%S"},
	{`\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2}`, nil, "%d/%b/%Y:%H:%M:%S"},
}

func init() {
	for i := range kvTimestampPatterns {
		kvTimestampPatterns[i].regex = regexp.MustCompile(kvTimestampPatterns[i].fragment)
	}
}

// lineTimestamp is a timestamp found in a key=value line
type lineTimestamp struct {
	value    string
	fragment string
	format   string
	offset   int
}

func findLineTimestamp(line string) (lineTimestamp, bool) {
	for _, tp := range kvTimestampPatterns {
		if loc := tp.regex.FindStringIndex(line); loc != nil {
			return lineTimestamp{value: line[loc[0]:loc[1]], fragment: tp.fragment, format: tp.format, offset: loc[0]}, true
		}
	}
	return lineTimestamp{}, false
}

// ResolveTimestamp derives the timestamp profile for a sample of the given format
func ResolveTimestamp(format Format, sample string) TimestampProfile {
	switch format {
	case FormatApache:
		return TimestampProfile{Prefix: "[", Format: "%d/%b/%Y:%H:%M:%S %z", MaxLookahead: "29"}
	case FormatSyslogStandard:
		return TimestampProfile{Prefix: "^", Format: "%b %d %H:%M:%S", MaxLookahead: "15"}
	case FormatSyslogRFC3164:
		return TimestampProfile{Prefix: `^<\d+>`, Format: "%b %d %H:%M:%S", MaxLookahead: "15"}
	case FormatSyslogRFC5424:
		return TimestampProfile{Prefix: `^<\d+>\d+\s+`, Format: "%Y-%m-%dT%H:%M:%S", MaxLookahead: "29"}
	case FormatJSON:
		return TimestampProfile{Prefix: jsonTimePrefix(sample), Format: "%Y-%m-%dT%H:%M:%S", MaxLookahead: DefaultMaxLookahead}
	case FormatCSV:
		return TimestampProfile{Prefix: "", Format: "%Y-%m-%d %H:%M:%S", MaxLookahead: DefaultMaxLookahead}
	case FormatKeyValue:
		if ts, ok := findLineTimestamp(firstLine(normalizeSample(sample))); ok {
			return TimestampProfile{Prefix: "", Format: ts.format, MaxLookahead: DefaultMaxLookahead}
		}
		return TimestampProfile{Prefix: "", Format: CurrentTime, MaxLookahead: DefaultMaxLookahead}
	default:
		return TimestampProfile{Prefix: "", Format: CurrentTime, MaxLookahead: ""}
	}
}

func jsonTimePrefix(sample string) string {
	line := firstLine(sample)
	switch {
	case strings.Contains(line, `"timestamp"`):
		return `"timestamp":"`
	case strings.Contains(line, `"time"`):
		return `"time":"`
	default:
		return ""
	}
}
