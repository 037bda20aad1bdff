package parser

import (
	"regexp"
	"strings"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

const apacheConfidence = 0.95

// apacheLineRegex requires a leading dotted quad, a bracketed timestamp, a quoted
// request, a status and a byte count. The referer/user-agent pair of the combined
// format is optional.
var apacheLineRegex = regexp.MustCompile(
	`^(?P<clientip>\d+\.\d+\.\d+\.\d+)\s+(?P<ident>\S+)\s+(?P<auth>\S+)\s+` +
		`\[(?P<timestamp>[^\]]+)\]\s+"(?P<request>[^"]+)"\s+(?P<status>\d+)\s+(?P<bytes>\d+|-)` +
		`(?:\s+"(?P<referer>[^"]*)"\s+"(?P<useragent>[^"]*)")?`)

var apacheBaseFields = []string{"clientip", "ident", "auth", "timestamp", "request", "status", "bytes"}

// ApacheParser handles Apache/NCSA Common and Combined Log Format lines
type ApacheParser struct {
	pattern LogPattern
}

// LogPattern is a named, compiled line grammar
type LogPattern struct {
	Name        string
	Regex       *regexp.Regexp
	FieldNames  []string
	Description string
}

// NewApacheParser creates a new Apache access log parser
func NewApacheParser() LogParser {
	return &ApacheParser{
		pattern: LogPattern{
			Name:        "Apache Log Format",
			Regex:       apacheLineRegex,
			FieldNames:  apacheBaseFields,
			Description: "Apache/Nginx common or combined access log",
		},
	}
}

// CanParse matches the first line against the access log grammar
func (p *ApacheParser) CanParse(sample string) bool {
	return p.pattern.Regex.MatchString(firstLine(sample))
}

// Parse emits the seven base fields, then method/uri/protocol when the request has
// at least three tokens, then referer/useragent for the combined format
func (p *ApacheParser) Parse(sample string) (*Extraction, error) {
	line := firstLine(sample)
	loc := p.pattern.Regex.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, errNotParsable(FormatApache)
	}
	group := func(name string) (string, bool) {
		i := p.pattern.Regex.SubexpIndex(name)
		if loc[2*i] < 0 {
			return "", false
		}
		return line[loc[2*i]:loc[2*i+1]], true
	}

	var records []fields.FieldRecord
	add := func(name, value string) {
		records = append(records, fields.New(name, value, apacheConfidence, fields.SourceAutoDetect, true))
	}
	for _, name := range p.pattern.FieldNames {
		value, _ := group(name)
		add(name, value)
	}

	request, _ := group("request")
	if parts := strings.Fields(request); len(parts) >= 3 {
		add("method", parts[0])
		add("uri", parts[1])
		add("protocol", parts[2])
	}

	if referer, combined := group("referer"); combined {
		useragent, _ := group("useragent")
		add("referer", referer)
		add("useragent", useragent)
	}

	return &Extraction{Fields: records}, nil
}

// Synthesize emits the positional access log pattern. Fields that have no record
// are matched without a capture group so the remaining groups keep their places.
func (p *ApacheParser) Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern {
	pattern := regex.NewPattern()
	if len(records) == 0 {
		return pattern
	}

	wanted := fields.NameSet(records)
	slot := func(name, fragment string) {
		if wanted[name] {
			pattern.Capture(name, fragment)
			return
		}
		pattern.Literal("(?:" + fragment + ")")
	}

	pattern.Literal("^")
	slot("clientip", regex.IPFragment)
	pattern.Literal(`\s+`)
	slot("ident", `[^\s]+`)
	pattern.Literal(`\s+`)
	slot("auth", `[^\s]+`)
	pattern.Literal(`\s+\[`)
	slot("timestamp", regex.Fragment(fields.TypeTimestamp, regex.ContextApache))
	pattern.Literal(`\]\s+"`)

	if wanted["method"] || wanted["uri"] || wanted["protocol"] {
		request := pattern.Sub()
		requestSlot := func(name, fragment string) {
			if wanted[name] {
				request.Capture(name, fragment)
				return
			}
			request.Literal("(?:" + fragment + ")")
		}
		requestSlot("method", `\S+`)
		request.Literal(`\s+`)
		requestSlot("uri", `\S+`)
		request.Literal(`\s+`)
		requestSlot("protocol", `[^\s"]+`)
		request.Literal(`[^"]*`)

		name := ""
		if wanted["request"] {
			name = "request"
		}
		pattern.Nest(name, request)
	} else {
		slot("request", `[^"]*`)
	}

	pattern.Literal(`"\s+`)
	slot("status", `\d{3}`)
	pattern.Literal(`\s+`)
	slot("bytes", `\d+|-`)

	pattern.Literal(`(?:\s+"`)
	slot("referer", `[^"]*`)
	pattern.Literal(`"\s+"`)
	slot("useragent", `[^"]*`)
	pattern.Literal(`")?`)
	return pattern
}

// GetFormat returns the format name
func (p *ApacheParser) GetFormat() Format {
	return FormatApache
}
