package parser

import (
	"regexp"
	"sort"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

const (
	syslogConfidence        = 0.85
	syslogMessageConfidence = 0.75

	bsdTimestamp = `\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`
	isoTimestamp = `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?`
)

// syslogField is one positional part of a syslog line
type syslogField struct {
	name     string
	fragment string
}

// syslogVariant is one syslog grammar: its fields in line order and the separators
// between them. The compiled line regex is built from the same table.
type syslogVariant struct {
	format Format
	prefix string
	parts  []syslogField
	seps   []string
	regex  *regexp.Regexp
}

// syslogGrammars are tried in this order; the first match wins
var syslogGrammars = buildSyslogVariants()

func buildSyslogVariants() []*syslogVariant {
	variants := []*syslogVariant{
		{
			format: FormatSyslogStandard,
			prefix: "",
			parts: []syslogField{
				{"timestamp", bsdTimestamp}, {"host", `\S+`}, {"message", `.*`},
			},
			seps: []string{`\s+`, `\s+`},
		},
		{
			format: FormatSyslogRFC3164,
			prefix: "<",
			parts: []syslogField{
				{"priority", `\d+`}, {"timestamp", bsdTimestamp}, {"host", `\S+`}, {"message", `.*`},
			},
			seps: []string{">", `\s+`, `\s+`},
		},
		{
			format: FormatSyslogRFC5424,
			prefix: "<",
			parts: []syslogField{
				{"priority", `\d+`}, {"version", `\d+`}, {"timestamp", isoTimestamp}, {"host", `\S+`},
				{"app_name", `\S+`}, {"proc_id", `\S+`}, {"msg_id", `\S+`}, {"message", `.*`},
			},
			seps: []string{">", `\s+`, `\s+`, `\s+`, `\s+`, `\s+`, `\s+`},
		},
	}

	for _, v := range variants {
		v.regex = regexp.MustCompile(v.render(nil).Render(regex.DialectJS))
	}
	return variants
}

// render builds the line pattern. With wanted nil every part is captured; otherwise
// only wanted parts are, and the message part embeds groups for the pairs.
func (v *syslogVariant) render(wanted map[string]bool, pairs ...messagePair) *regex.Pattern {
	p := regex.NewPattern()
	p.Literal("^" + regexp.QuoteMeta(v.prefix))
	for i, part := range v.parts {
		if i > 0 {
			p.Literal(v.seps[i-1])
		}
		capture := wanted == nil || wanted[part.name]
		switch {
		case part.name == "message" && len(pairs) > 0:
			inner := p.Sub()
			inner.Literal(".*?")
			for j, pair := range pairs {
				if j > 0 {
					inner.Literal(".*?")
				}
				inner.Literal(`\b` + regex.Quote(pair.key) + pair.sep + `"?`)
				inner.Capture(pair.name, `[^"\s]+`)
				inner.Literal(`"?`)
			}
			inner.Literal(".*")
			name := ""
			if capture {
				name = part.name
			}
			p.Nest(name, inner)
		case capture:
			p.Capture(part.name, part.fragment)
		default:
			p.Literal("(?:" + part.fragment + ")")
		}
	}
	p.Literal("$")
	return p
}

// messagePair is a key/value found inside a syslog message. name is the field
// and group name derived from key.
type messagePair struct {
	name   string
	key    string
	value  string
	sep    string
	offset int
	end    int
}

// messagePairRegexes are tried in order: key=value, key: value, key = value.
// Each captures the key and either a quoted or a bare value.
var messagePairRegexes = []struct {
	regex *regexp.Regexp
	sep   string
}{
	{regexp.MustCompile(`(\w+)=(?:"([^"\s]+)"|([^"\s]+))`), `=`},
	{regexp.MustCompile(`(\w+):\s*(?:"([^"\s]+)"|([^"\s]+))`), `:\s*`},
	{regexp.MustCompile(`(\w+)\s*=\s*(?:"([^"\s]+)"|([^"\s]+))`), `\s*=\s*`},
}

// messagePairs finds key/value pairs in message; a name seen by an earlier regex
// or earlier in the message is not reported again. All-digit keys are clock or
// counter fragments such as the 10 of 10:31:45, not names.
func messagePairs(message string) []messagePair {
	var pairs []messagePair
	seen := make(map[string]bool)
	for _, kv := range messagePairRegexes {
		for _, m := range kv.regex.FindAllStringSubmatchIndex(message, -1) {
			key := message[m[2]:m[3]]
			if allDigits(key) {
				continue
			}
			name := regex.SanitizeName(key)
			if seen[name] {
				continue
			}
			seen[name] = true

			value := ""
			if m[4] >= 0 {
				value = message[m[4]:m[5]]
			} else if m[6] >= 0 {
				value = message[m[6]:m[7]]
			}
			pairs = append(pairs, messagePair{name: name, key: key, value: value, sep: kv.sep, offset: m[0], end: m[1]})
		}
	}
	return pairs
}

// fieldPairs selects the message pairs that become fields, in line order. A pair
// named like a positional part, or overlapping a pair found before it, is left out
// since it could not get a group of its own.
func (v *syslogVariant) fieldPairs(message string) []messagePair {
	positional := make(map[string]bool, len(v.parts))
	for _, part := range v.parts {
		positional[part.name] = true
	}

	var pairs []messagePair
	for _, pair := range messagePairs(message) {
		if positional[pair.name] || overlapsAny(pairs, pair) {
			continue
		}
		pairs = append(pairs, pair)
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].offset < pairs[j].offset
	})
	return pairs
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// SyslogParser handles one syslog variant
type SyslogParser struct {
	variant *syslogVariant
}

// NewSyslogParser creates a parser for one syslog variant; format must be one of
// FormatSyslogStandard, FormatSyslogRFC3164 or FormatSyslogRFC5424
func NewSyslogParser(format Format) LogParser {
	for _, v := range syslogGrammars {
		if v.format == format {
			return &SyslogParser{variant: v}
		}
	}
	return nil
}

// SyslogFormats lists the syslog variants in detection order
func SyslogFormats() []Format {
	formats := make([]Format, len(syslogGrammars))
	for i, v := range syslogGrammars {
		formats[i] = v.format
	}
	return formats
}

// CanParse matches the first line against the variant grammar
func (p *SyslogParser) CanParse(sample string) bool {
	return p.variant.regex.MatchString(firstLine(sample))
}

// Parse emits the variant's positional fields, then key/value pairs found in the message
func (p *SyslogParser) Parse(sample string) (*Extraction, error) {
	match := p.variant.regex.FindStringSubmatch(firstLine(sample))
	if match == nil {
		return nil, errNotParsable(p.variant.format)
	}

	var records []fields.FieldRecord
	message := ""
	for i, part := range p.variant.parts {
		value := match[i+1]
		if part.name == "message" {
			message = value
		}
		records = append(records, fields.New(part.name, value, syslogConfidence, fields.SourceAutoDetect, true))
	}

	for _, pair := range p.variant.fieldPairs(message) {
		records = append(records, fields.New(pair.name, pair.value, syslogMessageConfidence, fields.SourceAutoDetect, true))
	}

	return &Extraction{Fields: dedupeFirst(records)}, nil
}

// Synthesize emits the anchored variant pattern. Message pairs that have a record
// get their own groups inside the message group, in the order they appear.
func (p *SyslogParser) Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern {
	if len(records) == 0 {
		return regex.NewPattern()
	}

	wanted := fields.NameSet(records)

	var pairs []messagePair
	if match := p.variant.regex.FindStringSubmatch(firstLine(sample)); match != nil {
		message := match[len(match)-1]
		for _, pair := range p.variant.fieldPairs(message) {
			if wanted[pair.name] {
				pairs = append(pairs, pair)
			}
		}
	}

	return p.variant.render(wanted, pairs...)
}

// GetFormat returns the format name
func (p *SyslogParser) GetFormat() Format {
	return p.variant.format
}

func overlapsAny(pairs []messagePair, pair messagePair) bool {
	for _, other := range pairs {
		if pair.offset < other.end && other.offset < pair.end {
			return true
		}
	}
	return false
}
