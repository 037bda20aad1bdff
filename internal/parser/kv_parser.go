package parser

import (
	"regexp"
	"strings"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

const kvConfidence = 0.8

// kvPairRegex captures key=value and key="value" tokens
var kvPairRegex = regexp.MustCompile(`(\w+)=(?:"([^"\s]+)"|([^"\s]+))`)

// kvToken is one key=value token of a line. name is the field name derived
// from key.
type kvToken struct {
	name   string
	key    string
	value  string
	quoted bool
	offset int
	end    int
}

func kvTokens(line string) []kvToken {
	var tokens []kvToken
	seen := make(map[string]bool)
	for _, m := range kvPairRegex.FindAllStringSubmatchIndex(line, -1) {
		key := line[m[2]:m[3]]
		name := regex.SanitizeName(key)
		if seen[name] {
			continue
		}
		seen[name] = true

		t := kvToken{name: name, key: key, offset: m[0], end: m[1]}
		if m[4] >= 0 {
			t.value, t.quoted = line[m[4]:m[5]], true
		} else {
			t.value = line[m[6]:m[7]]
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// standaloneTimestamp finds the line timestamp unless it sits inside a token,
// whose own field already carries it
func standaloneTimestamp(line string, tokens []kvToken) (lineTimestamp, bool) {
	ts, ok := findLineTimestamp(line)
	if !ok {
		return ts, false
	}
	for _, t := range tokens {
		if ts.offset >= t.offset && ts.offset < t.end {
			return ts, false
		}
	}
	return ts, true
}

// KeyValueParser handles lines of key=value pairs
type KeyValueParser struct{}

// NewKeyValueParser creates a new key=value parser
func NewKeyValueParser() LogParser {
	return &KeyValueParser{}
}

// CanParse accepts a first line containing '='
func (p *KeyValueParser) CanParse(sample string) bool {
	return strings.Contains(firstLine(sample), "=")
}

// Parse emits one field per token of the first line in offset order, preceded by a
// timestamp field when one of the known datetime shapes occurs outside the tokens
func (p *KeyValueParser) Parse(sample string) (*Extraction, error) {
	line := firstLine(sample)
	if !strings.Contains(line, "=") {
		return nil, errNotParsable(FormatKeyValue)
	}

	tokens := kvTokens(line)
	var records []fields.FieldRecord
	if ts, ok := standaloneTimestamp(line, tokens); ok {
		records = append(records, fields.New("timestamp", ts.value, kvConfidence, fields.SourceAutoDetect, true))
	}
	for _, t := range tokens {
		records = append(records, fields.New(t.name, t.value, kvConfidence, fields.SourceAutoDetect, false))
	}
	return &Extraction{Fields: dedupeFirst(records)}, nil
}

// Synthesize emits `^.*\bkey=(?<key>...).*(?<timestamp>...).*$` with the keys and
// the timestamp ordered by where they first occur in the line, not by the order
// of records. Records that do not occur in the line get no group.
func (p *KeyValueParser) Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern {
	pattern := regex.NewPattern()
	line := firstLine(sample)
	byName := make(map[string]fields.FieldRecord, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	tokens := kvTokens(line)
	ts, hasTimestamp := standaloneTimestamp(line, tokens)
	_, wantTimestamp := byName["timestamp"]
	emitTimestamp := hasTimestamp && wantTimestamp

	// kvTokens reports tokens in offset order; the timestamp is slotted in by its own offset
	type placed struct {
		record    fields.FieldRecord
		key       string
		quoted    bool
		timestamp bool
	}
	var order []placed
	for _, t := range tokens {
		if emitTimestamp && ts.offset < t.offset {
			order = append(order, placed{timestamp: true})
			emitTimestamp = false
		}
		r, ok := byName[t.name]
		if !ok || (hasTimestamp && wantTimestamp && t.name == "timestamp") {
			continue
		}
		order = append(order, placed{record: r, key: t.key, quoted: t.quoted})
	}
	if emitTimestamp {
		order = append(order, placed{timestamp: true})
	}
	if len(order) == 0 {
		return pattern
	}

	pattern.Literal("^.*")
	for i, o := range order {
		if i > 0 {
			pattern.Literal(".*")
		}
		if o.timestamp {
			pattern.Capture("timestamp", ts.fragment)
			continue
		}
		pattern.KeyValue(o.key, o.record, o.quoted)
	}
	pattern.Literal(".*$")
	return pattern
}

// GetFormat returns the format name
func (p *KeyValueParser) GetFormat() Format {
	return FormatKeyValue
}
