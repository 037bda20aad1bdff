package parser

import (
	"strings"

	"github.com/tidwall/gjson"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

const jsonConfidence = 0.95

// JSONParser handles samples that are one JSON object, or newline-delimited JSON objects
type JSONParser struct{}

// NewJSONParser creates a new JSON parser
func NewJSONParser() LogParser {
	return &JSONParser{}
}

// CanParse accepts a sample that is a single JSON object, or where every
// non-blank line is one
func (p *JSONParser) CanParse(sample string) bool {
	_, ok := p.firstObject(sample)
	return ok
}

// Parse emits one field per top-level key of the first object, in document order
func (p *JSONParser) Parse(sample string) (*Extraction, error) {
	obj, ok := p.firstObject(sample)
	if !ok {
		return nil, errNotParsable(FormatJSON)
	}

	keys, names := jsonKeys(obj)
	values := make(map[string]gjson.Result, len(keys))
	obj.ForEach(func(key, value gjson.Result) bool {
		// a repeated key keeps its first position and its last value
		values[key.String()] = value
		return true
	})

	records := make([]fields.FieldRecord, 0, len(keys))
	for _, key := range keys {
		records = append(records, jsonField(names[key], values[key]))
	}
	return &Extraction{Fields: records}, nil
}

// Synthesize emits `^\{.*"key"\s*:\s*"(?<key>...)".*\}$`, with quotes around the
// group only for keys whose sample value is a JSON string
func (p *JSONParser) Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern {
	pattern := regex.NewPattern()
	if len(records) == 0 {
		return pattern
	}

	obj, _ := p.firstObject(sample)
	kinds := make(map[string]gjson.Type)
	obj.ForEach(func(key, value gjson.Result) bool {
		kinds[key.String()] = value.Type
		return true
	})
	_, names := jsonKeys(obj)
	keyOf := make(map[string]string, len(names))
	for key, name := range names {
		keyOf[name] = key
	}

	if strings.Contains(obj.Raw, "\n") {
		pattern.Literal("(?s)")
	}
	pattern.Literal(`^\{.*`)
	for i, r := range records {
		if i > 0 {
			pattern.Literal(".*")
		}
		key, ok := keyOf[r.Name]
		if !ok {
			key = r.Name
		}
		pattern.Literal(`"` + regex.Quote(key) + `"\s*:\s*`)
		kind, known := kinds[key]
		if !known || kind == gjson.String {
			pattern.Literal(`"`)
			pattern.Capture(r.Name, regex.Fragment(r.Type, regex.ContextJSON))
			pattern.Literal(`"`)
			continue
		}
		pattern.Capture(r.Name, jsonBareFragment(kind))
	}
	pattern.Literal(`.*\}$`)
	return pattern
}

// GetFormat returns the format name
func (p *JSONParser) GetFormat() Format {
	return FormatJSON
}

// firstObject returns the whole sample when it is one object, otherwise the first
// line of an NDJSON sample
func (p *JSONParser) firstObject(sample string) (gjson.Result, bool) {
	trimmed := strings.TrimSpace(sample)
	if trimmed == "" {
		return gjson.Result{}, false
	}

	if gjson.Valid(trimmed) {
		obj := gjson.Parse(trimmed)
		return obj, obj.IsObject()
	}

	lines := sampleLines(trimmed)
	if len(lines) < 2 {
		return gjson.Result{}, false
	}
	for _, line := range lines {
		if !gjson.Valid(line) || !gjson.Parse(line).IsObject() {
			return gjson.Result{}, false
		}
	}
	return gjson.Parse(lines[0]), true
}

// jsonKeys lists the distinct top-level keys in document order and maps each one
// to its field name, which is also a valid and unique group name
func jsonKeys(obj gjson.Result) ([]string, map[string]string) {
	var keys []string
	names := make(map[string]string)
	namer := regex.NewNamer()
	obj.ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		if _, seen := names[k]; !seen {
			names[k] = namer.Unique(k)
			keys = append(keys, k)
		}
		return true
	})
	return keys, names
}

func jsonField(name string, value gjson.Result) fields.FieldRecord {
	switch value.Type {
	case gjson.String:
		return fields.New(name, value.Str, jsonConfidence, fields.SourceAutoDetect, false)
	case gjson.Number:
		return fields.NewTyped(name, value.Raw, jsonNumberType(value.Raw), jsonConfidence, fields.SourceAutoDetect, false)
	case gjson.True, gjson.False:
		return fields.NewTyped(name, value.Raw, fields.TypeBoolean, jsonConfidence, fields.SourceAutoDetect, false)
	default:
		// null, nested objects and arrays keep their raw JSON text
		return fields.NewTyped(name, value.Raw, fields.TypeString, jsonConfidence, fields.SourceAutoDetect, false)
	}
}

func jsonNumberType(raw string) fields.FieldType {
	if strings.ContainsAny(raw, ".eE") {
		return fields.TypeFloat
	}
	return fields.TypeInteger
}

func jsonBareFragment(kind gjson.Type) string {
	switch kind {
	case gjson.Number:
		return `-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`
	case gjson.True, gjson.False:
		return `true|false`
	case gjson.Null:
		return `null`
	default:
		return `[^,}]*`
	}
}
