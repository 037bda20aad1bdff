package fields

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the semantic type inferred for a field value
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeFloat     FieldType = "float"
	TypeBoolean   FieldType = "boolean"
	TypeIP        FieldType = "ip"
	TypeEmail     FieldType = "email"
	TypeTimestamp FieldType = "timestamp"
)

// ParseFieldType maps free-form type names onto the closed set; anything unknown is a string
func ParseFieldType(s string) FieldType {
	switch FieldType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeInteger, "number", "int":
		return TypeInteger
	case TypeFloat, "double":
		return TypeFloat
	case TypeBoolean, "bool":
		return TypeBoolean
	case TypeIP:
		return TypeIP
	case TypeEmail:
		return TypeEmail
	case TypeTimestamp, "datetime", "date", "time":
		return TypeTimestamp
	default:
		return TypeString
	}
}

// UnmarshalJSON accepts any type name and normalizes it
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field type must be a string: %w", err)
	}
	*t = ParseFieldType(s)
	return nil
}

// Provenance identifies which extraction path produced a field
type Provenance string

const (
	SourceAutoDetect     Provenance = "auto_detect"
	SourceCustomRegex    Provenance = "custom_regex"
	SourceAIDetection    Provenance = "ai_detection"
	SourceSplunkExisting Provenance = "splunk_existing"
)

// Valid reports whether p is one of the known provenance tags
func (p Provenance) Valid() bool {
	switch p {
	case SourceAutoDetect, SourceCustomRegex, SourceAIDetection, SourceSplunkExisting:
		return true
	}
	return false
}

// ParseProvenance validates a provenance tag
func ParseProvenance(s string) (Provenance, error) {
	p := Provenance(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("unknown field source: %q", s)
	}
	return p, nil
}

// FieldRecord is one extracted field. Type, confidence, source and the PII flag are
// fixed at construction and never recomputed by later stages.
type FieldRecord struct {
	Name       string     `json:"name"`
	Type       FieldType  `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Source     Provenance `json:"source"`
	IsPII      bool       `json:"isPII"`
	FromRegex  bool       `json:"fromRegex"`
}

// New builds a field record, classifying the value and applying the local PII heuristic
func New(name, value string, confidence float64, source Provenance, fromRegex bool) FieldRecord {
	return FieldRecord{
		Name:       name,
		Type:       Classify(value),
		Value:      value,
		Confidence: clampConfidence(confidence),
		Source:     source,
		IsPII:      LooksLikePII(name, value),
		FromRegex:  fromRegex,
	}
}

// NewTyped builds a record whose type is already known, e.g. a native JSON number
// or a field reported by the platform.
func NewTyped(name, value string, fieldType FieldType, confidence float64, source Provenance, fromRegex bool) FieldRecord {
	r := New(name, value, confidence, source, fromRegex)
	r.Type = ParseFieldType(string(fieldType))
	return r
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Names returns the field names in order
func Names(records []FieldRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names
}

// BySource returns the records carrying the given provenance
func BySource(records []FieldRecord, source Provenance) []FieldRecord {
	var out []FieldRecord
	for _, r := range records {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

// Without returns the records whose provenance differs from source
func Without(records []FieldRecord, source Provenance) []FieldRecord {
	out := make([]FieldRecord, 0, len(records))
	for _, r := range records {
		if r.Source != source {
			out = append(out, r)
		}
	}
	return out
}

// NameSet indexes record names for coverage checks
func NameSet(records []FieldRecord) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.Name] = true
	}
	return set
}
