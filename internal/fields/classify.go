package fields

import (
	"math"
	"regexp"
)

var (
	timestampPrefixRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	dottedQuadRegex      = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
	emailRegex           = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	integerRegex         = regexp.MustCompile(`^\d+$`)
	floatRegex           = regexp.MustCompile(`^\d+\.\d+$`)
)

// Classify infers the semantic type of a textual value. The checks run in a fixed
// order and the first match wins: an all-digit string is an integer, never a float.
func Classify(value string) FieldType {
	switch {
	case timestampPrefixRegex.MatchString(value):
		return TypeTimestamp
	case dottedQuadRegex.MatchString(value):
		return TypeIP
	case emailRegex.MatchString(value):
		return TypeEmail
	case integerRegex.MatchString(value):
		return TypeInteger
	case floatRegex.MatchString(value):
		return TypeFloat
	default:
		return TypeString
	}
}

// ClassifyNative passes decoded booleans and numbers through and classifies
// everything else by its text form.
func ClassifyNative(value interface{}) FieldType {
	switch v := value.(type) {
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32:
		return classifyFloat(float64(v))
	case float64:
		return classifyFloat(v)
	case string:
		return Classify(v)
	default:
		return TypeString
	}
}

func classifyFloat(f float64) FieldType {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return TypeInteger
	}
	return TypeFloat
}
