package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		value    string
		expected FieldType
	}{
		{"2024-01-15", TypeTimestamp},
		{"2024-01-15T10:30:00Z", TypeTimestamp},
		{"192.168.1.1", TypeIP},
		{"999.999.999.999", TypeIP},
		{"a@b.co", TypeEmail},
		{"42", TypeInteger},
		{"3.14", TypeFloat},
		{"-5", TypeString},
		{"", TypeString},
		{"hello", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.value))
		})
	}
}

func TestClassifyNative(t *testing.T) {
	t.Run("Native values", func(t *testing.T) {
		assert.Equal(t, TypeBoolean, ClassifyNative(true))
		assert.Equal(t, TypeInteger, ClassifyNative(7))
		assert.Equal(t, TypeInteger, ClassifyNative(float64(12)))
		assert.Equal(t, TypeFloat, ClassifyNative(0.5))
		assert.Equal(t, TypeIP, ClassifyNative("10.0.0.1"))
		assert.Equal(t, TypeString, ClassifyNative(nil))
	})
}

func TestFieldRecord(t *testing.T) {
	t.Run("New classifies and flags PII", func(t *testing.T) {
		r := New("email", "a@b.co", 0.9, SourceCustomRegex, true)
		assert.Equal(t, TypeEmail, r.Type)
		assert.True(t, r.IsPII)
		assert.True(t, r.FromRegex)
		assert.Equal(t, SourceCustomRegex, r.Source)
	})

	t.Run("Confidence is clamped", func(t *testing.T) {
		assert.Equal(t, 1.0, New("a", "b", 1.5, SourceAutoDetect, false).Confidence)
		assert.Equal(t, 0.0, New("a", "b", -1, SourceAutoDetect, false).Confidence)
	})

	t.Run("Free-form type names are normalized", func(t *testing.T) {
		assert.Equal(t, TypeInteger, NewTyped("n", "x", "number", 1, SourceAIDetection, true).Type)
		assert.Equal(t, TypeString, ParseFieldType("geo_point"))

		var r FieldRecord
		require.NoError(t, json.Unmarshal([]byte(`{"name":"t","type":"datetime"}`), &r))
		assert.Equal(t, TypeTimestamp, r.Type)
	})

	t.Run("Provenance tags", func(t *testing.T) {
		p, err := ParseProvenance("ai_detection")
		require.NoError(t, err)
		assert.Equal(t, SourceAIDetection, p)

		_, err = ParseProvenance("guesswork")
		assert.Error(t, err)
	})
}

func TestLooksLikePII(t *testing.T) {
	assert.True(t, LooksLikePII("user_email", "x"))
	assert.True(t, LooksLikePII("note", "123-45-6789"))
	assert.True(t, LooksLikePII("card", "4111 1111 1111 1111"))
	assert.True(t, LooksLikePII("username", "bob"))
	assert.False(t, LooksLikePII("status", "200"))
}

func TestMerge(t *testing.T) {
	existing := []FieldRecord{
		New("host", "web01", 1, SourceSplunkExisting, false),
		New("status", "200", 0.8, SourceAutoDetect, false),
		New("user", "alice", 0.9, SourceCustomRegex, true),
	}

	t.Run("Replaces one provenance wholesale", func(t *testing.T) {
		incoming := []FieldRecord{
			New("action", "login", 0.9, SourceCustomRegex, true),
		}

		merged := Merge(existing, incoming, SourceCustomRegex)
		assert.Equal(t, []string{"host", "status", "action"}, Names(merged))
	})

	t.Run("Same batch twice is idempotent", func(t *testing.T) {
		incoming := []FieldRecord{New("action", "login", 0.9, SourceCustomRegex, true)}

		once := Merge(existing, incoming, SourceCustomRegex)
		twice := Merge(once, incoming, SourceCustomRegex)
		assert.Equal(t, once, twice)
	})

	t.Run("Unsourced records are stamped and foreign ones dropped", func(t *testing.T) {
		incoming := []FieldRecord{
			{Name: "a", Value: "1"},
			New("b", "2", 0.5, SourceAutoDetect, false),
		}

		merged := Merge(nil, incoming, SourceAIDetection)
		require.Len(t, merged, 1)
		assert.Equal(t, SourceAIDetection, merged[0].Source)
	})

	t.Run("Inputs are not modified", func(t *testing.T) {
		before := append([]FieldRecord(nil), existing...)
		Merge(existing, nil, SourceAutoDetect)
		assert.Equal(t, before, existing)
	})
}
