package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/parser"
)

func TestFieldList(t *testing.T) {
	t.Run("Nil list is stored as an empty array", func(t *testing.T) {
		v, err := FieldList(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("[]"), v)
	})

	t.Run("Stored list scans back", func(t *testing.T) {
		list := FieldList{fields.New("status", "200", 0.8, fields.SourceAutoDetect, false)}
		v, err := list.Value()
		require.NoError(t, err)

		var scanned FieldList
		require.NoError(t, scanned.Scan(v))
		assert.Equal(t, list, scanned)

		var fromString FieldList
		require.NoError(t, fromString.Scan(string(v.([]byte))))
		assert.Equal(t, list, fromString)
	})

	t.Run("Unsupported source type", func(t *testing.T) {
		var list FieldList
		assert.Error(t, list.Scan(42))
	})
}

func TestTimestampSettings(t *testing.T) {
	profile := parser.TimestampProfile{Prefix: "[", Format: "%d/%b/%Y:%H:%M:%S %z", MaxLookahead: "29"}

	v, err := TimestampSettings(profile).Value()
	require.NoError(t, err)

	var scanned TimestampSettings
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, profile, scanned.Profile())

	var empty TimestampSettings
	require.NoError(t, empty.Scan(nil))
	assert.Equal(t, parser.TimestampProfile{}, empty.Profile())
}

func TestOnboardingSession(t *testing.T) {
	t.Run("BeforeCreate assigns an ID once", func(t *testing.T) {
		s := &OnboardingSession{}
		require.NoError(t, s.BeforeCreate(nil))
		id := s.ID
		assert.NotEmpty(t, id)

		require.NoError(t, s.BeforeCreate(nil))
		assert.Equal(t, id, s.ID)
	})

	t.Run("Clone does not share the field list", func(t *testing.T) {
		s := &OnboardingSession{Fields: FieldList{fields.New("a", "1", 1, fields.SourceAutoDetect, false)}}
		c := s.Clone()
		c.Fields[0].Name = "changed"
		assert.Equal(t, "a", s.Fields[0].Name)
	})
}
