package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/parser"
)

// FieldList is the merged field list of a session, stored as JSONB
type FieldList []fields.FieldRecord

// Value implements the driver.Valuer interface for database storage
func (f FieldList) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for database retrieval
func (f *FieldList) Scan(value interface{}) error {
	if value == nil {
		*f = FieldList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into FieldList", value)
	}

	return json.Unmarshal(bytes, f)
}

// TimestampSettings is the timestamp profile last applied to a session
type TimestampSettings parser.TimestampProfile

// Value implements the driver.Valuer interface for database storage
func (t TimestampSettings) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for database retrieval
func (t *TimestampSettings) Scan(value interface{}) error {
	if value == nil {
		*t = TimestampSettings{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TimestampSettings", value)
	}

	return json.Unmarshal(bytes, t)
}

// Profile returns the settings as a parser timestamp profile
func (t TimestampSettings) Profile() parser.TimestampProfile {
	return parser.TimestampProfile(t)
}

// OnboardingSession is one sample being onboarded: the merged fields from every
// extraction path and the artifacts of the most recent run
type OnboardingSession struct {
	ID         string            `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Sample     string            `json:"sample" gorm:"not null;type:text"`
	Format     string            `json:"format" gorm:"size:32;index"`
	Sourcetype string            `json:"sourcetype" gorm:"size:100"`
	Fields     FieldList         `json:"fields" gorm:"type:jsonb"`
	Pattern    string            `json:"pattern" gorm:"type:text"`
	Timestamp  TimestampSettings `json:"timestamp" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for OnboardingSession
func (OnboardingSession) TableName() string {
	return "onboarding_sessions"
}

func (s *OnboardingSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Clone returns a copy whose field list can be changed without affecting s
func (s *OnboardingSession) Clone() *OnboardingSession {
	c := *s
	c.Fields = append(FieldList(nil), s.Fields...)
	return &c
}
