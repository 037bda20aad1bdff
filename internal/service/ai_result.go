package service

import (
	"context"
	"fmt"
	"time"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
)

const aiFieldConfidence = 0.9

// AIField is one field proposed by the remote detector, with a pattern that
// captures its value
type AIField struct {
	Name  string `json:"name"`
	Regex string `json:"regex"`
}

// AIResult is the response of the remote field detector. Every member is optional.
type AIResult struct {
	Sourcetype            string    `json:"sourcetype"`
	Fields                []AIField `json:"fields"`
	CombinedRegex         string    `json:"combined_regex"`
	TimeFormat            string    `json:"time_format"`
	TimePrefix            string    `json:"time_prefix"`
	MaxTimestampLookahead string    `json:"max_timestamp_lookahead"`
}

// AIExtraction is an AI result evaluated against the sample
type AIExtraction struct {
	Fields     []fields.FieldRecord     `json:"fields"`
	Pattern    string                   `json:"pattern,omitempty"`
	Sourcetype string                   `json:"sourcetype,omitempty"`
	Timestamp  *parser.TimestampProfile `json:"timestamp,omitempty"`
	Warnings   []string                 `json:"warnings,omitempty"`
}

// Profile returns the timestamp profile the detector proposed, or nil when it did
// not propose a time format
func (r AIResult) Profile() *parser.TimestampProfile {
	if r.TimeFormat == "" {
		return nil
	}
	lookahead := r.MaxTimestampLookahead
	if lookahead == "" {
		lookahead = parser.DefaultMaxLookahead
	}
	return &parser.TimestampProfile{
		Prefix:       r.TimePrefix,
		Format:       r.TimeFormat,
		MaxLookahead: lookahead,
	}
}

// EvaluateAIResult turns an AI result into ai_detection fields. With useCombined and
// a combined pattern, the fields are the named groups of its first match and the
// combined pattern becomes the extraction. Otherwise every proposed field takes the
// first value its own pattern captures; a field whose pattern does not compile is
// kept with an empty value and reported as a warning.
func (s *ExtractionService) EvaluateAIResult(ctx context.Context, sample string, result AIResult, useCombined bool) (*AIExtraction, error) {
	if err := s.ValidateSample(sample); err != nil {
		return nil, err
	}

	out := &AIExtraction{
		Sourcetype: result.Sourcetype,
		Timestamp:  result.Profile(),
	}

	start := time.Now()
	if useCombined && result.CombinedRegex != "" {
		records, err := regex.ApplyCombined(sample, result.CombinedRegex, fields.SourceAIDetection, s.opts.Regex)
		outcome := "matched"
		switch {
		case err != nil:
			outcome = regexOutcome(nil, err)
		case len(records) == 0:
			outcome = "no_match"
		}
		s.metrics.RecordRegex("ai_combined", outcome, time.Since(start))
		if err != nil {
			return nil, err
		}
		out.Fields = records
		out.Pattern = regex.ToJS(result.CombinedRegex)
		return out, nil
	}

	out.Fields = make([]fields.FieldRecord, 0, len(result.Fields))
	seen := make(map[string]bool, len(result.Fields))
	for _, f := range result.Fields {
		if f.Name == "" || seen[f.Name] {
			continue
		}
		seen[f.Name] = true

		value := ""
		if f.Regex != "" {
			v, err := regex.FirstValue(sample, f.Regex, f.Name, s.opts.Regex)
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", f.Name, err))
			}
			value = v
		}
		out.Fields = append(out.Fields, fields.New(f.Name, value, aiFieldConfidence, fields.SourceAIDetection, true))
	}
	s.metrics.RecordRegex("ai_fields", "matched", time.Since(start))

	if len(out.Warnings) > 0 {
		s.logger.WithContext(ctx).WithField("warnings", len(out.Warnings)).Warn("AI field patterns rejected")
	}
	return out, nil
}
