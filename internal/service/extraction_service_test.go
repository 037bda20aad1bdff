package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/monitoring"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
)

const kvLine = `2024-01-15 10:30:00 user=alice action="login" status=200`

type mockExtractionCache struct {
	mock.Mock
}

func (m *mockExtractionCache) GetExtraction(ctx context.Context, sample string, existing []string) (*parser.Extraction, error) {
	args := m.Called(ctx, sample, existing)
	ext, _ := args.Get(0).(*parser.Extraction)
	return ext, args.Error(1)
}

func (m *mockExtractionCache) PutExtraction(ctx context.Context, sample string, existing []string, ext *parser.Extraction) error {
	args := m.Called(ctx, sample, existing, ext)
	return args.Error(0)
}

func newTestExtractionService() *ExtractionService {
	return NewExtractionService(parser.NewParserManager(), DefaultExtractionOptions()).
		WithLogger(logging.NewTestLogger(io.Discard))
}

func TestExtractionService_Validation(t *testing.T) {
	svc := NewExtractionService(parser.NewParserManager(), ExtractionOptions{MaxSampleBytes: 16}).
		WithLogger(logging.NewTestLogger(io.Discard))

	t.Run("Empty sample is valid", func(t *testing.T) {
		ext, err := svc.Extract(context.Background(), ExtractRequest{Sample: ""})
		require.NoError(t, err)
		assert.Equal(t, parser.FormatNone, ext.Format)
		assert.Empty(t, ext.Fields)
	})

	t.Run("Oversized sample is rejected", func(t *testing.T) {
		_, err := svc.Extract(context.Background(), ExtractRequest{Sample: strings.Repeat("a", 17)})
		assert.True(t, errors.Is(err, ErrInvalidSample))
	})

	t.Run("NUL bytes are rejected", func(t *testing.T) {
		_, err := svc.Detect(context.Background(), "a=1\x00")
		assert.True(t, errors.Is(err, ErrInvalidSample))
	})

	t.Run("Zero options fall back to defaults", func(t *testing.T) {
		svc := NewExtractionService(parser.NewParserManager(), ExtractionOptions{})
		assert.Equal(t, regex.DefaultOptions(), svc.RegexOptions())
	})
}

func TestExtractionService_Extract(t *testing.T) {
	svc := newTestExtractionService()
	ctx := context.Background()

	t.Run("Detects, extracts and resolves the timestamp", func(t *testing.T) {
		ext, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine})
		require.NoError(t, err)
		assert.Equal(t, parser.FormatKeyValue, ext.Format)
		assert.Equal(t, parser.SourcetypeKV, ext.Sourcetype)
		assert.Equal(t, []string{"timestamp", "user", "action", "status"}, fields.Names(ext.Fields))
		assert.Equal(t, "%Y-%m-%d %H:%M:%S", ext.Timestamp.Format)
		assert.Contains(t, ext.Pattern, "(?<status>")
	})

	t.Run("Same result as the parser cascade", func(t *testing.T) {
		manager := parser.NewParserManager()
		samples := []string{
			kvLine,
			`{"level":"INFO","msg":"started"}`,
			`192.168.1.100 - - [01/Jan/2024:12:00:00 +0000] "GET / HTTP/1.1" 200 12`,
			"Jan 15 10:30:00 web01 app: user=alice",
			"plain text without structure",
		}
		for _, sample := range samples {
			ext, err := svc.Extract(ctx, ExtractRequest{Sample: sample})
			require.NoError(t, err)

			expected := manager.Extract(sample, parser.Options{})
			assert.Equal(t, expected.Format, ext.Format, sample)
			assert.Equal(t, expected.Fields, ext.Fields, sample)
			assert.Equal(t, expected.Pattern, ext.Pattern, sample)
			assert.Equal(t, parser.ResolveTimestamp(ext.Format, sample), ext.Timestamp, sample)
		}
	})

	t.Run("Caller sourcetype overrides the hint", func(t *testing.T) {
		ext, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine, Sourcetype: "app_audit"})
		require.NoError(t, err)
		assert.Equal(t, "app_audit", ext.Sourcetype)
	})

	t.Run("Platform fields are not re-extracted", func(t *testing.T) {
		existing := []fields.FieldRecord{fields.New("user", "alice", 1, fields.SourceSplunkExisting, false)}

		ext, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine, Existing: existing})
		require.NoError(t, err)
		assert.NotContains(t, fields.Names(ext.Fields), "user")
		assert.NotContains(t, ext.Pattern, "(?<user>")
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.Extract(cancelled, ExtractRequest{Sample: kvLine})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Metrics are recorded", func(t *testing.T) {
		metrics := monitoring.NewMetricsCollector()
		svc := newTestExtractionService().WithMetrics(metrics)

		_, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine})
		require.NoError(t, err)
		families, err := metrics.Registry().Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})
}

func TestExtractionService_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit skips extraction", func(t *testing.T) {
		cached := &parser.Extraction{Format: parser.FormatJSON, Sourcetype: parser.SourcetypeJSON}
		cache := new(mockExtractionCache)
		cache.On("GetExtraction", mock.Anything, kvLine, []string{}).Return(cached, nil)

		svc := newTestExtractionService().WithCache(cache)
		ext, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine})
		require.NoError(t, err)
		assert.Equal(t, parser.FormatJSON, ext.Format)
		cache.AssertExpectations(t)
		cache.AssertNotCalled(t, "PutExtraction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Miss stores the result under the platform field names", func(t *testing.T) {
		existing := []fields.FieldRecord{
			fields.New("user", "alice", 1, fields.SourceSplunkExisting, false),
			fields.New("action", "login", 0.8, fields.SourceAutoDetect, false),
		}
		cache := new(mockExtractionCache)
		cache.On("GetExtraction", mock.Anything, kvLine, []string{"user"}).Return(nil, errors.New("cache miss"))
		cache.On("PutExtraction", mock.Anything, kvLine, []string{"user"}, mock.AnythingOfType("*parser.Extraction")).Return(nil)

		svc := newTestExtractionService().WithCache(cache)
		ext, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine, Existing: existing})
		require.NoError(t, err)
		assert.Equal(t, parser.FormatKeyValue, ext.Format)
		cache.AssertExpectations(t)
	})

	t.Run("Cached result keeps the caller sourcetype", func(t *testing.T) {
		cached := &parser.Extraction{Format: parser.FormatKeyValue, Sourcetype: parser.SourcetypeKV}
		cache := new(mockExtractionCache)
		cache.On("GetExtraction", mock.Anything, kvLine, []string{}).Return(cached, nil)

		svc := newTestExtractionService().WithCache(cache)
		ext, err := svc.Extract(ctx, ExtractRequest{Sample: kvLine, Sourcetype: "custom"})
		require.NoError(t, err)
		assert.Equal(t, "custom", ext.Sourcetype)
		assert.Equal(t, parser.SourcetypeKV, cached.Sourcetype)
	})
}

func TestExtractionService_ExtractBatch(t *testing.T) {
	svc := newTestExtractionService()

	t.Run("Results keep request order", func(t *testing.T) {
		reqs := []ExtractRequest{
			{Sample: `{"a":1}`},
			{Sample: kvLine},
			{Sample: "plain text"},
			{Sample: "<event><user>bob</user></event>"},
		}

		results, err := svc.ExtractBatch(context.Background(), reqs)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, parser.FormatJSON, results[0].Format)
		assert.Equal(t, parser.FormatKeyValue, results[1].Format)
		assert.Equal(t, parser.FormatNone, results[2].Format)
		assert.Equal(t, parser.FormatXML, results[3].Format)
	})

	t.Run("One invalid sample fails the batch", func(t *testing.T) {
		_, err := svc.ExtractBatch(context.Background(), []ExtractRequest{{Sample: kvLine}, {Sample: "\x00"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSample))
		assert.Contains(t, err.Error(), "sample 1")
	})
}

func TestExtractionService_Regex(t *testing.T) {
	svc := newTestExtractionService()
	ctx := context.Background()

	t.Run("Custom regex yields custom_regex fields", func(t *testing.T) {
		res, err := svc.ApplyCustomRegex(ctx, kvLine, `user=(?<account>\w+)`)
		require.NoError(t, err)
		require.Len(t, res.Fields, 1)
		assert.Equal(t, "alice", res.Fields[0].Value)
		assert.Equal(t, fields.SourceCustomRegex, res.Fields[0].Source)
	})

	t.Run("Invalid pattern", func(t *testing.T) {
		_, err := svc.ApplyCustomRegex(ctx, kvLine, `user=(\w+`)
		assert.True(t, regex.IsInvalidPattern(err))
	})

	t.Run("Pattern without match is not an error", func(t *testing.T) {
		res, err := svc.ApplyCustomRegex(ctx, kvLine, `nothing=(\d+)`)
		require.NoError(t, err)
		assert.True(t, res.NoMatch())
	})

	t.Run("Numbered groups get field names", func(t *testing.T) {
		named, err := svc.SynthesizeNamed(`(\S+) (\S+)`)
		require.NoError(t, err)
		assert.Equal(t, []string{"clientip", "ident"}, named.AssignedNames)
		assert.Equal(t, `(?<clientip>\S+) (?<ident>\S+)`, named.Pattern)
		assert.Equal(t, `(?P<clientip>\S+) (?P<ident>\S+)`, named.PCRE2)
	})

	t.Run("Synthesizing an invalid pattern fails", func(t *testing.T) {
		_, err := svc.SynthesizeNamed(`(`)
		assert.True(t, regex.IsInvalidPattern(err))
	})

	t.Run("Preview lists each line", func(t *testing.T) {
		matches, err := svc.Preview(ctx, "user=a\nuser=b", `user=(?<user>\w)`)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}

func TestExtractionService_EvaluateAIResult(t *testing.T) {
	svc := newTestExtractionService()
	ctx := context.Background()

	t.Run("Combined regex is used when asked", func(t *testing.T) {
		result := AIResult{
			Sourcetype:    "auth_log",
			CombinedRegex: `user=(?P<user>\w+) action="(?P<action>\w+)"`,
			Fields:        []AIField{{Name: "ignored", Regex: `(\d+)`}},
		}

		ai, err := svc.EvaluateAIResult(ctx, kvLine, result, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"user", "action"}, fields.Names(ai.Fields))
		assert.Equal(t, `user=(?<user>\w+) action="(?<action>\w+)"`, ai.Pattern)
		assert.Equal(t, "auth_log", ai.Sourcetype)
		assert.Nil(t, ai.Timestamp)
		for _, f := range ai.Fields {
			assert.Equal(t, fields.SourceAIDetection, f.Source)
		}
	})

	t.Run("Per-field patterns with one invalid", func(t *testing.T) {
		result := AIResult{
			CombinedRegex: `user=(?<user>\w+)`,
			Fields: []AIField{
				{Name: "status", Regex: `status=(\d+)`},
				{Name: "broken", Regex: `(`},
				{Name: "status", Regex: `(\d+)`},
			},
			TimeFormat: "%Y-%m-%d %H:%M:%S",
		}

		ai, err := svc.EvaluateAIResult(ctx, kvLine, result, false)
		require.NoError(t, err)
		require.Len(t, ai.Fields, 2)
		assert.Equal(t, "200", ai.Fields[0].Value)
		assert.Equal(t, 0.9, ai.Fields[0].Confidence)
		assert.Equal(t, "", ai.Fields[1].Value)
		require.Len(t, ai.Warnings, 1)
		assert.Contains(t, ai.Warnings[0], "broken")
		assert.Empty(t, ai.Pattern)

		require.NotNil(t, ai.Timestamp)
		assert.Equal(t, parser.TimestampProfile{Format: "%Y-%m-%d %H:%M:%S", MaxLookahead: "25"}, *ai.Timestamp)
	})

	t.Run("Invalid combined regex fails", func(t *testing.T) {
		_, err := svc.EvaluateAIResult(ctx, kvLine, AIResult{CombinedRegex: `(?<user>`}, true)
		assert.True(t, regex.IsInvalidPattern(err))
	})
}
