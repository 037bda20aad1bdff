package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/monitoring"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
)

// ErrInvalidSample is returned for samples the service refuses to process
var ErrInvalidSample = errors.New("invalid sample")

const slowExtractionThreshold = 250 * time.Millisecond

// ExtractionCache stores extraction results keyed by sample and platform field names
type ExtractionCache interface {
	GetExtraction(ctx context.Context, sample string, existing []string) (*parser.Extraction, error)
	PutExtraction(ctx context.Context, sample string, existing []string, ext *parser.Extraction) error
}

// ExtractionOptions configures the limits of the extraction service
type ExtractionOptions struct {
	MaxSampleBytes int
	BatchWorkers   int
	Regex          regex.Options
}

// DefaultExtractionOptions returns the limits used when none are configured
func DefaultExtractionOptions() ExtractionOptions {
	return ExtractionOptions{
		MaxSampleBytes: 1 << 20,
		BatchWorkers:   4,
		Regex:          regex.DefaultOptions(),
	}
}

// ExtractRequest is one sample to onboard
type ExtractRequest struct {
	Sample     string               `json:"sample"`
	Existing   []fields.FieldRecord `json:"existing_fields,omitempty"`
	Sourcetype string               `json:"sourcetype,omitempty"`
}

// NamedPattern is a custom pattern whose numbered groups were given field names
type NamedPattern struct {
	Pattern       string   `json:"pattern"`
	PCRE2         string   `json:"pcre2"`
	AssignedNames []string `json:"assignedNames"`
}

// ExtractionService runs detection, extraction and regex work for one sample at a time
type ExtractionService struct {
	manager     parser.ParserManager
	cache       ExtractionCache
	metrics     *monitoring.MetricsCollector
	logger      *logging.Logger
	performance *logging.PerformanceLogger
	opts        ExtractionOptions
}

// NewExtractionService creates an extraction service over manager
func NewExtractionService(manager parser.ParserManager, opts ExtractionOptions) *ExtractionService {
	defaults := DefaultExtractionOptions()
	if opts.MaxSampleBytes <= 0 {
		opts.MaxSampleBytes = defaults.MaxSampleBytes
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = defaults.BatchWorkers
	}
	if opts.Regex.MatchTimeout <= 0 {
		opts.Regex.MatchTimeout = defaults.Regex.MatchTimeout
	}
	if opts.Regex.MaxMatches <= 0 {
		opts.Regex.MaxMatches = defaults.Regex.MaxMatches
	}

	logger := logging.GetGlobalLogger().WithComponent("extraction")
	return &ExtractionService{
		manager:     manager,
		logger:      logger,
		performance: logging.NewPerformanceLogger(logger),
		opts:        opts,
	}
}

// WithCache enables result caching
func (s *ExtractionService) WithCache(cache ExtractionCache) *ExtractionService {
	s.cache = cache
	return s
}

// WithMetrics enables metrics recording
func (s *ExtractionService) WithMetrics(metrics *monitoring.MetricsCollector) *ExtractionService {
	s.metrics = metrics
	return s
}

// WithLogger replaces the service logger
func (s *ExtractionService) WithLogger(logger *logging.Logger) *ExtractionService {
	s.logger = logger.WithComponent("extraction")
	s.performance = logging.NewPerformanceLogger(s.logger)
	return s
}

// ValidateSample rejects samples over the size limit or containing NUL bytes.
// An empty sample is valid and extracts nothing.
func (s *ExtractionService) ValidateSample(sample string) error {
	if len(sample) > s.opts.MaxSampleBytes {
		return errors.Wrapf(ErrInvalidSample, "sample is %d bytes, limit is %d", len(sample), s.opts.MaxSampleBytes)
	}
	if strings.IndexByte(sample, 0) >= 0 {
		return errors.Wrap(ErrInvalidSample, "sample contains NUL bytes")
	}
	return nil
}

// Detect classifies the sample without extracting it
func (s *ExtractionService) Detect(ctx context.Context, sample string) (parser.Format, error) {
	if err := s.ValidateSample(sample); err != nil {
		return parser.FormatNone, err
	}
	return s.manager.DetectFormat(sample), nil
}

// Extract detects the format of the sample, extracts its fields, synthesizes the
// extraction pattern and resolves the timestamp profile. Fields the platform
// already extracts are left out.
func (s *ExtractionService) Extract(ctx context.Context, req ExtractRequest) (*parser.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ValidateSample(req.Sample); err != nil {
		return nil, err
	}

	existing := fields.Names(fields.BySource(req.Existing, fields.SourceSplunkExisting))
	if ext, ok := s.cached(ctx, req.Sample, existing); ok {
		return withSourcetype(ext, req.Sourcetype), nil
	}

	start := time.Now()
	ext := s.extract(req)
	duration := time.Since(start)

	s.metrics.RecordExtraction(string(ext.Format), len(ext.Fields), len(ext.Warnings), duration)
	s.performance.LogSlowOperation("extract", duration, slowExtractionThreshold)
	logger := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"format": ext.Format,
		"fields": len(ext.Fields),
	})
	for _, w := range ext.Warnings {
		logger.WithField("warning", w).Warn("Extraction degraded")
	}
	logger.Debug("Sample extracted")

	if s.cache != nil {
		if err := s.cache.PutExtraction(ctx, req.Sample, existing, ext); err != nil {
			logger.Error("Failed to cache extraction", err)
		}
	}
	return withSourcetype(ext, req.Sourcetype), nil
}

func (s *ExtractionService) extract(req ExtractRequest) *parser.Extraction {
	opts := parser.Options{Existing: req.Existing}
	format := s.manager.DetectFormat(req.Sample)

	ext, err := s.manager.ExtractAs(format, req.Sample, opts)
	if err != nil {
		// the detected parser gave up; the cascade falls through to weaker formats
		return s.manager.Extract(req.Sample, opts)
	}
	ext.Timestamp = parser.ResolveTimestamp(format, req.Sample)
	return ext
}

func (s *ExtractionService) cached(ctx context.Context, sample string, existing []string) (*parser.Extraction, bool) {
	if s.cache == nil {
		return nil, false
	}
	ext, err := s.cache.GetExtraction(ctx, sample, existing)
	hit := err == nil && ext != nil
	s.metrics.RecordCacheOperation(hit)
	return ext, hit
}

func withSourcetype(ext *parser.Extraction, sourcetype string) *parser.Extraction {
	if sourcetype != "" {
		copied := *ext
		copied.Sourcetype = sourcetype
		return &copied
	}
	return ext
}

// ExtractBatch extracts independent samples concurrently. Results keep the order of
// the requests; the first failure cancels the rest.
func (s *ExtractionService) ExtractBatch(ctx context.Context, reqs []ExtractRequest) ([]*parser.Extraction, error) {
	results := make([]*parser.Extraction, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchWorkers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			ext, err := s.Extract(gctx, reqs[i])
			if err != nil {
				return errors.Wrapf(err, "sample %d", i)
			}
			results[i] = ext
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ApplyCustomRegex runs a user pattern against the sample. An invalid pattern is
// returned as *regex.InvalidPatternError; a pattern matching nothing is not an error.
func (s *ExtractionService) ApplyCustomRegex(ctx context.Context, sample, pattern string) (*regex.Result, error) {
	if err := s.ValidateSample(sample); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := regex.Apply(sample, pattern, s.opts.Regex)
	s.metrics.RecordRegex("custom", regexOutcome(result, err), time.Since(start))
	if err != nil {
		s.logger.WithContext(ctx).WithField("pattern", pattern).Warnf("Custom regex rejected: %v", err)
		return nil, err
	}
	return result, nil
}

// Preview lists every match of a combined pattern across the sample
func (s *ExtractionService) Preview(ctx context.Context, sample, pattern string) ([]regex.PreviewMatch, error) {
	if err := s.ValidateSample(sample); err != nil {
		return nil, err
	}

	start := time.Now()
	matches, err := regex.Preview(sample, pattern, s.opts.Regex)
	outcome := "matched"
	switch {
	case err != nil:
		outcome = regexOutcome(nil, err)
	case len(matches) == 0:
		outcome = "no_match"
	}
	s.metrics.RecordRegex("preview", outcome, time.Since(start))
	return matches, err
}

// SynthesizeNamed gives every numbered group of a custom pattern a field name
func (s *ExtractionService) SynthesizeNamed(pattern string) (*NamedPattern, error) {
	if _, err := regex.Compile(pattern, s.opts.Regex); err != nil {
		return nil, err
	}
	named, assigned := regex.NameNumberedGroups(regex.ToJS(pattern))
	return &NamedPattern{
		Pattern:       named,
		PCRE2:         regex.ToPCRE2(named),
		AssignedNames: assigned,
	}, nil
}

// Synthesize builds the extraction pattern for records in a sample of format
func (s *ExtractionService) Synthesize(format parser.Format, records []fields.FieldRecord, sample string, existing []fields.FieldRecord) string {
	return s.manager.Synthesize(format, records, sample, parser.Options{Existing: existing})
}

// Formats lists the supported formats in detection order
func (s *ExtractionService) Formats() []parser.Format {
	return s.manager.GetSupportedFormats()
}

// RegexOptions returns the limits applied to custom patterns
func (s *ExtractionService) RegexOptions() regex.Options {
	return s.opts.Regex
}

func regexOutcome(result *regex.Result, err error) string {
	switch {
	case regex.IsInvalidPattern(err):
		return "invalid"
	case errors.Is(err, regex.ErrMatchTimeout):
		return "timeout"
	case err != nil:
		return "error"
	case result != nil && result.NoMatch():
		return "no_match"
	default:
		return "matched"
	}
}
