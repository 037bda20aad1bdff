package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/models"
	"log-onboarding-engine/internal/monitoring"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/regex"
	"log-onboarding-engine/internal/repository"
)

// existingFieldConfidence is given to fields the platform reports as already extracted
const existingFieldConfidence = 1.0

// SessionService keeps the merged field list of onboarding sessions. Every change
// to a session's fields goes through fields.Merge under the provenance of the path
// that produced them.
type SessionService struct {
	repo       *repository.Repository
	extraction *ExtractionService
	metrics    *monitoring.MetricsCollector
	logger     *logging.Logger

	// serializes read-modify-write cycles per session
	locks sync.Map
}

// CustomRegexOutcome is a session after a custom pattern was applied to it
type CustomRegexOutcome struct {
	Session *models.OnboardingSession `json:"session"`
	Result  *regex.Result             `json:"result"`
}

// AIOutcome is a session after an AI result was accepted
type AIOutcome struct {
	Session  *models.OnboardingSession `json:"session"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// NewSessionService creates a session service storing sessions in repo
func NewSessionService(repo *repository.Repository, extraction *ExtractionService) *SessionService {
	return &SessionService{
		repo:       repo,
		extraction: extraction,
		logger:     logging.GetGlobalLogger().WithComponent("sessions"),
	}
}

// WithMetrics enables metrics recording
func (s *SessionService) WithMetrics(metrics *monitoring.MetricsCollector) *SessionService {
	s.metrics = metrics
	return s
}

// WithLogger replaces the service logger
func (s *SessionService) WithLogger(logger *logging.Logger) *SessionService {
	s.logger = logger.WithComponent("sessions")
	return s
}

// CreateSession stores a new session for sample. No extraction runs yet.
func (s *SessionService) CreateSession(ctx context.Context, sample, sourcetype string) (*models.OnboardingSession, error) {
	if err := s.extraction.ValidateSample(sample); err != nil {
		return nil, err
	}

	session := &models.OnboardingSession{
		Sample:     sample,
		Sourcetype: sourcetype,
		Fields:     models.FieldList{},
	}
	if err := s.repo.Session.SaveSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to save session")
	}

	s.logger.WithContext(ctx).WithField("session_id", session.ID).Info("Session created")
	return session, nil
}

// GetSession returns the session with the given ID
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.OnboardingSession, error) {
	return s.repo.Session.GetSessionByID(ctx, id)
}

// ListSessions returns sessions matching filter
func (s *SessionService) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]*models.OnboardingSession, error) {
	return s.repo.Session.ListSessions(ctx, filter)
}

// RunAutoExtraction extracts the session sample and replaces its auto_detect fields.
// Fields imported from the platform are excluded from extraction. The detected
// format, pattern and timestamp profile become the session's artifacts; the
// sourcetype hint is only used when the session has none.
func (s *SessionService) RunAutoExtraction(ctx context.Context, id string) (*models.OnboardingSession, error) {
	return s.update(ctx, id, fields.SourceAutoDetect, func(session *models.OnboardingSession) ([]fields.FieldRecord, error) {
		ext, err := s.extraction.Extract(ctx, ExtractRequest{
			Sample:   session.Sample,
			Existing: fields.BySource(session.Fields, fields.SourceSplunkExisting),
		})
		if err != nil {
			return nil, err
		}

		session.Format = string(ext.Format)
		session.Pattern = ext.Pattern
		session.Timestamp = models.TimestampSettings(ext.Timestamp)
		if session.Sourcetype == "" {
			session.Sourcetype = ext.Sourcetype
		}
		return ext.Fields, nil
	})
}

// ApplyCustomRegex runs pattern against the session sample. A pattern that matches
// replaces the custom_regex fields and, with its numbered groups named, becomes the
// session pattern. A pattern that matches nothing leaves the session unchanged.
func (s *SessionService) ApplyCustomRegex(ctx context.Context, id, pattern string) (*CustomRegexOutcome, error) {
	var result *regex.Result
	session, err := s.update(ctx, id, fields.SourceCustomRegex, func(session *models.OnboardingSession) ([]fields.FieldRecord, error) {
		var err error
		result, err = s.extraction.ApplyCustomRegex(ctx, session.Sample, pattern)
		if err != nil {
			return nil, err
		}
		if result.NoMatch() {
			return nil, errUnchanged
		}

		named, err := s.extraction.SynthesizeNamed(pattern)
		if err != nil {
			return nil, err
		}
		session.Pattern = named.Pattern
		if session.Sourcetype == "" {
			session.Sourcetype = parser.SourcetypeCustom
		}
		return result.Fields, nil
	})
	if err != nil {
		return nil, err
	}
	return &CustomRegexOutcome{Session: session, Result: result}, nil
}

// AcceptAIResult evaluates an AI result against the session sample and replaces
// the ai_detection fields. A combined pattern that was used becomes the session
// pattern; a proposed sourcetype or time format replaces the session's.
func (s *SessionService) AcceptAIResult(ctx context.Context, id string, result AIResult, useCombined bool) (*AIOutcome, error) {
	var warnings []string
	session, err := s.update(ctx, id, fields.SourceAIDetection, func(session *models.OnboardingSession) ([]fields.FieldRecord, error) {
		ai, err := s.extraction.EvaluateAIResult(ctx, session.Sample, result, useCombined)
		if err != nil {
			return nil, err
		}
		warnings = ai.Warnings

		if ai.Pattern != "" {
			session.Pattern = ai.Pattern
		}
		if ai.Timestamp != nil {
			session.Timestamp = models.TimestampSettings(*ai.Timestamp)
		}
		if ai.Sourcetype != "" {
			session.Sourcetype = ai.Sourcetype
		}
		return ai.Fields, nil
	})
	if err != nil {
		return nil, err
	}
	return &AIOutcome{Session: session, Warnings: warnings}, nil
}

// ImportExistingFields records the fields the platform already extracts for the
// session's sourcetype. They replace the splunk_existing fields, and when the session
// was already extracted its pattern is rebuilt without capture groups for them.
func (s *SessionService) ImportExistingFields(ctx context.Context, id string, records []fields.FieldRecord) (*models.OnboardingSession, error) {
	existing := make([]fields.FieldRecord, 0, len(records))
	for _, r := range records {
		if r.Name == "" {
			continue
		}
		existing = append(existing, fields.NewTyped(r.Name, r.Value, r.Type, existingFieldConfidence, fields.SourceSplunkExisting, false))
	}

	return s.update(ctx, id, fields.SourceSplunkExisting, func(session *models.OnboardingSession) ([]fields.FieldRecord, error) {
		if session.Format == "" {
			return existing, nil
		}
		auto := fields.BySource(session.Fields, fields.SourceAutoDetect)
		session.Pattern = s.extraction.Synthesize(parser.Format(session.Format), auto, session.Sample, existing)
		return existing, nil
	})
}

// MergeFields replaces the session fields of provenance with records
func (s *SessionService) MergeFields(ctx context.Context, id string, records []fields.FieldRecord, provenance fields.Provenance) (*models.OnboardingSession, error) {
	if !provenance.Valid() {
		return nil, errors.Errorf("unknown field source: %q", provenance)
	}
	return s.update(ctx, id, provenance, func(*models.OnboardingSession) ([]fields.FieldRecord, error) {
		return records, nil
	})
}

// DeleteSession removes a session
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	if err := s.repo.Session.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.locks.Delete(id)
	return nil
}

// CleanupSessions removes sessions not updated within olderThan
func (s *SessionService) CleanupSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	deleted, err := s.repo.Session.DeleteStaleSessions(ctx, olderThan)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clean up sessions")
	}
	if deleted > 0 {
		s.logger.WithContext(ctx).WithField("deleted", deleted).Info("Stale sessions removed")
	}
	return deleted, nil
}

// errUnchanged tells update that the session must not be written
var errUnchanged = errors.New("session unchanged")

// update loads a session, lets fn change its artifacts and produce the incoming
// batch, merges the batch under provenance and stores the result
func (s *SessionService) update(ctx context.Context, id string, provenance fields.Provenance, fn func(*models.OnboardingSession) ([]fields.FieldRecord, error)) (*models.OnboardingSession, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.repo.Session.GetSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	incoming, err := fn(session)
	if errors.Is(err, errUnchanged) {
		return session, nil
	}
	if err != nil {
		return nil, err
	}

	session.Fields = fields.Merge(session.Fields, incoming, provenance)
	if err := s.repo.Session.UpdateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to update session")
	}

	s.metrics.RecordSessionUpdate(string(provenance), len(incoming))
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"session_id": id,
		"source":     provenance,
		"fields":     len(session.Fields),
	}).Debug("Session fields merged")
	return session, nil
}

func (s *SessionService) lock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
