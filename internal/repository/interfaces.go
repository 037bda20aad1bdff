package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"log-onboarding-engine/internal/models"
)

// ErrSessionNotFound is returned when no session has the requested ID
var ErrSessionNotFound = errors.New("onboarding session not found")

// SessionFilter represents filtering criteria for session queries
type SessionFilter struct {
	Format        string
	UpdatedBefore *time.Time
	Limit         int
	Offset        int
}

// SessionRepository defines the interface for onboarding session data access operations
type SessionRepository interface {
	// SaveSession stores a new session, assigning its ID when empty
	SaveSession(ctx context.Context, session *models.OnboardingSession) error

	// GetSessionByID retrieves a session by its ID
	GetSessionByID(ctx context.Context, id string) (*models.OnboardingSession, error)

	// UpdateSession replaces the stored state of an existing session
	UpdateSession(ctx context.Context, session *models.OnboardingSession) error

	// ListSessions retrieves sessions based on filter criteria, most recently updated first
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.OnboardingSession, error)

	// DeleteSession removes a session by ID
	DeleteSession(ctx context.Context, id string) error

	// DeleteStaleSessions removes sessions not updated within olderThan
	DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Repository aggregates all repository interfaces
type Repository struct {
	Session SessionRepository
}
