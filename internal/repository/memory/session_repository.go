// Package memory keeps sessions in process memory, for the CLI and for servers
// running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"log-onboarding-engine/internal/models"
	"log-onboarding-engine/internal/repository"
)

type sessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.OnboardingSession
	now      func() time.Time
}

// NewRepository creates a repository backed by process memory
func NewRepository() *repository.Repository {
	return &repository.Repository{
		Session: NewSessionRepository(),
	}
}

// NewSessionRepository creates an in-memory session repository
func NewSessionRepository() repository.SessionRepository {
	return &sessionRepository{
		sessions: make(map[string]*models.OnboardingSession),
		now:      time.Now,
	}
}

func (r *sessionRepository) SaveSession(ctx context.Context, session *models.OnboardingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := r.now()
	session.CreatedAt, session.UpdatedAt = now, now
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *sessionRepository) GetSessionByID(ctx context.Context, id string) (*models.OnboardingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (r *sessionRepository) UpdateSession(ctx context.Context, session *models.OnboardingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	updated := session.Clone()
	updated.Sample = stored.Sample
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.now()
	session.UpdatedAt = updated.UpdatedAt
	r.sessions[session.ID] = updated
	return nil
}

func (r *sessionRepository) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]*models.OnboardingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.OnboardingSession
	for _, s := range r.sessions {
		if filter.Format != "" && s.Format != filter.Format {
			continue
		}
		if filter.UpdatedBefore != nil && !s.UpdatedAt.Before(*filter.UpdatedBefore) {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	var deleted int64
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
