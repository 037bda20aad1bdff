package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"log-onboarding-engine/internal/models"
	"log-onboarding-engine/internal/repository"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) SaveSession(ctx context.Context, session *models.OnboardingSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetSessionByID(ctx context.Context, id string) (*models.OnboardingSession, error) {
	var session models.OnboardingSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) UpdateSession(ctx context.Context, session *models.OnboardingSession) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.OnboardingSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"format":     session.Format,
			"sourcetype": session.Sourcetype,
			"fields":     session.Fields,
			"pattern":    session.Pattern,
			"timestamp":  session.Timestamp,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}
	session.UpdatedAt = now
	return nil
}

func (r *sessionRepository) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]*models.OnboardingSession, error) {
	query := r.db.WithContext(ctx).Model(&models.OnboardingSession{})

	if filter.Format != "" {
		query = query.Where("format = ?", filter.Format)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filter.UpdatedBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var sessions []*models.OnboardingSession
	err := query.Order("updated_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.OnboardingSession{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.OnboardingSession{})
	return result.RowsAffected, result.Error
}
