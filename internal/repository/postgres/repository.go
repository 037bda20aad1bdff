package postgres

import (
	"log-onboarding-engine/internal/repository"

	"gorm.io/gorm"
)

// NewRepository creates a new repository instance with PostgreSQL implementations
func NewRepository(db *gorm.DB) *repository.Repository {
	return &repository.Repository{
		Session: NewSessionRepository(db),
	}
}
