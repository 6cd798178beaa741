// Package services contains server-side business logic. This file implements
// UserService, the thin user directory: it resolves the identity provider's
// subject id to an internal account, creating one on first sight.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/voicejournal/internal/server/models"
	"github.com/dmitrijs2005/voicejournal/internal/server/repositories/repomanager"
)

// UserService resolves and serves internal user accounts.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewUserService constructs a UserService over the given database handle.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// GetOrCreate returns the account for the given external subject id,
// creating it lazily on a principal's first authenticated request. When the
// provider supplied no email a placeholder is stored so the column stays
// non-null.
func (s *UserService) GetOrCreate(ctx context.Context, externalID, email string) (*models.User, error) {
	if email == "" {
		email = fmt.Sprintf("%s@placeholder.invalid", externalID)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetOrCreate(ctx, externalID, email)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	return user, nil
}

// GetByID returns the account with the given internal id.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}
