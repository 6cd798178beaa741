// Package users provides persistence for internal user accounts keyed by
// the identity provider's subject id.
package users

import (
	"context"

	"github.com/dmitrijs2005/voicejournal/internal/server/models"
)

// Repository is the user directory: it maps external subject ids to
// internal accounts, creating a row on first sight.
type Repository interface {
	// GetOrCreate returns the user for externalID, inserting a new row if
	// none exists yet. The upsert is idempotent under the unique constraint
	// on external_id, so concurrent first requests cannot create duplicates.
	GetOrCreate(ctx context.Context, externalID, email string) (*models.User, error)

	// GetByID returns the user with the given internal id or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
