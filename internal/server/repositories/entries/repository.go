// Package entries provides PostgreSQL-backed persistence for voice journal
// entries. Every lookup, mutation, and delete folds the caller's user id
// into its predicate, so a row owned by another user is indistinguishable
// from an absent one.
package entries

import (
	"context"

	"github.com/dmitrijs2005/voicejournal/internal/server/models"
)

// Repository is CRUD over voice entry rows.
type Repository interface {
	// Create inserts a new entry and returns it with the generated id and
	// creation timestamp filled in.
	Create(ctx context.Context, entry *models.VoiceEntry) (*models.VoiceEntry, error)

	// ListByUser returns all of a user's entries, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*models.VoiceEntry, error)

	// GetByID returns the entry or common.ErrNotFound if it is absent or
	// owned by another user.
	GetByID(ctx context.Context, id, userID int64) (*models.VoiceEntry, error)

	// Update merges the provided fields into the entry; nil fields keep
	// their previous value. Returns common.ErrNotFound under the same
	// ownership rule as GetByID.
	Update(ctx context.Context, id, userID int64, title, description *string) (*models.VoiceEntry, error)

	// GetAudioOID returns the entry's large-object reference (possibly the
	// 0 sentinel) or common.ErrNotFound.
	GetAudioOID(ctx context.Context, id, userID int64) (uint32, error)

	// Delete removes the row; common.ErrNotFound if nothing was deleted.
	// The caller is responsible for unlinking the referenced large object
	// in the same transaction.
	Delete(ctx context.Context, id, userID int64) error

	// AttachTranscription stores the transcription text. Note: no ownership
	// filter is applied here; callers must have resolved the entry through
	// an ownership-checked path first.
	AttachTranscription(ctx context.Context, id int64, text string) (*models.VoiceEntry, error)
}
