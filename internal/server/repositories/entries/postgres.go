package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/dbx"
	"github.com/dmitrijs2005/voicejournal/internal/server/models"
)

const entryColumns = "id, user_id, title, description, audio_oid, transcription, created_at"

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.VoiceEntry) (*models.VoiceEntry, error) {
	query := `
		INSERT INTO voice_entries (user_id, title, description, audio_oid)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + entryColumns

	return r.scanOne(r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Title, entry.Description, entry.AudioOID))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.VoiceEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM voice_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	result := []*models.VoiceEntry{}
	for rows.Next() {
		var item models.VoiceEntry
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Title, &item.Description,
			&item.AudioOID, &item.Transcription, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, userID int64) (*models.VoiceEntry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM voice_entries
		WHERE id = $1 AND user_id = $2
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

// Update relies on COALESCE for merge semantics: a nil title or description
// leaves the stored value untouched.
func (r *PostgresRepository) Update(ctx context.Context, id, userID int64, title, description *string) (*models.VoiceEntry, error) {
	query := `
		UPDATE voice_entries
		SET title = COALESCE($1, title), description = COALESCE($2, description)
		WHERE id = $3 AND user_id = $4
		RETURNING ` + entryColumns

	return r.scanOne(r.db.QueryRowContext(ctx, query, title, description, id, userID))
}

func (r *PostgresRepository) GetAudioOID(ctx context.Context, id, userID int64) (uint32, error) {
	query := `
		SELECT audio_oid FROM voice_entries
		WHERE id = $1 AND user_id = $2
	`

	var oid uint32
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&oid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return oid, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID int64) error {
	query := `
		DELETE FROM voice_entries
		WHERE id = $1 AND user_id = $2
	`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AttachTranscription(ctx context.Context, id int64, text string) (*models.VoiceEntry, error) {
	query := `
		UPDATE voice_entries
		SET transcription = $1
		WHERE id = $2
		RETURNING ` + entryColumns

	return r.scanOne(r.db.QueryRowContext(ctx, query, text, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.VoiceEntry, error) {
	entry := &models.VoiceEntry{}
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.Title, &entry.Description,
		&entry.AudioOID, &entry.Transcription, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}
