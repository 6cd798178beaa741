package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/dbx"
	"github.com/dmitrijs2005/voicejournal/internal/server/models"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate upserts by external_id. The DO UPDATE branch keeps the stored
// email (the insert's email is only used for brand-new rows) but forces the
// statement to return the row either way, so the whole lookup-or-create is
// a single race-free statement.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, externalID, email string) (*models.User, error) {
	query := `
		INSERT INTO users AS u (external_id, email)
		VALUES ($1, $2)
		ON CONFLICT (external_id)
		DO UPDATE SET email = u.email
		RETURNING id, external_id, email, created_at
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, externalID, email).
		Scan(&user.ID, &user.ExternalID, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, external_id, email, created_at FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.ExternalID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
