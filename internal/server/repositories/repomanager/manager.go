// Package repomanager vends repository implementations bound to a DBTX and
// exposes the schema migration hook. Services obtain fresh repositories per
// call so the same code path works against *sql.DB and *sql.Tx.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/voicejournal/internal/dbx"
	"github.com/dmitrijs2005/voicejournal/internal/server/repositories/entries"
	"github.com/dmitrijs2005/voicejournal/internal/server/repositories/users"
)

// RepositoryManager builds repositories for a given database handle.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Entries(db dbx.DBTX) entries.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
