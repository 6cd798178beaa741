package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/dbx"
	"github.com/dmitrijs2005/voicejournal/internal/lobj"
	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/models"
	"github.com/dmitrijs2005/voicejournal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voicejournal/internal/server/transcribe"
)

// AudioSink is where StreamAudio delivers an entry's recording. WriteHead is
// called exactly once, before any bytes, with the total size; after that the
// sink only receives Write calls. An HTTP handler implements this over the
// response writer.
type AudioSink interface {
	WriteHead(size int64) error
	io.Writer
}

// EntryService implements the voice entry lifecycle: creation with audio
// ingest, CRUD, streaming egress, and transcription. Every operation that
// touches a large object runs inside a single dbx.WithTx call, because
// large-object descriptors are transaction-scoped and because the object
// and its owning row must commit or roll back together.
type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	transcriber transcribe.Transcriber
	logger      logging.Logger
}

// NewEntryService constructs an EntryService.
func NewEntryService(db *sql.DB, m repomanager.RepositoryManager, t transcribe.Transcriber, l logging.Logger) *EntryService {
	return &EntryService{db: db, repomanager: m, transcriber: t, logger: l}
}

// Create ingests a new entry: one transaction allocates a large object,
// writes the full audio buffer into it, waits for the writer's completion
// signal, and inserts the row referencing the object. Either both exist
// afterwards or neither does.
func (s *EntryService) Create(ctx context.Context, userID int64, title, description string, audio []byte) (*models.VoiceEntry, error) {
	if title == "" {
		return nil, common.NewValidationError("title", "Title is required")
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: no media file provided", common.ErrBadRequest)
	}

	var entry *models.VoiceEntry
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		oid, w, err := lobj.NewManager(tx).Create(ctx)
		if err != nil {
			return fmt.Errorf("creating large object: %w", err)
		}
		if _, err := w.Write(audio); err != nil {
			return fmt.Errorf("writing audio: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("closing large object: %w", err)
		}

		entry, err = s.repomanager.Entries(tx).Create(ctx, &models.VoiceEntry{
			UserID:      userID,
			Title:       title,
			Description: description,
			AudioOID:    oid,
		})
		if err != nil {
			return fmt.Errorf("inserting entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the user's entries, newest first.
func (s *EntryService) List(ctx context.Context, userID int64) ([]*models.VoiceEntry, error) {
	return s.repomanager.Entries(s.db).ListByUser(ctx, userID)
}

// Get returns one entry scoped to its owner.
func (s *EntryService) Get(ctx context.Context, id, userID int64) (*models.VoiceEntry, error) {
	return s.repomanager.Entries(s.db).GetByID(ctx, id, userID)
}

// Update merges the provided fields; nil means "keep the stored value".
func (s *EntryService) Update(ctx context.Context, id, userID int64, title, description *string) (*models.VoiceEntry, error) {
	if title != nil && *title == "" {
		return nil, common.NewValidationError("title", "Title is required")
	}
	return s.repomanager.Entries(s.db).Update(ctx, id, userID, title, description)
}

// Delete removes the entry row and its large object in one transaction, so
// a crash between the two statements can no longer orphan the object.
func (s *EntryService) Delete(ctx context.Context, id, userID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Entries(tx)

		oid, err := repo.GetAudioOID(ctx, id, userID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id, userID); err != nil {
			return err
		}
		if oid != lobj.InvalidOID {
			if err := lobj.NewManager(tx).Unlink(ctx, oid); err != nil {
				return fmt.Errorf("unlinking audio object %d: %w", oid, err)
			}
		}
		return nil
	})
}

// StreamAudio pipes an entry's recording into sink within one transaction.
// Absent or foreign entries yield common.ErrNotFound; an entry without audio
// yields common.ErrNoAudio, both before WriteHead is called. Once the head
// has been written, failures (a client disconnect above all) only roll the
// transaction back; it is the caller's job not to surface them as a second
// response.
func (s *EntryService) StreamAudio(ctx context.Context, id, userID int64, sink AudioSink) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		oid, err := s.repomanager.Entries(tx).GetAudioOID(ctx, id, userID)
		if err != nil {
			return err
		}
		if oid == lobj.InvalidOID {
			return common.ErrNoAudio
		}

		size, r, err := lobj.NewManager(tx).Open(ctx, oid)
		if err != nil {
			return err
		}
		defer r.Close()

		if err := sink.WriteHead(size); err != nil {
			return fmt.Errorf("writing response head: %w", err)
		}

		if _, err := io.Copy(sink, r); err != nil {
			if ctx.Err() != nil {
				// Client went away mid-stream; stop reading and let the
				// rollback release the descriptor. Not an application error.
				s.logger.Debug(ctx, "client disconnected during audio stream", "entry_id", id)
				return ctx.Err()
			}
			return fmt.Errorf("streaming audio: %w", err)
		}
		return nil
	})
}

// Transcribe feeds the entry's audio to the transcription collaborator and
// stores the resulting text. The audio read happens inside a transaction;
// the attach is a separate unconditional update, matching the repository
// contract.
func (s *EntryService) Transcribe(ctx context.Context, id, userID int64) (*models.VoiceEntry, error) {
	var text string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		oid, err := s.repomanager.Entries(tx).GetAudioOID(ctx, id, userID)
		if err != nil {
			return err
		}
		if oid == lobj.InvalidOID {
			return common.ErrNoAudio
		}

		_, r, err := lobj.NewManager(tx).Open(ctx, oid)
		if err != nil {
			return err
		}
		defer r.Close()

		text, err = s.transcriber.Transcribe(ctx, r)
		if err != nil {
			return fmt.Errorf("transcribing audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, common.ErrEmptyTranscription
	}

	return s.repomanager.Entries(s.db).AttachTranscription(ctx, id, text)
}
