package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTranscriber drains its input and returns a canned result.
type stubTranscriber struct {
	text    string
	err     error
	drained int64
}

func (s *stubTranscriber) Transcribe(ctx context.Context, r io.Reader) (string, error) {
	n, _ := io.Copy(io.Discard, r)
	s.drained = n
	return s.text, s.err
}

func newEntryService(t *testing.T, tr *stubTranscriber) (*EntryService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	if tr == nil {
		tr = &stubTranscriber{text: "stub transcription"}
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := NewEntryService(db, repomanager.NewPostgresRepositoryManager(), tr, logger)
	return svc, mock, db
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "title", "description", "audio_oid", "transcription", "created_at"})
}

func TestCreate_ObjectAndRowShareOneTransaction(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	audio := []byte{0x01, 0x02, 0x03}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_creat($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_creat"}).AddRow(uint32(5001)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_open($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_open"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lowrite($1, $2)`)).
		WithArgs(int32(1), audio).
		WillReturnRows(sqlmock.NewRows([]string{"lowrite"}).AddRow(int32(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_close($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_close"}).AddRow(int32(0)))
	mock.ExpectQuery(`INSERT\s+INTO\s+voice_entries`).
		WithArgs(int64(1), "Day 1", "first", uint32(5001)).
		WillReturnRows(entryRows().AddRow(int64(10), int64(1), "Day 1", "first", uint32(5001), "", time.Now()))
	mock.ExpectCommit()

	entry, err := svc.Create(context.Background(), 1, "Day 1", "first", audio)
	require.NoError(t, err)
	assert.EqualValues(t, 5001, entry.AudioOID)
	assert.Equal(t, "Day 1", entry.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RollsBackWhenInsertFails(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_creat($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_creat"}).AddRow(uint32(5001)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_open($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_open"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lowrite($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lowrite"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_close($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_close"}).AddRow(int32(0)))
	mock.ExpectQuery(`INSERT\s+INTO\s+voice_entries`).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), 1, "Day 1", "", []byte{0xFF})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_EmptyTitleIsValidationError(t *testing.T) {
	svc, _, db := newEntryService(t, nil)
	defer db.Close()

	_, err := svc.Create(context.Background(), 1, "", "", []byte{0x01})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreate_NoAudioIsBadRequest(t *testing.T) {
	svc, _, db := newEntryService(t, nil)
	defer db.Close()

	_, err := svc.Create(context.Background(), 1, "Day 1", "", nil)
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestDelete_RowAndObjectInOneTransaction(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WithArgs(int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(5001)))
	mock.ExpectExec(`DELETE\s+FROM\s+voice_entries`).
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_unlink($1)`)).
		WithArgs(uint32(5001)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_unlink"}).AddRow(int32(1)))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), 10, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_SentinelSkipsUnlink(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(0)))
	mock.ExpectExec(`DELETE\s+FROM\s+voice_entries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), 10, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_AbsentEntryIsNotFound(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), 10, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// bufferSink collects a streamed response in memory.
type bufferSink struct {
	bytes.Buffer
	size     int64
	headSent bool
}

func (b *bufferSink) WriteHead(size int64) error {
	b.size = size
	b.headSent = true
	return nil
}

func TestStreamAudio_RoundTrip(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	content := []byte{0x01, 0x02, 0x03}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WithArgs(int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(5001)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_open($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_open"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT loread($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"loread"}).AddRow(content))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT loread($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"loread"}).AddRow([]byte{}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_close($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_close"}).AddRow(int32(0)))
	mock.ExpectCommit()

	sink := &bufferSink{}
	require.NoError(t, svc.StreamAudio(context.Background(), 10, 1, sink))

	assert.True(t, sink.headSent)
	assert.EqualValues(t, 3, sink.size)
	assert.Equal(t, content, sink.Bytes())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamAudio_SentinelIsNoAudio(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(0)))
	mock.ExpectRollback()

	sink := &bufferSink{}
	err := svc.StreamAudio(context.Background(), 10, 1, sink)
	assert.ErrorIs(t, err, common.ErrNoAudio)
	assert.False(t, sink.headSent, "no head may be written for an entry without audio")
}

// cancelingSink cancels the stream's context as soon as the first chunk
// arrives, the way a client disconnect surfaces to the server mid-download.
type cancelingSink struct {
	bufferSink
	cancel context.CancelFunc
}

func (s *cancelingSink) Write(p []byte) (int, error) {
	s.cancel()
	return s.bufferSink.Write(p)
}

func TestStreamAudio_DisconnectAfterHeadReturnsContextError(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	content := []byte{0x01, 0x02, 0x03, 0x04}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WithArgs(int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(5001)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_open($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_open"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT loread($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"loread"}).AddRow(content))
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelingSink{cancel: cancel}

	err := svc.StreamAudio(ctx, 10, 1, sink)

	// The cancellation comes back as-is: no wrapped app error the handler
	// could mistake for something worth a second response.
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrNotFound)
	assert.NotErrorIs(t, err, common.ErrNoAudio)

	assert.True(t, sink.headSent)
	assert.Equal(t, content, sink.Bytes(), "bytes sent before the disconnect stay sent")
}

func TestStreamAudio_ForeignEntryIsNotFound(t *testing.T) {
	svc, mock, db := newEntryService(t, nil)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WithArgs(int64(10), int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := svc.StreamAudio(context.Background(), 10, 2, &bufferSink{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTranscribe_DrainsAudioAndAttachesText(t *testing.T) {
	tr := &stubTranscriber{text: "hello world"}
	svc, mock, db := newEntryService(t, tr)
	defer db.Close()

	content := []byte("audio bytes")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(5001)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_open($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_open"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(len(content))))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT loread($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"loread"}).AddRow(content))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT loread($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"loread"}).AddRow([]byte{}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_close($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_close"}).AddRow(int32(0)))
	mock.ExpectCommit()
	mock.ExpectQuery(`UPDATE\s+voice_entries\s+SET\s+transcription`).
		WithArgs("hello world", int64(10)).
		WillReturnRows(entryRows().AddRow(int64(10), int64(1), "Day 1", "", uint32(5001), "hello world", time.Now()))

	entry, err := svc.Transcribe(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", entry.Transcription)
	assert.EqualValues(t, len(content), tr.drained, "transcriber must drain the full stream")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscribe_EmptyResultIsFailure(t *testing.T) {
	tr := &stubTranscriber{text: ""}
	svc, mock, db := newEntryService(t, tr)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+audio_oid\s+FROM\s+voice_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"audio_oid"}).AddRow(uint32(5001)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_open($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_open"}).AddRow(int32(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_lseek64($1, 0, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_lseek64"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT loread($1, $2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"loread"}).AddRow([]byte{}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT lo_close($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"lo_close"}).AddRow(int32(0)))
	mock.ExpectCommit()

	_, err := svc.Transcribe(context.Background(), 10, 1)
	assert.ErrorIs(t, err, common.ErrEmptyTranscription)
}

func TestUpdate_EmptyTitleIsValidationError(t *testing.T) {
	svc, _, db := newEntryService(t, nil)
	defer db.Close()

	empty := ""
	_, err := svc.Update(context.Background(), 10, 1, &empty, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}
