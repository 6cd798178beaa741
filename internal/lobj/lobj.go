// Package lobj wraps PostgreSQL large objects behind io-style readers and
// writers. It drives the server-side lo_* functions (lo_creat, lo_open,
// loread, lowrite, lo_lseek64, lo_unlink) through plain parameterized
// queries, so it works over any dbx.DBTX.
//
// Large-object descriptors are only valid inside the transaction that opened
// them, so a Manager must always be bound to a *sql.Tx (use dbx.WithTx); the
// byte writes and the row mutation referencing the object then share one
// unit of atomicity.
package lobj

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

// InvalidOID is the sentinel reference meaning "no large object attached".
const InvalidOID uint32 = 0

// Access modes for lo_open, mirroring libpq's INV_WRITE and INV_READ.
const (
	modeWrite = 0x20000
	modeRead  = 0x40000
)

// Seek whence values for lo_lseek64.
const (
	seekStart = 0
	seekEnd   = 2
)

// maxChunk bounds a single loread/lowrite round trip.
const maxChunk = 256 * 1024

// undefinedObjectCode is the SQLSTATE PostgreSQL reports when lo_open or
// lo_unlink is given an OID that does not exist.
const undefinedObjectCode = "42704"

// Manager exposes large-object operations over a transactional DBTX.
type Manager struct {
	db dbx.DBTX
}

// NewManager constructs a Manager bound to the given DBTX. The DBTX must be
// a transaction; descriptors opened here die with it.
func NewManager(db dbx.DBTX) *Manager {
	return &Manager{db: db}
}

// Create allocates a new large object and opens it for writing. The caller
// must check the error of every Write and of Close before trusting the
// returned OID; a rollback of the surrounding transaction discards the
// object entirely.
func (m *Manager) Create(ctx context.Context) (uint32, *Writer, error) {
	var oid uint32
	err := m.db.QueryRowContext(ctx, `SELECT lo_creat($1)`, modeRead|modeWrite).Scan(&oid)
	if err != nil {
		return InvalidOID, nil, fmt.Errorf("lo_creat: %w", err)
	}

	fd, err := m.open(ctx, oid, modeWrite)
	if err != nil {
		return InvalidOID, nil, err
	}

	return oid, &Writer{ctx: ctx, db: m.db, fd: fd}, nil
}

// Open opens an existing large object for reading and reports its size in
// bytes. Returns common.ErrNotFound if the OID does not exist.
func (m *Manager) Open(ctx context.Context, oid uint32) (int64, *Reader, error) {
	fd, err := m.open(ctx, oid, modeRead)
	if err != nil {
		return 0, nil, err
	}

	// Size via seek-to-end, then rewind for the caller.
	var size int64
	err = m.db.QueryRowContext(ctx, `SELECT lo_lseek64($1, 0, $2)`, fd, seekEnd).Scan(&size)
	if err != nil {
		return 0, nil, fmt.Errorf("lo_lseek64: %w", err)
	}
	var pos int64
	err = m.db.QueryRowContext(ctx, `SELECT lo_lseek64($1, 0, $2)`, fd, seekStart).Scan(&pos)
	if err != nil {
		return 0, nil, fmt.Errorf("lo_lseek64: %w", err)
	}

	return size, &Reader{ctx: ctx, db: m.db, fd: fd}, nil
}

// Unlink deletes a large object. Returns common.ErrNotFound if it is
// already absent.
func (m *Manager) Unlink(ctx context.Context, oid uint32) error {
	var res int32
	err := m.db.QueryRowContext(ctx, `SELECT lo_unlink($1)`, oid).Scan(&res)
	if err != nil {
		if isUndefinedObject(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("lo_unlink: %w", err)
	}
	return nil
}

func (m *Manager) open(ctx context.Context, oid uint32, mode int32) (int32, error) {
	var fd int32
	err := m.db.QueryRowContext(ctx, `SELECT lo_open($1, $2)`, oid, mode).Scan(&fd)
	if err != nil {
		if isUndefinedObject(err) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("lo_open: %w", err)
	}
	return fd, nil
}

func isUndefinedObject(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedObjectCode
}

// Writer appends bytes to an open large object. It implements io.WriteCloser;
// Close releases the descriptor and is the completion signal the caller must
// observe before recording the OID anywhere.
type Writer struct {
	ctx    context.Context
	db     dbx.DBTX
	fd     int32
	closed bool
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("lobj: write on closed writer")
	}

	var total int
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxChunk {
			chunk = chunk[:maxChunk]
		}

		var n int32
		err := w.db.QueryRowContext(w.ctx, `SELECT lowrite($1, $2)`, w.fd, chunk).Scan(&n)
		if err != nil {
			return total, fmt.Errorf("lowrite: %w", err)
		}
		if int(n) != len(chunk) {
			return total + int(n), io.ErrShortWrite
		}

		total += int(n)
		p = p[n:]
	}
	return total, nil
}

// Close closes the descriptor. Errors here mean the object contents cannot
// be trusted and the transaction should be rolled back.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var res int32
	if err := w.db.QueryRowContext(w.ctx, `SELECT lo_close($1)`, w.fd).Scan(&res); err != nil {
		return fmt.Errorf("lo_close: %w", err)
	}
	return nil
}

// Reader streams bytes out of an open large object in maxChunk pieces. It
// implements io.ReadCloser and stops with the context's error as soon as the
// context is done, which is how a client disconnect aborts a stream without
// pulling further chunks from the database.
type Reader struct {
	ctx    context.Context
	db     dbx.DBTX
	fd     int32
	buf    []byte
	eof    bool
	closed bool
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("lobj: read on closed reader")
	}
	if len(p) == 0 {
		return 0, nil
	}

	if len(r.buf) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}

		want := len(p)
		if want > maxChunk {
			want = maxChunk
		}
		var chunk []byte
		err := r.db.QueryRowContext(r.ctx, `SELECT loread($1, $2)`, r.fd, want).Scan(&chunk)
		if err != nil {
			return 0, fmt.Errorf("loread: %w", err)
		}
		if len(chunk) == 0 {
			r.eof = true
			return 0, io.EOF
		}
		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Close closes the descriptor. Safe to call after the transaction has been
// torn down by cancellation; the close error is reported but the descriptor
// is gone either way.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var res int32
	if err := r.db.QueryRowContext(r.ctx, `SELECT lo_close($1)`, r.fd).Scan(&res); err != nil {
		return fmt.Errorf("lo_close: %w", err)
	}
	return nil
}
