package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/models"
	"github.com/dmitrijs2005/voicejournal/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes caps the in-memory portion of a multipart upload.
const maxUploadBytes = 32 << 20

// EntryHandler serves the /voice-entries routes.
type EntryHandler struct {
	entries *services.EntryService
	logger  logging.Logger
}

// NewEntryHandler constructs an EntryHandler.
func NewEntryHandler(entries *services.EntryService, logger logging.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, logger: logger}
}

// entryResponse is the {message, entry} envelope used by mutating endpoints.
type entryResponse struct {
	Message string             `json:"message"`
	Entry   *models.VoiceEntry `json:"entry"`
}

// Create handles POST /voice-entries: a multipart form with an "audio" file
// part plus title and optional description fields.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(r.Context(), h.logger, w,
			fmt.Errorf("%w: invalid multipart form", common.ErrBadRequest))
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(r.Context(), h.logger, w,
			fmt.Errorf("%w: no media file provided", common.ErrBadRequest))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(r.Context(), h.logger, w, fmt.Errorf("reading upload: %w", err))
		return
	}

	entry, err := h.entries.Create(r.Context(), user.ID,
		r.FormValue("title"), r.FormValue("description"), audio)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(r.Context(), h.logger, w, http.StatusCreated,
		entryResponse{Message: "Voice entry created", Entry: entry})
}

// List handles GET /voice-entries.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	list, err := h.entries.List(r.Context(), user.ID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(r.Context(), h.logger, w, http.StatusOK, list)
}

// Get handles GET /voice-entries/{id}.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	id, err := entryID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	entry, err := h.entries.Get(r.Context(), id, user.ID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(r.Context(), h.logger, w, http.StatusOK, entry)
}

type updateEntryRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Update handles PUT /voice-entries/{id}. Fields absent from the body keep
// their stored values; an empty body is a valid no-op update.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	id, err := entryID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	var req updateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), h.logger, w,
			fmt.Errorf("%w: malformed JSON body", common.ErrBadRequest))
		return
	}

	entry, err := h.entries.Update(r.Context(), id, user.ID, req.Title, req.Description)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(r.Context(), h.logger, w, http.StatusOK,
		entryResponse{Message: "Voice entry updated", Entry: entry})
}

// Delete handles DELETE /voice-entries/{id}.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	id, err := entryID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	if err := h.entries.Delete(r.Context(), id, user.ID); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// audioStream adapts http.ResponseWriter to services.AudioSink. Writes are
// flushed per chunk so the client sees bytes as they leave the database, and
// the blocking Write gives the copy loop its backpressure.
type audioStream struct {
	w        http.ResponseWriter
	headSent bool
}

func (s *audioStream) WriteHead(size int64) error {
	h := s.w.Header()
	h.Set("Content-Type", "audio/mpeg")
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Accept-Ranges", "bytes")
	s.w.WriteHeader(http.StatusOK)
	s.headSent = true
	return nil
}

func (s *audioStream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// Stream handles GET /voice-entries/{id}/audio. Failures before the head is
// written become JSON errors; after that point the status line is gone and
// the only option left is to stop writing and let the connection die.
func (h *EntryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	id, err := entryID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	sink := &audioStream{w: w}
	if err := h.entries.StreamAudio(r.Context(), id, user.ID, sink); err != nil {
		if sink.headSent {
			requestID, _ := RequestIDFromContext(r.Context())
			h.logger.Debug(r.Context(), "audio stream aborted",
				"request_id", requestID, "entry_id", id, "error", err.Error())
			return
		}
		writeError(r.Context(), h.logger, w, err)
	}
}

// Transcribe handles POST /voice-entries/{id}/transcribe.
func (h *EntryHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	id, err := entryID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	entry, err := h.entries.Transcribe(r.Context(), id, user.ID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(r.Context(), h.logger, w, http.StatusOK,
		entryResponse{Message: "Transcription attached", Entry: entry})
}

// entryID parses the {id} route parameter. A non-numeric id can never name
// an existing entry, so it maps to the same NotFound as an unknown one.
func entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, common.ErrNotFound
	}
	return id, nil
}
