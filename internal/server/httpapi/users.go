package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/services"
)

// UserHandler serves the /users routes.
type UserHandler struct {
	users  *services.UserService
	logger logging.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService, logger logging.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Me handles GET /users/me: the profile of the authenticated caller, read
// back from the database rather than echoed from the resolution middleware.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), h.logger, w, common.ErrUnauthorized)
		return
	}

	profile, err := h.users.GetByID(r.Context(), user.ID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	writeJSON(r.Context(), h.logger, w, http.StatusOK, profile)
}
