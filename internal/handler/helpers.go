package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tmkelly/choreboard/internal/store"
	"github.com/tmkelly/choreboard/internal/task"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// writeDomainError translates the typed errors the stores surface into HTTP
// statuses. Anything untyped is logged and hidden behind the fallback message.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	var validation task.ValidationError
	var notAuthorized task.NotAuthorizedError
	var transition task.InvalidTransitionError
	var linkage task.DuplicateLinkageError
	var balance store.InsufficientBalanceError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &balance):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": balance.Error()})
	case errors.As(err, &notAuthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": notAuthorized.Error()})
	case errors.As(err, &transition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": transition.Error()})
	case errors.As(err, &linkage):
		writeJSON(w, http.StatusConflict, map[string]string{"error": linkage.Error()})
	case errors.Is(err, store.ErrUseResolved):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		slog.Error(fallback, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}
