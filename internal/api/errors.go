package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/redflag"
	"github.com/sells-group/drylogs/internal/store"
	"github.com/sells-group/drylogs/internal/workflow"
)

type errorBody struct {
	Error  string `json:"error"`
	Guard  string `json:"guard,omitempty"`
	Phase  string `json:"phase,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps engine errors onto status codes. Guard violations are
// 409 with the guard name.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ite, ok := workflow.AsInvalidTransition(err); ok {
		writeJSON(w, http.StatusConflict, errorBody{
			Error:  "invalid transition",
			Guard:  string(ite.Guard),
			Phase:  string(ite.Phase),
			From:   string(ite.From),
			To:     string(ite.To),
			Reason: ite.Reason,
		})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalid), errors.Is(err, redflag.ErrResolutionNotes):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, redflag.ErrFlagNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists), errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, redflag.ErrAlreadyResolved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
