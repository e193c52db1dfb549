package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voicelane/frontdesk/pkg/core"
	"github.com/voicelane/frontdesk/pkg/gateway/apierror"
	"github.com/voicelane/frontdesk/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := mw.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: &core.Error{
		Type:      core.ErrNotFound,
		Message:   "not found",
		RequestID: reqID,
	}})
}
