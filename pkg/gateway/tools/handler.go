package tools

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voicelane/frontdesk/pkg/core"
	"github.com/voicelane/frontdesk/pkg/gateway/apierror"
	"github.com/voicelane/frontdesk/pkg/gateway/mw"
)

// Handler serves direct tool invocation at POST /v1/tools/{name}. The
// same registry backs dialogue-initiated calls, so both paths share one
// idempotency store.
type Handler struct {
	Registry *Registry
	Logger   *slog.Logger
}

type invokeRequest struct {
	Input          map[string]any `json:"input"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

type invokeResponse struct {
	Tool   string         `json:"tool"`
	Output map[string]any `json:"output"`
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := mw.RequestIDFromContext(r.Context())

	name := r.PathValue("name")
	if name == "" {
		apierror.Write(w, core.NewInvalidRequestErrorWithParam("tool name required", "name"), reqID)
		return
	}

	var req invokeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apierror.Write(w, core.NewInvalidRequestError("malformed request body: "+err.Error()), reqID)
		return
	}

	output, err := h.Registry.Invoke(r.Context(), name, req.Input, req.IdempotencyKey)
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(invokeResponse{Tool: name, Output: output})
}
