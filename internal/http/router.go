package http

import (
	"net/http"
)

// NewRouter mounts the service endpoints behind the middleware chain.
func NewRouter(h *Handler, maxUploadBytes int64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("POST /transcribe", h.Transcribe)

	return Chain(
		Recovery(),
		RequestID(),
		RequestLogger(),
		BodySizeLimit(maxUploadBytes),
	)(mux)
}
