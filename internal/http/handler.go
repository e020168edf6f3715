package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/garmage/API-CTC-finetuned/internal/observability"
	"github.com/garmage/API-CTC-finetuned/internal/pipeline"
)

const readyTimeout = 5 * time.Second

type errorResponse struct {
	Error string `json:"error"`
}

type readyResponse struct {
	Ready       bool `json:"ready"`
	Segmenter   bool `json:"segmenter"`
	Transcriber bool `json:"transcriber"`
}

// Handler serves the transcription endpoint. metrics may be nil.
type Handler struct {
	pipeline *pipeline.Pipeline
	metrics  *observability.Metrics
}

func NewHandler(p *pipeline.Pipeline, metrics *observability.Metrics) *Handler {
	return &Handler{pipeline: p, metrics: metrics}
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status, records := h.transcribe(w, r)
	h.metrics.RecordRequest(r.Context(), status, time.Since(start), records)
}

func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) (status, records int) {
	ctx := r.Context()
	data, err := readUpload(r)
	if err == nil {
		var resp *pipeline.Response
		resp, err = h.pipeline.Run(ctx, data)
		if err == nil {
			writeJSON(w, http.StatusOK, resp)
			return http.StatusOK, len(resp.Transcriptions)
		}
	} else if !isValidation(err) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Error processing file")
	}
	status = statusFor(err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
	return status, 0
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Readyz reports whether both capabilities can serve requests.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	resp := readyResponse{
		Segmenter:   h.pipeline.Segmenter().IsAvailable(ctx),
		Transcriber: h.pipeline.Transcriber().IsAvailable(ctx),
	}
	resp.Ready = resp.Segmenter && resp.Transcriber
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func isValidation(err error) bool {
	var verr *pipeline.ValidationError
	return errors.As(err, &verr)
}

func statusFor(err error) int {
	if isValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
