package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

const (
	SidecarName = "sidecar"

	defaultSidecarURL     = "http://localhost:8387"
	defaultSidecarTimeout = 120 * time.Second
)

// Sidecar sends each segment to an HTTP transcription sidecar.
type Sidecar struct {
	cfg    Config
	client *http.Client
}

func NewSidecar(cfg Config) (Transcriber, error) {
	if cfg.URL == "" {
		cfg.URL = defaultSidecarURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSidecarTimeout
	}
	return &Sidecar{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *Sidecar) Name() string { return SidecarName }

// IsAvailable checks if the sidecar is reachable.
func (s *Sidecar) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (s *Sidecar) Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	return runBatched(ctx, segs, s.cfg.BatchSize, s.cfg.OutputLabel, s.transcribe)
}

func (s *Sidecar) transcribe(ctx context.Context, seg *segment.Segment) (string, error) {
	wavData, err := audio.EncodeWAV(seg.Audio.Mono(), seg.Audio.SampleRate)
	if err != nil {
		return "", fmt.Errorf("encode audio: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if s.cfg.Model != "" {
		_ = writer.WriteField("model", s.cfg.Model)
	}
	if s.cfg.Language != "" {
		_ = writer.WriteField("language", s.cfg.Language)
	}
	_ = writer.WriteField("device", strconv.Itoa(s.cfg.Device))
	_ = writer.WriteField("batch_size", strconv.Itoa(s.cfg.BatchSize))
	_ = writer.WriteField("needs_decoder", strconv.FormatBool(s.cfg.NeedsDecoder))
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	log.Debug().
		Str("segment", seg.ID).
		Str("language", result.Language).
		Int("parts", len(result.Segments)).
		Msg("sidecar: transcription complete")
	return result.Text, nil
}

type sidecarResponse struct {
	Text     string           `json:"text"`
	Segments []sidecarSegment `json:"segments"`
	Language string           `json:"language"`
}

type sidecarSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
