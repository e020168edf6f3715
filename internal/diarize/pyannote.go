package diarize

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
	PyannoteName = "pyannote"

	defaultPyannoteURL     = "http://localhost:8388"
	defaultPyannoteTimeout = 300 * time.Second
)

// Pyannote sends segment audio to a pyannote diarization sidecar.
type Pyannote struct {
	cfg    Config
	client *http.Client
}

func NewPyannote(cfg Config) (Segmenter, error) {
	if cfg.URL == "" {
		cfg.URL = defaultPyannoteURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultPyannoteTimeout
	}
	return &Pyannote{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *Pyannote) Name() string { return PyannoteName }

// IsAvailable checks if the sidecar is reachable.
func (p *Pyannote) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Pyannote) Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	var turns []*segment.Segment
	for _, seg := range segs {
		if seg.Audio == nil || seg.Audio.Len() == 0 {
			continue
		}
		res, err := p.diarize(ctx, seg)
		if err != nil {
			return nil, err
		}
		for _, s := range res.Segments {
			turn := seg.Sub(TurnLabel, segment.Span{Start: s.StartTime, End: s.EndTime})
			turn.Attrs.Add(segment.NewAttribute(p.cfg.OutputLabel, s.SpeakerID))
			turns = append(turns, turn)
		}
		log.Debug().
			Str("segment", seg.ID).
			Int("turns", len(res.Segments)).
			Int("speakers", res.NumSpeakers).
			Msg("pyannote: diarization complete")
	}
	return turns, nil
}

func (p *Pyannote) diarize(ctx context.Context, seg *segment.Segment) (*pyannoteResponse, error) {
	wavData, err := audio.EncodeWAV(seg.Audio.Mono(), seg.Audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode audio: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if p.cfg.Model != "" {
		_ = writer.WriteField("model", p.cfg.Model)
	}
	_ = writer.WriteField("device", strconv.Itoa(p.cfg.Device))
	_ = writer.WriteField("segmentation_batch_size", strconv.Itoa(p.cfg.SegmentationBatchSize))
	_ = writer.WriteField("embedding_batch_size", strconv.Itoa(p.cfg.EmbeddingBatchSize))
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/diarize", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("diarization error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result pyannoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", result.Error)
	}
	return &result, nil
}

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}
