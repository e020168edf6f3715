package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

const OpenAIName = "openai"

// OpenAI transcribes segments with the OpenAI audio transcription API or any
// compatible server reachable through BaseURL.
type OpenAI struct {
	cfg    Config
	client *openai.Client
}

func NewOpenAI(cfg Config) (Transcriber, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai transcriber: api key or base url required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}
	httpClient := http.DefaultClient
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{cfg: cfg, client: &client}, nil
}

func (o *OpenAI) Name() string { return OpenAIName }

// IsAvailable reports whether the configured model can be resolved.
func (o *OpenAI) IsAvailable(ctx context.Context) bool {
	_, err := o.client.Models.Get(ctx, o.cfg.Model)
	return err == nil
}

func (o *OpenAI) Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	return runBatched(ctx, segs, o.cfg.BatchSize, o.cfg.OutputLabel, o.transcribe)
}

func (o *OpenAI) transcribe(ctx context.Context, seg *segment.Segment) (string, error) {
	wavData, err := audio.EncodeWAV(seg.Audio.Mono(), seg.Audio.SampleRate)
	if err != nil {
		return "", fmt.Errorf("encode audio: %w", err)
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wavData), "segment.wav", "audio/wav"),
		Model: openai.AudioModel(o.cfg.Model),
	}
	if o.cfg.Language != "" {
		params.Language = openai.String(o.cfg.Language)
	}
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
