//go:build silero_vad

package diarize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/streamer45/silero-vad-go/speech"

	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

const (
	vadWindowSize           = 512
	vadMinSilenceDurationMs = 400
	vadMinSpeechDurationMs  = 250
	vadSilencePadMs         = 100
	defaultVADThreshold     = 0.5
	vadSampleRate           = 16000
)

// VAD detects speech with the Silero model. The detector keeps state between
// windows, so calls are serialized.
type VAD struct {
	cfg Config
	mu  sync.Mutex
	sd  *speech.Detector
}

func NewVAD(cfg Config) (Segmenter, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultVADThreshold
	}
	modelPath := filepath.Join(cfg.ModelsDir, "silero_vad.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("invalid ModelsDir: failed to stat vad model: %w", err)
	}
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           vadSampleRate,
		WindowSize:           vadWindowSize,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: vadMinSilenceDurationMs,
		MinSpeechDurationMs:  vadMinSpeechDurationMs,
		SilencePadMs:         vadSilencePadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech detector: %w", err)
	}
	log.Info().Str("model", modelPath).Float64("threshold", cfg.Threshold).Msg("vad: detector loaded")
	return &VAD{cfg: cfg, sd: sd}, nil
}

func (v *VAD) Name() string { return VADName }

func (v *VAD) IsAvailable(context.Context) bool { return v.sd != nil }

func (v *VAD) Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var turns []*segment.Segment
	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seg.Audio == nil || seg.Audio.Len() == 0 {
			continue
		}
		if seg.Audio.SampleRate != vadSampleRate {
			return nil, fmt.Errorf("vad: unsupported sample rate %d", seg.Audio.SampleRate)
		}
		if err := v.sd.Reset(); err != nil {
			return nil, fmt.Errorf("vad: reset detector: %w", err)
		}
		found, err := v.sd.Detect(seg.Audio.Mono())
		if err != nil {
			return nil, fmt.Errorf("vad: detect: %w", err)
		}
		for _, s := range found {
			end := s.SpeechEndAt
			if end == 0 {
				end = seg.Span.Length()
			}
			turns = append(turns, seg.Sub(TurnLabel, segment.Span{Start: s.SpeechStartAt, End: end}))
		}
	}
	assignSpeakersByGap(turns, v.cfg.OutputLabel)
	return turns, nil
}

func (v *VAD) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sd.Destroy()
}
