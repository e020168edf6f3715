package transcribe

import (
	"context"
	"fmt"

	"github.com/garmage/API-CTC-finetuned/internal/segment"
	"github.com/garmage/API-CTC-finetuned/internal/whisper"
)

const WhisperCPPName = "whispercpp"

// WhisperCPP runs a local whisper.cpp model. The engine serializes decoding,
// so members of a batch queue on it.
type WhisperCPP struct {
	cfg    Config
	engine whisper.Engine
}

func NewWhisperCPP(cfg Config) (Transcriber, error) {
	engine, err := whisper.NewEngine(whisper.Options{
		ModelPath: cfg.ModelPath,
		Threads:   cfg.Threads,
		Language:  cfg.Language,
	})
	if err != nil {
		return nil, err
	}
	return newWhisperCPP(cfg, engine), nil
}

func newWhisperCPP(cfg Config, engine whisper.Engine) *WhisperCPP {
	return &WhisperCPP{cfg: cfg, engine: engine}
}

func (w *WhisperCPP) Name() string { return WhisperCPPName }

func (w *WhisperCPP) IsAvailable(context.Context) bool { return w.engine != nil }

func (w *WhisperCPP) Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	return runBatched(ctx, segs, w.cfg.BatchSize, w.cfg.OutputLabel, w.transcribe)
}

func (w *WhisperCPP) transcribe(_ context.Context, seg *segment.Segment) (string, error) {
	if seg.Audio.SampleRate != whisper.SampleRate {
		return "", fmt.Errorf("whispercpp: unsupported sample rate %d", seg.Audio.SampleRate)
	}
	return w.engine.Transcribe(seg.Audio.Mono())
}

func (w *WhisperCPP) Close() error {
	return w.engine.Close()
}
