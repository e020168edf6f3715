package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
	"github.com/garmage/API-CTC-finetuned/internal/config"
	"github.com/garmage/API-CTC-finetuned/internal/diarize"
	"github.com/garmage/API-CTC-finetuned/internal/pipeline"
	"github.com/garmage/API-CTC-finetuned/internal/transcribe"
)

// buildPipeline constructs both capabilities once. The returned close func
// releases backend resources such as a loaded whisper or VAD model.
func buildPipeline(cfg config.Config) (*pipeline.Pipeline, func() error, error) {
	segmenter, err := diarize.DefaultRegistry().New(cfg.SegmenterBackend, diarize.Config{
		Model:                 cfg.SegmenterModel,
		Device:                cfg.Device,
		SegmentationBatchSize: cfg.SegmentationBatchSize,
		EmbeddingBatchSize:    cfg.EmbeddingBatchSize,
		OutputLabel:           cfg.SpeakerLabel,
		URL:                   cfg.SegmenterURL,
		Timeout:               cfg.CapabilityTimeout,
		ModelsDir:             cfg.ModelsDir,
		Threshold:             cfg.VADThreshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create segmenter: %w", err)
	}

	transcriber, err := transcribe.DefaultRegistry().New(cfg.TranscriberBackend, transcribe.Config{
		Model:        cfg.TranscriberModel,
		Language:     cfg.Language,
		Device:       cfg.Device,
		BatchSize:    cfg.TranscriptionBatchSize,
		NeedsDecoder: cfg.NeedsDecoder,
		OutputLabel:  cfg.TranscriptionLabel,
		URL:          cfg.TranscriberURL,
		Timeout:      cfg.CapabilityTimeout,
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		ModelPath:    cfg.WhisperModelPath,
		Threads:      cfg.WhisperThreads,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create transcriber: %w", err)
	}

	log.Info().
		Str("segmenter", segmenter.Name()).
		Str("segmenter_model", cfg.SegmenterModel).
		Str("transcriber", transcriber.Name()).
		Str("transcriber_model", cfg.TranscriberModel).
		Int("device", cfg.Device).
		Msg("capabilities initialized")

	p := pipeline.New(pipeline.Options{
		Decoder: audio.Decoder{
			FFmpegPath:   cfg.FFmpegPath,
			FallbackRate: cfg.TargetSampleRate,
		},
		TargetRate:         cfg.TargetSampleRate,
		Quality:            audio.Quality(cfg.ResampleQuality),
		Segmenter:          segmenter,
		Transcriber:        transcriber,
		TranscriptionLabel: cfg.TranscriptionLabel,
	})
	closeFn := func() error {
		var errs []error
		for _, c := range []any{segmenter, transcriber} {
			if closer, ok := c.(io.Closer); ok {
				errs = append(errs, closer.Close())
			}
		}
		return errors.Join(errs...)
	}
	return p, closeFn, nil
}
