//go:build whisper_cpp

package whisper

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is never returned by this build.
var ErrUnavailable = errors.New("whisper.cpp engine not available")

// EngineCPP is the whisper.cpp-backed Engine.
type EngineCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string
	mu       sync.Mutex // whisper.cpp contexts crash when processed concurrently
}

func NewEngine(opts Options) (Engine, error) {
	if err := opts.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate options: %w", err)
	}
	threads := uint(runtime.NumCPU())
	if opts.Threads > 0 {
		threads = uint(opts.Threads)
		log.Info().Int("threads", opts.Threads).Msg("whisper: using configured thread count")
	} else {
		log.Info().Uint("threads", threads).Msg("whisper: using default thread count (CPU cores)")
	}
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}

	m, err := whisperpkg.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	log.Info().Str("model", opts.ModelPath).Str("language", lang).Msg("whisper: model loaded successfully")
	return &EngineCPP{model: m, threads: threads, language: lang}, nil
}

func (e *EngineCPP) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe is safe for concurrent use but decodes serially.
func (e *EngineCPP) Transcribe(samples []float32) (string, error) {
	if len(samples) < MinSamples {
		log.Debug().Int("samples", len(samples)).Msg("whisper: skipping too-short audio")
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}
	ctx.SetThreads(e.threads)
	if err := ctx.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("set language %q: %w", e.language, err)
	}
	ctx.SetSplitOnWord(true)
	ctx.SetMaxSegmentLength(0)
	ctx.SetMaxTokensPerSegment(0)

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		log.Error().Err(err).Int("samples", len(samples)).Msg("whisper: process failed")
		return "", fmt.Errorf("process audio: %w", err)
	}

	var parts []string
	for {
		seg, err := ctx.NextSegment()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	full := strings.Join(parts, " ")

	log.Debug().
		Str("lang", ctx.DetectedLanguage()).
		Int("segments", len(parts)).
		Int("samples", len(samples)).
		Msg("whisper: transcription complete")
	return full, nil
}
