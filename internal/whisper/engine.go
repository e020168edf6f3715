// Package whisper wraps a local whisper.cpp model. Without the whisper_cpp
// build tag NewEngine returns an error.
package whisper

import (
	"fmt"
	"os"
	"runtime"
)

// Engine transcribes 16 kHz mono PCM32F samples.
type Engine interface {
	// Transcribe returns the trimmed text of all decoded segments joined by
	// single spaces. Audio shorter than MinSamples yields "".
	Transcribe(samples []float32) (string, error)
	Close() error
}

// SampleRate is the only rate whisper models accept.
const SampleRate = 16000

// MinSamples is the shortest input worth decoding (100ms).
const MinSamples = SampleRate / 10

// Options configures a whisper.cpp engine.
type Options struct {
	ModelPath string
	Threads   int
	// Language is an ISO code, or "auto" for detection.
	Language string
}

func (o Options) IsValid() error {
	if o.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}
	if _, err := os.Stat(o.ModelPath); err != nil {
		return fmt.Errorf("invalid ModelPath: failed to stat model file: %w", err)
	}
	if numCPU := runtime.NumCPU(); o.Threads < 0 || o.Threads > numCPU {
		return fmt.Errorf("invalid Threads: should be in the range [0, %d]", numCPU)
	}
	return nil
}
