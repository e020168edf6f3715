//go:build !silero_vad

package diarize

import "errors"

// NewVAD fails in builds without the silero_vad tag, which need onnxruntime.
func NewVAD(Config) (Segmenter, error) {
	return nil, errors.New("vad segmenter not available: build with -tags silero_vad")
}
