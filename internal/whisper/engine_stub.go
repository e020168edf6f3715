//go:build !whisper_cpp

package whisper

import "errors"

// ErrUnavailable is returned by NewEngine in builds without cgo whisper.cpp.
var ErrUnavailable = errors.New("whisper.cpp engine not available: build with -tags whisper_cpp")

func NewEngine(Options) (Engine, error) { return nil, ErrUnavailable }
