package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyAudio        = errors.New("empty audio")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatVorbis  Format = "vorbis"
)

// Sniff detects the container format from the leading bytes.
func Sniff(b []byte) Format {
	switch {
	case len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(b, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(b, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(b, []byte("ID3")):
		return FormatMP3
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 != 0:
		// Layer bits 00 mark an AAC ADTS header, left to ffmpeg.
		return FormatMP3
	}
	return FormatUnknown
}

// Decoder turns an uploaded byte stream into a mono signal at its native
// sample rate.
type Decoder struct {
	// FFmpegPath enables the ffmpeg fallback for formats the native decoders
	// do not recognise. Empty disables it.
	FFmpegPath string
	// FallbackRate is the rate ffmpeg is asked to produce, since its raw
	// output carries no header.
	FallbackRate int
}

// Decode returns the mono samples and the native sample rate of b.
func (d Decoder) Decode(ctx context.Context, b []byte) ([]float32, int, error) {
	if len(b) == 0 {
		return nil, 0, ErrEmptyAudio
	}
	format := Sniff(b)
	log.Debug().Str("format", string(format)).Int("bytes", len(b)).Msg("audio: decoding")

	var (
		samples []float32
		rate    int
		err     error
	)
	switch format {
	case FormatWAV:
		samples, rate, err = DecodeWAV(b)
	case FormatMP3:
		samples, rate, err = decodeBeep(b, func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
			return mp3.Decode(rc)
		})
	case FormatFLAC:
		samples, rate, err = decodeBeep(b, func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
			return flac.Decode(rc)
		})
	case FormatVorbis:
		samples, rate, err = decodeBeep(b, func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
			return vorbis.Decode(rc)
		})
	default:
		if d.FFmpegPath == "" {
			return nil, 0, ErrUnsupportedFormat
		}
		samples, rate, err = d.decodeFFmpeg(ctx, b)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(samples) == 0 {
		return nil, 0, ErrEmptyAudio
	}
	return samples, rate, nil
}

func decodeBeep(b []byte, open func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)) ([]float32, int, error) {
	s, format, err := open(io.NopCloser(bytes.NewReader(b)))
	if err != nil {
		return nil, 0, err
	}
	defer s.Close()

	out := make([]float32, 0, s.Len())
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			if format.NumChannels == 1 {
				out = append(out, float32(frame[0]))
			} else {
				out = append(out, float32((frame[0]+frame[1])/2))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, 0, err
	}
	return out, int(format.SampleRate), nil
}

// decodeFFmpeg pipes b through ffmpeg and reads back raw mono PCM16 at
// FallbackRate.
func (d Decoder) decodeFFmpeg(ctx context.Context, b []byte) ([]float32, int, error) {
	rate := d.FallbackRate
	if rate <= 0 {
		rate = 16000
	}
	cmd := exec.CommandContext(ctx, d.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ac", "1", "-ar", strconv.Itoa(rate),
		"-f", "s16le", "pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(b)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, 0, fmt.Errorf("ffmpeg: %s", msg)
		}
		return nil, 0, fmt.Errorf("ffmpeg: %w", err)
	}
	samples, err := DecodePCM16LE(stdout.Bytes())
	if err != nil {
		return nil, 0, err
	}
	return samples, rate, nil
}
