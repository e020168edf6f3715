package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a WAV blob into mono 32-bit float PCM samples in [-1,1]
// and returns the native sample rate. Multi-channel input is downmixed.
func DecodeWAV(b []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, ErrEmptyAudio
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	channels := int(dec.NumChans)
	if channels <= 0 && buf.Format != nil {
		channels = buf.Format.NumChannels
	}
	if channels <= 0 {
		channels = 1
	}
	sr := int(dec.SampleRate)
	if sr == 0 && buf.Format != nil {
		sr = buf.Format.SampleRate
	}
	if sr == 0 {
		return nil, 0, errors.New("wav file has no sample rate")
	}

	sample, err := sampleFunc(dec.WavAudioFormat, bitDepth)
	if err != nil {
		return nil, 0, err
	}
	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += sample(buf.Data[i*channels+ch])
		}
		out[i] = sum / float32(channels)
	}
	return out, sr, nil
}

// wavFormatFloat is the fmt chunk code for IEEE float samples.
const wavFormatFloat = 3

// sampleFunc maps a raw decoder value to [-1,1]. The wav decoder hands float
// samples back as their bit pattern and 8-bit PCM as unsigned bytes.
func sampleFunc(format uint16, bitDepth int) (func(int) float32, error) {
	if format == wavFormatFloat {
		if bitDepth != 32 {
			return nil, fmt.Errorf("unsupported float wav bit depth %d", bitDepth)
		}
		return func(v int) float32 { return math.Float32frombits(uint32(v)) }, nil
	}
	if bitDepth == 8 {
		return func(v int) float32 { return float32(v-128) / 128 }, nil
	}
	scale := float32(int(1) << (bitDepth - 1))
	return func(v int) float32 { return float32(v) / scale }, nil
}

// DecodePCM16LE converts little-endian PCM16 mono bytes into float32 samples.
func DecodePCM16LE(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, errors.New("pcm16 length must be even")
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// EncodeWAV encodes mono float samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			data[i] = 32767
		case s <= -1:
			data[i] = -32768
		default:
			data[i] = int(s * 32767)
		}
	}

	w := &memFile{}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}
	return w.buf, nil
}

// memFile is the in-memory io.WriteSeeker the wav encoder needs to patch
// its header sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
