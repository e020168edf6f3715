package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

type fakeSegmenter struct {
	spans []segment.Span
	err   error
}

func (f *fakeSegmenter) Name() string                     { return "fake" }
func (f *fakeSegmenter) IsAvailable(context.Context) bool { return true }
func (f *fakeSegmenter) Run(_ context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*segment.Segment
	for _, s := range segs {
		for _, sp := range f.spans {
			turn := s.Sub("turn", sp)
			turn.Attrs.Add(segment.NewAttribute("speaker", "SPEAKER_00"))
			out = append(out, turn)
		}
	}
	return out, nil
}

type fakeTranscriber struct {
	texts map[int][]string
	err   error
}

func (f *fakeTranscriber) Name() string                     { return "fake" }
func (f *fakeTranscriber) IsAvailable(context.Context) bool { return true }
func (f *fakeTranscriber) Run(_ context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i, s := range segs {
		for _, text := range f.texts[i] {
			s.Attrs.Add(segment.NewAttribute("transcription", text))
		}
	}
	return segs, nil
}

func wavFixture(t *testing.T, seconds float64, rate int) []byte {
	t.Helper()
	samples := make([]float32, int(seconds*float64(rate)))
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	b, err := audio.EncodeWAV(samples, rate)
	require.NoError(t, err)
	return b
}

func TestLoad(t *testing.T) {
	for _, q := range []audio.Quality{audio.QualityLinear, audio.QualityHigh} {
		p := New(Options{Quality: q})
		for _, rate := range []int{8000, 16000, 22050, 44100} {
			buf, err := p.Load(context.Background(), wavFixture(t, 1, rate))
			require.NoError(t, err)
			require.Equal(t, 1, buf.Channels())
			require.Equal(t, 16000, buf.SampleRate)
			require.InDelta(t, 1.0, buf.Duration(), 0.005, "%s at %d Hz", q, rate)
		}
	}

	p := New(Options{Quality: audio.QualityLinear})
	_, err := p.Load(context.Background(), []byte("not audio"))
	var perr *ProcessingError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, StageDecode, perr.Stage)
	require.EqualError(t, err, "unsupported audio format")

	_, err = p.Load(context.Background(), nil)
	require.ErrorIs(t, err, audio.ErrEmptyAudio)
}

func TestRun(t *testing.T) {
	spans := []segment.Span{{Start: 0, End: 1}, {Start: 1.5, End: 2.5}, {Start: 2.5, End: 3}}

	tcs := []struct {
		name     string
		texts    map[int][]string
		expected []Record
	}{
		{
			name:  "one transcription per segment",
			texts: map[int][]string{0: {"bonjour"}, 1: {"ça va"}, 2: {"oui"}},
			expected: []Record{
				{Start: 0, End: 1, Text: "bonjour"},
				{Start: 1.5, End: 2.5, Text: "ça va"},
				{Start: 2.5, End: 3, Text: "oui"},
			},
		},
		{
			name:  "segment without transcription emits nothing",
			texts: map[int][]string{0: {"bonjour"}, 2: {"oui"}},
			expected: []Record{
				{Start: 0, End: 1, Text: "bonjour"},
				{Start: 2.5, End: 3, Text: "oui"},
			},
		},
		{
			name:  "multiple transcriptions are kept in order",
			texts: map[int][]string{1: {"a", "b", "a"}},
			expected: []Record{
				{Start: 1.5, End: 2.5, Text: "a"},
				{Start: 1.5, End: 2.5, Text: "b"},
				{Start: 1.5, End: 2.5, Text: "a"},
			},
		},
		{
			name:     "no transcriptions",
			expected: []Record{},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			p := New(Options{
				Quality:     audio.QualityLinear,
				Segmenter:   &fakeSegmenter{spans: spans},
				Transcriber: &fakeTranscriber{texts: tc.texts},
			})
			resp, err := p.Run(context.Background(), wavFixture(t, 3, 22050))
			require.NoError(t, err)
			require.Equal(t, tc.expected, resp.Transcriptions)
		})
	}
}

func TestRunDeterministic(t *testing.T) {
	p := New(Options{
		Segmenter:   &fakeSegmenter{spans: []segment.Span{{Start: 0.25, End: 0.75}}},
		Transcriber: &fakeTranscriber{texts: map[int][]string{0: {"allo"}}},
	})
	data := wavFixture(t, 1, 44100)

	var bodies [][]byte
	for i := 0; i < 2; i++ {
		resp, err := p.Run(context.Background(), data)
		require.NoError(t, err)
		b, err := json.Marshal(resp)
		require.NoError(t, err)
		bodies = append(bodies, b)
	}
	require.Equal(t, bodies[0], bodies[1])
	require.JSONEq(t, `{"transcriptions":[{"start":0.25,"end":0.75,"text":"allo"}]}`, string(bodies[0]))
}

func TestRunErrors(t *testing.T) {
	data := wavFixture(t, 1, 16000)

	t.Run("segmenter failure", func(t *testing.T) {
		p := New(Options{
			Quality:     audio.QualityLinear,
			Segmenter:   &fakeSegmenter{err: errors.New("sidecar down")},
			Transcriber: &fakeTranscriber{},
		})
		_, err := p.Run(context.Background(), data)
		var perr *ProcessingError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, StageSegment, perr.Stage)
		require.EqualError(t, err, "sidecar down")
	})

	t.Run("transcriber failure", func(t *testing.T) {
		p := New(Options{
			Quality:     audio.QualityLinear,
			Segmenter:   &fakeSegmenter{spans: []segment.Span{{Start: 0, End: 1}}},
			Transcriber: &fakeTranscriber{err: errors.New("CUDA out of memory")},
		})
		resp, err := p.Run(context.Background(), data)
		require.Nil(t, resp)
		var perr *ProcessingError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, StageTranscribe, perr.Stage)
		require.EqualError(t, err, "CUDA out of memory")
	})
}

func TestValidationError(t *testing.T) {
	err := error(&ValidationError{Err: ErrMissingFile})
	require.EqualError(t, err, "No file part")
	require.ErrorIs(t, err, ErrMissingFile)
	require.NotErrorIs(t, err, ErrEmptyFilename)
}
