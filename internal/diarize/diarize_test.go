package diarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

const testRate = 16000

// tone returns a buffer that alternates silence and a loud square wave
// according to pattern, one entry per 100ms.
func tone(pattern string) *audio.Buffer {
	step := testRate / 10
	samples := make([]float32, 0, len(pattern)*step)
	for _, c := range pattern {
		for i := 0; i < step; i++ {
			v := float32(0)
			if c == 'x' {
				v = 0.5
				if i%2 == 0 {
					v = -0.5
				}
			}
			samples = append(samples, v)
		}
	}
	return audio.NewBuffer(samples, testRate)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, []string{EnergyName, PyannoteName, VADName}, r.Names())

	s, err := r.New(EnergyName, Config{})
	require.NoError(t, err)
	require.Equal(t, EnergyName, s.Name())
	require.True(t, s.IsAvailable(context.Background()))

	_, err = r.New("nope", Config{})
	require.EqualError(t, err, `segmenter backend "nope" not registered (available: energy, pyannote, vad)`)
}

func TestAssignSpeakersByGap(t *testing.T) {
	mk := func(start, end float64) *segment.Segment {
		return segment.New(TurnLabel, segment.Span{Start: start, End: end}, nil)
	}
	turns := []*segment.Segment{mk(0, 1), mk(1.5, 2), mk(4, 5), mk(5.2, 6), mk(8, 9)}
	assignSpeakersByGap(turns, "speaker")

	var got []string
	for _, tr := range turns {
		attrs := tr.Attrs.Get("speaker")
		require.Len(t, attrs, 1)
		got = append(got, attrs[0].Value)
	}
	require.Equal(t, []string{"SPEAKER_00", "SPEAKER_00", "SPEAKER_01", "SPEAKER_01", "SPEAKER_00"}, got)
}

func TestEnergy(t *testing.T) {
	t.Run("silence yields no turns", func(t *testing.T) {
		s, err := NewEnergy(Config{OutputLabel: "speaker"})
		require.NoError(t, err)
		doc := segment.NewDocument(tone("..........."))
		turns, err := s.Run(context.Background(), []*segment.Segment{doc.RawSegment()})
		require.NoError(t, err)
		require.Empty(t, turns)
	})

	t.Run("speech bursts become turns", func(t *testing.T) {
		s, err := NewEnergy(Config{OutputLabel: "speaker"})
		require.NoError(t, err)
		// 0.5s speech, 2s silence, 0.5s speech
		doc := segment.NewDocument(tone("..xxxxx....................xxxxx.."))
		turns, err := s.Run(context.Background(), []*segment.Segment{doc.RawSegment()})
		require.NoError(t, err)
		require.Len(t, turns, 2)

		require.InDelta(t, 0.1, turns[0].Span.Start, 0.031)
		require.InDelta(t, 0.8, turns[0].Span.End, 0.031)
		require.InDelta(t, 2.6, turns[1].Span.Start, 0.031)
		require.InDelta(t, 3.3, turns[1].Span.End, 0.031)

		require.Equal(t, "SPEAKER_00", turns[0].Attrs.Get("speaker")[0].Value)
		require.Equal(t, "SPEAKER_01", turns[1].Attrs.Get("speaker")[0].Value)
		for _, tr := range turns {
			require.Equal(t, TurnLabel, tr.Label)
			require.InDelta(t, tr.Span.Length(), tr.Audio.Duration(), 1e-3)
		}
	})

	t.Run("short gaps are merged", func(t *testing.T) {
		spans := detectEnergy(tone("xxxx..xxxx").Mono(), testRate, defaultEnergyThreshold)
		require.Len(t, spans, 1)
	})

	t.Run("short bursts are dropped", func(t *testing.T) {
		spans := detectEnergy(tone("....x.....").Mono(), testRate, defaultEnergyThreshold)
		require.Empty(t, spans)
	})

	t.Run("empty audio is skipped", func(t *testing.T) {
		s, err := NewEnergy(Config{OutputLabel: "speaker"})
		require.NoError(t, err)
		seg := segment.New(segment.RawLabel, segment.Span{}, audio.NewBuffer(nil, testRate))
		turns, err := s.Run(context.Background(), []*segment.Segment{seg})
		require.NoError(t, err)
		require.Empty(t, turns)
	})
}

func TestPyannote(t *testing.T) {
	newServer := func(t *testing.T, status int, resp any) *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/diarize", func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseMultipartForm(32<<20))
			require.Equal(t, "simsamu", r.FormValue("model"))
			require.Equal(t, "-1", r.FormValue("device"))
			require.Equal(t, "10", r.FormValue("segmentation_batch_size"))
			require.Equal(t, "10", r.FormValue("embedding_batch_size"))
			f, _, err := r.FormFile("audio")
			require.NoError(t, err)
			f.Close()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(resp)
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("turns carry speaker and absolute times", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, map[string]any{
			"segments": []map[string]any{
				{"speaker_id": "SPEAKER_00", "start_time": 0.0, "end_time": 1.0},
				{"speaker_id": "SPEAKER_01", "start_time": 1.2, "end_time": 2.0},
			},
			"num_speakers": 2,
		})
		s, err := DefaultRegistry().New(PyannoteName, Config{URL: srv.URL, Model: "simsamu", Device: -1})
		require.NoError(t, err)
		require.True(t, s.IsAvailable(context.Background()))

		doc := segment.NewDocument(tone("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"))
		parent := doc.RawSegment().Sub(segment.RawLabel, segment.Span{Start: 0.5, End: 3})
		turns, err := s.Run(context.Background(), []*segment.Segment{parent})
		require.NoError(t, err)
		require.Len(t, turns, 2)

		require.Equal(t, segment.Span{Start: 0.5, End: 1.5}, turns[0].Span)
		require.Equal(t, "SPEAKER_00", turns[0].Attrs.Get("speaker")[0].Value)
		require.InDelta(t, 1.7, turns[1].Span.Start, 1e-9)
		require.InDelta(t, 2.5, turns[1].Span.End, 1e-9)
		require.Equal(t, "SPEAKER_01", turns[1].Attrs.Get("speaker")[0].Value)
	})

	t.Run("sidecar error is returned", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, map[string]any{"error": "model not loaded"})
		s, err := DefaultRegistry().New(PyannoteName, Config{URL: srv.URL, Model: "simsamu", Device: -1})
		require.NoError(t, err)
		doc := segment.NewDocument(tone("xxxx"))
		_, err = s.Run(context.Background(), []*segment.Segment{doc.RawSegment()})
		require.EqualError(t, err, "diarization error: model not loaded")
	})

	t.Run("non-200 status is returned", func(t *testing.T) {
		srv := newServer(t, http.StatusInternalServerError, map[string]any{})
		s, err := DefaultRegistry().New(PyannoteName, Config{URL: srv.URL, Model: "simsamu", Device: -1})
		require.NoError(t, err)
		doc := segment.NewDocument(tone("xxxx"))
		_, err = s.Run(context.Background(), []*segment.Segment{doc.RawSegment()})
		require.ErrorContains(t, err, "status 500")
	})

	t.Run("unreachable sidecar is unavailable", func(t *testing.T) {
		s, err := NewPyannote(Config{URL: "http://127.0.0.1:1"})
		require.NoError(t, err)
		require.False(t, s.IsAvailable(context.Background()))
	})
}
