package diarize

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

const (
	EnergyName = "energy"

	defaultEnergyThreshold = 0.02
	energyFrameMs          = 30
	energyMinSpeechMs      = 250
	energyMinSilenceMs     = 400
	energyPadMs            = 100
)

// Energy detects speech by frame RMS energy. It needs no model and is
// deterministic, which makes it the offline fallback.
type Energy struct {
	cfg Config
}

func NewEnergy(cfg Config) (Segmenter, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultEnergyThreshold
	}
	return &Energy{cfg: cfg}, nil
}

func (e *Energy) Name() string { return EnergyName }

func (e *Energy) IsAvailable(context.Context) bool { return true }

func (e *Energy) Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error) {
	var turns []*segment.Segment
	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seg.Audio == nil || seg.Audio.Len() == 0 {
			continue
		}
		spans := detectEnergy(seg.Audio.Mono(), seg.Audio.SampleRate, e.cfg.Threshold)
		for _, sp := range spans {
			turns = append(turns, seg.Sub(TurnLabel, sp))
		}
	}
	assignSpeakersByGap(turns, e.cfg.OutputLabel)
	log.Debug().Int("turns", len(turns)).Msg("energy: segmentation complete")
	return turns, nil
}

// detectEnergy returns the speech spans, in seconds relative to the start of
// samples. Runs of voiced frames closer than energyMinSilenceMs are merged,
// runs shorter than energyMinSpeechMs dropped, and survivors padded by
// energyPadMs on both sides.
func detectEnergy(samples []float32, rate int, threshold float64) []segment.Span {
	if rate <= 0 || len(samples) == 0 {
		return nil
	}
	frameLen := rate * energyFrameMs / 1000
	if frameLen <= 0 {
		frameLen = 1
	}

	type run struct{ start, end int } // in samples
	var runs []run
	inSpeech := false
	for off := 0; off < len(samples); off += frameLen {
		end := off + frameLen
		if end > len(samples) {
			end = len(samples)
		}
		voiced := rms(samples[off:end]) >= threshold
		switch {
		case voiced && !inSpeech:
			runs = append(runs, run{start: off, end: end})
			inSpeech = true
		case voiced:
			runs[len(runs)-1].end = end
		default:
			inSpeech = false
		}
	}

	minSilence := rate * energyMinSilenceMs / 1000
	minSpeech := rate * energyMinSpeechMs / 1000
	pad := rate * energyPadMs / 1000

	var merged []run
	for _, r := range runs {
		if n := len(merged); n > 0 && r.start-merged[n-1].end < minSilence {
			merged[n-1].end = r.end
			continue
		}
		merged = append(merged, r)
	}

	var spans []segment.Span
	for _, r := range merged {
		if r.end-r.start < minSpeech {
			continue
		}
		start := max(0, r.start-pad)
		end := min(len(samples), r.end+pad)
		spans = append(spans, segment.Span{
			Start: float64(start) / float64(rate),
			End:   float64(end) / float64(rate),
		})
	}
	return spans
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
