package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Quality selects the resampling algorithm.
type Quality string

const (
	// QualityHigh uses a band-limited polyphase resampler.
	QualityHigh Quality = "high"
	// QualityLinear uses linear interpolation. Cheap, audible aliasing.
	QualityLinear Quality = "linear"
)

// Resample converts mono samples from inRate to outRate. Equal rates return a
// copy of the input.
func Resample(samples []float32, inRate, outRate int, q Quality) ([]float32, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", inRate, outRate)
	}
	if inRate == outRate || len(samples) == 0 {
		return append([]float32(nil), samples...), nil
	}
	switch q {
	case QualityLinear:
		return ResampleLinear(samples, inRate, outRate), nil
	case QualityHigh, "":
		return resampleHigh(samples, inRate, outRate)
	default:
		return nil, fmt.Errorf("unknown resample quality %q", q)
	}
}

// resampleHigh runs the polyphase filter over the whole input and flushes its
// tail, so the output keeps the input duration.
func resampleHigh(samples []float32, inRate, outRate int) ([]float32, error) {
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	res, err := resampling.ResampleMono(in, float64(inRate), float64(outRate), resampling.QualityHigh)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	out := make([]float32, len(res))
	for i, s := range res {
		out[i] = float32(s)
	}
	return out, nil
}

// ResampleLinear resamples PCM32F from inRate to outRate using linear interpolation.
func ResampleLinear(samples []float32, inRate, outRate int) []float32 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen <= 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(srcPos - float64(i0))
		s0 := samples[i0]
		s1 := samples[i0+1]
		out[i] = s0 + (s1-s0)*frac
	}
	return out
}
