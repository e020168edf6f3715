package audio

// Buffer is an in-memory signal shaped channels x samples.
// Mono audio still carries an explicit channel dimension of size 1.
type Buffer struct {
	Signal     [][]float32
	SampleRate int
}

// NewBuffer wraps a 1-D signal, inserting the leading channel dimension.
func NewBuffer(samples []float32, sampleRate int) *Buffer {
	return &Buffer{Signal: [][]float32{samples}, SampleRate: sampleRate}
}

func (b *Buffer) Channels() int {
	if b == nil {
		return 0
	}
	return len(b.Signal)
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if b == nil || len(b.Signal) == 0 {
		return 0
	}
	return len(b.Signal[0])
}

// Duration returns the length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.SampleRate)
}

// Slice returns the sub-buffer between start and end seconds, clamped to the
// buffer bounds. Sample data is shared with the receiver.
func (b *Buffer) Slice(start, end float64) *Buffer {
	n := b.Len()
	i0 := clamp(int(start*float64(b.SampleRate)), 0, n)
	i1 := clamp(int(end*float64(b.SampleRate)), i0, n)
	out := &Buffer{Signal: make([][]float32, len(b.Signal)), SampleRate: b.SampleRate}
	for ch, s := range b.Signal {
		out.Signal[ch] = s[i0:i1]
	}
	return out
}

// Mono returns the channel average. A single-channel buffer returns its
// samples without copying.
func (b *Buffer) Mono() []float32 {
	switch b.Channels() {
	case 0:
		return nil
	case 1:
		return b.Signal[0]
	}
	out := make([]float32, b.Len())
	scale := 1 / float32(len(b.Signal))
	for _, s := range b.Signal {
		for i, v := range s {
			out[i] += v * scale
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
