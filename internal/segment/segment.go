// Package segment holds the per-request document model: an audio document,
// the time-bounded segments cut from it and the labelled attributes that
// capabilities attach to those segments.
package segment

import (
	"github.com/google/uuid"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
)

// RawLabel is the label of the segment spanning a whole document.
const RawLabel = "raw_audio"

// Span is a time range in seconds relative to the document start.
type Span struct {
	Start float64
	End   float64
}

func (s Span) Length() float64 { return s.End - s.Start }

// Segment is a time-bounded piece of a document. Audio holds the samples
// covered by Span. Attrs is mutated in place by capabilities.
type Segment struct {
	ID    string
	Label string
	Span  Span
	Audio *audio.Buffer
	Attrs Attributes
}

func New(label string, span Span, buf *audio.Buffer) *Segment {
	return &Segment{
		ID:    uuid.NewString(),
		Label: label,
		Span:  span,
		Audio: buf,
	}
}

// Sub cuts a child segment out of s. span is relative to s.
func (s *Segment) Sub(label string, span Span) *Segment {
	var buf *audio.Buffer
	if s.Audio != nil {
		buf = s.Audio.Slice(span.Start, span.End)
	}
	return New(label, Span{Start: s.Span.Start + span.Start, End: s.Span.Start + span.End}, buf)
}

// Document wraps the decoded audio of one request.
type Document struct {
	ID    string
	Audio *audio.Buffer
	raw   *Segment
}

func NewDocument(buf *audio.Buffer) *Document {
	return &Document{ID: uuid.NewString(), Audio: buf}
}

// RawSegment returns the segment spanning the entire document.
func (d *Document) RawSegment() *Segment {
	if d.raw == nil {
		d.raw = New(RawLabel, Span{Start: 0, End: d.Audio.Duration()}, d.Audio)
	}
	return d.raw
}
