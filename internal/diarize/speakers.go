package diarize

import (
	"fmt"

	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

// speakerGap is the silence, in seconds, after which the gap heuristic
// switches speaker.
const speakerGap = 1.5

func speakerName(i int) string {
	return fmt.Sprintf("SPEAKER_%02d", i)
}

// assignSpeakersByGap labels turns for backends that only detect speech. It
// alternates between two speakers whenever the silence between consecutive
// turns exceeds speakerGap.
func assignSpeakersByGap(turns []*segment.Segment, label string) {
	speaker := 0
	for i, t := range turns {
		if i > 0 && t.Span.Start-turns[i-1].Span.End > speakerGap {
			speaker = 1 - speaker
		}
		t.Attrs.Add(segment.NewAttribute(label, speakerName(speaker)))
	}
}
