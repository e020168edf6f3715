// Package transcribe attaches transcription attributes to audio segments.
package transcribe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

// Transcriber attaches one text attribute under Config.OutputLabel to every
// input segment. Run mutates the segments in place and returns the same slice.
type Transcriber interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error)
}

type Config struct {
	Model        string
	Language     string
	Device       int
	BatchSize    int
	NeedsDecoder bool
	OutputLabel  string

	// sidecar
	URL     string
	Timeout time.Duration

	// openai
	APIKey  string
	BaseURL string

	// whispercpp
	ModelPath string
	Threads   int
}

func (c *Config) setDefaults() {
	if c.OutputLabel == "" {
		c.OutputLabel = "transcription"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
}

type Factory func(cfg Config) (Transcriber, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding every built-in backend.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SidecarName, NewSidecar)
	r.Register(OpenAIName, NewOpenAI)
	r.Register(WhisperCPPName, NewWhisperCPP)
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) New(name string, cfg Config) (Transcriber, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transcriber backend %q not registered (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	cfg.setDefaults()
	return f(cfg)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// transcribeFunc turns one segment into text. It is only called for
// segments that carry audio.
type transcribeFunc func(ctx context.Context, seg *segment.Segment) (string, error)

// runBatched calls fn for every segment in groups of batchSize, running the
// members of a group concurrently. Texts are attached in input order after
// all groups succeed, so a failure leaves the segments untouched.
func runBatched(ctx context.Context, segs []*segment.Segment, batchSize int, label string, fn transcribeFunc) ([]*segment.Segment, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	texts := make([]string, len(segs))
	errs := make([]error, len(segs))

	for lo := 0; lo < len(segs); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+batchSize, len(segs))

		var wg sync.WaitGroup
		for i := lo; i < hi; i++ {
			seg := segs[i]
			if seg.Audio == nil || seg.Audio.Len() == 0 {
				continue
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				text, err := fn(ctx, seg)
				texts[i], errs[i] = strings.TrimSpace(text), err
			}(i)
		}
		wg.Wait()

		for i := lo; i < hi; i++ {
			if errs[i] != nil {
				return nil, fmt.Errorf("segment %d [%.2f-%.2f]: %w", i, segs[i].Span.Start, segs[i].Span.End, errs[i])
			}
		}
	}

	for i, seg := range segs {
		seg.Attrs.Add(segment.NewAttribute(label, texts[i]))
	}
	return segs, nil
}
