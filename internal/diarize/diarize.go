// Package diarize splits audio segments into speaker turns.
//
// Backends are registered by name and chosen once at start-up:
//
//   - pyannote: HTTP sidecar running a pyannote diarization pipeline
//   - vad: Silero voice activity detection (build tag silero_vad)
//   - energy: frame energy voice activity detection, no model required
//
// Every backend returns segments labelled TurnLabel that carry one speaker
// attribute under Config.OutputLabel.
package diarize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garmage/API-CTC-finetuned/internal/segment"
)

// TurnLabel is the label of the segments produced by a Segmenter.
const TurnLabel = "turn"

// VADName is registered in every build; without the silero_vad tag its
// factory returns an error.
const VADName = "vad"

// Segmenter cuts input segments into speaker turns. Implementations hold
// configuration only and are safe for concurrent use.
type Segmenter interface {
	Name() string
	// IsAvailable reports whether the backend can serve requests.
	IsAvailable(ctx context.Context) bool
	Run(ctx context.Context, segs []*segment.Segment) ([]*segment.Segment, error)
}

// Config is shared by all segmenter backends. Each backend reads the fields
// it needs.
type Config struct {
	Model                 string
	Device                int
	SegmentationBatchSize int
	EmbeddingBatchSize    int
	OutputLabel           string

	// sidecar backends
	URL     string
	Timeout time.Duration

	// local backends
	ModelsDir string
	Threshold float64
}

func (c *Config) setDefaults() {
	if c.OutputLabel == "" {
		c.OutputLabel = "speaker"
	}
	if c.SegmentationBatchSize <= 0 {
		c.SegmentationBatchSize = 10
	}
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = 10
	}
}

// Factory builds a Segmenter from configuration.
type Factory func(cfg Config) (Segmenter, error)

// Registry maps backend names to factories.
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
	r.Register(PyannoteName, NewPyannote)
	r.Register(VADName, NewVAD)
	r.Register(EnergyName, NewEnergy)
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New instantiates the named backend.
func (r *Registry) New(name string, cfg Config) (Segmenter, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("segmenter backend %q not registered (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	cfg.setDefaults()
	return f(cfg)
}

// Names returns the registered backend names, sorted.
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
