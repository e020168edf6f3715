// Package pipeline runs one upload through decode, resample, speaker
// segmentation, transcription and response assembly.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garmage/API-CTC-finetuned/internal/audio"
	"github.com/garmage/API-CTC-finetuned/internal/diarize"
	"github.com/garmage/API-CTC-finetuned/internal/segment"
	"github.com/garmage/API-CTC-finetuned/internal/transcribe"
)

const tracerName = "github.com/garmage/API-CTC-finetuned/internal/pipeline"

// Record is one transcript line of the response.
type Record struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Response is the success body of a transcription request.
type Response struct {
	Transcriptions []Record `json:"transcriptions"`
}

type Options struct {
	Decoder            audio.Decoder
	TargetRate         int
	Quality            audio.Quality
	Segmenter          diarize.Segmenter
	Transcriber        transcribe.Transcriber
	TranscriptionLabel string
}

// Pipeline is shared by all requests. It holds configuration and the two
// capabilities only.
type Pipeline struct {
	opts   Options
	tracer trace.Tracer
}

func New(opts Options) *Pipeline {
	if opts.TargetRate <= 0 {
		opts.TargetRate = 16000
	}
	if opts.Quality == "" {
		opts.Quality = audio.QualityHigh
	}
	if opts.TranscriptionLabel == "" {
		opts.TranscriptionLabel = "transcription"
	}
	return &Pipeline{opts: opts, tracer: otel.Tracer(tracerName)}
}

func (p *Pipeline) Segmenter() diarize.Segmenter       { return p.opts.Segmenter }
func (p *Pipeline) Transcriber() transcribe.Transcriber { return p.opts.Transcriber }

// Load decodes data at its native rate and resamples it to the target rate.
// The returned buffer always has exactly one channel.
func (p *Pipeline) Load(ctx context.Context, data []byte) (*audio.Buffer, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.decode", trace.WithAttributes(attribute.Int("bytes", len(data))))
	samples, rate, err := p.opts.Decoder.Decode(ctx, data)
	endSpan(span, err)
	if err != nil {
		return nil, &ProcessingError{Stage: StageDecode, Err: err}
	}

	_, span = p.tracer.Start(ctx, "pipeline.resample", trace.WithAttributes(
		attribute.Int("rate.in", rate),
		attribute.Int("rate.out", p.opts.TargetRate),
	))
	samples, err = audio.Resample(samples, rate, p.opts.TargetRate, p.opts.Quality)
	endSpan(span, err)
	if err != nil {
		return nil, &ProcessingError{Stage: StageResample, Err: err}
	}
	return audio.NewBuffer(samples, p.opts.TargetRate), nil
}

// Run processes one upload. Errors are *ProcessingError and are logged here;
// callers only translate them into responses.
func (p *Pipeline) Run(ctx context.Context, data []byte) (*Response, error) {
	logger := zerolog.Ctx(ctx)

	buf, err := p.Load(ctx, data)
	if err != nil {
		logger.Error().Err(err).Msg("Error processing file")
		return nil, err
	}
	doc := segment.NewDocument(buf)
	logger.Debug().
		Str("document", doc.ID).
		Float64("duration", buf.Duration()).
		Msg("pipeline: audio loaded")

	segCtx, span := p.tracer.Start(ctx, "pipeline.segment", trace.WithAttributes(
		attribute.String("backend", p.opts.Segmenter.Name()),
	))
	turns, err := p.opts.Segmenter.Run(segCtx, []*segment.Segment{doc.RawSegment()})
	endSpan(span, err)
	if err != nil {
		logger.Error().Err(err).Msg("Error processing file")
		return nil, &ProcessingError{Stage: StageSegment, Err: err}
	}

	trCtx, span := p.tracer.Start(ctx, "pipeline.transcribe", trace.WithAttributes(
		attribute.String("backend", p.opts.Transcriber.Name()),
		attribute.Int("segments", len(turns)),
	))
	turns, err = p.opts.Transcriber.Run(trCtx, turns)
	endSpan(span, err)
	if err != nil {
		logger.Error().Stack().Err(errors.WithStack(err)).Msg("Error during transcription")
		return nil, &ProcessingError{Stage: StageTranscribe, Err: err}
	}

	_, span = p.tracer.Start(ctx, "pipeline.assemble")
	records := Assemble(turns, p.opts.TranscriptionLabel)
	span.SetAttributes(attribute.Int("records", len(records)))
	span.End()

	logger.Debug().
		Str("document", doc.ID).
		Int("segments", len(turns)).
		Int("records", len(records)).
		Msg("pipeline: transcription complete")
	return &Response{Transcriptions: records}, nil
}

// Assemble flattens the label attributes of segs into records, in segment
// order and then attribute insertion order. The result is never nil.
func Assemble(segs []*segment.Segment, label string) []Record {
	records := []Record{}
	for _, s := range segs {
		for _, a := range s.Attrs.Get(label) {
			records = append(records, Record{Start: s.Span.Start, End: s.Span.End, Text: a.Value})
		}
	}
	return records
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
