// Package pipeline exposes one entry point per document tool: merge,
// extract, rotate, organize, compress, watermark, images to PDF,
// encrypt, decrypt, markup to PDF and pages to images. Each operation
// validates its preconditions, runs the engines, and returns either a
// complete output buffer with a suggested filename or a classified
// *Error. No operation emits partial output, and none mutates its
// input.
package pipeline

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/observability"
)

// Input is one named file handed to an operation.
type Input struct {
	Name string
	Data []byte
}

// Result is a completed operation's output.
type Result struct {
	Data     []byte
	Filename string
	// Pages is the page count of the output document.
	Pages int
	// Reduction is the size reduction of a compress run, computed as
	// 1 - output/input. It is not clamped and may be negative.
	Reduction float64
	// Skipped lists input names excluded from an images-to-PDF run.
	Skipped []string
}

// Pipeline runs the document operations. The zero configuration logs
// and traces nowhere.
type Pipeline struct {
	log    observability.Logger
	tracer observability.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger routes operation logs to log.
func WithLogger(log observability.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithTracer wraps every operation in a span.
func WithTracer(tracer observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = tracer }
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		log:    observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run wraps one operation with tracing and start/finish/failure logs.
func (p *Pipeline) run(ctx context.Context, op string, fn func(context.Context) (*Result, error)) (*Result, error) {
	ctx, span := p.tracer.StartSpan(ctx, "pipeline."+op)
	defer span.Finish()

	started := time.Now()
	p.log.Debug("operation started", observability.String("op", op))

	res, err := fn(ctx)
	elapsed := time.Since(started)
	if err != nil {
		span.SetError(err)
		p.log.Error("operation failed",
			observability.String("op", op),
			observability.Error("error", err))
		return nil, err
	}
	span.SetTag(observability.MetricOperationTime, elapsed)
	span.SetTag(observability.MetricOutputBytes, len(res.Data))
	p.log.Info("operation finished",
		observability.String("op", op),
		observability.Int("bytes", len(res.Data)),
		observability.Int("pages", res.Pages),
		observability.Int64("duration_ms", elapsed.Milliseconds()))
	return res, nil
}

// load opens one input document inside a child span, classifying
// failures.
func (p *Pipeline) load(ctx context.Context, op string, in Input, opts ...document.LoadOption) (*document.Document, *Error) {
	_, span := p.tracer.StartSpan(ctx, "pipeline.load")
	defer span.Finish()

	started := time.Now()
	doc, err := document.Load(in.Data, opts...)
	if err != nil {
		span.SetError(err)
		return nil, classifyLoad(op, err)
	}
	span.SetTag(observability.MetricLoadTime, time.Since(started))
	span.SetTag(observability.MetricObjectCount, doc.Graph().Len())
	return doc, nil
}

// rasterPhase runs fn inside a span that records the total
// rasterization duration.
func (p *Pipeline) rasterPhase(ctx context.Context, fn func(context.Context) error) error {
	ctx, span := p.tracer.StartSpan(ctx, "pipeline.raster")
	defer span.Finish()

	started := time.Now()
	if err := fn(ctx); err != nil {
		span.SetError(err)
		return err
	}
	span.SetTag(observability.MetricRasterTime, time.Since(started))
	return nil
}

// outputName derives a download filename by prefixing the input's base
// name, switching the extension to .pdf.
func outputName(prefix, inputName, fallback string) string {
	base := path.Base(strings.ReplaceAll(inputName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return prefix + base + ".pdf"
}
