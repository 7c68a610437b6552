package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/observability"
	"github.com/jed1boy/anyfile/transplant"
)

// Merge concatenates the pages of every input, in input order, into
// one document. At least two files are required.
func (p *Pipeline) Merge(ctx context.Context, inputs []Input) (*Result, error) {
	return p.run(ctx, "merge", func(ctx context.Context) (*Result, error) {
		if len(inputs) < 2 {
			return nil, precondition("merge", ErrTooFewFiles)
		}
		dst := document.New()
		for _, in := range inputs {
			origin, perr := p.load(ctx, "merge", in)
			if perr != nil {
				return nil, perr
			}
			if _, err := transplant.All(dst, origin); err != nil {
				return nil, opError("merge", KindMalformedSource, err)
			}
		}
		return p.finish(ctx, "merge", dst, "merged-stack.pdf", document.SaveOptions{})
	})
}

// Extract copies the selected page indices of the input, in the given
// order, into a new document.
func (p *Pipeline) Extract(ctx context.Context, in Input, indices []int) (*Result, error) {
	return p.run(ctx, "extract", func(ctx context.Context) (*Result, error) {
		if len(indices) == 0 {
			return nil, precondition("extract", ErrNoPagesSelected)
		}
		origin, perr := p.load(ctx, "extract", in)
		if perr != nil {
			return nil, perr
		}
		dst := document.New()
		if _, err := transplant.Pages(dst, origin, indices, nil); err != nil {
			return nil, classifyTransplant("extract", err)
		}
		return p.finish(ctx, "extract", dst, outputName("extracted-", in.Name, "extracted.pdf"), document.SaveOptions{})
	})
}

// Rotate adds angle degrees to every page's existing rotation. Valid
// angles are 90, 180 and 270.
func (p *Pipeline) Rotate(ctx context.Context, in Input, angle int) (*Result, error) {
	return p.run(ctx, "rotate", func(ctx context.Context) (*Result, error) {
		switch angle {
		case 90, 180, 270:
		default:
			return nil, precondition("rotate", fmt.Errorf("%w: got %d", ErrInvalidAngle, angle))
		}
		doc, perr := p.load(ctx, "rotate", in)
		if perr != nil {
			return nil, perr
		}
		for _, page := range doc.Pages() {
			page.Rotate(angle)
		}
		return p.finish(ctx, "rotate", doc, outputName("rotated-", in.Name, "rotated.pdf"), document.SaveOptions{})
	})
}

// PageInstruction is one entry of an organize request: which source
// page, an additional rotation, and whether the page is dropped.
type PageInstruction struct {
	OriginalIndex int
	Rotation      int
	Deleted       bool
}

// Organize rebuilds the document per instructions: pages appear in
// instruction order, deleted entries are excluded, and each entry's
// rotation is added to the page's existing one. Duplicated indices
// yield independent page copies.
func (p *Pipeline) Organize(ctx context.Context, in Input, instructions []PageInstruction) (*Result, error) {
	return p.run(ctx, "organize", func(ctx context.Context) (*Result, error) {
		var indices []int
		rotations := make(map[int]int)
		for _, inst := range instructions {
			if inst.Deleted {
				continue
			}
			if inst.Rotation != 0 {
				rotations[len(indices)] = inst.Rotation
			}
			indices = append(indices, inst.OriginalIndex)
		}
		if len(indices) == 0 {
			return nil, precondition("organize", ErrNoPagesSelected)
		}
		origin, perr := p.load(ctx, "organize", in)
		if perr != nil {
			return nil, perr
		}
		dst := document.New()
		if _, err := transplant.Pages(dst, origin, indices, rotations); err != nil {
			return nil, classifyTransplant("organize", err)
		}
		return p.finish(ctx, "organize", dst, outputName("organized-", in.Name, "organized.pdf"), document.SaveOptions{})
	})
}

func classifyTransplant(op string, err error) *Error {
	if errors.Is(err, transplant.ErrIndexOutOfRange) {
		return opError(op, KindIndexOutOfRange, err)
	}
	return opError(op, KindMalformedSource, err)
}

// finish serializes doc inside a save span and assembles the Result.
func (p *Pipeline) finish(ctx context.Context, op string, doc *document.Document, filename string, opts document.SaveOptions) (*Result, error) {
	_, span := p.tracer.StartSpan(ctx, "pipeline.save")
	defer span.Finish()

	started := time.Now()
	data, err := doc.Save(opts)
	if err != nil {
		span.SetError(err)
		return nil, opError(op, KindUnknown, err)
	}
	span.SetTag(observability.MetricSaveTime, time.Since(started))
	span.SetTag(observability.MetricPageCount, doc.PageCount())
	return &Result{Data: data, Filename: filename, Pages: doc.PageCount()}, nil
}
