// Package document provides the mutable document model the pipeline
// operations work on: an ordered page list over an object graph, the
// information dictionary, and the security state of a loaded file.
package document

import (
	"errors"
	"fmt"

	"github.com/jed1boy/anyfile/object"
	"github.com/jed1boy/anyfile/observability"
	"github.com/jed1boy/anyfile/parser"
	"github.com/jed1boy/anyfile/security"
	"github.com/jed1boy/anyfile/writer"
)

// ErrPageIndex marks a page index outside the document.
var ErrPageIndex = errors.New("page index out of range")

// SecurityDescriptor reports the security state of a loaded document.
// It is nil for unencrypted documents.
type SecurityDescriptor struct {
	OwnerAuthorized bool
	Permissions     security.Permissions
}

// Document is one open document. It owns its graph exclusively; no
// state is shared between documents or across operations.
type Document struct {
	graph    *object.Graph
	pagesRef object.Ref
	pages    []*Page
	security *SecurityDescriptor
	log      observability.Logger
}

// New creates an empty document with no pages.
func New() *Document {
	g := object.NewGraph()

	pages := object.NewDict()
	pages.Set("Type", object.Name("Pages"))
	pages.Set("Kids", &object.Array{})
	pages.Set("Count", object.Integer(0))
	pagesRef := g.Add(pages)

	catalog := object.NewDict()
	catalog.Set("Type", object.Name("Catalog"))
	catalog.Set("Pages", object.MakeRef(pagesRef.Num, pagesRef.Gen))
	catalogRef := g.Add(catalog)

	g.Trailer.Set("Root", object.MakeRef(catalogRef.Num, catalogRef.Gen))

	return &Document{graph: g, pagesRef: pagesRef, log: observability.NopLogger{}}
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	password string
	log      observability.Logger
}

// WithPassword supplies the password for an encrypted document.
func WithPassword(pw string) LoadOption {
	return func(c *loadConfig) { c.password = pw }
}

func WithLogger(log observability.Logger) LoadOption {
	return func(c *loadConfig) { c.log = log }
}

// Load parses data into a document. Encrypted input is decrypted in
// memory; the password error contract is the parser's.
func Load(data []byte, opts ...LoadOption) (*Document, error) {
	cfg := loadConfig{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := parser.NewLoaderBuilder().
		WithPassword(cfg.password).
		WithLogger(cfg.log).
		Build().
		Load(data)
	if err != nil {
		return nil, err
	}

	d := &Document{graph: res.Graph, log: cfg.log}
	if res.Encrypted {
		d.security = &SecurityDescriptor{
			OwnerAuthorized: res.OwnerAuthorized,
			Permissions:     res.Permissions,
		}
	}
	if err := d.collectPages(); err != nil {
		return nil, err
	}
	d.log.Debug("document loaded",
		observability.Int("pages", len(d.pages)),
		observability.Int("objects", res.Graph.Len()))
	return d, nil
}

// Graph exposes the underlying object graph.
func (d *Document) Graph() *object.Graph { return d.graph }

// Security returns the security descriptor, nil when the document was
// not encrypted.
func (d *Document) Security() *SecurityDescriptor { return d.security }

func (d *Document) PageCount() int { return len(d.pages) }

func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageIndex, i, len(d.pages))
	}
	return d.pages[i], nil
}

// Pages returns the pages in document order.
func (d *Document) Pages() []*Page {
	out := make([]*Page, len(d.pages))
	copy(out, d.pages)
	return out
}

// collectPages walks the page tree depth first, tracking the
// inheritable attributes along the path.
func (d *Document) collectPages() error {
	root, ok := d.graph.Root()
	if !ok {
		return fmt.Errorf("%w: no catalog", parser.ErrMalformed)
	}
	pagesObj := root.Get("Pages")
	if ref, ok := pagesObj.(object.Reference); ok {
		d.pagesRef = ref.R
	}
	pagesDict, ok := d.graph.ResolveDict(pagesObj)
	if !ok {
		return fmt.Errorf("%w: no page tree", parser.ErrMalformed)
	}
	seen := make(map[object.Ref]bool)
	return d.walkPages(pagesDict, inherited{}, seen)
}

type inherited struct {
	mediaBox  *object.Array
	resources *object.Dict
	rotate    object.Object
}

func (d *Document) walkPages(node *object.Dict, inh inherited, seen map[object.Ref]bool) error {
	if mb, ok := d.graph.ResolveArray(node.Get("MediaBox")); ok {
		inh.mediaBox = mb
	}
	if res, ok := d.graph.ResolveDict(node.Get("Resources")); ok {
		inh.resources = res
	}
	if r := node.Get("Rotate"); r != nil {
		inh.rotate = r
	}

	kids, ok := d.graph.ResolveArray(node.Get("Kids"))
	if !ok {
		return fmt.Errorf("%w: page tree node without kids", parser.ErrMalformed)
	}
	for _, kid := range kids.Items {
		kidRef, isRef := kid.(object.Reference)
		if isRef {
			if seen[kidRef.R] {
				return fmt.Errorf("%w: page tree cycle", parser.ErrMalformed)
			}
			seen[kidRef.R] = true
		}
		kidDict, ok := d.graph.ResolveDict(kid)
		if !ok {
			continue
		}
		typ, _ := d.graph.ResolveName(kidDict.Get("Type"))
		if typ == "Pages" {
			if err := d.walkPages(kidDict, inh, seen); err != nil {
				return err
			}
			continue
		}
		page := &Page{doc: d, dict: kidDict, inh: inh}
		if isRef {
			page.ref = kidRef.R
		}
		d.pages = append(d.pages, page)
	}
	return nil
}

// appendPage links an already-stored page dictionary to the end of the
// page list.
func (d *Document) appendPage(ref object.Ref, dict *object.Dict) *Page {
	pagesDict, _ := d.graph.ResolveDict(object.Reference{R: d.pagesRef})
	kids, ok := d.graph.ResolveArray(pagesDict.Get("Kids"))
	if !ok {
		kids = &object.Array{}
		pagesDict.Set("Kids", kids)
	}
	kids.Append(object.MakeRef(ref.Num, ref.Gen))
	pagesDict.Set("Count", object.Integer(kids.Len()))
	dict.Set("Parent", object.MakeRef(d.pagesRef.Num, d.pagesRef.Gen))

	page := &Page{doc: d, ref: ref, dict: dict}
	d.pages = append(d.pages, page)
	return page
}

// AdoptPage appends a page dictionary that is already stored in this
// document's graph under ref. Callers copying pages between documents
// use this after rebuilding the page in the destination graph.
func (d *Document) AdoptPage(ref object.Ref, dict *object.Dict) *Page {
	return d.appendPage(ref, dict)
}

// AddPage creates an empty page of the given size in points and
// appends it.
func (d *Document) AddPage(width, height float64) *Page {
	dict := object.NewDict()
	dict.Set("Type", object.Name("Page"))
	dict.Set("MediaBox", &object.Array{Items: []object.Object{
		object.Integer(0), object.Integer(0), object.Real(width), object.Real(height),
	}})
	dict.Set("Resources", object.NewDict())
	ref := d.graph.Add(dict)
	return d.appendPage(ref, dict)
}

// SaveOptions controls serialization of the document.
type SaveOptions struct {
	// ObjectStreams requests object-stream compaction.
	ObjectStreams bool
	// XRefStreams writes a cross-reference stream even without
	// object streams.
	XRefStreams bool
	// CompressStreams flate-encodes unfiltered streams.
	CompressStreams bool
	// Deterministic makes unencrypted output byte-stable.
	Deterministic bool
	// Encryption protects the output with the Standard handler.
	Encryption *security.Options
}

// Save serializes the document. The graph stays valid afterwards.
func (d *Document) Save(opts SaveOptions) ([]byte, error) {
	data, err := writer.New(writer.Config{
		ObjectStreams:   opts.ObjectStreams,
		XRefStreams:     opts.XRefStreams,
		CompressStreams: opts.CompressStreams,
		Deterministic:   opts.Deterministic,
		Encryption:      opts.Encryption,
	}).Write(d.graph)
	if err != nil {
		return nil, err
	}
	d.log.Debug("document saved",
		observability.Int("bytes", len(data)),
		observability.Int("pages", len(d.pages)))
	return data, nil
}
