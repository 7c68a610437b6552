// Package parser turns raw bytes into an object graph. It resolves the
// cross-reference chain, expands object streams, and decrypts protected
// documents through the security handler.
//
// Failures are classified structurally: errors wrap ErrMalformed for
// unparsable input and security.ErrIncorrectPassword when a protected
// document rejects the supplied password. Callers never inspect error
// text.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jed1boy/anyfile/filters"
	"github.com/jed1boy/anyfile/object"
	"github.com/jed1boy/anyfile/observability"
	"github.com/jed1boy/anyfile/security"
	"github.com/jed1boy/anyfile/xref"
)

// ErrMalformed marks input that could not be parsed as a document.
var ErrMalformed = errors.New("malformed document")

// Result is the outcome of a successful load.
type Result struct {
	Graph           *object.Graph
	Encrypted       bool
	OwnerAuthorized bool
	Permissions     security.Permissions
	Handler         *security.Handler
}

// Loader parses documents. A zero-configuration loader comes from
// NewLoaderBuilder().Build().
type Loader struct {
	pipeline *filters.Pipeline
	password string
	log      observability.Logger
}

type LoaderBuilder struct {
	limits   filters.Limits
	password string
	log      observability.Logger
}

func NewLoaderBuilder() *LoaderBuilder { return &LoaderBuilder{} }

func (b *LoaderBuilder) WithPassword(pw string) *LoaderBuilder { b.password = pw; return b }

func (b *LoaderBuilder) WithFilterLimits(l filters.Limits) *LoaderBuilder { b.limits = l; return b }

func (b *LoaderBuilder) WithLogger(log observability.Logger) *LoaderBuilder { b.log = log; return b }

func (b *LoaderBuilder) Build() *Loader {
	log := b.log
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Loader{
		pipeline: filters.NewPipeline(b.limits),
		password: b.password,
		log:      log,
	}
}

// Load parses data into a graph. The password given to the builder is
// used when the document is encrypted; an empty password is attempted
// for documents protected with only an owner password.
func (l *Loader) Load(data []byte) (*Result, error) {
	version, err := headerVersion(data)
	if err != nil {
		return nil, err
	}

	graph := object.NewGraph()
	graph.Version = version

	table, trailer, err := l.resolveXRefChain(data)
	if err != nil {
		l.log.Warn("falling back to full object scan",
			observability.Error("error", err))
		table, trailer, err = l.bruteForceScan(data)
		if err != nil {
			return nil, err
		}
	}
	graph.Trailer = trailer

	if err := l.loadFileObjects(data, graph, table); err != nil {
		return nil, err
	}

	res := &Result{Graph: graph, Permissions: security.AllPermissions()}
	if err := l.decryptGraph(graph, res); err != nil {
		return nil, err
	}
	if err := l.expandObjectStreams(graph, table); err != nil {
		return nil, err
	}

	if _, ok := graph.Root(); !ok {
		return nil, fmt.Errorf("%w: no document catalog", ErrMalformed)
	}
	return res, nil
}

func headerVersion(data []byte) (string, error) {
	limit := len(data)
	if limit > 1024 {
		limit = 1024
	}
	idx := bytes.Index(data[:limit], []byte("%PDF-"))
	if idx < 0 {
		return "", fmt.Errorf("%w: missing header", ErrMalformed)
	}
	end := idx + 5
	for end < len(data) && end < idx+8+5 && !isWhitespace(data[end]) {
		end++
	}
	return string(data[idx+5 : end]), nil
}

// resolveXRefChain walks startxref and every /Prev (and hybrid
// /XRefStm) section, newest first, merging entries and trailer keys.
func (l *Loader) resolveXRefChain(data []byte) (*xref.Table, *object.Dict, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, nil, err
	}

	table := xref.NewTable()
	merged := object.NewDict()
	seen := make(map[int64]bool)
	offset := start
	for offset >= 0 {
		if seen[offset] || offset >= int64(len(data)) {
			break
		}
		seen[offset] = true
		section, err := l.readXRefSection(data, offset, table)
		if err != nil {
			return nil, nil, err
		}
		// newest sections win on trailer keys
		for _, key := range section.Keys() {
			if !merged.Has(key) {
				merged.Set(key, section.Get(key))
			}
		}
		offset = -1
		if prev, ok := object.AsInt(section.Get("XRefStm")); ok {
			// hybrid files carry a parallel xref stream
			if !seen[prev] {
				if _, err := l.readXRefSection(data, prev, table); err == nil {
					seen[prev] = true
				}
			}
		}
		if prev, ok := object.AsInt(section.Get("Prev")); ok {
			offset = prev
		}
	}
	if table.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: empty cross-reference table", ErrMalformed)
	}
	return table, merged, nil
}

func findStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("%w: missing startxref", ErrMalformed)
	}
	t := newTokenReader(tail)
	t.seek(int64(idx + len("startxref")))
	tok, err := t.next()
	if err != nil || tok.kind != tokNumber {
		return 0, fmt.Errorf("%w: unreadable startxref value", ErrMalformed)
	}
	v, err := strconv.ParseInt(string(tok.val), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unreadable startxref value", ErrMalformed)
	}
	return v, nil
}

// readXRefSection parses one section, classic or stream, merging its
// entries into table and returning its trailer dictionary.
func (l *Loader) readXRefSection(data []byte, offset int64, table *xref.Table) (*object.Dict, error) {
	t := newTokenReader(data)
	t.seek(offset)
	save := t.offset()
	tok, err := t.next()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if tok.kind == tokKeyword && string(tok.val) == "xref" {
		pos, err := table.ParseClassicSection(data, t.offset())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		t.seek(pos)
		trailerTok, err := t.next()
		if err != nil || trailerTok.kind != tokKeyword || string(trailerTok.val) != "trailer" {
			return nil, fmt.Errorf("%w: missing trailer keyword", ErrMalformed)
		}
		obj, err := t.parseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		dict, ok := obj.(*object.Dict)
		if !ok {
			return nil, fmt.Errorf("%w: trailer is not a dictionary", ErrMalformed)
		}
		return dict, nil
	}

	// cross-reference stream
	t.seek(save)
	_, body, err := t.parseIndirect(directLength(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	stream, ok := body.(*object.Stream)
	if !ok {
		return nil, fmt.Errorf("%w: xref offset points at a non-stream", ErrMalformed)
	}
	if typ, _ := object.AsName(stream.Dict.Get("Type")); typ != "XRef" {
		return nil, fmt.Errorf("%w: xref stream has type %q", ErrMalformed, typ)
	}

	scratch := object.NewGraph()
	decoded, err := l.pipeline.DecodeStream(scratch, stream)
	if err != nil {
		return nil, fmt.Errorf("%w: xref stream decode: %v", ErrMalformed, err)
	}
	w := xref.IntsFromArray(scratch, stream.Dict.Get("W"))
	index := xref.IntsFromArray(scratch, stream.Dict.Get("Index"))
	size, _ := object.AsInt(stream.Dict.Get("Size"))
	if err := table.MergeStreamEntries(decoded, w, index, int(size)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return stream.Dict, nil
}

// directLength resolves a stream /Length that is an indirect reference
// by parsing the referenced object in place. The xref table is not
// available yet at the call sites that need this, so an unresolvable
// length falls back to the endstream scan.
func directLength(data []byte) func(object.Object) (int64, bool) {
	return func(o object.Object) (int64, bool) {
		if v, ok := object.AsInt(o); ok {
			return v, true
		}
		return 0, false
	}
}

func (l *Loader) loadFileObjects(data []byte, graph *object.Graph, table *xref.Table) error {
	resolve := func(o object.Object) (int64, bool) {
		if v, ok := object.AsInt(o); ok {
			return v, true
		}
		ref, ok := o.(object.Reference)
		if !ok {
			return 0, false
		}
		entry, ok := table.Lookup(ref.R.Num)
		if !ok || entry.Type != xref.InFile {
			return 0, false
		}
		t := newTokenReader(data)
		t.seek(entry.Offset)
		if _, body, err := t.parseIndirect(directLength(data)); err == nil {
			if v, ok := object.AsInt(body); ok {
				return v, true
			}
		}
		return 0, false
	}

	for _, num := range table.Numbers() {
		entry, _ := table.Lookup(num)
		if entry.Type != xref.InFile {
			continue
		}
		if entry.Offset <= 0 || entry.Offset >= int64(len(data)) {
			continue
		}
		t := newTokenReader(data)
		t.seek(entry.Offset)
		ref, body, err := t.parseIndirect(resolve)
		if err != nil {
			l.log.Warn("skipping unreadable object",
				observability.Int("object", num),
				observability.Error("error", err))
			continue
		}
		if ref.Num != num {
			// offset drift; trust the object's own numbering
			l.log.Warn("xref offset mismatch",
				observability.Int("expected", num),
				observability.Int("found", ref.Num))
		}
		graph.Put(ref, body)
	}
	if graph.Len() == 0 {
		return fmt.Errorf("%w: no objects", ErrMalformed)
	}
	return nil
}

// decryptGraph authenticates against the Encrypt dictionary, if any,
// and decrypts every string and stream in place. Cross-reference
// streams and the Encrypt dictionary itself stay untouched.
func (l *Loader) decryptGraph(graph *object.Graph, res *Result) error {
	encObj := graph.Trailer.Get("Encrypt")
	if encObj == nil {
		return nil
	}
	var encRef object.Ref
	if r, ok := encObj.(object.Reference); ok {
		encRef = r.R
	}
	enc, ok := graph.ResolveDict(encObj)
	if !ok {
		return fmt.Errorf("%w: Encrypt entry is not a dictionary", ErrMalformed)
	}

	handler, err := security.NewHandlerBuilder().
		WithEncryptDict(enc).
		WithFileID(trailerFileID(graph)).
		Build()
	if err != nil {
		return err
	}
	if err := handler.Authenticate(l.password); err != nil {
		return err
	}

	res.Encrypted = true
	res.OwnerAuthorized = handler.OwnerAuthorized()
	res.Permissions = handler.Permissions()
	res.Handler = handler

	for _, ref := range graph.Refs() {
		if ref == encRef {
			continue
		}
		obj, _ := graph.Get(ref)
		decrypted, err := decryptObject(handler, ref, obj)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		graph.Put(ref, decrypted)
	}

	// the graph is plaintext now
	graph.Trailer.Delete("Encrypt")
	return nil
}

func decryptObject(h *security.Handler, ref object.Ref, o object.Object) (object.Object, error) {
	switch v := o.(type) {
	case object.String:
		plain, err := h.Decrypt(ref, v.Bytes, security.ClassString)
		if err != nil {
			return nil, err
		}
		return object.String{Bytes: plain, Hex: v.Hex}, nil
	case *object.Array:
		for i, item := range v.Items {
			out, err := decryptObject(h, ref, item)
			if err != nil {
				return nil, err
			}
			v.Items[i] = out
		}
		return v, nil
	case *object.Dict:
		for _, key := range v.Keys() {
			out, err := decryptObject(h, ref, v.Get(key))
			if err != nil {
				return nil, err
			}
			v.Set(key, out)
		}
		return v, nil
	case *object.Stream:
		if typ, _ := object.AsName(v.Dict.Get("Type")); typ == "XRef" {
			return v, nil
		}
		if _, err := decryptObject(h, ref, v.Dict); err != nil {
			return nil, err
		}
		class := security.ClassStream
		if typ, _ := object.AsName(v.Dict.Get("Type")); typ == "Metadata" {
			class = security.ClassMetadata
		}
		plain, err := h.Decrypt(ref, v.Data, class)
		if err != nil {
			return nil, err
		}
		v.Data = plain
		v.Dict.Set("Length", object.Integer(len(plain)))
		return v, nil
	default:
		return o, nil
	}
}

func trailerFileID(graph *object.Graph) []byte {
	arr, ok := graph.ResolveArray(graph.Trailer.Get("ID"))
	if !ok || arr.Len() == 0 {
		return nil
	}
	id, _ := object.AsString(arr.Get(0))
	return id
}

// expandObjectStreams parses the objects packed inside ObjStm
// containers into the graph.
func (l *Loader) expandObjectStreams(graph *object.Graph, table *xref.Table) error {
	wanted := make(map[int]bool)
	for _, num := range table.Numbers() {
		entry, _ := table.Lookup(num)
		if entry.Type == xref.InObjectStream {
			wanted[entry.StreamNum] = true
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	for streamNum := range wanted {
		container, ok := graph.ResolveStream(object.MakeRef(streamNum, 0))
		if !ok {
			l.log.Warn("object stream missing",
				observability.Int("stream", streamNum))
			continue
		}
		if err := l.expandOne(graph, container); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) expandOne(graph *object.Graph, container *object.Stream) error {
	decoded, err := l.pipeline.DecodeStream(graph, container)
	if err != nil {
		return fmt.Errorf("%w: object stream decode: %v", ErrMalformed, err)
	}
	n, _ := graph.ResolveInt(container.Dict.Get("N"))
	first, _ := graph.ResolveInt(container.Dict.Get("First"))
	if n <= 0 || first <= 0 || first > int64(len(decoded)) {
		return fmt.Errorf("%w: object stream header invalid", ErrMalformed)
	}

	header := newTokenReader(decoded[:first])
	type slot struct {
		num    int
		offset int64
	}
	slots := make([]slot, 0, n)
	for i := int64(0); i < n; i++ {
		numTok, err := header.next()
		if err != nil || numTok.kind != tokNumber {
			return fmt.Errorf("%w: object stream index truncated", ErrMalformed)
		}
		offTok, err := header.next()
		if err != nil || offTok.kind != tokNumber {
			return fmt.Errorf("%w: object stream index truncated", ErrMalformed)
		}
		num, _ := strconv.Atoi(string(numTok.val))
		off, _ := strconv.ParseInt(string(offTok.val), 10, 64)
		slots = append(slots, slot{num, off})
	}

	body := newTokenReader(decoded)
	for _, s := range slots {
		ref := object.Ref{Num: s.num}
		if _, exists := graph.Get(ref); exists {
			// a file-level revision shadows the packed copy
			continue
		}
		body.seek(first + s.offset)
		obj, err := body.parseObject()
		if err != nil {
			return fmt.Errorf("%w: packed object %d: %v", ErrMalformed, s.num, err)
		}
		graph.Put(ref, obj)
	}
	return nil
}

var objHeaderPattern = regexp.MustCompile(`(?m)^(\d+)\s+(\d+)\s+obj\b`)

// bruteForceScan rebuilds a table by scanning for object headers when
// the cross-reference chain is unusable.
func (l *Loader) bruteForceScan(data []byte) (*xref.Table, *object.Dict, error) {
	table := xref.NewTable()
	matches := objHeaderPattern.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("%w: no indirect objects found", ErrMalformed)
	}
	// walk backwards so the newest definition of each number wins
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		table.Add(num, xref.Entry{Type: xref.InFile, Offset: int64(m[0]), Gen: gen})
	}

	trailer := object.NewDict()
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		t := newTokenReader(data)
		t.seek(int64(idx + len("trailer")))
		if obj, err := t.parseObject(); err == nil {
			if dict, ok := obj.(*object.Dict); ok {
				trailer = dict
			}
		}
	}
	if !trailer.Has("Root") {
		// locate the catalog directly
		for _, m := range matches {
			t := newTokenReader(data)
			t.seek(int64(m[2]))
			ref, body, err := t.parseIndirect(directLength(data))
			if err != nil {
				continue
			}
			if dict, ok := body.(*object.Dict); ok {
				if typ, _ := object.AsName(dict.Get("Type")); typ == "Catalog" {
					trailer.Set("Root", object.MakeRef(ref.Num, ref.Gen))
					break
				}
			}
		}
	}
	if !trailer.Has("Root") {
		return nil, nil, fmt.Errorf("%w: recovery found no catalog", ErrMalformed)
	}
	return table, trailer, nil
}
