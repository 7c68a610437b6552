// Package writer serializes an object graph back to bytes: classic or
// stream cross-references, object-stream compaction, optional stream
// compression, and encryption through the security handler.
package writer

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/jed1boy/anyfile/filters"
	"github.com/jed1boy/anyfile/object"
	"github.com/jed1boy/anyfile/security"
)

// Config controls serialization.
type Config struct {
	// ObjectStreams packs eligible objects into compressed object
	// streams. Implies a cross-reference stream.
	ObjectStreams bool
	// XRefStreams writes the cross-reference as a stream instead of a
	// classic table.
	XRefStreams bool
	// CompressStreams flate-encodes streams that carry no filter yet.
	CompressStreams bool
	// Deterministic derives the file ID from the content instead of
	// randomness. Encrypted output stays nondeterministic because the
	// cipher salts every object.
	Deterministic bool
	// Encryption, when set, protects the output with the Standard
	// security handler.
	Encryption *security.Options
}

type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer { return &Writer{cfg: cfg} }

// objects packed per container stream
const objStmCapacity = 100

// Write serializes g. The graph is not modified.
func (w *Writer) Write(g *object.Graph) ([]byte, error) {
	refs := g.Refs()
	if len(refs) == 0 {
		return nil, fmt.Errorf("empty object graph")
	}
	maxNum := refs[len(refs)-1].Num

	fileID := w.fileID(g)

	var handler *security.Handler
	var encDict *object.Dict
	if w.cfg.Encryption != nil {
		var err error
		handler, encDict, err = security.NewStandard(*w.cfg.Encryption, fileID)
		if err != nil {
			return nil, err
		}
	}

	useXRefStream := w.cfg.XRefStreams || w.cfg.ObjectStreams

	// plan object-stream packing before any offsets are known
	packed := make(map[object.Ref]int) // ref -> container index
	var containers [][]object.Ref
	if w.cfg.ObjectStreams {
		containers = planContainers(g, refs, packed)
	}

	var buf bytes.Buffer
	version := g.Version
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	buf.WriteString("%\xc2\xb5\xc2\xb6\n\n")

	offsets := make(map[int]int64)
	gens := make(map[int]int)

	writeObj := func(ref object.Ref, body object.Object) error {
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		if err := w.serializeBody(&buf, ref, body, handler); err != nil {
			return err
		}
		buf.WriteString("\nendobj\n")
		return nil
	}

	for _, ref := range refs {
		if _, isPacked := packed[ref]; isPacked {
			continue
		}
		body, _ := g.Get(ref)
		if err := writeObj(ref, body); err != nil {
			return nil, err
		}
	}

	// container streams
	containerRefs := make([]object.Ref, len(containers))
	for i, members := range containers {
		maxNum++
		containerRefs[i] = object.Ref{Num: maxNum}
		stream, err := buildContainer(g, members)
		if err != nil {
			return nil, err
		}
		if err := writeObj(containerRefs[i], stream); err != nil {
			return nil, err
		}
	}

	var encRef object.Ref
	if encDict != nil {
		maxNum++
		encRef = object.Ref{Num: maxNum}
		offsets[encRef.Num] = int64(buf.Len())
		gens[encRef.Num] = 0
		fmt.Fprintf(&buf, "%d 0 obj\n", encRef.Num)
		// the encryption dictionary itself is written in the clear
		if err := w.serializeBody(&buf, encRef, encDict, nil); err != nil {
			return nil, err
		}
		buf.WriteString("\nendobj\n")
	}

	trailer := w.buildTrailer(g, maxNum+2, fileID, encDict, encRef)

	if useXRefStream {
		maxNum++
		xrefRef := object.Ref{Num: maxNum}
		trailer.Set("Size", object.Integer(maxNum+1))
		if err := w.writeXRefStream(&buf, xrefRef, trailer, offsets, gens, packed, containers, containerRefs); err != nil {
			return nil, err
		}
	} else {
		w.writeClassicXRef(&buf, trailer, offsets, gens, maxNum)
	}
	return buf.Bytes(), nil
}

// fileID derives the trailer ID entry.
func (w *Writer) fileID(g *object.Graph) []byte {
	if w.cfg.Deterministic {
		h := sha256.New()
		for _, ref := range g.Refs() {
			fmt.Fprintf(h, "%d %d ", ref.Num, ref.Gen)
			if s, ok := g.Get(ref); ok {
				if stream, ok := s.(*object.Stream); ok {
					h.Write(stream.Data)
				}
			}
		}
		sum := h.Sum(nil)
		return sum[:16]
	}
	id := make([]byte, 16)
	rand.Read(id)
	return id
}

func (w *Writer) buildTrailer(g *object.Graph, size int, fileID []byte, encDict *object.Dict, encRef object.Ref) *object.Dict {
	trailer := object.NewDict()
	trailer.Set("Size", object.Integer(size))
	for _, key := range []object.Name{"Root", "Info"} {
		if v := g.Trailer.Get(key); v != nil {
			trailer.Set(key, v)
		}
	}
	if encDict != nil {
		trailer.Set("Encrypt", object.MakeRef(encRef.Num, encRef.Gen))
	}
	ids := &object.Array{}
	ids.Append(object.String{Bytes: fileID, Hex: true}, object.String{Bytes: fileID, Hex: true})
	trailer.Set("ID", ids)
	return trailer
}

func (w *Writer) writeClassicXRef(buf *bytes.Buffer, trailer *object.Dict, offsets map[int]int64, gens map[int]int, maxNum int) {
	xrefStart := int64(buf.Len())
	buf.WriteString("xref\n")
	fmt.Fprintf(buf, "0 %d\n", maxNum+1)
	fmt.Fprintf(buf, "%010d %05d f \n", 0, 65535)
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(buf, "%010d %05d n \n", off, gens[num])
		} else {
			fmt.Fprintf(buf, "%010d %05d f \n", 0, 0)
		}
	}
	trailer.Set("Size", object.Integer(maxNum+1))
	buf.WriteString("trailer\n")
	serializePrimitive(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefStart)
}

func (w *Writer) writeXRefStream(buf *bytes.Buffer, xrefRef object.Ref, trailer *object.Dict,
	offsets map[int]int64, gens map[int]int,
	packed map[object.Ref]int, containers [][]object.Ref, containerRefs []object.Ref) error {

	xrefStart := int64(buf.Len())
	offsets[xrefRef.Num] = xrefStart
	gens[xrefRef.Num] = 0

	// per-object entry rows, 5-byte offsets
	type row struct {
		num  int
		data [8]byte
	}
	var rows []row

	addRow := func(num int, typ byte, f2 int64, f3 int) {
		var r row
		r.num = num
		r.data[0] = typ
		r.data[1] = byte(f2 >> 32)
		r.data[2] = byte(f2 >> 24)
		r.data[3] = byte(f2 >> 16)
		r.data[4] = byte(f2 >> 8)
		r.data[5] = byte(f2)
		r.data[6] = byte(f3 >> 8)
		r.data[7] = byte(f3)
		rows = append(rows, r)
	}

	addRow(0, 0, 0, 65535)
	for num, off := range offsets {
		addRow(num, 1, off, gens[num])
	}
	for ref, containerIdx := range packed {
		idx := indexIn(containers[containerIdx], ref)
		addRow(ref.Num, 2, int64(containerRefs[containerIdx].Num), idx)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].num < rows[j].num })

	// contiguous runs for /Index
	index := &object.Array{}
	var data []byte
	runStart := 0
	for i := 0; i < len(rows); i++ {
		if i > 0 && rows[i].num != rows[i-1].num+1 {
			index.Append(object.Integer(rows[runStart].num), object.Integer(i-runStart))
			runStart = i
		}
		data = append(data, rows[i].data[:]...)
	}
	index.Append(object.Integer(rows[runStart].num), object.Integer(len(rows)-runStart))

	encoded, err := filters.FlateEncode(data)
	if err != nil {
		return err
	}

	dict := object.NewDict()
	dict.Set("Type", object.Name("XRef"))
	dict.Set("W", &object.Array{Items: []object.Object{object.Integer(1), object.Integer(5), object.Integer(2)}})
	dict.Set("Index", index)
	dict.Set("Filter", object.Name("FlateDecode"))
	for _, key := range trailer.Keys() {
		dict.Set(key, trailer.Get(key))
	}
	stream := object.NewStream(dict, encoded)

	fmt.Fprintf(buf, "%d 0 obj\n", xrefRef.Num)
	// never encrypted, whatever the document's handler does
	if err := w.serializeBody(buf, xrefRef, stream, nil); err != nil {
		return err
	}
	buf.WriteString("\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefStart)
	return nil
}

func indexIn(members []object.Ref, ref object.Ref) int {
	for i, m := range members {
		if m == ref {
			return i
		}
	}
	return 0
}

// planContainers selects the objects to pack. Streams and objects with
// a nonzero generation stay at file level.
func planContainers(g *object.Graph, refs []object.Ref, packed map[object.Ref]int) [][]object.Ref {
	var containers [][]object.Ref
	var current []object.Ref
	for _, ref := range refs {
		body, _ := g.Get(ref)
		if !packable(ref, body) {
			continue
		}
		current = append(current, ref)
		packed[ref] = len(containers)
		if len(current) == objStmCapacity {
			containers = append(containers, current)
			current = nil
		}
	}
	if len(current) > 0 {
		containers = append(containers, current)
	}
	return containers
}

func packable(ref object.Ref, body object.Object) bool {
	if ref.Gen != 0 {
		return false
	}
	if _, isStream := body.(*object.Stream); isStream {
		return false
	}
	return true
}

func buildContainer(g *object.Graph, members []object.Ref) (*object.Stream, error) {
	var header bytes.Buffer
	var body bytes.Buffer
	for _, ref := range members {
		fmt.Fprintf(&header, "%d %d ", ref.Num, body.Len())
		obj, _ := g.Get(ref)
		serializePrimitive(&body, obj)
		body.WriteByte('\n')
	}
	payload := append(header.Bytes(), body.Bytes()...)
	encoded, err := filters.FlateEncode(payload)
	if err != nil {
		return nil, err
	}
	dict := object.NewDict()
	dict.Set("Type", object.Name("ObjStm"))
	dict.Set("N", object.Integer(len(members)))
	dict.Set("First", object.Integer(header.Len()))
	dict.Set("Filter", object.Name("FlateDecode"))
	return object.NewStream(dict, encoded), nil
}
