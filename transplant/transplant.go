// Package transplant copies pages between documents. Each copy brings
// its full resource closure along, remapped into the destination graph
// through a per-call resource table so that pages gathered from many
// origins never collide.
package transplant

import (
	"errors"
	"fmt"

	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/object"
)

// ErrIndexOutOfRange marks a requested page index outside the origin
// document. Callers validate against the page count first; this is the
// backstop.
var ErrIndexOutOfRange = errors.New("page index out of range")

// keys never carried from an origin page dictionary: tree linkage and
// structure back-references that would drag the whole origin tree
// across.
var droppedPageKeys = map[object.Name]bool{
	"Parent":        true,
	"StructParents": true,
	"B":             true,
}

// Pages copies the pages named by indices from origin into destination,
// appending them in the given order. rotations maps an index position
// to a rotation delta applied on top of the page's existing rotation.
// Duplicate indices produce independent page copies. The origin is
// never modified.
func Pages(dst, origin *document.Document, indices []int, rotations map[int]int) ([]*document.Page, error) {
	c := &copier{
		src:   origin.Graph(),
		dst:   dst.Graph(),
		table: make(map[object.Ref]object.Ref),
	}

	out := make([]*document.Page, 0, len(indices))
	for pos, idx := range indices {
		srcPage, err := origin.Page(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d, document has %d pages",
				ErrIndexOutOfRange, idx, origin.PageCount())
		}

		copied, dstRef, err := c.copyPage(srcPage)
		if err != nil {
			return nil, err
		}
		if delta, ok := rotations[pos]; ok && delta != 0 {
			existing, _ := object.AsInt(copied.Get("Rotate"))
			copied.Set("Rotate", object.Integer(normalize(int(existing)+delta)))
		}
		out = append(out, dst.AdoptPage(dstRef, copied))
	}
	return out, nil
}

// All copies every page of origin in order.
func All(dst, origin *document.Document) ([]*document.Page, error) {
	indices := make([]int, origin.PageCount())
	for i := range indices {
		indices[i] = i
	}
	return Pages(dst, origin, indices, nil)
}

type copier struct {
	src   *object.Graph
	dst   *object.Graph
	table map[object.Ref]object.Ref
}

// copyPage materializes the inheritable attributes onto a standalone
// page dictionary and deep-copies it into the destination graph.
func (c *copier) copyPage(page *document.Page) (*object.Dict, object.Ref, error) {
	src := page.Dict()

	materialized := object.NewDict()
	for _, key := range src.Keys() {
		if droppedPageKeys[key] {
			continue
		}
		materialized.Set(key, src.Get(key))
	}
	box := page.MediaBox()
	materialized.Set("MediaBox", &object.Array{Items: []object.Object{
		object.Real(box[0]), object.Real(box[1]), object.Real(box[2]), object.Real(box[3]),
	}})
	if rot := page.Rotation(); rot != 0 || src.Has("Rotate") {
		materialized.Set("Rotate", object.Integer(rot))
	}
	if !src.Has("Resources") {
		materialized.Set("Resources", page.Resources())
	}

	dstRef := c.dst.NextRef()
	// each occurrence of the same origin page gets its own copy; map
	// the origin ref only for the duration of this page so intra-page
	// back-references land on the right copy
	srcRef := page.Ref()
	var hadMapping bool
	var oldMapping object.Ref
	if !srcRef.IsZero() {
		oldMapping, hadMapping = c.table[srcRef]
		c.table[srcRef] = dstRef
	}

	copied, err := c.copy(materialized)
	if !srcRef.IsZero() {
		if hadMapping {
			c.table[srcRef] = oldMapping
		} else {
			delete(c.table, srcRef)
		}
	}
	if err != nil {
		return nil, object.Ref{}, err
	}
	dict, ok := copied.(*object.Dict)
	if !ok {
		return nil, object.Ref{}, errors.New("page copy did not produce a dictionary")
	}
	c.dst.Put(dstRef, dict)
	return dict, dstRef, nil
}

// copy clones o from the origin graph into the destination graph.
// References are remapped through the table; the mapping is recorded
// before recursing so cyclic structures terminate.
func (c *copier) copy(o object.Object) (object.Object, error) {
	switch v := o.(type) {
	case object.Reference:
		if mapped, ok := c.table[v.R]; ok {
			return object.Reference{R: mapped}, nil
		}
		target, ok := c.src.Get(v.R)
		if !ok {
			// dangling in the origin; a null keeps the destination
			// fully resolvable
			return object.Null{}, nil
		}
		dstRef := c.dst.NextRef()
		c.table[v.R] = dstRef
		copied, err := c.copy(target)
		if err != nil {
			return nil, err
		}
		c.dst.Put(dstRef, copied)
		return object.Reference{R: dstRef}, nil

	case *object.Array:
		out := &object.Array{Items: make([]object.Object, len(v.Items))}
		for i, item := range v.Items {
			copied, err := c.copy(item)
			if err != nil {
				return nil, err
			}
			out.Items[i] = copied
		}
		return out, nil

	case *object.Dict:
		out := object.NewDict()
		for _, key := range v.Keys() {
			copied, err := c.copy(v.Get(key))
			if err != nil {
				return nil, err
			}
			out.Set(key, copied)
		}
		return out, nil

	case *object.Stream:
		dict, err := c.copy(v.Dict)
		if err != nil {
			return nil, err
		}
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return &object.Stream{Dict: dict.(*object.Dict), Data: data}, nil

	case object.String:
		data := make([]byte, len(v.Bytes))
		copy(data, v.Bytes)
		return object.String{Bytes: data, Hex: v.Hex}, nil

	default:
		// names, numbers, booleans and null are immutable values
		return o, nil
	}
}

func normalize(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
