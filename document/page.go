package document

import (
	"fmt"

	"github.com/jed1boy/anyfile/object"
)

// Page is one page of a Document. The dict is the page's own leaf
// dictionary; attributes the tree inherits are kept alongside.
type Page struct {
	doc  *Document
	ref  object.Ref
	dict *object.Dict
	inh  inherited
}

// Ref returns the page object's reference within its document's graph.
func (p *Page) Ref() object.Ref { return p.ref }

// Dict returns the page's leaf dictionary.
func (p *Page) Dict() *object.Dict { return p.dict }

// MediaBox returns the effective media box [llx lly urx ury],
// consulting the tree when the leaf does not define one. A page with
// no box anywhere gets US Letter.
func (p *Page) MediaBox() [4]float64 {
	box, ok := p.doc.graph.ResolveArray(p.dict.Get("MediaBox"))
	if !ok {
		box = p.inh.mediaBox
	}
	out := [4]float64{0, 0, 612, 792}
	if box != nil && box.Len() == 4 {
		for i := 0; i < 4; i++ {
			if f, ok := object.AsFloat(p.doc.graph.Resolve(box.Get(i))); ok {
				out[i] = f
			}
		}
	}
	return out
}

// Size returns the page's intrinsic width and height in points.
func (p *Page) Size() (width, height float64) {
	box := p.MediaBox()
	return box[2] - box[0], box[3] - box[1]
}

// Rotation returns the page's effective rotation, normalized to
// {0, 90, 180, 270}.
func (p *Page) Rotation() int {
	r := p.dict.Get("Rotate")
	if r == nil {
		r = p.inh.rotate
	}
	v, _ := p.doc.graph.ResolveInt(r)
	return normalizeRotation(int(v))
}

// Rotate adds delta degrees to the page's existing rotation. Rotation
// accumulates; it never replaces what is already there.
func (p *Page) Rotate(delta int) {
	p.dict.Set("Rotate", object.Integer(normalizeRotation(p.Rotation()+delta)))
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	// round to the nearest legal quarter turn
	return (deg / 90 * 90) % 360
}

// Resources returns the page's own resources dictionary, materializing
// one from the inherited dictionary first so additions never leak into
// sibling pages.
func (p *Page) Resources() *object.Dict {
	if res, ok := p.doc.graph.ResolveDict(p.dict.Get("Resources")); ok {
		return res
	}
	res := object.NewDict()
	if p.inh.resources != nil {
		for _, key := range p.inh.resources.Keys() {
			res.Set(key, p.inh.resources.Get(key))
		}
	}
	p.dict.Set("Resources", res)
	return res
}

// AddResource stores obj in the graph and registers it in the page's
// resources under category ("XObject", "Font", "ExtGState"), returning
// the generated resource name.
func (p *Page) AddResource(category object.Name, prefix string, obj object.Object) object.Name {
	res := p.Resources()
	cat, ok := p.doc.graph.ResolveDict(res.Get(category))
	if !ok {
		cat = object.NewDict()
		res.Set(category, cat)
	} else if _, direct := res.Get(category).(*object.Dict); !direct {
		// shared via reference; clone before writing
		clone := object.NewDict()
		for _, key := range cat.Keys() {
			clone.Set(key, cat.Get(key))
		}
		cat = clone
		res.Set(category, cat)
	}

	var name object.Name
	for i := 1; ; i++ {
		name = object.Name(fmt.Sprintf("%s%d", prefix, i))
		if !cat.Has(name) {
			break
		}
	}
	ref := p.doc.graph.Add(obj)
	cat.Set(name, object.MakeRef(ref.Num, ref.Gen))
	return name
}

// AppendContent adds data as an additional content stream after the
// page's existing content.
func (p *Page) AppendContent(data []byte) {
	stream := object.NewStream(object.NewDict(), data)
	ref := p.doc.graph.Add(stream)
	newRef := object.MakeRef(ref.Num, ref.Gen)

	existing := p.dict.Get("Contents")
	switch v := existing.(type) {
	case nil:
		p.dict.Set("Contents", newRef)
	case *object.Array:
		v.Append(newRef)
	case object.Reference:
		if arr, ok := p.doc.graph.ResolveArray(v); ok {
			arr.Append(newRef)
			return
		}
		p.dict.Set("Contents", &object.Array{Items: []object.Object{v, newRef}})
	default:
		p.dict.Set("Contents", &object.Array{Items: []object.Object{v, newRef}})
	}
}

// SetContent replaces the page's content with a single stream.
func (p *Page) SetContent(data []byte) {
	stream := object.NewStream(object.NewDict(), data)
	ref := p.doc.graph.Add(stream)
	p.dict.Set("Contents", object.MakeRef(ref.Num, ref.Gen))
}
