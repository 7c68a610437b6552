package object

import "sort"

// Graph holds the indirect objects of one document together with its
// trailer dictionary. A Graph is not safe for concurrent mutation; each
// pipeline operation owns its graphs for the duration of the call.
type Graph struct {
	objects map[Ref]Object
	maxNum  int

	Trailer *Dict
	Version string
}

func NewGraph() *Graph {
	return &Graph{
		objects: make(map[Ref]Object),
		Trailer: NewDict(),
		Version: "1.7",
	}
}

// Put stores obj under ref, claiming the object number.
func (g *Graph) Put(ref Ref, obj Object) {
	if g.objects == nil {
		g.objects = make(map[Ref]Object)
	}
	g.objects[ref] = obj
	if ref.Num > g.maxNum {
		g.maxNum = ref.Num
	}
}

// Add allocates the next free object number for obj and returns its
// reference.
func (g *Graph) Add(obj Object) Ref {
	ref := g.NextRef()
	g.Put(ref, obj)
	return ref
}

// NextRef reserves and returns the next unused object number at
// generation zero.
func (g *Graph) NextRef() Ref {
	g.maxNum++
	return Ref{Num: g.maxNum}
}

func (g *Graph) Get(ref Ref) (Object, bool) {
	o, ok := g.objects[ref]
	return o, ok
}

func (g *Graph) Delete(ref Ref) { delete(g.objects, ref) }

func (g *Graph) Len() int { return len(g.objects) }

// Refs returns every populated reference in ascending object-number
// order. Serialization depends on this ordering being stable.
func (g *Graph) Refs() []Ref {
	refs := make([]Ref, 0, len(g.objects))
	for r := range g.objects {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}

// Resolve follows reference chains until a direct object is reached.
// A dangling or cyclic chain resolves to nil.
func (g *Graph) Resolve(o Object) Object {
	seen := 0
	for {
		ref, ok := o.(Reference)
		if !ok {
			return o
		}
		o, ok = g.objects[ref.R]
		if !ok {
			return nil
		}
		seen++
		if seen > 64 {
			return nil
		}
	}
}

// ResolveDict resolves o and returns it as a dictionary. Streams
// resolve to their stream dictionary.
func (g *Graph) ResolveDict(o Object) (*Dict, bool) {
	return AsDict(g.Resolve(o))
}

func (g *Graph) ResolveArray(o Object) (*Array, bool) {
	return AsArray(g.Resolve(o))
}

func (g *Graph) ResolveStream(o Object) (*Stream, bool) {
	return AsStream(g.Resolve(o))
}

func (g *Graph) ResolveInt(o Object) (int64, bool) {
	return AsInt(g.Resolve(o))
}

func (g *Graph) ResolveName(o Object) (Name, bool) {
	return AsName(g.Resolve(o))
}

// Root returns the document catalog dictionary from the trailer.
func (g *Graph) Root() (*Dict, bool) {
	return g.ResolveDict(g.Trailer.Get("Root"))
}

// Info returns the document information dictionary, if present.
func (g *Graph) Info() (*Dict, bool) {
	return g.ResolveDict(g.Trailer.Get("Info"))
}
