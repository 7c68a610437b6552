package document

import "github.com/jed1boy/anyfile/object"

// Metadata carries the information dictionary fields the pipeline
// reads and clears.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Producer string
	Creator  string
}

var infoKeys = []object.Name{"Title", "Author", "Subject", "Keywords", "Producer", "Creator"}

// Metadata returns the current information dictionary fields.
func (d *Document) Metadata() Metadata {
	var m Metadata
	info, ok := d.graph.Info()
	if !ok {
		return m
	}
	get := func(key object.Name) string {
		s, _ := object.AsString(d.graph.Resolve(info.Get(key)))
		return string(s)
	}
	m.Title = get("Title")
	m.Author = get("Author")
	m.Subject = get("Subject")
	m.Keywords = get("Keywords")
	m.Producer = get("Producer")
	m.Creator = get("Creator")
	return m
}

// SetMetadata writes m into the information dictionary, creating it
// when absent.
func (d *Document) SetMetadata(m Metadata) {
	info, ok := d.graph.Info()
	if !ok {
		info = object.NewDict()
		ref := d.graph.Add(info)
		d.graph.Trailer.Set("Info", object.MakeRef(ref.Num, ref.Gen))
	}
	set := func(key object.Name, val string) {
		if val == "" {
			info.Delete(key)
			return
		}
		info.Set(key, object.String{Bytes: []byte(val)})
	}
	set("Title", m.Title)
	set("Author", m.Author)
	set("Subject", m.Subject)
	set("Keywords", m.Keywords)
	set("Producer", m.Producer)
	set("Creator", m.Creator)
}

// ClearMetadata empties all six information fields and drops the XMP
// metadata stream from the catalog.
func (d *Document) ClearMetadata() {
	if info, ok := d.graph.Info(); ok {
		for _, key := range infoKeys {
			info.Delete(key)
		}
	}
	if root, ok := d.graph.Root(); ok {
		if ref, isRef := root.Get("Metadata").(object.Reference); isRef {
			d.graph.Delete(ref.R)
		}
		root.Delete("Metadata")
	}
}
