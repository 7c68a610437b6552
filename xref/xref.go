// Package xref models the cross-reference data of a document: where
// each indirect object lives, either at a byte offset or inside an
// object stream.
package xref

import (
	"errors"
	"fmt"

	"github.com/jed1boy/anyfile/object"
)

// EntryType distinguishes the three cross-reference entry kinds.
type EntryType int

const (
	Free EntryType = iota
	InFile
	InObjectStream
)

// Entry locates one indirect object. For InFile entries Offset is the
// byte position of "N G obj". For InObjectStream entries StreamNum is
// the containing object stream's number and StreamIndex the position
// within it.
type Entry struct {
	Type        EntryType
	Offset      int64
	Gen         int
	StreamNum   int
	StreamIndex int
}

// Table accumulates entries across a /Prev chain. Earlier sections win:
// the first definition seen for an object number is the authoritative
// one, matching the newest-first order in which sections are read.
type Table struct {
	entries map[int]Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[int]Entry)}
}

// Add records an entry for num unless a newer section already defined it.
func (t *Table) Add(num int, e Entry) {
	if _, exists := t.entries[num]; !exists {
		t.entries[num] = e
	}
}

func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

func (t *Table) Len() int { return len(t.entries) }

// Numbers returns every known object number, in no particular order.
func (t *Table) Numbers() []int {
	nums := make([]int, 0, len(t.entries))
	for n := range t.entries {
		nums = append(nums, n)
	}
	return nums
}

// ParseClassicSection reads a classic "xref" section starting at the
// byte after the xref keyword and merges its subsections into t. It
// returns the offset just past the section so the caller can continue
// with the trailer keyword.
func (t *Table) ParseClassicSection(data []byte, pos int64) (int64, error) {
	pos = skipSpace(data, pos)
	for {
		start, count, next, ok := readSubsectionHeader(data, pos)
		if !ok {
			return pos, nil // trailer keyword follows
		}
		pos = next
		for i := 0; i < count; i++ {
			if pos+20 > int64(len(data)) {
				return 0, errors.New("truncated xref subsection")
			}
			line := data[pos : pos+20]
			var offset int64
			var gen int
			var kind byte
			if _, err := fmt.Sscanf(string(line[:18]), "%010d %05d %c", &offset, &gen, &kind); err != nil {
				return 0, fmt.Errorf("malformed xref entry: %w", err)
			}
			switch kind {
			case 'n':
				t.Add(start+i, Entry{Type: InFile, Offset: offset, Gen: gen})
			case 'f':
				t.Add(start+i, Entry{Type: Free, Gen: gen})
			default:
				return 0, fmt.Errorf("malformed xref entry kind %q", kind)
			}
			pos += 20
		}
		pos = skipSpace(data, pos)
	}
}

// MergeStreamEntries decodes the entry rows of a cross-reference stream
// whose data has already been defiltered. w is the /W field widths and
// index the flattened /Index pairs (start, count, start, count, ...);
// an empty index means a single run starting at zero covering /Size.
func (t *Table) MergeStreamEntries(data []byte, w []int, index []int, size int) error {
	if len(w) < 3 {
		return errors.New("xref stream W needs three elements")
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen <= 0 {
		return errors.New("xref stream has zero-width rows")
	}
	if len(index) == 0 {
		index = []int{0, size}
	}
	if len(index)%2 != 0 {
		return errors.New("xref stream Index has odd length")
	}

	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return errors.New("xref stream data shorter than Index claims")
			}
			f1 := readField(data[pos:], w[0], 1) // type defaults to 1
			f2 := readField(data[pos+w[0]:], w[1], 0)
			f3 := readField(data[pos+w[0]+w[1]:], w[2], 0)
			pos += rowLen

			num := start + j
			switch f1 {
			case 0:
				t.Add(num, Entry{Type: Free, Gen: int(f3)})
			case 1:
				t.Add(num, Entry{Type: InFile, Offset: f2, Gen: int(f3)})
			case 2:
				t.Add(num, Entry{Type: InObjectStream, StreamNum: int(f2), StreamIndex: int(f3)})
			default:
				// reserved entry types are ignored per the format
			}
		}
	}
	return nil
}

func readField(data []byte, width int, def int64) int64 {
	if width == 0 {
		return def
	}
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(data[i])
	}
	return v
}

func readSubsectionHeader(data []byte, pos int64) (start, count int, next int64, ok bool) {
	i := pos
	start, i, ok = readInt(data, i)
	if !ok {
		return 0, 0, pos, false
	}
	i = skipSpace(data, i)
	count, i, ok = readInt(data, i)
	if !ok {
		return 0, 0, pos, false
	}
	return start, count, skipSpace(data, i), true
}

func readInt(data []byte, pos int64) (int, int64, bool) {
	i := pos
	v := 0
	for i < int64(len(data)) && data[i] >= '0' && data[i] <= '9' {
		v = v*10 + int(data[i]-'0')
		i++
	}
	if i == pos {
		return 0, pos, false
	}
	return v, i, true
}

func skipSpace(data []byte, pos int64) int64 {
	for pos < int64(len(data)) {
		switch data[pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			pos++
		default:
			return pos
		}
	}
	return pos
}

// IntsFromArray flattens a resolved integer array such as /W or /Index.
func IntsFromArray(g *object.Graph, o object.Object) []int {
	arr, ok := g.ResolveArray(o)
	if !ok {
		return nil
	}
	out := make([]int, 0, arr.Len())
	for _, item := range arr.Items {
		if v, ok := g.ResolveInt(item); ok {
			out = append(out, int(v))
		}
	}
	return out
}
