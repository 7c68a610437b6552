package xref

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAddFirstSectionWins(t *testing.T) {
	tbl := NewTable()
	tbl.Add(5, Entry{Type: InFile, Offset: 100})
	tbl.Add(5, Entry{Type: InFile, Offset: 900})

	e, ok := tbl.Lookup(5)
	if !ok {
		t.Fatal("entry missing")
	}
	if e.Offset != 100 {
		t.Errorf("offset = %d, want the newer section's 100", e.Offset)
	}
}

func TestParseClassicSection(t *testing.T) {
	section := "0 3\n" +
		"0000000000 65535 f \n" +
		"0000000015 00000 n \n" +
		"0000000120 00002 n \n" +
		"trailer"
	tbl := NewTable()
	pos, err := tbl.ParseClassicSection([]byte(section), 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(section[pos:]) != "trailer" {
		t.Errorf("resume position %d does not sit at the trailer keyword", pos)
	}

	want := map[int]Entry{
		0: {Type: Free, Gen: 65535},
		1: {Type: InFile, Offset: 15},
		2: {Type: InFile, Offset: 120, Gen: 2},
	}
	for num, we := range want {
		e, ok := tbl.Lookup(num)
		if !ok {
			t.Errorf("object %d missing", num)
			continue
		}
		if diff := cmp.Diff(we, e); diff != "" {
			t.Errorf("object %d mismatch (-want +got):\n%s", num, diff)
		}
	}
}

func TestParseClassicSectionMultipleSubsections(t *testing.T) {
	section := "3 1\n" +
		"0000000200 00000 n \n" +
		"10 2\n" +
		"0000000300 00000 n \n" +
		"0000000000 00001 f \n" +
		"trailer"
	tbl := NewTable()
	if _, err := tbl.ParseClassicSection([]byte(section), 0); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("table has %d entries, want 3", tbl.Len())
	}
	if e, _ := tbl.Lookup(10); e.Offset != 300 {
		t.Errorf("object 10 offset = %d, want 300", e.Offset)
	}
	if e, _ := tbl.Lookup(11); e.Type != Free {
		t.Errorf("object 11 type = %v, want Free", e.Type)
	}
}

func TestParseClassicSectionTruncated(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.ParseClassicSection([]byte("0 2\n0000000015 00000 n \n"), 0); err == nil {
		t.Fatal("truncated subsection parsed without error")
	}
}

func TestMergeStreamEntries(t *testing.T) {
	// W [1 2 1]: one type byte, two offset bytes, one gen/index byte
	rows := []byte{
		0, 0x00, 0x00, 0xFF, // free, gen 255
		1, 0x01, 0x2C, 0x00, // in file at 300
		2, 0x00, 0x07, 0x04, // in stream 7, index 4
	}
	tbl := NewTable()
	if err := tbl.MergeStreamEntries(rows, []int{1, 2, 1}, []int{4, 3}, 0); err != nil {
		t.Fatalf("merge: %v", err)
	}

	want := map[int]Entry{
		4: {Type: Free, Gen: 255},
		5: {Type: InFile, Offset: 300},
		6: {Type: InObjectStream, StreamNum: 7, StreamIndex: 4},
	}
	for num, we := range want {
		e, ok := tbl.Lookup(num)
		if !ok {
			t.Errorf("object %d missing", num)
			continue
		}
		if diff := cmp.Diff(we, e); diff != "" {
			t.Errorf("object %d mismatch (-want +got):\n%s", num, diff)
		}
	}
}

func TestMergeStreamEntriesDefaults(t *testing.T) {
	// zero-width type field defaults to an in-file entry
	rows := []byte{
		0x00, 0x10, 0x00,
		0x00, 0x20, 0x01,
	}
	tbl := NewTable()
	if err := tbl.MergeStreamEntries(rows, []int{0, 2, 1}, nil, 2); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if e, _ := tbl.Lookup(0); e.Type != InFile || e.Offset != 0x10 {
		t.Errorf("object 0 = %+v, want in-file at 16", e)
	}
	if e, _ := tbl.Lookup(1); e.Offset != 0x20 || e.Gen != 1 {
		t.Errorf("object 1 = %+v, want offset 32 gen 1", e)
	}
}

func TestMergeStreamEntriesErrors(t *testing.T) {
	tbl := NewTable()
	if err := tbl.MergeStreamEntries(nil, []int{1, 2}, nil, 0); err == nil {
		t.Error("two-element W accepted")
	}
	if err := tbl.MergeStreamEntries(nil, []int{0, 0, 0}, nil, 0); err == nil {
		t.Error("zero-width rows accepted")
	}
	if err := tbl.MergeStreamEntries([]byte{1, 0, 0, 0}, []int{1, 2, 1}, []int{0, 2}, 0); err == nil {
		t.Error("short data accepted")
	}
}
