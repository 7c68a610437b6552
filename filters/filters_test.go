package filters

import (
	"bytes"
	"testing"

	"github.com/jed1boy/anyfile/object"
)

func TestFlateRoundTrip(t *testing.T) {
	p := NewPipeline(Limits{})
	payload := bytes.Repeat([]byte("stream payload "), 200)

	encoded, err := FlateEncode(payload)
	if err != nil {
		t.Fatalf("FlateEncode: %v", err)
	}
	decoded, err := p.Decode(encoded, []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(decoded), len(payload))
	}
}

func TestASCIIDecoders(t *testing.T) {
	p := NewPipeline(Limits{})

	cases := []struct {
		name   string
		filter string
		input  string
		want   string
	}{
		{"hex basic", "ASCIIHexDecode", "48656C6C6F>", "Hello"},
		{"hex odd length pads zero", "ASCIIHexDecode", "48656C6C6F7>", "Hello" + "\x70"},
		{"hex whitespace ignored", "ASCIIHexDecode", "48 65 6C\n6C 6F>", "Hello"},
		{"ascii85", "ASCII85Decode", "87cUR~>", "Hell"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Decode([]byte(tc.input), []string{tc.filter}, nil)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRunLengthDecode(t *testing.T) {
	p := NewPipeline(Limits{})

	// two literal bytes, then 'x' repeated four times, then EOD
	input := []byte{1, 'a', 'b', 253, 'x', 128}
	got, err := p.Decode(input, []string{"RunLengthDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "abxxxx" {
		t.Fatalf("got %q, want %q", got, "abxxxx")
	}
}

func TestUnknownFilterFails(t *testing.T) {
	p := NewPipeline(Limits{})
	if _, err := p.Decode([]byte("data"), []string{"JBIG2Decode"}, nil); err == nil {
		t.Fatal("expected error for unregistered filter")
	}
}

func TestPredictorUp(t *testing.T) {
	// Two rows of four columns with the PNG Up filter. The second row
	// stores deltas against the first.
	raw := []byte{
		0, 1, 2, 3, 4,
		2, 1, 1, 1, 1,
	}
	params := object.NewDict()
	params.Set("Predictor", object.Integer(12))
	params.Set("Columns", object.Integer(4))

	got, err := applyPredictor(raw, params)
	if err != nil {
		t.Fatalf("applyPredictor: %v", err)
	}
	want := []byte{1, 2, 3, 4, 2, 3, 4, 5}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
