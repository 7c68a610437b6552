// Package filters implements the stream filter pipeline used when
// decoding parsed streams and encoding streams for output.
package filters

import (
	"bytes"
	"compress/zlib"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/jed1boy/anyfile/object"
)

// Decoder decodes one filter's encoding. params carries the filter's
// DecodeParms dictionary when present.
type Decoder interface {
	Name() string
	Decode(input []byte, params *object.Dict) ([]byte, error)
}

// Limits bounds decode work so a hostile stream cannot exhaust memory.
type Limits struct {
	MaxDecompressedSize int64
}

// DefaultLimits is applied by NewPipeline when the caller passes the
// zero value.
var DefaultLimits = Limits{MaxDecompressedSize: 512 << 20}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline returns a pipeline with the standard decoders registered.
func NewPipeline(limits Limits) *Pipeline {
	if limits.MaxDecompressedSize == 0 {
		limits = DefaultLimits
	}
	p := &Pipeline{decoders: make(map[string]Decoder), limits: limits}
	for _, d := range []Decoder{
		flateDecoder{maxSize: limits.MaxDecompressedSize},
		asciiHexDecoder{},
		ascii85Decoder{},
		runLengthDecoder{},
	} {
		p.Register(d)
	}
	return p
}

func (p *Pipeline) Register(d Decoder) { p.decoders[d.Name()] = d }

// Decode applies each named filter in order. Unknown filters abort the
// chain; callers treat the stream data as unavailable.
func (p *Pipeline) Decode(input []byte, filterNames []string, params []*object.Dict) ([]byte, error) {
	data := input
	for i, name := range filterNames {
		dec, ok := p.decoders[name]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
		var param *object.Dict
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		data = out
	}
	return data, nil
}

// DecodeStream resolves a stream's Filter and DecodeParms entries
// against g and decodes its data.
func (p *Pipeline) DecodeStream(g *object.Graph, s *object.Stream) ([]byte, error) {
	names, params := filterChain(g, s.Dict)
	return p.Decode(s.Data, names, params)
}

func filterChain(g *object.Graph, dict *object.Dict) ([]string, []*object.Dict) {
	var names []string
	var params []*object.Dict

	switch f := g.Resolve(dict.Get("Filter")).(type) {
	case object.Name:
		names = append(names, string(f))
	case *object.Array:
		for _, item := range f.Items {
			if n, ok := g.ResolveName(item); ok {
				names = append(names, string(n))
			}
		}
	}

	switch dp := g.Resolve(dict.Get("DecodeParms")).(type) {
	case *object.Dict:
		params = append(params, dp)
	case *object.Array:
		for _, item := range dp.Items {
			d, _ := g.ResolveDict(item)
			params = append(params, d)
		}
	}
	return names, params
}

type flateDecoder struct{ maxSize int64 }

func (flateDecoder) Name() string { return "FlateDecode" }

func (d flateDecoder) Decode(in []byte, params *object.Dict) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	limit := d.maxSize
	if limit <= 0 {
		limit = DefaultLimits.MaxDecompressedSize
	}
	n, err := io.Copy(&out, io.LimitReader(r, limit+1))
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if n > limit {
		return nil, errors.New("decompressed size exceeds limit")
	}
	return applyPredictor(out.Bytes(), params)
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(in []byte, params *object.Dict) ([]byte, error) {
	filtered := make([]byte, 0, len(in))
	for _, b := range in {
		switch {
		case b == '>':
			goto done
		case isHexDigit(b):
			filtered = append(filtered, b)
		case b == ' ' || b == '\n' || b == '\r' || b == '\t' || b == '\f' || b == 0:
			// whitespace is ignored
		default:
			return nil, fmt.Errorf("invalid hex character %q", b)
		}
	}
done:
	if len(filtered)%2 == 1 {
		filtered = append(filtered, '0')
	}
	out := make([]byte, hex.DecodedLen(len(filtered)))
	n, err := hex.Decode(out, filtered)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func isHexDigit(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F'
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(in []byte, params *object.Dict) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	trimmed = bytes.TrimSuffix(trimmed, []byte("~>"))
	out := make([]byte, len(trimmed)*4/5+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(in []byte, params *object.Dict) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(in) {
		length := in[i]
		i++
		switch {
		case length == 128:
			return out.Bytes(), nil
		case length < 128:
			end := i + int(length) + 1
			if end > len(in) {
				return nil, errors.New("truncated literal run")
			}
			out.Write(in[i:end])
			i = end
		default:
			if i >= len(in) {
				return nil, errors.New("truncated repeat run")
			}
			out.Write(bytes.Repeat(in[i:i+1], 257-int(length)))
			i++
		}
	}
	return out.Bytes(), nil
}
