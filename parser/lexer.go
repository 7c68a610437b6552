package parser

import (
	"errors"
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName
	tokString
	tokHexString
	tokKeyword   // obj, endobj, stream, R, true, false, null, ...
	tokDictOpen  // <<
	tokDictClose // >>
	tokArrayOpen
	tokArrayClose
)

type token struct {
	kind tokenKind
	val  []byte
	pos  int64
}

// tokenReader walks PDF syntax over an in-memory buffer. It is
// position-addressable so the loader can jump to xref offsets.
type tokenReader struct {
	data []byte
	pos  int64
}

func newTokenReader(data []byte) *tokenReader { return &tokenReader{data: data} }

func (t *tokenReader) seek(pos int64) { t.pos = pos }

func (t *tokenReader) offset() int64 { return t.pos }

func isWhitespace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (t *tokenReader) skipWhitespace() {
	for t.pos < int64(len(t.data)) {
		b := t.data[t.pos]
		switch {
		case isWhitespace(b):
			t.pos++
		case b == '%':
			for t.pos < int64(len(t.data)) && t.data[t.pos] != '\n' && t.data[t.pos] != '\r' {
				t.pos++
			}
		default:
			return
		}
	}
}

func (t *tokenReader) peekByte() (byte, bool) {
	if t.pos >= int64(len(t.data)) {
		return 0, false
	}
	return t.data[t.pos], true
}

func (t *tokenReader) next() (token, error) {
	t.skipWhitespace()
	start := t.pos
	b, ok := t.peekByte()
	if !ok {
		return token{kind: tokEOF, pos: start}, nil
	}
	switch {
	case b == '/':
		t.pos++
		return t.readName(start)
	case b == '(':
		t.pos++
		return t.readLiteralString(start)
	case b == '<':
		if t.pos+1 < int64(len(t.data)) && t.data[t.pos+1] == '<' {
			t.pos += 2
			return token{kind: tokDictOpen, pos: start}, nil
		}
		t.pos++
		return t.readHexString(start)
	case b == '>':
		if t.pos+1 < int64(len(t.data)) && t.data[t.pos+1] == '>' {
			t.pos += 2
			return token{kind: tokDictClose, pos: start}, nil
		}
		return token{}, fmt.Errorf("stray '>' at offset %d", start)
	case b == '[':
		t.pos++
		return token{kind: tokArrayOpen, pos: start}, nil
	case b == ']':
		t.pos++
		return token{kind: tokArrayClose, pos: start}, nil
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return t.readNumber(start)
	default:
		return t.readKeyword(start)
	}
}

func (t *tokenReader) readName(start int64) (token, error) {
	var out []byte
	for t.pos < int64(len(t.data)) {
		b := t.data[t.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		if b == '#' && t.pos+2 < int64(len(t.data)) {
			hi := hexVal(t.data[t.pos+1])
			lo := hexVal(t.data[t.pos+2])
			if hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				t.pos += 3
				continue
			}
		}
		out = append(out, b)
		t.pos++
	}
	return token{kind: tokName, val: out, pos: start}, nil
}

func (t *tokenReader) readNumber(start int64) (token, error) {
	for t.pos < int64(len(t.data)) {
		b := t.data[t.pos]
		if b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9') {
			t.pos++
			continue
		}
		break
	}
	return token{kind: tokNumber, val: t.data[start:t.pos], pos: start}, nil
}

func (t *tokenReader) readKeyword(start int64) (token, error) {
	for t.pos < int64(len(t.data)) {
		b := t.data[t.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		t.pos++
	}
	if t.pos == start {
		return token{}, fmt.Errorf("unexpected byte %q at offset %d", t.data[start], start)
	}
	return token{kind: tokKeyword, val: t.data[start:t.pos], pos: start}, nil
}

func (t *tokenReader) readLiteralString(start int64) (token, error) {
	var out []byte
	depth := 1
	for t.pos < int64(len(t.data)) {
		b := t.data[t.pos]
		t.pos++
		switch b {
		case '\\':
			if t.pos >= int64(len(t.data)) {
				return token{}, errors.New("unterminated string escape")
			}
			e := t.data[t.pos]
			t.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// line continuation; swallow an optional LF
				if t.pos < int64(len(t.data)) && t.data[t.pos] == '\n' {
					t.pos++
				}
			case '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && t.pos < int64(len(t.data)); i++ {
						c := t.data[t.pos]
						if c < '0' || c > '7' {
							break
						}
						v = v*8 + int(c-'0')
						t.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth == 0 {
				return token{kind: tokString, val: out, pos: start}, nil
			}
			out = append(out, b)
		default:
			out = append(out, b)
		}
	}
	return token{}, errors.New("unterminated literal string")
}

func (t *tokenReader) readHexString(start int64) (token, error) {
	var out []byte
	var hi = -1
	for t.pos < int64(len(t.data)) {
		b := t.data[t.pos]
		t.pos++
		if b == '>' {
			if hi >= 0 {
				out = append(out, byte(hi<<4))
			}
			return token{kind: tokHexString, val: out, pos: start}, nil
		}
		v := hexVal(b)
		if v < 0 {
			if isWhitespace(b) {
				continue
			}
			return token{}, fmt.Errorf("invalid hex string byte %q", b)
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	return token{}, errors.New("unterminated hex string")
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}

func parseNumber(val []byte) (int64, float64, bool, error) {
	s := string(val)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, 0, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed number %q", s)
	}
	return 0, f, false, nil
}
