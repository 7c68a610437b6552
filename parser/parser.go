package parser

import (
	"bytes"
	"fmt"

	"github.com/jed1boy/anyfile/object"
)

// parseObject reads one object starting at the reader's position.
// Reference syntax ("N G R") is folded here by lookahead: a number may
// complete into a reference when followed by a generation and R.
func (t *tokenReader) parseObject() (object.Object, error) {
	tok, err := t.next()
	if err != nil {
		return nil, err
	}
	return t.parseFromToken(tok)
}

func (t *tokenReader) parseFromToken(tok token) (object.Object, error) {
	switch tok.kind {
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of input at offset %d", tok.pos)
	case tokName:
		return object.Name(tok.val), nil
	case tokString:
		return object.String{Bytes: tok.val}, nil
	case tokHexString:
		return object.String{Bytes: tok.val, Hex: true}, nil
	case tokNumber:
		return t.parseNumberOrRef(tok)
	case tokArrayOpen:
		return t.parseArray()
	case tokDictOpen:
		return t.parseDict()
	case tokKeyword:
		switch string(tok.val) {
		case "true":
			return object.Bool(true), nil
		case "false":
			return object.Bool(false), nil
		case "null":
			return object.Null{}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", tok.val, tok.pos)
	default:
		return nil, fmt.Errorf("unexpected token at offset %d", tok.pos)
	}
}

func (t *tokenReader) parseNumberOrRef(tok token) (object.Object, error) {
	i, f, isInt, err := parseNumber(tok.val)
	if err != nil {
		return nil, err
	}
	if !isInt || i < 0 {
		if isInt {
			return object.Integer(i), nil
		}
		return object.Real(f), nil
	}

	// lookahead for "G R"
	save := t.pos
	genTok, err := t.next()
	if err == nil && genTok.kind == tokNumber {
		gen, _, genInt, numErr := parseNumber(genTok.val)
		if numErr == nil && genInt && gen >= 0 {
			rTok, err := t.next()
			if err == nil && rTok.kind == tokKeyword && len(rTok.val) == 1 && rTok.val[0] == 'R' {
				return object.MakeRef(int(i), int(gen)), nil
			}
		}
	}
	t.seek(save)
	return object.Integer(i), nil
}

func (t *tokenReader) parseArray() (*object.Array, error) {
	arr := &object.Array{}
	for {
		tok, err := t.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokArrayClose {
			return arr, nil
		}
		if tok.kind == tokEOF {
			return nil, fmt.Errorf("unterminated array at offset %d", tok.pos)
		}
		item, err := t.parseFromToken(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (t *tokenReader) parseDict() (*object.Dict, error) {
	dict := object.NewDict()
	for {
		tok, err := t.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokDictClose:
			return dict, nil
		case tokName:
			val, err := t.parseObject()
			if err != nil {
				return nil, err
			}
			dict.Set(object.Name(tok.val), val)
		case tokEOF:
			return nil, fmt.Errorf("unterminated dictionary at offset %d", tok.pos)
		default:
			return nil, fmt.Errorf("dictionary key must be a name at offset %d", tok.pos)
		}
	}
}

// parseIndirect reads "N G obj ... endobj" at the current position and
// returns the object's reference and body. A stream keyword after a
// dictionary promotes the body to a stream whose data runs for /Length
// bytes; a missing or wrong Length falls back to scanning for
// endstream.
func (t *tokenReader) parseIndirect(resolveLength func(object.Object) (int64, bool)) (object.Ref, object.Object, error) {
	numTok, err := t.next()
	if err != nil {
		return object.Ref{}, nil, err
	}
	num, _, numInt, err := parseNumber(numTok.val)
	if err != nil || !numInt || numTok.kind != tokNumber {
		return object.Ref{}, nil, fmt.Errorf("expected object number at offset %d", numTok.pos)
	}
	genTok, err := t.next()
	if err != nil {
		return object.Ref{}, nil, err
	}
	gen, _, genInt, err := parseNumber(genTok.val)
	if err != nil || !genInt || genTok.kind != tokNumber {
		return object.Ref{}, nil, fmt.Errorf("expected generation at offset %d", genTok.pos)
	}
	objTok, err := t.next()
	if err != nil {
		return object.Ref{}, nil, err
	}
	if objTok.kind != tokKeyword || string(objTok.val) != "obj" {
		return object.Ref{}, nil, fmt.Errorf("expected obj keyword at offset %d", objTok.pos)
	}

	ref := object.Ref{Num: int(num), Gen: int(gen)}
	body, err := t.parseObject()
	if err != nil {
		return ref, nil, err
	}

	save := t.pos
	endTok, err := t.next()
	if err != nil {
		return ref, nil, err
	}
	if endTok.kind == tokKeyword && string(endTok.val) == "stream" {
		dict, ok := body.(*object.Dict)
		if !ok {
			return ref, nil, fmt.Errorf("stream without dictionary at offset %d", endTok.pos)
		}
		data, err := t.readStreamData(dict, resolveLength)
		if err != nil {
			return ref, nil, err
		}
		return ref, &object.Stream{Dict: dict, Data: data}, nil
	}
	if endTok.kind == tokKeyword && string(endTok.val) == "endobj" {
		return ref, body, nil
	}
	// tolerate a missing endobj
	t.seek(save)
	return ref, body, nil
}

func (t *tokenReader) readStreamData(dict *object.Dict, resolveLength func(object.Object) (int64, bool)) ([]byte, error) {
	// stream keyword is followed by CRLF or LF
	if t.pos < int64(len(t.data)) && t.data[t.pos] == '\r' {
		t.pos++
	}
	if t.pos < int64(len(t.data)) && t.data[t.pos] == '\n' {
		t.pos++
	}
	start := t.pos

	if length, ok := resolveLength(dict.Get("Length")); ok && length >= 0 {
		end := start + length
		if end <= int64(len(t.data)) && endstreamFollows(t.data, end) {
			t.pos = end
			t.skipEndstream()
			return t.data[start:end], nil
		}
	}

	// Length was absent or wrong; locate endstream by scanning
	idx := bytes.Index(t.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("unterminated stream at offset %d", start)
	}
	end := start + int64(idx)
	for end > start && (t.data[end-1] == '\n' || t.data[end-1] == '\r') {
		end--
	}
	t.pos = start + int64(idx)
	t.skipEndstream()
	return t.data[start:end], nil
}

func endstreamFollows(data []byte, pos int64) bool {
	for pos < int64(len(data)) && isWhitespace(data[pos]) {
		pos++
	}
	return bytes.HasPrefix(data[pos:], []byte("endstream"))
}

func (t *tokenReader) skipEndstream() {
	t.skipWhitespace()
	if bytes.HasPrefix(t.data[t.pos:], []byte("endstream")) {
		t.pos += int64(len("endstream"))
	}
	save := t.pos
	tok, err := t.next()
	if err != nil || tok.kind != tokKeyword || string(tok.val) != "endobj" {
		t.seek(save)
	}
}
