// Package security implements the Standard security handler: password
// authentication, per-object encryption and decryption, and the
// construction of Encrypt dictionaries for newly protected documents.
//
// Revisions 2 through 4 (RC4 and AES-128) and revision 6 (AES-256) are
// supported on the read side; new documents are written with revision 6
// by default, revision 4 on request.
package security

import (
	"errors"
	"fmt"

	"github.com/jed1boy/anyfile/object"
)

// Error kinds callers classify on. Password failures are distinct from
// structural failures so the caller can tell "wrong password" from
// "document we cannot handle".
var (
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrUnsupportedEncryption = errors.New("unsupported encryption")
)

// Permissions is the decoded permission set of the Standard handler's
// P value.
type Permissions struct {
	Print             bool
	Modify            bool
	Copy              bool
	ModifyAnnotations bool
	FillForms         bool
	ExtractAccessible bool
	Assemble          bool
	PrintHighQuality  bool
}

// AllPermissions grants everything; it is the default for newly
// encrypted documents when the caller does not restrict anything.
func AllPermissions() Permissions {
	return Permissions{
		Print: true, Modify: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, Assemble: true,
		PrintHighQuality: true,
	}
}

// Value encodes the permission set into the P entry's bit layout.
// Reserved bits are set as the format requires.
func (p Permissions) Value() int32 {
	val := int32(-4) // all bits set except the two reserved zero bits
	if !p.Print {
		val &^= 1 << 2
	}
	if !p.Modify {
		val &^= 1 << 3
	}
	if !p.Copy {
		val &^= 1 << 4
	}
	if !p.ModifyAnnotations {
		val &^= 1 << 5
	}
	if !p.FillForms {
		val &^= 1 << 8
	}
	if !p.ExtractAccessible {
		val &^= 1 << 9
	}
	if !p.Assemble {
		val &^= 1 << 10
	}
	if !p.PrintHighQuality {
		val &^= 1 << 11
	}
	return val
}

func permissionsFromValue(v int32) Permissions {
	return Permissions{
		Print:             v&(1<<2) != 0,
		Modify:            v&(1<<3) != 0,
		Copy:              v&(1<<4) != 0,
		ModifyAnnotations: v&(1<<5) != 0,
		FillForms:         v&(1<<8) != 0,
		ExtractAccessible: v&(1<<9) != 0,
		Assemble:          v&(1<<10) != 0,
		PrintHighQuality:  v&(1<<11) != 0,
	}
}

// Class identifies what kind of payload is being transformed; strings
// and streams may be covered by different crypt filters.
type Class int

const (
	ClassStream Class = iota
	ClassString
	ClassMetadata
)

type algo int

const (
	algoUnset algo = iota
	algoNone
	algoRC4
	algoAES
)

// Handler performs per-object encryption for one document.
type Handler struct {
	v, r        int
	keyLen      int // bytes
	oEntry      []byte
	uEntry      []byte
	oe, ue      []byte
	permsEntry  []byte
	p           int32
	fileID      []byte
	encryptMeta bool

	streamAlgo algo
	stringAlgo algo
	filters    map[string]algo

	key    []byte
	authed bool
	owner  bool
}

// HandlerBuilder assembles a Handler from a parsed Encrypt dictionary.
// Values are read eagerly so the handler keeps no reference to the
// dictionary afterwards.
type HandlerBuilder struct {
	enc    *object.Dict
	fileID []byte
}

func NewHandlerBuilder() *HandlerBuilder { return &HandlerBuilder{} }

func (b *HandlerBuilder) WithEncryptDict(d *object.Dict) *HandlerBuilder { b.enc = d; return b }
func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder           { b.fileID = id; return b }

func (b *HandlerBuilder) Build() (*Handler, error) {
	enc := b.enc
	if enc == nil {
		return nil, errors.New("missing Encrypt dictionary")
	}
	if f, ok := object.AsName(enc.Get("Filter")); ok && f != "Standard" {
		return nil, fmt.Errorf("%w: filter %q", ErrUnsupportedEncryption, f)
	}

	v := dictInt(enc, "V", 1)
	r := dictInt(enc, "R", 2)
	if v > 5 || r > 6 || r < 2 {
		return nil, fmt.Errorf("%w: V=%d R=%d", ErrUnsupportedEncryption, v, r)
	}

	keyBits := dictInt(enc, "Length", 40)
	if v >= 5 {
		keyBits = 256
	} else if v >= 4 && keyBits < 128 {
		keyBits = 128
	}
	if keyBits%8 != 0 || keyBits < 40 || keyBits > 256 {
		return nil, fmt.Errorf("%w: key length %d", ErrUnsupportedEncryption, keyBits)
	}

	h := &Handler{
		v:      v,
		r:      r,
		keyLen: keyBits / 8,
		p:      int32(dictInt(enc, "P", -1)),
		fileID: b.fileID,
	}
	h.oEntry, _ = object.AsString(enc.Get("O"))
	h.uEntry, _ = object.AsString(enc.Get("U"))
	h.oe, _ = object.AsString(enc.Get("OE"))
	h.ue, _ = object.AsString(enc.Get("UE"))
	h.permsEntry, _ = object.AsString(enc.Get("Perms"))

	h.encryptMeta = true
	if em, ok := enc.Get("EncryptMetadata").(object.Bool); ok {
		h.encryptMeta = bool(em)
	}

	base := algoRC4
	if v >= 4 {
		base = algoAES
	}
	var err error
	h.filters, err = parseCryptFilters(enc, base)
	if err != nil {
		return nil, err
	}
	if h.streamAlgo, err = resolveFilterRef(enc, "StmF", base, h.filters); err != nil {
		return nil, err
	}
	if h.stringAlgo, err = resolveFilterRef(enc, "StrF", base, h.filters); err != nil {
		return nil, err
	}
	return h, nil
}

// Authenticate tries password first as the user password, then as the
// owner password. An empty password is valid for documents protected
// with only an owner password.
func (h *Handler) Authenticate(password string) error {
	if h.r >= 5 {
		return h.authenticateRev6([]byte(password))
	}
	return h.authenticateLegacy([]byte(password))
}

// Authenticated reports whether a password has been accepted.
func (h *Handler) Authenticated() bool { return h.authed }

// OwnerAuthorized reports whether the accepted password was the owner
// password.
func (h *Handler) OwnerAuthorized() bool { return h.owner }

func (h *Handler) Permissions() Permissions { return permissionsFromValue(h.p) }

func (h *Handler) EncryptMetadata() bool { return h.encryptMeta }

// Revision returns the security handler revision in use.
func (h *Handler) Revision() int { return h.r }

// Decrypt reverses the encryption of one object's payload. ref is the
// indirect object the payload belongs to.
func (h *Handler) Decrypt(ref object.Ref, data []byte, class Class) ([]byte, error) {
	return h.crypt(ref, data, class, false)
}

// Encrypt applies encryption to one object's payload.
func (h *Handler) Encrypt(ref object.Ref, data []byte, class Class) ([]byte, error) {
	return h.crypt(ref, data, class, true)
}

func (h *Handler) crypt(ref object.Ref, data []byte, class Class, encrypt bool) ([]byte, error) {
	if !h.authed {
		if err := h.Authenticate(""); err != nil {
			return nil, err
		}
	}
	a := h.algoFor(class)
	if a == algoNone || len(data) == 0 {
		return data, nil
	}
	key := h.objectKey(ref, a == algoAES)
	if a == algoAES {
		if encrypt {
			return aesEncrypt(key, data)
		}
		return aesDecrypt(key, data)
	}
	return rc4Crypt(key, data)
}

func (h *Handler) algoFor(class Class) algo {
	if class == ClassMetadata && !h.encryptMeta {
		return algoNone
	}
	var a algo
	switch class {
	case ClassString:
		a = h.stringAlgo
	default:
		a = h.streamAlgo
	}
	if a == algoUnset {
		if h.v >= 4 {
			return algoAES
		}
		return algoRC4
	}
	return a
}

func parseCryptFilters(enc *object.Dict, base algo) (map[string]algo, error) {
	out := make(map[string]algo)
	cf, ok := object.AsDict(enc.Get("CF"))
	if !ok {
		return out, nil
	}
	for _, name := range cf.Keys() {
		entry, ok := object.AsDict(cf.Get(name))
		if !ok {
			return nil, fmt.Errorf("%w: crypt filter %s is not a dictionary", ErrUnsupportedEncryption, name)
		}
		a := base
		if cfm, ok := object.AsName(entry.Get("CFM")); ok {
			switch cfm {
			case "V2":
				a = algoRC4
			case "AESV2", "AESV3":
				a = algoAES
			case "None":
				a = algoNone
			default:
				return nil, fmt.Errorf("%w: crypt filter method %s", ErrUnsupportedEncryption, cfm)
			}
		}
		out[string(name)] = a
	}
	return out, nil
}

func resolveFilterRef(enc *object.Dict, key object.Name, base algo, filters map[string]algo) (algo, error) {
	name, ok := object.AsName(enc.Get(key))
	if !ok || name == "" {
		return base, nil
	}
	if name == "Identity" {
		return algoNone, nil
	}
	if a, ok := filters[string(name)]; ok {
		return a, nil
	}
	return algoUnset, fmt.Errorf("%w: crypt filter %s not defined", ErrUnsupportedEncryption, name)
}

func dictInt(d *object.Dict, key object.Name, def int) int {
	if v, ok := object.AsInt(d.Get(key)); ok {
		return int(v)
	}
	return def
}
