package security

import (
	"crypto/aes"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/jed1boy/anyfile/object"
)

// Revision selects the handler revision for newly encrypted documents.
type Revision int

const (
	// RevAES256 writes V5/R6 with AES-256, the current standard scheme.
	RevAES256 Revision = 6
	// RevAES128 writes V4/R4 with AES-128 for consumers that predate
	// revision 6.
	RevAES128 Revision = 4
)

// Options configures encryption of a document being written.
type Options struct {
	UserPassword  string
	OwnerPassword string // defaults to UserPassword when empty
	Permissions   *Permissions
	Revision      Revision
	// PlainMetadata leaves the XMP metadata stream unencrypted.
	PlainMetadata bool
}

// NewStandard builds an Encrypt dictionary for opts and a Handler
// already holding the file key, ready to encrypt objects during
// serialization. fileID is the first element of the trailer ID array.
func NewStandard(opts Options, fileID []byte) (*Handler, *object.Dict, error) {
	owner := opts.OwnerPassword
	if owner == "" {
		owner = opts.UserPassword
	}
	perms := AllPermissions()
	if opts.Permissions != nil {
		perms = *opts.Permissions
	}
	switch opts.Revision {
	case 0, RevAES256:
		return newAES256(opts.UserPassword, owner, perms, !opts.PlainMetadata)
	case RevAES128:
		return newAES128(opts.UserPassword, owner, perms, fileID, !opts.PlainMetadata)
	default:
		return nil, nil, fmt.Errorf("%w: revision %d", ErrUnsupportedEncryption, opts.Revision)
	}
}

func newAES256(userPwd, ownerPwd string, perms Permissions, encryptMeta bool) (*Handler, *object.Dict, error) {
	fileKey := make([]byte, 32)
	if _, err := rand.Read(fileKey); err != nil {
		return nil, nil, err
	}
	user := prepPassword([]byte(userPwd))
	owner := prepPassword([]byte(ownerPwd))

	// Algorithm 8: U and UE
	uSalts := make([]byte, 16)
	if _, err := rand.Read(uSalts); err != nil {
		return nil, nil, err
	}
	uEntry := make([]byte, 0, 48)
	uEntry = append(uEntry, rev6Hash(user, uSalts[:8], nil)[:32]...)
	uEntry = append(uEntry, uSalts...)
	ue, err := aesCBCZeroIV(rev6Hash(user, uSalts[8:], nil)[:32], fileKey, true)
	if err != nil {
		return nil, nil, err
	}

	// Algorithm 9: O and OE, bound to the finished U entry
	oSalts := make([]byte, 16)
	if _, err := rand.Read(oSalts); err != nil {
		return nil, nil, err
	}
	oEntry := make([]byte, 0, 48)
	oEntry = append(oEntry, rev6Hash(owner, oSalts[:8], uEntry)[:32]...)
	oEntry = append(oEntry, oSalts...)
	oe, err := aesCBCZeroIV(rev6Hash(owner, oSalts[8:], uEntry)[:32], fileKey, true)
	if err != nil {
		return nil, nil, err
	}

	// Algorithm 10: the Perms entry
	p := perms.Value()
	var permsPlain [16]byte
	binary.LittleEndian.PutUint32(permsPlain[:4], uint32(p))
	copy(permsPlain[4:8], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	if encryptMeta {
		permsPlain[8] = 'T'
	} else {
		permsPlain[8] = 'F'
	}
	copy(permsPlain[9:12], "adb")
	if _, err := rand.Read(permsPlain[12:]); err != nil {
		return nil, nil, err
	}
	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return nil, nil, err
	}
	permsEntry := make([]byte, 16)
	block.Encrypt(permsEntry, permsPlain[:])

	enc := object.NewDict()
	enc.Set("Filter", object.Name("Standard"))
	enc.Set("V", object.Integer(5))
	enc.Set("R", object.Integer(6))
	enc.Set("Length", object.Integer(256))
	enc.Set("O", object.String{Bytes: oEntry, Hex: true})
	enc.Set("U", object.String{Bytes: uEntry, Hex: true})
	enc.Set("OE", object.String{Bytes: oe, Hex: true})
	enc.Set("UE", object.String{Bytes: ue, Hex: true})
	enc.Set("Perms", object.String{Bytes: permsEntry, Hex: true})
	enc.Set("P", object.Integer(p))
	setStdCryptFilter(enc, "AESV3", 32)
	if !encryptMeta {
		enc.Set("EncryptMetadata", object.Bool(false))
	}

	h := &Handler{
		v: 5, r: 6, keyLen: 32,
		oEntry: oEntry, uEntry: uEntry, oe: oe, ue: ue,
		permsEntry:  permsEntry,
		p:           p,
		encryptMeta: encryptMeta,
		streamAlgo:  algoAES, stringAlgo: algoAES,
		key: fileKey, authed: true, owner: true,
	}
	return h, enc, nil
}

func newAES128(userPwd, ownerPwd string, perms Permissions, fileID []byte, encryptMeta bool) (*Handler, *object.Dict, error) {
	p := perms.Value()
	oEntry := legacyOwnerEntry([]byte(userPwd), []byte(ownerPwd), 16, 4)

	h := &Handler{
		v: 4, r: 4, keyLen: 16,
		oEntry:      oEntry,
		p:           p,
		fileID:      fileID,
		encryptMeta: encryptMeta,
		streamAlgo:  algoAES, stringAlgo: algoAES,
	}
	key := h.legacyFileKey([]byte(userPwd))
	h.uEntry = legacyUserEntry(key, fileID)
	h.key = key
	h.authed = true
	h.owner = true

	enc := object.NewDict()
	enc.Set("Filter", object.Name("Standard"))
	enc.Set("V", object.Integer(4))
	enc.Set("R", object.Integer(4))
	enc.Set("Length", object.Integer(128))
	enc.Set("O", object.String{Bytes: oEntry, Hex: true})
	enc.Set("U", object.String{Bytes: h.uEntry, Hex: true})
	enc.Set("P", object.Integer(p))
	setStdCryptFilter(enc, "AESV2", 16)
	if !encryptMeta {
		enc.Set("EncryptMetadata", object.Bool(false))
	}
	return h, enc, nil
}

func setStdCryptFilter(enc *object.Dict, method object.Name, keyBytes int) {
	cf := object.NewDict()
	std := object.NewDict()
	std.Set("CFM", method)
	std.Set("AuthEvent", object.Name("DocOpen"))
	std.Set("Length", object.Integer(keyBytes))
	cf.Set("StdCF", std)
	enc.Set("CF", cf)
	enc.Set("StmF", object.Name("StdCF"))
	enc.Set("StrF", object.Name("StdCF"))
}

// legacyOwnerEntry implements Algorithm 3: the O entry from the owner
// and user passwords.
func legacyOwnerEntry(userPwd, ownerPwd []byte, keyLen, r int) []byte {
	key := ownerKey(ownerPwd, keyLen, r)
	val, _ := rc4Crypt(key, padPassword(userPwd))
	if r >= 3 {
		for i := 1; i <= 19; i++ {
			val, _ = rc4Crypt(xorKey(key, byte(i)), val)
		}
	}
	return val
}

// legacyUserEntry implements Algorithm 5: the U entry for R3/R4 from
// the file key. The trailing 16 bytes are arbitrary padding.
func legacyUserEntry(fileKey, fileID []byte) []byte {
	sum := md5.Sum(append(append([]byte{}, passwordPadding...), fileID...))
	val := sum[:]
	val, _ = rc4Crypt(fileKey, val)
	for i := 1; i <= 19; i++ {
		val, _ = rc4Crypt(xorKey(fileKey, byte(i)), val)
	}
	out := make([]byte, 32)
	copy(out, val)
	return out
}
