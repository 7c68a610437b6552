package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"github.com/xdg-go/stringprep"

	"github.com/jed1boy/anyfile/object"
)

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

// prepPassword applies SASLprep to a revision 6 password and truncates
// it to 127 bytes as Algorithm 2.A requires. Unpreparable input is
// used as typed; rejecting it outright would lock users out of files
// other producers accepted.
func prepPassword(pwd []byte) []byte {
	prepared, err := stringprep.SASLprep.Prepare(string(pwd))
	if err == nil {
		pwd = []byte(prepared)
	}
	if len(pwd) > 127 {
		pwd = pwd[:127]
	}
	return pwd
}

// legacy (R2-R4) authentication

func (h *Handler) authenticateLegacy(pwd []byte) error {
	// owner password first; a password matching both entries
	// authorizes as owner
	userPwd, ok := h.recoverUserPassword(pwd)
	if ok {
		key := h.legacyFileKey(userPwd)
		if h.checkUserEntry(key) {
			h.key = key
			h.authed = true
			h.owner = true
			return nil
		}
	}
	key := h.legacyFileKey(pwd)
	if h.checkUserEntry(key) {
		h.key = key
		h.authed = true
		h.owner = false
		return nil
	}
	return ErrIncorrectPassword
}

// legacyFileKey implements Algorithm 2: the file encryption key from a
// padded user password.
func (h *Handler) legacyFileKey(userPwd []byte) []byte {
	data := make([]byte, 0, 32+len(h.oEntry)+4+len(h.fileID)+4)
	data = append(data, padPassword(userPwd)...)
	data = append(data, h.oEntry...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(h.p))
	data = append(data, pBuf[:]...)
	data = append(data, h.fileID...)
	if h.r >= 4 && !h.encryptMeta {
		data = append(data, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	sum := md5.Sum(data)
	key := sum[:]
	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:h.keyLen])
			key = sum[:]
		}
	}
	return key[:h.keyLen]
}

// checkUserEntry implements Algorithms 4 and 5: validate a candidate
// file key against the stored U entry.
func (h *Handler) checkUserEntry(key []byte) bool {
	if len(h.uEntry) < 16 {
		return false
	}
	if h.r == 2 {
		expect, _ := rc4Crypt(key, passwordPadding)
		return bytes.Equal(expect[:16], h.uEntry[:16])
	}
	sum := md5.Sum(append(append([]byte{}, passwordPadding...), h.fileID...))
	val := sum[:]
	val, _ = rc4Crypt(key, val)
	for i := 1; i <= 19; i++ {
		val, _ = rc4Crypt(xorKey(key, byte(i)), val)
	}
	return bytes.Equal(val[:16], h.uEntry[:16])
}

// recoverUserPassword implements Algorithm 7's first half: decrypt the
// O entry with the owner-password key to recover the padded user
// password.
func (h *Handler) recoverUserPassword(ownerPwd []byte) ([]byte, bool) {
	if len(h.oEntry) < 32 {
		return nil, false
	}
	key := ownerKey(ownerPwd, h.keyLen, h.r)
	val := append([]byte{}, h.oEntry[:32]...)
	if h.r == 2 {
		val, _ = rc4Crypt(key, val)
	} else {
		for i := 19; i >= 0; i-- {
			val, _ = rc4Crypt(xorKey(key, byte(i)), val)
		}
	}
	return val, true
}

// ownerKey implements Algorithm 3 steps a-d: the RC4 key derived from
// the owner password.
func ownerKey(ownerPwd []byte, keyLen, r int) []byte {
	sum := md5.Sum(padPassword(ownerPwd))
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			key = sum[:]
		}
	}
	if r == 2 {
		return key[:5]
	}
	return key[:keyLen]
}

func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i, k := range key {
		out[i] = k ^ b
	}
	return out
}

// revision 6 (AES-256) authentication

func (h *Handler) authenticateRev6(pwd []byte) error {
	pwd = prepPassword(pwd)
	// owner password first, as in the legacy path
	if len(h.oEntry) >= 48 && len(h.oe) >= 32 && len(h.uEntry) >= 48 {
		if key, ok := h.rev6OwnerKey(pwd); ok {
			h.key = key
			h.authed = true
			h.owner = true
			h.applyPermsEntry()
			return nil
		}
	}
	if len(h.uEntry) >= 48 && len(h.ue) >= 32 {
		if key, ok := h.rev6UserKey(pwd); ok {
			h.key = key
			h.authed = true
			h.owner = false
			h.applyPermsEntry()
			return nil
		}
	}
	return ErrIncorrectPassword
}

func (h *Handler) rev6UserKey(pwd []byte) ([]byte, bool) {
	validationSalt := h.uEntry[32:40]
	keySalt := h.uEntry[40:48]
	if !bytes.Equal(rev6Hash(pwd, validationSalt, nil)[:32], h.uEntry[:32]) {
		return nil, false
	}
	ikey := rev6Hash(pwd, keySalt, nil)
	key, err := aesCBCZeroIV(ikey[:32], h.ue[:32], false)
	if err != nil {
		return nil, false
	}
	return key, true
}

func (h *Handler) rev6OwnerKey(pwd []byte) ([]byte, bool) {
	validationSalt := h.oEntry[32:40]
	keySalt := h.oEntry[40:48]
	u48 := h.uEntry[:48]
	if !bytes.Equal(rev6Hash(pwd, validationSalt, u48)[:32], h.oEntry[:32]) {
		return nil, false
	}
	ikey := rev6Hash(pwd, keySalt, u48)
	key, err := aesCBCZeroIV(ikey[:32], h.oe[:32], false)
	if err != nil {
		return nil, false
	}
	return key, true
}

// applyPermsEntry decodes the Perms entry (Algorithm 13) so that the
// authoritative, tamper-proof permission bits replace the plain P
// value when they decrypt cleanly.
func (h *Handler) applyPermsEntry() {
	if len(h.permsEntry) != 16 || len(h.key) != 32 {
		return
	}
	block, err := aes.NewCipher(h.key)
	if err != nil {
		return
	}
	out := make([]byte, 16)
	block.Decrypt(out, h.permsEntry)
	if !bytes.Equal(out[9:12], []byte("adb")) {
		return
	}
	h.p = int32(binary.LittleEndian.Uint32(out[0:4]))
}

// rev6Hash implements Algorithm 2.B, the iterated hash of revision 6.
// extra is the 48-byte U entry when hashing an owner password, nil for
// a user password.
func rev6Hash(pwd, salt, extra []byte) []byte {
	input := make([]byte, 0, len(pwd)+len(salt)+len(extra))
	input = append(input, pwd...)
	input = append(input, salt...)
	input = append(input, extra...)
	sum := sha256.Sum256(input)
	k := sum[:]

	for round := 0; ; round++ {
		part := make([]byte, 0, len(pwd)+len(k)+len(extra))
		part = append(part, pwd...)
		part = append(part, k...)
		part = append(part, extra...)
		k1 := bytes.Repeat(part, 64)

		block, err := aes.NewCipher(k[:16])
		if err != nil {
			return k
		}
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)

		var mod int
		for _, b := range e[:16] {
			mod += int(b)
		}
		switch mod % 3 {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		default:
			s := sha512.Sum512(e)
			k = s[:]
		}
		if round >= 63 && int(e[len(e)-1]) <= round-31 {
			return k[:32]
		}
	}
}

// per-object keys

// objectKey derives the key used for one indirect object. Revision 5+
// uses the file key directly.
func (h *Handler) objectKey(ref object.Ref, useAES bool) []byte {
	if h.r >= 5 {
		return h.key
	}
	data := make([]byte, 0, len(h.key)+9)
	data = append(data, h.key...)
	data = append(data,
		byte(ref.Num), byte(ref.Num>>8), byte(ref.Num>>16),
		byte(ref.Gen), byte(ref.Gen>>8))
	if useAES {
		data = append(data, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(data)
	n := len(h.key) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// primitives

func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func aesEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	plain := append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	out := make([]byte, aes.BlockSize+len(plain))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plain)
	return out, nil
}

func aesDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext length invalid")
	}
	out := make([]byte, len(data)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, data[:aes.BlockSize]).CryptBlocks(out, data[aes.BlockSize:])
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid padding")
	}
	return out[:len(out)-pad], nil
}

// aesCBCZeroIV is the unpadded zero-IV mode revision 6 uses for the
// UE, OE and intermediate key material.
func aesCBCZeroIV(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("data length invalid")
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}
