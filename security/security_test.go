package security

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jed1boy/anyfile/object"
)

func TestNewStandardRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		revision Revision
		user     string
		owner    string
	}{
		{"aes256 user only", RevAES256, "secret123", ""},
		{"aes256 distinct owner", RevAES256, "secret123", "admin456"},
		{"aes128 user only", RevAES128, "secret123", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fileID := bytes.Repeat([]byte{0xAB}, 16)
			h, enc, err := NewStandard(Options{
				UserPassword:  tc.user,
				OwnerPassword: tc.owner,
				Revision:      tc.revision,
			}, fileID)
			if err != nil {
				t.Fatalf("NewStandard: %v", err)
			}

			ref := object.Ref{Num: 7, Gen: 0}
			plain := []byte("page content stream data")
			ct, err := h.Encrypt(ref, plain, ClassStream)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Equal(ct, plain) {
				t.Fatal("ciphertext equals plaintext")
			}

			// a fresh handler built from the dictionary must accept the
			// user password and reverse the encryption
			h2 := rebuild(t, enc, fileID)
			if err := h2.Authenticate(tc.user); err != nil {
				t.Fatalf("Authenticate(user): %v", err)
			}
			got, err := h2.Decrypt(ref, ct, ClassStream)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Fatalf("round trip mismatch: got %q", got)
			}

			// owner password must authenticate too
			owner := tc.owner
			if owner == "" {
				owner = tc.user
			}
			h3 := rebuild(t, enc, fileID)
			if err := h3.Authenticate(owner); err != nil {
				t.Fatalf("Authenticate(owner): %v", err)
			}

			h4 := rebuild(t, enc, fileID)
			if err := h4.Authenticate("wrong password"); !errors.Is(err, ErrIncorrectPassword) {
				t.Fatalf("wrong password: got %v, want ErrIncorrectPassword", err)
			}
		})
	}
}

func rebuild(t *testing.T, enc *object.Dict, fileID []byte) *Handler {
	t.Helper()
	h, err := NewHandlerBuilder().WithEncryptDict(enc).WithFileID(fileID).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func TestPermissionsValueRoundTrip(t *testing.T) {
	perms := Permissions{Print: true, Copy: true, PrintHighQuality: true}
	got := permissionsFromValue(perms.Value())
	if got != perms {
		t.Fatalf("got %+v, want %+v", got, perms)
	}
}

func TestPermissionsCarriedThroughDict(t *testing.T) {
	restricted := Permissions{Print: true}
	h, enc, err := NewStandard(Options{
		UserPassword: "pw",
		Permissions:  &restricted,
	}, nil)
	if err != nil {
		t.Fatalf("NewStandard: %v", err)
	}
	if !h.Permissions().Print || h.Permissions().Modify {
		t.Fatalf("creating handler reports %+v", h.Permissions())
	}

	h2 := rebuild(t, enc, nil)
	if err := h2.Authenticate("pw"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got := h2.Permissions(); !got.Print || got.Modify || got.Copy {
		t.Fatalf("reloaded permissions %+v", got)
	}
}

func TestEmptyUserPasswordOpensWithoutPassword(t *testing.T) {
	h, enc, err := NewStandard(Options{OwnerPassword: "ownersecret"}, nil)
	if err != nil {
		t.Fatalf("NewStandard: %v", err)
	}
	_ = h
	h2 := rebuild(t, enc, nil)
	if err := h2.Authenticate(""); err != nil {
		t.Fatalf("empty user password rejected: %v", err)
	}
	if h2.OwnerAuthorized() {
		t.Fatal("empty password should authenticate as user, not owner")
	}
}

func TestOwnerAuthorization(t *testing.T) {
	cases := []struct {
		name      string
		revision  Revision
		user      string
		owner     string
		authWith  string
		wantOwner bool
	}{
		{"aes256 shared password lands as owner", RevAES256, "secret123", "", "secret123", true},
		{"aes256 distinct owner password", RevAES256, "secret123", "admin456", "admin456", true},
		{"aes256 user password stays user", RevAES256, "secret123", "admin456", "secret123", false},
		{"aes128 shared password lands as owner", RevAES128, "secret123", "", "secret123", true},
		{"aes128 user password stays user", RevAES128, "secret123", "admin456", "secret123", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fileID := bytes.Repeat([]byte{0xCD}, 16)
			_, enc, err := NewStandard(Options{
				UserPassword:  tc.user,
				OwnerPassword: tc.owner,
				Revision:      tc.revision,
			}, fileID)
			if err != nil {
				t.Fatalf("NewStandard: %v", err)
			}
			h := rebuild(t, enc, fileID)
			if err := h.Authenticate(tc.authWith); err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if got := h.OwnerAuthorized(); got != tc.wantOwner {
				t.Errorf("OwnerAuthorized = %v, want %v", got, tc.wantOwner)
			}
		})
	}
}

func TestStringsAndStreamsBothCovered(t *testing.T) {
	h, _, err := NewStandard(Options{UserPassword: "pw"}, nil)
	if err != nil {
		t.Fatalf("NewStandard: %v", err)
	}
	ref := object.Ref{Num: 3}
	for _, class := range []Class{ClassStream, ClassString} {
		ct, err := h.Encrypt(ref, []byte("payload"), class)
		if err != nil {
			t.Fatalf("Encrypt class %d: %v", class, err)
		}
		pt, err := h.Decrypt(ref, ct, class)
		if err != nil {
			t.Fatalf("Decrypt class %d: %v", class, err)
		}
		if string(pt) != "payload" {
			t.Fatalf("class %d round trip got %q", class, pt)
		}
	}
}
