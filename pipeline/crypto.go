package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"github.com/jed1boy/anyfile/compose"
	"github.com/jed1boy/anyfile/document"
	"github.com/jed1boy/anyfile/observability"
	"github.com/jed1boy/anyfile/raster"
	"github.com/jed1boy/anyfile/security"
)

// EncryptParams configures password protection of a document.
type EncryptParams struct {
	UserPassword string
	// ConfirmPassword, when set, must match UserPassword. UI flows
	// pass the confirmation field through for validation here.
	ConfirmPassword string
	// OwnerPassword defaults to UserPassword when empty.
	OwnerPassword string
	Permissions   *security.Permissions
	// Revision selects the encryption scheme; zero means AES-256.
	Revision security.Revision
}

// Encrypt protects the document with the standard security handler.
func (p *Pipeline) Encrypt(ctx context.Context, in Input, params EncryptParams) (*Result, error) {
	return p.run(ctx, "encrypt", func(ctx context.Context) (*Result, error) {
		if params.ConfirmPassword != "" && params.ConfirmPassword != params.UserPassword {
			return nil, precondition("encrypt", ErrPasswordMismatch)
		}
		doc, perr := p.load(ctx, "encrypt", in)
		if perr != nil {
			return nil, perr
		}
		data, err := doc.Save(document.SaveOptions{
			Encryption: &security.Options{
				UserPassword:  params.UserPassword,
				OwnerPassword: params.OwnerPassword,
				Permissions:   params.Permissions,
				Revision:      params.Revision,
			},
		})
		if err != nil {
			return nil, opError("encrypt", KindEncryptionFailed, err)
		}
		if len(data) == 0 {
			return nil, opError("encrypt", KindEncryptionFailed, errors.New("handler produced empty output"))
		}
		return &Result{
			Data:     data,
			Filename: outputName("encrypted-", in.Name, "encrypted.pdf"),
			Pages:    doc.PageCount(),
		}, nil
	})
}

// decryptScale is the rasterization scale of the reconstruction
// fallback; 2.0 doubles the page's point dimensions in pixels.
const decryptScale = 2.0

// Decrypt removes password protection by reconstruction: it opens the
// document with the password, rasterizes every page, and rebuilds an
// unencrypted image-only document. The output is a faithful visual
// reproduction but loses selectable text, vector precision, metadata
// and form fields, and is typically larger than the input.
func (p *Pipeline) Decrypt(ctx context.Context, in Input, password string) (*Result, error) {
	return p.run(ctx, "decrypt", func(ctx context.Context) (*Result, error) {
		doc, err := document.Load(in.Data, document.WithPassword(password))
		if err != nil {
			if errors.Is(err, security.ErrIncorrectPassword) {
				return nil, opError("decrypt", KindIncorrectPassword, err)
			}
			return nil, opError("decrypt", KindDecryptionFailed, err)
		}

		out := document.New()
		rerr := p.rasterPhase(ctx, func(ctx context.Context) error {
			for i := 0; i < doc.PageCount(); i++ {
				bitmap, err := raster.Render(ctx, doc, i, raster.WithScale(decryptScale))
				if err != nil {
					return opError("decrypt", KindDecryptionFailed,
						fmt.Errorf("rasterize page %d: %w", i, err))
				}
				var buf bytes.Buffer
				if err := png.Encode(&buf, bitmap); err != nil {
					return opError("decrypt", KindDecryptionFailed, err)
				}
				if err := compose.AddImagePage(out, buf.Bytes()); err != nil {
					return opError("decrypt", KindDecryptionFailed, err)
				}
				p.log.Debug("page reconstructed", observability.Int("page", i))
			}
			return nil
		})
		if rerr != nil {
			return nil, rerr
		}
		return p.finish(ctx, "decrypt", out,
			outputName("decrypted-", in.Name, "decrypted.pdf"),
			document.SaveOptions{ObjectStreams: true})
	})
}

// EncryptionStatus is the outcome of probing a document without a
// password.
type EncryptionStatus int

const (
	// StatusUnknown means the probe could not establish either state;
	// neither state may be assumed.
	StatusUnknown EncryptionStatus = iota
	// StatusNotEncrypted means the document opened without a password.
	StatusNotEncrypted
	// StatusEncrypted means opening failed for password reasons.
	StatusEncrypted
)

// ProbeEncryption attempts an unauthenticated open to decide whether a
// password prompt is needed. A parse failure that is not password
// related leaves the status unknown.
func (p *Pipeline) ProbeEncryption(data []byte) EncryptionStatus {
	_, err := document.Load(data)
	switch {
	case err == nil:
		return StatusNotEncrypted
	case errors.Is(err, security.ErrIncorrectPassword),
		errors.Is(err, security.ErrUnsupportedEncryption):
		return StatusEncrypted
	default:
		return StatusUnknown
	}
}
