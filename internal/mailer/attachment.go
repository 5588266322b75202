package mailer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxAttachmentBytes bounds a decoded attachment.
const MaxAttachmentBytes = 10 << 20

var ErrAttachment = errors.New("invalid attachment")

// DecodeAttachment decodes a base64 upload (optionally a data: URL) and sniffs
// its content type. An empty payload yields nil.
func DecodeAttachment(b64, name string) (*Attachment, error) {
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return nil, nil
	}
	if strings.HasPrefix(b64, "data:") {
		if i := strings.Index(b64, ";base64,"); i >= 0 {
			b64 = b64[i+len(";base64,"):]
		}
	}
	b64 = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, b64)

	if base64.StdEncoding.DecodedLen(len(b64)) > MaxAttachmentBytes+3 {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrAttachment, MaxAttachmentBytes)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(b64, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttachment, err)
	}
	if len(data) > MaxAttachmentBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrAttachment, MaxAttachmentBytes)
	}

	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		name = "resume.pdf"
	}

	return &Attachment{
		Name:        name,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}
