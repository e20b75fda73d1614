// Package formdata decodes multipart/form-data bodies into one file payload and
// a flat map of text fields.
package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// MaxFieldBytes caps a single text field value; longer values are truncated.
const MaxFieldBytes = 1 << 20

var (
	// ErrMalformedContentType is returned when the header carries no usable boundary.
	ErrMalformedContentType = errors.New("malformed multipart content type")
	// ErrDecode is returned when the multipart framing cannot be parsed.
	ErrDecode = errors.New("malformed multipart body")
	// ErrPayloadTooLarge is returned when the body exceeds the reader's byte limit.
	ErrPayloadTooLarge = errors.New("multipart body too large")
)

// Form is the decoded result. File is nil when no file part was present.
type Form struct {
	File     []byte
	FileName string
	Fields   map[string]string
}

// Decode reads body to the end. For repeated file parts, or repeated field
// names, the last one wins.
func Decode(body io.Reader, contentType string) (*Form, error) {
	boundary, err := parseBoundary(contentType)
	if err != nil {
		return nil, err
	}

	reader := multipart.NewReader(body, boundary)
	form := &Form{Fields: make(map[string]string)}

	for {
		part, err := reader.NextPart()
		// A clean closing boundary yields a bare io.EOF; a truncated body yields a wrapped one.
		if err == io.EOF { //nolint:errorlint
			return form, nil
		}
		if err != nil {
			return nil, classify(err)
		}

		if part.FileName() != "" {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, part); err != nil {
				part.Close()
				return nil, classify(err)
			}
			form.File = buf.Bytes()
			form.FileName = part.FileName()
		} else if name := part.FormName(); name != "" {
			value, err := io.ReadAll(io.LimitReader(part, MaxFieldBytes))
			if err != nil {
				part.Close()
				return nil, classify(err)
			}
			form.Fields[name] = string(value)
		}
		// Close drains whatever is left of the part, including truncated field tails.
		if err := part.Close(); err != nil {
			return nil, classify(err)
		}
	}
}

func parseBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedContentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("%w: unexpected media type %q", ErrMalformedContentType, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("%w: missing boundary", ErrMalformedContentType)
	}
	return boundary, nil
}

func classify(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %v", ErrDecode, err)
}
