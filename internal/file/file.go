package file

import (
	"context"
	"errors"
	"io"
	"net/http"
)

const MaxDocumentSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("only JPEG, PNG and PDF files are allowed")
	ErrTooLarge        = errors.New("file must be 10MB or smaller")
)

var allowedDocumentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// Uploader stores an object and returns the URL it can be read from.
type Uploader interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

// DetectDocumentType sniffs the first bytes of a document and returns its
// content type and extension.
func DetectDocumentType(head []byte) (string, string, error) {
	contentType := http.DetectContentType(head)
	ext, ok := allowedDocumentTypes[contentType]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	return contentType, ext, nil
}
