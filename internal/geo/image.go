package geo

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

// MaxImageBytes bounds images read from disk.
const MaxImageBytes = 20 << 20

var dataURIPattern = regexp.MustCompile(`(?s)^data:([^;,]+);base64,(.*)$`)

// Image is a decoded inline image.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI re-encodes the image.
func (img Image) DataURI() string {
	return EncodeDataURI(img.MIMEType, img.Data)
}

// ParseDataURI decodes data:<mime>;base64,<payload>.
func ParseDataURI(uri string) (Image, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return Image{}, &Error{Kind: InvalidImageData, Err: fmt.Errorf("not a base64 data URI")}
	}
	payload := strings.TrimSpace(m[2])
	if payload == "" {
		return Image{}, &Error{Kind: InvalidImageData, Err: fmt.Errorf("empty payload")}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, &Error{Kind: InvalidImageData, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return Image{MIMEType: m[1], Data: data}, nil
}

// EncodeDataURI builds a data URI for the given bytes.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// LoadImageFile reads an image from disk and returns it as a data URI.
// The MIME type is sniffed from the content, not the extension.
func LoadImageFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return "", &Error{Kind: InvalidImageData, Err: fmt.Errorf("%s is a directory", path)}
	}
	if info.Size() > MaxImageBytes {
		return "", &Error{Kind: InvalidImageData, Err: fmt.Errorf("%s exceeds %d bytes", path, MaxImageBytes)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", &Error{Kind: InvalidImageData, Err: fmt.Errorf("%s is %s, not an image", path, mime)}
	}
	return EncodeDataURI(mime, data), nil
}
