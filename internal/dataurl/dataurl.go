// Package dataurl decodes base64 image data URLs.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"strings"

	vdataurl "github.com/vincent-petithory/dataurl"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWEBP = "image/webp"
)

const base64Marker = ";base64,"

var supported = map[string]bool{
	MimePNG:  true,
	MimeJPEG: true,
	MimeWEBP: true,
}

// Image is a decoded data URL payload.
type Image struct {
	MimeType string
	Bytes    []byte
}

// ParseError describes why a data URL was rejected.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid data url: %s: %v", e.Reason, e.Err)
	}
	return "invalid data url: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode parses data:image/<png|jpeg|webp>;base64,<payload>.
func Decode(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return Image{}, &ParseError{Reason: "missing data: prefix"}
	}

	du, err := vdataurl.DecodeString(s)
	if err != nil {
		return Image{}, &ParseError{Reason: "malformed data url", Err: err}
	}
	if du.Encoding != vdataurl.EncodingBase64 {
		return Image{}, &ParseError{Reason: "missing base64 marker"}
	}

	mimeType := strings.ToLower(du.MediaType.ContentType())
	if !supported[mimeType] {
		return Image{}, &ParseError{Reason: fmt.Sprintf("unsupported mime type %q (must be png, jpeg, or webp)", mimeType)}
	}

	if len(du.Data) == 0 {
		return Image{}, &ParseError{Reason: "empty payload"}
	}

	return Image{MimeType: mimeType, Bytes: du.Data}, nil
}

// Encode builds a base64 data URL for the given payload.
func Encode(mimeType string, data []byte) string {
	return vdataurl.New(data, mimeType).String()
}

// DecodedLen estimates the decoded size of the payload of s without decoding it.
func DecodedLen(s string) int {
	if idx := strings.Index(s, base64Marker); idx >= 0 {
		s = s[idx+len(base64Marker):]
	}
	return base64.StdEncoding.DecodedLen(len(s))
}
