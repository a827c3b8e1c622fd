// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package codec decodes and encodes request documents. Codecs are selected
// by content type; responses mirror the request's encoding. JSON is the
// default, msgpack the binary alternative.
package codec

import (
	"io"
	"mime"

	"github.com/zeebo/errs"
)

var (
	// ErrBadDocument is the class for malformed or mistyped documents.
	ErrBadDocument = errs.Class("bad document")

	// ErrTooLarge is the class for documents exceeding the size cap.
	ErrTooLarge = errs.Class("document too large")
)

// Content types with a registered codec.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/x-msgpack"
)

// Codec translates between wire bytes and decoded documents.
type Codec interface {
	// ContentType is the media type the codec is registered under.
	ContentType() string

	// Encode writes v to w.
	Encode(w io.Writer, v interface{}) error

	// Decode reads one document of at most maxSize bytes. Streams
	// exceeding the cap fail with ErrTooLarge.
	Decode(r io.Reader, maxSize int64) (interface{}, error)
}

// Registry dispatches on content type. Unknown and absent types fall back
// to JSON.
type Registry struct {
	codecs   map[string]Codec
	fallback Codec
}

// NewRegistry returns a registry with the JSON and msgpack codecs.
func NewRegistry() *Registry {
	jsonCodec := JSON{}
	r := &Registry{
		codecs:   map[string]Codec{},
		fallback: jsonCodec,
	}
	r.Register(jsonCodec)
	r.Register(Msgpack{})
	return r
}

// Register adds a codec under its content type.
func (r *Registry) Register(c Codec) {
	r.codecs[c.ContentType()] = c
}

// Lookup returns the codec for the given Content-Type header value.
func (r *Registry) Lookup(contentType string) Codec {
	if contentType == "" {
		return r.fallback
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r.fallback
	}
	if c, ok := r.codecs[mediaType]; ok {
		return c
	}
	return r.fallback
}

// AsArray enforces that a decoded document is an array.
func AsArray(v interface{}) ([]interface{}, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, ErrBadDocument.New("expected an array document")
	}
	return arr, nil
}

// AsObject enforces that a decoded document is an object.
func AsObject(v interface{}) (map[string]interface{}, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrBadDocument.New("expected an object document")
	}
	return obj, nil
}

// cappedReader fails with ErrTooLarge once more than max bytes have been
// consumed, without buffering the whole stream first.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func newCappedReader(r io.Reader, max int64) *cappedReader {
	return &cappedReader{r: r, remaining: max}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrTooLarge.New("document exceeds size cap")
	}
	return n, err
}
