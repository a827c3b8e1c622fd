// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package codec_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/broker/codec"
)

func TestRegistryLookup(t *testing.T) {
	registry := codec.NewRegistry()

	assert.Equal(t, codec.ContentTypeJSON, registry.Lookup("").ContentType())
	assert.Equal(t, codec.ContentTypeJSON, registry.Lookup("application/json").ContentType())
	assert.Equal(t, codec.ContentTypeJSON, registry.Lookup("application/json; charset=utf-8").ContentType())
	assert.Equal(t, codec.ContentTypeMsgpack, registry.Lookup("application/x-msgpack").ContentType())

	// Unknown and malformed types fall back to JSON.
	assert.Equal(t, codec.ContentTypeJSON, registry.Lookup("text/plain").ContentType())
	assert.Equal(t, codec.ContentTypeJSON, registry.Lookup(";;;").ContentType())
}

func TestJSONDecodeNumbers(t *testing.T) {
	doc, err := codec.JSON{}.Decode(strings.NewReader(`{"int": 42, "big": 9223372036854775807, "float": 1.5}`), 1024)
	require.NoError(t, err)

	obj, err := codec.AsObject(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(42), obj["int"])
	assert.Equal(t, int64(9223372036854775807), obj["big"])
	assert.Equal(t, 1.5, obj["float"])
}

func TestJSONDecodeIntegerOverflow(t *testing.T) {
	_, err := codec.JSON{}.Decode(strings.NewReader(`{"big": 92233720368547758080}`), 1024)
	assert.True(t, codec.ErrBadDocument.Has(err))
}

func TestJSONDecodeMalformed(t *testing.T) {
	_, err := codec.JSON{}.Decode(strings.NewReader(`{"unterminated":`), 1024)
	assert.True(t, codec.ErrBadDocument.Has(err))
}

func TestJSONSizeCap(t *testing.T) {
	doc := `{"body": "` + strings.Repeat("x", 100) + `"}`

	_, err := codec.JSON{}.Decode(strings.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)

	_, err = codec.JSON{}.Decode(strings.NewReader(doc), int64(len(doc))-1)
	assert.True(t, codec.ErrTooLarge.Has(err))
}

func TestJSONRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"event":   "créé",
		"count":   int64(3),
		"ratio":   0.25,
		"nested":  map[string]interface{}{"ok": true},
		"targets": []interface{}{"a", "b"},
	}

	var buf bytes.Buffer
	require.NoError(t, codec.JSON{}.Encode(&buf, original))

	decoded, err := codec.JSON{}.Decode(&buf, 1024)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMsgpackRoundTripBinary(t *testing.T) {
	original := map[string]interface{}{
		"payload": []byte{0x00, 0xff, 0x10, 0x80},
		"count":   int64(7),
	}

	var buf bytes.Buffer
	require.NoError(t, codec.Msgpack{}.Encode(&buf, original))

	decoded, err := codec.Msgpack{}.Decode(&buf, 1024)
	require.NoError(t, err)

	obj, err := codec.AsObject(decoded)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x10, 0x80}, obj["payload"])
	assert.Equal(t, int64(7), obj["count"])
}

func TestMsgpackSizeCap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, codec.Msgpack{}.Encode(&buf, strings.Repeat("x", 200)))

	_, err := codec.Msgpack{}.Decode(bytes.NewReader(buf.Bytes()), 100)
	assert.True(t, codec.ErrTooLarge.Has(err))
}

func TestDocumentTypes(t *testing.T) {
	arr, err := codec.AsArray([]interface{}{int64(1)})
	require.NoError(t, err)
	assert.Len(t, arr, 1)

	_, err = codec.AsArray(map[string]interface{}{})
	assert.True(t, codec.ErrBadDocument.Has(err))

	obj, err := codec.AsObject(map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", obj["k"])

	_, err = codec.AsObject([]interface{}{})
	assert.True(t, codec.ErrBadDocument.Has(err))
}
