// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package codec

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is the binary document codec, selected by
// application/x-msgpack. Unlike JSON it round-trips raw byte strings.
type Msgpack struct{}

// ContentType implements Codec.
func (Msgpack) ContentType() string { return ContentTypeMsgpack }

// Encode implements Codec.
func (Msgpack) Encode(w io.Writer, v interface{}) error {
	return ErrBadDocument.Wrap(msgpack.NewEncoder(w).Encode(v))
}

// Decode implements Codec.
func (Msgpack) Decode(r io.Reader, maxSize int64) (interface{}, error) {
	dec := msgpack.NewDecoder(newCappedReader(r, maxSize))
	dec.UseLooseInterfaceDecoding(true)

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		if ErrTooLarge.Has(err) {
			return nil, err
		}
		return nil, ErrBadDocument.Wrap(err)
	}
	return v, nil
}
