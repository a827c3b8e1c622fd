// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package codec

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
)

// JSON is the default document codec.
type JSON struct{}

// ContentType implements Codec.
func (JSON) ContentType() string { return ContentTypeJSON }

// Encode implements Codec.
func (JSON) Encode(w io.Writer, v interface{}) error {
	return ErrBadDocument.Wrap(json.NewEncoder(w).Encode(v))
}

// Decode implements Codec.
func (JSON) Decode(r io.Reader, maxSize int64) (interface{}, error) {
	dec := json.NewDecoder(newCappedReader(r, maxSize))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		if ErrTooLarge.Has(err) {
			return nil, err
		}
		return nil, ErrBadDocument.Wrap(err)
	}
	return normalize(v)
}

// normalize rewrites json.Number values into int64 or float64. Integers
// that do not fit a signed 64-bit value are rejected rather than silently
// losing precision.
func normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case json.Number:
		return normalizeNumber(val)
	case []interface{}:
		for i, item := range val {
			norm, err := normalize(item)
			if err != nil {
				return nil, err
			}
			val[i] = norm
		}
		return val, nil
	case map[string]interface{}:
		for key, item := range val {
			norm, err := normalize(item)
			if err != nil {
				return nil, err
			}
			val[key] = norm
		}
		return val, nil
	default:
		return v, nil
	}
}

func normalizeNumber(n json.Number) (interface{}, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, ErrBadDocument.New("integer out of 64-bit range: %s", s)
		}
		return i, nil
	}

	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return nil, ErrBadDocument.New("number out of range: %s", s)
	}
	return f, nil
}
