// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BodyAsStruct decodes an entry's body as a single fixed-layout record. It
// fails with SchemaMismatch if the body's length does not exactly equal
// the encoded size of T. T's fields must be fixed-size (no slices, maps,
// or strings) for binary.Read to apply.
func BodyAsStruct[T any](e EntryView) (T, error) {
	var v T
	body, err := e.BodyBytes()
	if err != nil {
		return v, err
	}
	want := binary.Size(v)
	if want < 0 {
		return v, fmt.Errorf("apcb: %T is not a fixed-size struct: %w", v, ErrSchemaMismatch)
	}
	if len(body) != want {
		return v, fmt.Errorf("apcb: body length %d != %T size %d: %w", len(body), v, want, ErrSchemaMismatch)
	}
	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("apcb: decoding %T: %w", v, err)
	}
	return v, nil
}

// BodyAsStructMut overwrites an entry's body with the encoding of v. The
// body's length must already equal the encoded size of v; use
// GroupMutView.ResizeEntryBy first if it doesn't.
func BodyAsStructMut[T any](e EntryMutView, v *T) error {
	body, err := e.BodyBytesMut()
	if err != nil {
		return err
	}
	want := binary.Size(*v)
	if want < 0 {
		return fmt.Errorf("apcb: %T is not a fixed-size struct: %w", *v, ErrSchemaMismatch)
	}
	if len(body) != want {
		return fmt.Errorf("apcb: body length %d != %T size %d: %w", len(body), *v, want, ErrSchemaMismatch)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("apcb: encoding %T: %w", *v, err)
	}
	copy(body, buf.Bytes())
	return nil
}

// BodyAsStructArray decodes an entry's body as a sequence of identically
// sized elements. It fails with SchemaMismatch if the body's length is not
// a multiple of T's encoded size.
func BodyAsStructArray[T any](e EntryView) ([]T, error) {
	body, err := e.BodyBytes()
	if err != nil {
		return nil, err
	}
	var zero T
	stride := binary.Size(zero)
	if stride <= 0 {
		return nil, fmt.Errorf("apcb: %T is not a fixed-size struct: %w", zero, ErrSchemaMismatch)
	}
	if len(body)%stride != 0 {
		return nil, fmt.Errorf("apcb: body length %d not a multiple of %T stride %d: %w",
			len(body), zero, stride, ErrSchemaMismatch)
	}
	n := len(body) / stride
	out := make([]T, n)
	r := bytes.NewReader(body)
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, fmt.Errorf("apcb: decoding %T[%d]: %w", zero, i, err)
		}
	}
	return out, nil
}

// SequenceElementLen inspects the start of a struct-sequence element's
// remaining bytes and returns how many bytes (including its own header)
// that element occupies. The catalogue of concrete element layouts is an
// external collaborator; BodyAsStructSequence is generic over it.
type SequenceElementLen func(remaining []byte) (int, error)

// BodyAsStructSequence walks an entry's body as a concatenation of
// variable-length, self-describing elements, returning each element's raw
// bytes. It fails with SequenceBroken on underflow or if readLen reports
// an element longer than what remains.
func BodyAsStructSequence(e EntryView, readLen SequenceElementLen) ([][]byte, error) {
	body, err := e.BodyBytes()
	if err != nil {
		return nil, err
	}
	var elements [][]byte
	for len(body) > 0 {
		n, err := readLen(body)
		if err != nil {
			return nil, fmt.Errorf("apcb: reading sequence element header: %w", err)
		}
		if n <= 0 || n > len(body) {
			return nil, fmt.Errorf("apcb: sequence element length %d exceeds remaining %d: %w", n, len(body), ErrSequenceBroken)
		}
		elements = append(elements, body[:n])
		body = body[n:]
	}
	return elements, nil
}
