// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"encoding/binary"
	"fmt"
)

// lengthField is one entry in the ancestor chain a splice must adjust: a
// length field living somewhere in the buffer (a group's size, an entry's
// size) whose value must move by the same delta as used_size. width is the
// field's byte width, 2 or 4.
type lengthField struct {
	offset int
	width  int
}

// checkLengthField validates that f's current value plus delta still fits
// in f's width, without touching the buffer. Called before any byte is
// moved, so every ancestor is proven fit before step 2 commits to anything.
func (r *Root) checkLengthField(f lengthField, delta int) (next int64, err error) {
	switch f.width {
	case 2:
		cur := binary.LittleEndian.Uint16(r.buf[f.offset:])
		next = int64(cur) + int64(delta)
		if next < 0 || next > 0xFFFF {
			return 0, fmt.Errorf("apcb: length field at %d overflowed 16 bits: %w", f.offset, ErrOutOfSpace)
		}
	case 4:
		cur := binary.LittleEndian.Uint32(r.buf[f.offset:])
		next = int64(cur) + int64(delta)
		if next < 0 || next > 0xFFFFFFFF {
			return 0, fmt.Errorf("apcb: length field at %d overflowed 32 bits: %w", f.offset, ErrOutOfSpace)
		}
	default:
		return 0, fmt.Errorf("apcb: internal error: length field width %d", f.width)
	}
	return next, nil
}

func (r *Root) writeLengthField(f lengthField, next int64) {
	switch f.width {
	case 2:
		binary.LittleEndian.PutUint16(r.buf[f.offset:], uint16(next))
	case 4:
		binary.LittleEndian.PutUint32(r.buf[f.offset:], uint32(next))
	}
}

// splice is the single primitive every mutator reduces to. It removes
// removeLen bytes at at and inserts insertLen zeroed bytes in their place,
// shifting everything between the edit point and used_size, then adjusts
// used_size and every ancestor length field in ancestors by the same
// delta. Every precondition, including each ancestor's width overflow check,
// is validated in step 1, before any byte is moved, so steps 2-4 cannot
// fail: on any precondition failure the buffer is left untouched.
func (r *Root) splice(at, removeLen, insertLen int, ancestors []lengthField) error {
	if at < 0 || removeLen < 0 || insertLen < 0 || at+removeLen > int(r.usedSize) {
		return fmt.Errorf("apcb: splice out of bounds at %d, remove %d, used_size %d: %w",
			at, removeLen, r.usedSize, ErrOutOfSpace)
	}
	delta := insertLen - removeLen
	newUsedSize := int(r.usedSize) + delta
	if newUsedSize > len(r.buf) || newUsedSize < int(r.headerSize) {
		return ErrOutOfSpace
	}

	nextValues := make([]int64, len(ancestors))
	for i, f := range ancestors {
		next, err := r.checkLengthField(f, delta)
		if err != nil {
			return err
		}
		nextValues[i] = next
	}

	oldUsedSize := int(r.usedSize)
	tailLen := oldUsedSize - (at + removeLen)
	// memmove-safe regardless of growth direction: Go's copy() always
	// behaves like memmove for overlapping slices of the same backing array.
	copy(r.buf[at+insertLen:at+insertLen+tailLen], r.buf[at+removeLen:at+removeLen+tailLen])

	for i := at; i < at+insertLen; i++ {
		r.buf[i] = 0
	}
	if newUsedSize < oldUsedSize {
		for i := newUsedSize; i < oldUsedSize; i++ {
			r.buf[i] = 0
		}
	}

	for i, f := range ancestors {
		r.writeLengthField(f, nextValues[i])
	}
	r.usedSize = uint32(newUsedSize)
	binary.LittleEndian.PutUint32(r.buf[headerV2UsedSize:], r.usedSize)
	r.gen++
	return nil
}

// spliceGroup is splice with the group's own size field threaded in as the
// sole ancestor -- the common case for inserting or deleting whole entries.
func (r *Root) spliceGroup(groupOffset, at, removeLen, insertLen int) error {
	return r.splice(at, removeLen, insertLen, []lengthField{
		{groupOffset + groupHeaderSize, 4},
	})
}

// spliceEntry is splice with both the entry's size field and its
// containing group's size field threaded in -- used by the token engine,
// where a single 8-byte record moves both ancestor lengths.
func (r *Root) spliceEntry(groupOffset, entryOffset, at, removeLen, insertLen int) error {
	return r.splice(at, removeLen, insertLen, []lengthField{
		{entryOffset + entryHeaderSize, 2},
		{groupOffset + groupHeaderSize, 4},
	})
}
