// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"encoding/binary"
	"fmt"
)

// TokenList operates on a Tokens-context entry's body as a sorted array of
// (token_id, value) records. All lookups are O(log n) binary search;
// Insert and Delete are O(n) for the memmove, same as any splice.
type TokenList struct {
	root        *Root
	gen         uint64
	entryOffset int
	groupOffset int
	kind        TokenKind
}

func newTokenList(h handle, groupOffset int) (TokenList, error) {
	if err := h.valid(); err != nil {
		return TokenList{}, err
	}
	kind, err := requireTokenEntry(h)
	if err != nil {
		return TokenList{}, err
	}
	return TokenList{root: h.root, gen: h.gen, entryOffset: h.offset, groupOffset: groupOffset, kind: kind}, nil
}

func (t TokenList) valid() error {
	if t.gen != t.root.gen {
		return fmt.Errorf("apcb: token list: %w", ErrIteratorInvalidated)
	}
	return nil
}

func (t TokenList) bodyRange() (start, end int, err error) {
	if err = t.valid(); err != nil {
		return 0, 0, err
	}
	size := binary.LittleEndian.Uint16(t.root.buf[t.entryOffset+entryHeaderSize:])
	start = t.entryOffset + entryHeaderSizeBytes
	end = t.entryOffset + int(size)
	return start, end, nil
}

// locate performs the binary search described in spec.md's token engine:
// it returns the exact offset of token_id if present, or the offset
// immediately before which it should be inserted if not.
func (t TokenList) locate(tokenID uint32) (offset int, found bool, err error) {
	start, end, err := t.bodyRange()
	if err != nil {
		return 0, false, err
	}
	count := (end - start) / tokenRecordBytes
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		id := binary.LittleEndian.Uint32(t.root.buf[start+mid*tokenRecordBytes:])
		if id < tokenID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	offset = start + lo*tokenRecordBytes
	if lo < count {
		id := binary.LittleEndian.Uint32(t.root.buf[offset:])
		found = id == tokenID
	}
	return offset, found, nil
}

// Get returns the width-truncated value of token_id.
func (t TokenList) Get(tokenID uint32) (uint32, error) {
	offset, found, err := t.locate(tokenID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("apcb: token 0x%x: %w", tokenID, ErrTokenNotFound)
	}
	raw := binary.LittleEndian.Uint32(t.root.buf[offset+tokenRecordValue:])
	return raw & t.kind.Mask(), nil
}

// Insert adds a new (token_id, value) record, keeping the list sorted.
// value's bits outside the entry's TokenKind width are rejected.
func (t *TokenList) Insert(tokenID, value uint32) error {
	if value&^t.kind.Mask() != 0 {
		return fmt.Errorf("apcb: value 0x%x exceeds %v width: %w", value, t.kind, ErrValueOutOfRange)
	}
	offset, found, err := t.locate(tokenID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("apcb: token 0x%x: %w", tokenID, ErrDuplicateKey)
	}
	if err := t.root.spliceEntry(t.groupOffset, t.entryOffset, offset, 0, tokenRecordBytes); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(t.root.buf[offset+tokenRecordID:], tokenID)
	binary.LittleEndian.PutUint32(t.root.buf[offset+tokenRecordValue:], value)
	t.gen = t.root.gen
	return nil
}

// Delete removes the record for token_id.
func (t *TokenList) Delete(tokenID uint32) error {
	offset, found, err := t.locate(tokenID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("apcb: token 0x%x: %w", tokenID, ErrTokenNotFound)
	}
	if err := t.root.spliceEntry(t.groupOffset, t.entryOffset, offset, tokenRecordBytes, 0); err != nil {
		return err
	}
	t.gen = t.root.gen
	return nil
}

// SetValue overwrites the value of an existing token_id in place, storing
// only the bits of value that the entry's TokenKind width holds. The list's
// size and order are unaffected.
func (t *TokenList) SetValue(tokenID, value uint32) error {
	offset, found, err := t.locate(tokenID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("apcb: token 0x%x: %w", tokenID, ErrTokenNotFound)
	}
	binary.LittleEndian.PutUint32(t.root.buf[offset+tokenRecordValue:], value&t.kind.Mask())
	return nil
}

// Iter returns a forward iterator over the list's records, in ascending
// token_id order.
func (t TokenList) Iter() (*TokenIterator, error) {
	start, end, err := t.bodyRange()
	if err != nil {
		return nil, err
	}
	return &TokenIterator{root: t.root, gen: t.gen, kind: t.kind, offset: start, end: end}, nil
}

// TokenIterator is a forward-only cursor over a TokenList's records.
type TokenIterator struct {
	root   *Root
	gen    uint64
	kind   TokenKind
	offset int
	end    int
	curID  uint32
	curVal uint32
	err    error
}

func (it *TokenIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.gen != it.root.gen {
		it.err = fmt.Errorf("apcb: token iterator: %w", ErrIteratorInvalidated)
		return false
	}
	if it.offset >= it.end {
		return false
	}
	it.curID = binary.LittleEndian.Uint32(it.root.buf[it.offset+tokenRecordID:])
	raw := binary.LittleEndian.Uint32(it.root.buf[it.offset+tokenRecordValue:])
	it.curVal = raw & it.kind.Mask()
	it.offset += tokenRecordBytes
	return true
}

// Token returns the current (token_id, value) pair.
func (it *TokenIterator) Token() (uint32, uint32) { return it.curID, it.curVal }
func (it *TokenIterator) Err() error              { return it.err }

// String renders a TokenKind for diagnostic messages.
func (k TokenKind) String() string {
	switch k {
	case TokenKindBool:
		return "Bool"
	case TokenKindByte:
		return "Byte"
	case TokenKindWord:
		return "Word"
	case TokenKindDWord:
		return "DWord"
	default:
		return fmt.Sprintf("TokenKind(%d)", uint16(k))
	}
}
