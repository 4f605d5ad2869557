// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import "fmt"

// EntryID identifies an entry within a group. The catalogue of entry ids
// (DIMM descriptors, PSP config blocks, and so on) is an external
// collaborator per spec; the core treats EntryID opaquely except where it
// doubles as a TokenKind selector on a Tokens-context entry.
type EntryID uint16

// EntryView is a read-only view over one entry's header and body.
type EntryView struct {
	h           handle
	groupOffset int
}

// EntryMutView is a mutable view over one entry's header and body.
type EntryMutView struct {
	h           handle
	groupOffset int
}

func (e EntryView) EntryID() (EntryID, error) {
	v, err := e.h.u16(entryHeaderEntryID)
	return EntryID(v), err
}
func (e EntryView) InstanceID() (uint16, error) { return e.h.u16(entryHeaderInstanceID) }
func (e EntryView) BoardInstanceMask() (uint16, error) {
	return e.h.u16(entryHeaderBoardMask)
}
func (e EntryView) ContextType() (ContextType, error) {
	v, err := e.h.u8(entryHeaderContextType)
	return ContextType(v), err
}
func (e EntryView) ContextFormat() (ContextFormat, error) {
	v, err := e.h.u8(entryHeaderContextFmt)
	return ContextFormat(v), err
}
func (e EntryView) UnitSize() (uint8, error)      { return e.h.u8(entryHeaderUnitSize) }
func (e EntryView) PriorityMask() (PriorityMask, error) {
	v, err := e.h.u8(entryHeaderPriority)
	return PriorityMask(v), err
}
func (e EntryView) KeySize() (uint8, error) { return e.h.u8(entryHeaderKeySize) }
func (e EntryView) KeyPos() (uint8, error)  { return e.h.u8(entryHeaderKeyPos) }
func (e EntryView) Size() (uint16, error)   { return e.h.u16(entryHeaderSize) }

// BodyBytes returns the entry's body as a zero-copy slice over the
// backing buffer. The slice is only valid until the next mutation.
func (e EntryView) BodyBytes() ([]byte, error) {
	if err := e.h.valid(); err != nil {
		return nil, err
	}
	size, err := e.Size()
	if err != nil {
		return nil, err
	}
	start := e.h.offset + entryHeaderSizeBytes
	end := e.h.offset + int(size)
	return e.h.root.buf[start:end], nil
}

// Tokens returns a TokenList view, failing with SchemaMismatch if this
// entry is not a Tokens-context entry. It is the same TokenList type that
// EntryMutView.Tokens returns; its Insert, Delete and SetValue are not
// disabled.
func (e EntryView) Tokens() (TokenList, error) {
	return newTokenList(e.h, e.groupOffset)
}

func (e EntryMutView) EntryID() (EntryID, error) {
	v, err := e.h.u16(entryHeaderEntryID)
	return EntryID(v), err
}
func (e EntryMutView) InstanceID() (uint16, error) { return e.h.u16(entryHeaderInstanceID) }
func (e EntryMutView) BoardInstanceMask() (uint16, error) {
	return e.h.u16(entryHeaderBoardMask)
}
func (e EntryMutView) ContextType() (ContextType, error) {
	v, err := e.h.u8(entryHeaderContextType)
	return ContextType(v), err
}
func (e EntryMutView) ContextFormat() (ContextFormat, error) {
	v, err := e.h.u8(entryHeaderContextFmt)
	return ContextFormat(v), err
}
func (e EntryMutView) UnitSize() (uint8, error) { return e.h.u8(entryHeaderUnitSize) }
func (e EntryMutView) PriorityMask() (PriorityMask, error) {
	v, err := e.h.u8(entryHeaderPriority)
	return PriorityMask(v), err
}

// SetPriorityMask overwrites the entry's priority_mask in place; it never
// changes the entry's size.
func (e EntryMutView) SetPriorityMask(m PriorityMask) error {
	return e.h.putU8(entryHeaderPriority, uint8(m))
}
func (e EntryMutView) KeySize() (uint8, error) { return e.h.u8(entryHeaderKeySize) }
func (e EntryMutView) KeyPos() (uint8, error)  { return e.h.u8(entryHeaderKeyPos) }
func (e EntryMutView) Size() (uint16, error)   { return e.h.u16(entryHeaderSize) }

// BodyBytes returns a read-only view of the entry body.
func (e EntryMutView) BodyBytes() ([]byte, error) {
	return EntryView(e).BodyBytes()
}

// BodyBytesMut returns the entry's body as a zero-copy mutable slice over
// the backing buffer. The slice is only valid until the next mutation.
func (e EntryMutView) BodyBytesMut() ([]byte, error) {
	return EntryView(e).BodyBytes()
}

// Tokens returns a mutable TokenList view, failing with SchemaMismatch if
// this entry is not a Tokens-context entry.
func (e EntryMutView) Tokens() (TokenList, error) {
	return newTokenList(e.h, e.groupOffset)
}

// AsView converts a mutable entry view to its read-only counterpart.
func (e EntryMutView) AsView() EntryView {
	return EntryView{h: e.h, groupOffset: e.groupOffset}
}

// requireTokenEntry checks that this entry is fit to host a TokenList and
// returns the kind the entry's id selects.
func requireTokenEntry(h handle) (TokenKind, error) {
	contextType, err := h.u8(entryHeaderContextType)
	if err != nil {
		return 0, err
	}
	if ContextType(contextType) != ContextTypeTokens {
		return 0, fmt.Errorf("apcb: entry is not a Tokens-context entry: %w", ErrSchemaMismatch)
	}
	unitSize, err := h.u8(entryHeaderUnitSize)
	if err != nil {
		return 0, err
	}
	if unitSize != tokenRecordBytes {
		return 0, fmt.Errorf("apcb: token entry unit_size %d != 8: %w", unitSize, ErrTokenEntryInvalid)
	}
	entryID, err := h.u16(entryHeaderEntryID)
	if err != nil {
		return 0, err
	}
	return TokenKind(entryID), nil
}
