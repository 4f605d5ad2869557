// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"encoding/binary"
	"fmt"
)

// GroupView is a read-only view over one group's header and entries.
type GroupView struct {
	h handle
}

// GroupMutView is a mutable view over one group's header and entries.
type GroupMutView struct {
	h handle
}

func (g GroupView) ID() GroupID {
	v, _ := g.h.u16(groupHeaderGroupID)
	return GroupID(v)
}

func (g GroupView) Signature() [4]byte {
	var sig [4]byte
	if g.h.valid() == nil {
		copy(sig[:], g.h.root.buf[g.h.offset+groupHeaderSignature:g.h.offset+groupHeaderSignature+4])
	}
	return sig
}

func (g GroupView) Size() (uint32, error) { return g.h.u32(groupHeaderSize) }

// Entries returns a forward iterator over the group's entries.
func (g GroupView) Entries() (*EntryIterator, error) {
	if err := g.h.valid(); err != nil {
		return nil, err
	}
	size, err := g.Size()
	if err != nil {
		return nil, err
	}
	return &EntryIterator{
		root:        g.h.root,
		gen:         g.h.gen,
		groupOffset: g.h.offset,
		offset:      g.h.offset + groupHeaderSizeBytes,
		end:         g.h.offset + int(size),
	}, nil
}

// EntryExact returns the entry matching (entryID, instanceID,
// boardInstanceMask) exactly.
func (g GroupView) EntryExact(entryID EntryID, instanceID, boardInstanceMask uint16) (EntryView, error) {
	it, err := g.Entries()
	if err != nil {
		return EntryView{}, err
	}
	for it.Next() {
		e := it.Entry()
		id, _ := e.EntryID()
		inst, _ := e.InstanceID()
		mask, _ := e.BoardInstanceMask()
		if id == entryID && inst == instanceID && mask == boardInstanceMask {
			return e, nil
		}
	}
	if err := it.Err(); err != nil {
		return EntryView{}, err
	}
	return EntryView{}, fmt.Errorf("apcb: entry 0x%x/%d/0x%x: %w", uint16(entryID), instanceID, boardInstanceMask, ErrEntryNotFound)
}

// EntryCompatible returns the first entry whose entryID and instanceID
// match exactly and whose stored board_instance_mask intersects the
// requested mask.
func (g GroupView) EntryCompatible(entryID EntryID, instanceID, boardInstanceMask uint16) (EntryView, error) {
	it, err := g.Entries()
	if err != nil {
		return EntryView{}, err
	}
	for it.Next() {
		e := it.Entry()
		id, _ := e.EntryID()
		inst, _ := e.InstanceID()
		mask, _ := e.BoardInstanceMask()
		if id == entryID && inst == instanceID && mask&boardInstanceMask != 0 {
			return e, nil
		}
	}
	if err := it.Err(); err != nil {
		return EntryView{}, err
	}
	return EntryView{}, fmt.Errorf("apcb: entry 0x%x/%d compatible with 0x%x: %w", uint16(entryID), instanceID, boardInstanceMask, ErrEntryNotFound)
}

func (g GroupMutView) ID() GroupID { return GroupView(g).ID() }

func (g GroupMutView) Signature() [4]byte { return GroupView(g).Signature() }

func (g GroupMutView) Size() (uint32, error) { return g.h.u32(groupHeaderSize) }

// Entries returns a forward iterator of read-only entry views.
func (g GroupMutView) Entries() (*EntryIterator, error) { return GroupView(g).Entries() }

// EntriesMut returns a forward iterator of mutable entry views.
func (g GroupMutView) EntriesMut() (*EntryMutIterator, error) {
	if err := g.h.valid(); err != nil {
		return nil, err
	}
	size, err := g.Size()
	if err != nil {
		return nil, err
	}
	return &EntryMutIterator{
		root:        g.h.root,
		gen:         g.h.gen,
		groupOffset: g.h.offset,
		offset:      g.h.offset + groupHeaderSizeBytes,
		end:         g.h.offset + int(size),
	}, nil
}

func (g GroupMutView) EntryExact(entryID EntryID, instanceID, boardInstanceMask uint16) (EntryView, error) {
	return GroupView(g).EntryExact(entryID, instanceID, boardInstanceMask)
}

func (g GroupMutView) EntryCompatible(entryID EntryID, instanceID, boardInstanceMask uint16) (EntryView, error) {
	return GroupView(g).EntryCompatible(entryID, instanceID, boardInstanceMask)
}

// entryAllocation is the total size of a new entry: its header plus
// payloadSize body bytes, with no padding.
func entryAllocation(payloadSize int) int {
	return entryHeaderSizeBytes + payloadSize
}

// InsertEntry appends a new entry with a zero-filled body of payloadSize
// bytes to the group's entry region.
func (g GroupMutView) InsertEntry(
	entryID EntryID,
	instanceID, boardInstanceMask uint16,
	contextType ContextType,
	contextFormat ContextFormat,
	payloadSize int,
	priorityMask PriorityMask,
) (EntryMutView, error) {
	if err := g.h.valid(); err != nil {
		return EntryMutView{}, err
	}
	if _, err := g.EntryExact(entryID, instanceID, boardInstanceMask); err == nil {
		return EntryMutView{}, fmt.Errorf("apcb: entry 0x%x/%d/0x%x already exists: %w",
			uint16(entryID), instanceID, boardInstanceMask, ErrDuplicateKey)
	}

	groupOffset := g.h.offset
	size, err := g.Size()
	if err != nil {
		return EntryMutView{}, err
	}
	alloc := entryAllocation(payloadSize)
	at := groupOffset + int(size)

	if err := g.h.root.spliceGroup(groupOffset, at, 0, alloc); err != nil {
		return EntryMutView{}, err
	}
	buf := g.h.root.buf
	groupID := binary.LittleEndian.Uint16(buf[groupOffset+groupHeaderGroupID:])
	binary.LittleEndian.PutUint16(buf[at+entryHeaderGroupID:], groupID)
	binary.LittleEndian.PutUint16(buf[at+entryHeaderEntryID:], uint16(entryID))
	binary.LittleEndian.PutUint16(buf[at+entryHeaderSize:], uint16(alloc))
	binary.LittleEndian.PutUint16(buf[at+entryHeaderInstanceID:], instanceID)
	buf[at+entryHeaderContextType] = uint8(contextType)
	buf[at+entryHeaderContextFmt] = uint8(contextFormat)
	if contextType == ContextTypeTokens {
		buf[at+entryHeaderUnitSize] = tokenRecordBytes
		buf[at+entryHeaderKeySize] = 4
		buf[at+entryHeaderKeyPos] = 0
	}
	buf[at+entryHeaderPriority] = uint8(priorityMask)
	binary.LittleEndian.PutUint16(buf[at+entryHeaderBoardMask:], boardInstanceMask)

	return EntryMutView{h: handle{root: g.h.root, offset: at, gen: g.h.root.gen}, groupOffset: groupOffset}, nil
}

// DeleteEntry removes the entry matching (entryID, instanceID,
// boardInstanceMask) exactly.
func (g GroupMutView) DeleteEntry(entryID EntryID, instanceID, boardInstanceMask uint16) error {
	if err := g.h.valid(); err != nil {
		return err
	}
	offset, size, err := g.findEntryOffset(entryID, instanceID, boardInstanceMask)
	if err != nil {
		return err
	}
	return g.h.root.spliceGroup(g.h.offset, offset, size, 0)
}

// ResizeEntryBy grows (delta > 0) or shrinks (delta < 0) the entry's body
// by splicing at the end of its body. The new bytes, if any, are
// zero-filled. Shrinking past the body's current length, into the entry
// header, is rejected with ErrOutOfSpace.
func (g GroupMutView) ResizeEntryBy(entryID EntryID, instanceID, boardInstanceMask uint16, delta int) error {
	if err := g.h.valid(); err != nil {
		return err
	}
	offset, size, err := g.findEntryOffset(entryID, instanceID, boardInstanceMask)
	if err != nil {
		return err
	}
	at := offset + size
	if delta >= 0 {
		return g.h.root.spliceEntry(g.h.offset, offset, at, 0, delta)
	}
	bodyLen := size - entryHeaderSizeBytes
	if -delta > bodyLen {
		return fmt.Errorf("apcb: shrink by %d exceeds body length %d: %w", -delta, bodyLen, ErrOutOfSpace)
	}
	return g.h.root.spliceEntry(g.h.offset, offset, at+delta, -delta, 0)
}

func (g GroupMutView) findEntryOffset(entryID EntryID, instanceID, boardInstanceMask uint16) (offset, size int, err error) {
	it, err := g.Entries()
	if err != nil {
		return 0, 0, err
	}
	for it.Next() {
		e := it.Entry()
		id, _ := e.EntryID()
		inst, _ := e.InstanceID()
		mask, _ := e.BoardInstanceMask()
		if id == entryID && inst == instanceID && mask == boardInstanceMask {
			sz, _ := e.Size()
			return e.h.offset, int(sz), nil
		}
	}
	if err := it.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("apcb: entry 0x%x/%d/0x%x: %w", uint16(entryID), instanceID, boardInstanceMask, ErrEntryNotFound)
}

// InsertStructEntry is a convenience wrapper computing payload_size from a
// fixed-layout header struct plus a variable tail and copying their bytes
// into the freshly spliced window.
func (g GroupMutView) InsertStructEntry(
	entryID EntryID, instanceID, boardInstanceMask uint16,
	priorityMask PriorityMask, header []byte, tail []byte,
) (EntryMutView, error) {
	e, err := g.InsertEntry(entryID, instanceID, boardInstanceMask, ContextTypeStruct, ContextFormatNative, len(header)+len(tail), priorityMask)
	if err != nil {
		return EntryMutView{}, err
	}
	body, err := e.BodyBytesMut()
	if err != nil {
		return EntryMutView{}, err
	}
	n := copy(body, header)
	copy(body[n:], tail)
	return e, nil
}

// InsertStructArrayAsEntry is a convenience wrapper inserting a Struct
// entry whose body is a concatenation of identically-sized elements.
func (g GroupMutView) InsertStructArrayAsEntry(
	entryID EntryID, instanceID, boardInstanceMask uint16,
	priorityMask PriorityMask, elements [][]byte,
) (EntryMutView, error) {
	total := 0
	for _, el := range elements {
		total += len(el)
	}
	e, err := g.InsertEntry(entryID, instanceID, boardInstanceMask, ContextTypeStruct, ContextFormatNative, total, priorityMask)
	if err != nil {
		return EntryMutView{}, err
	}
	body, err := e.BodyBytesMut()
	if err != nil {
		return EntryMutView{}, err
	}
	off := 0
	for _, el := range elements {
		off += copy(body[off:], el)
	}
	return e, nil
}

// InsertStructSequenceAsEntry is a convenience wrapper inserting a Struct
// entry whose body is a concatenation of heterogeneous, self-describing
// elements (each already includes its own length header).
func (g GroupMutView) InsertStructSequenceAsEntry(
	entryID EntryID, instanceID, boardInstanceMask uint16,
	priorityMask PriorityMask, elements [][]byte,
) (EntryMutView, error) {
	return g.InsertStructArrayAsEntry(entryID, instanceID, boardInstanceMask, priorityMask, elements)
}
