// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package apcb edits an AGESA PSP Configuration Blob directly inside a
// caller-owned byte buffer: no heap copy of the blob is ever made, and
// every mutation preserves the container's nested length fields, its
// sorted token-key discipline, and its checksum.
package apcb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/oxidecomputer/amd-apcb/internal/log"
)

// LoadOptions configures Load. The zero value checks neither the checksum
// nor strict token ordering; use DefaultLoadOptions for the engine's usual
// posture.
type LoadOptions struct {
	// CheckChecksum verifies the stored checksum byte during Load.
	// Default: false.
	CheckChecksum bool

	// StrictTokenOrdering rejects a token entry whose token_ids are not
	// strictly ascending. Default (via DefaultLoadOptions): true.
	StrictTokenOrdering bool
}

// DefaultLoadOptions returns the engine's recommended posture: tolerate an
// unchecked checksum (many callers load a blob mid-edit, before a final
// UpdateChecksum), but never tolerate an unsorted token list.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{CheckChecksum: false, StrictTokenOrdering: true}
}

// Root is the parsed view over a caller-owned buffer. It borrows the
// buffer for as long as it's alive; every Group, Entry, and TokenList
// handed out by it is itself a thin reference back into the same buffer,
// not a copy.
type Root struct {
	buf        []byte
	headerSize uint32
	usedSize   uint32
	hasV3Ext   bool
	opts       LoadOptions

	// gen is bumped by every mutation. Every handle captures gen at
	// creation and compares on each access, standing in for the
	// exclusive-borrow discipline a systems language gets for free.
	gen uint64
}

// Load binds buf, parses its header, and walks its groups and entries to
// confirm the blob is structurally sound. It never mutates buf.
func Load(buf []byte, opts LoadOptions) (*Root, error) {
	if len(buf) < headerV2Size {
		return nil, fmt.Errorf("apcb: buffer of %s smaller than header: %w",
			humanize.Bytes(uint64(len(buf))), ErrSizeOutOfRange)
	}

	version := binary.LittleEndian.Uint32(buf[headerV2Version:])
	if version != VersionNaples && version != VersionRome {
		return nil, fmt.Errorf("apcb: version 0x%x: %w", version, ErrVersionMismatch)
	}

	headerSize := binary.LittleEndian.Uint32(buf[headerV2HeaderSize:])
	hasV3Ext := false
	switch headerSize {
	case headerV2Size:
		// plain V2 header, nothing more to check
	case headerV2Size + headerV3ExtSize:
		if len(buf) < int(headerSize) {
			return nil, fmt.Errorf("apcb: buffer too small for V3 extended header: %w", ErrSizeOutOfRange)
		}
		ext := buf[headerV2Size:headerSize]
		var sig [4]byte
		copy(sig[:], ext[headerV3ExtSigOff:headerV3ExtSigOff+4])
		var end [4]byte
		copy(end[:], ext[headerV3ExtEndingOff:headerV3ExtEndingOff+4])
		if sig != headerV3ExtSignature || end != headerV3ExtEnding {
			return nil, fmt.Errorf("apcb: V3 extended header signature mismatch: %w", ErrStructureBroken)
		}
		hasV3Ext = true
	default:
		return nil, fmt.Errorf("apcb: unexpected header_size %d: %w", headerSize, ErrStructureBroken)
	}

	usedSize := binary.LittleEndian.Uint32(buf[headerV2UsedSize:])
	if usedSize < headerSize || int(usedSize) > len(buf) {
		return nil, fmt.Errorf("apcb: used_size %d out of [%d, %d]: %w",
			usedSize, headerSize, len(buf), ErrSizeOutOfRange)
	}

	r := &Root{
		buf:        buf,
		headerSize: headerSize,
		usedSize:   usedSize,
		hasV3Ext:   hasV3Ext,
		opts:       opts,
	}

	if err := r.validateGroups(); err != nil {
		return nil, err
	}

	if opts.CheckChecksum {
		want := checksumOver(buf[:usedSize])
		if want != 0 {
			return nil, fmt.Errorf("apcb: checksum residue 0x%x over %s used: %w",
				want, humanize.Bytes(uint64(usedSize)), ErrChecksumInvalid)
		}
	} else {
		if checksumOver(buf[:usedSize]) != 0 {
			log.Warnf("apcb: checksum does not zero-sum the used region; continuing because CheckChecksum is false")
		}
	}

	return r, nil
}

// validateGroups walks every group and, within it, every entry, confirming
// that each walk exactly consumes the region it's supposed to span.
func (r *Root) validateGroups() error {
	offset := int(r.headerSize)
	end := int(r.usedSize)
	for offset < end {
		if offset+groupHeaderSizeBytes > end {
			return fmt.Errorf("apcb: group header at %d overruns used_size: %w", offset, ErrStructureBroken)
		}
		groupSize := int(binary.LittleEndian.Uint32(r.buf[offset+groupHeaderSize:]))
		if groupSize < groupHeaderSizeBytes || offset+groupSize > end {
			return fmt.Errorf("apcb: group at %d has invalid size %d: %w", offset, groupSize, ErrStructureBroken)
		}
		if err := r.validateEntries(offset, groupSize); err != nil {
			return err
		}
		offset += groupSize
	}
	if offset != end {
		return fmt.Errorf("apcb: groups consumed %d, expected %d: %w", offset, end, ErrStructureBroken)
	}
	return nil
}

func (r *Root) validateEntries(groupOffset, groupSize int) error {
	offset := groupOffset + groupHeaderSizeBytes
	end := groupOffset + groupSize
	for offset < end {
		if offset+entryHeaderSizeBytes > end {
			return fmt.Errorf("apcb: entry header at %d overruns group: %w", offset, ErrStructureBroken)
		}
		entrySize := int(binary.LittleEndian.Uint16(r.buf[offset+entryHeaderSize:]))
		if entrySize < entryHeaderSizeBytes || offset+entrySize > end {
			return fmt.Errorf("apcb: entry at %d has invalid size %d: %w", offset, entrySize, ErrStructureBroken)
		}
		contextType := ContextType(r.buf[offset+entryHeaderContextType])
		if contextType == ContextTypeTokens {
			if err := r.validateTokenEntry(offset, entrySize); err != nil {
				return err
			}
		}
		offset += entrySize
	}
	if offset != end {
		return fmt.Errorf("apcb: entries in group at %d consumed %d, expected %d: %w",
			groupOffset, offset-groupOffset-groupHeaderSizeBytes, end-groupOffset-groupHeaderSizeBytes, ErrStructureBroken)
	}
	return nil
}

func (r *Root) validateTokenEntry(entryOffset, entrySize int) error {
	unitSize := r.buf[entryOffset+entryHeaderUnitSize]
	keySize := r.buf[entryOffset+entryHeaderKeySize]
	keyPos := r.buf[entryOffset+entryHeaderKeyPos]
	if unitSize != tokenRecordBytes || keySize != 4 || keyPos != 0 {
		return fmt.Errorf("apcb: token entry at %d has unit_size=%d key_size=%d key_pos=%d: %w",
			entryOffset, unitSize, keySize, keyPos, ErrTokenEntryInvalid)
	}
	bodyLen := entrySize - entryHeaderSizeBytes
	if bodyLen%tokenRecordBytes != 0 {
		return fmt.Errorf("apcb: token entry at %d body length %d not a multiple of 8: %w",
			entryOffset, bodyLen, ErrTokenEntryInvalid)
	}
	if !r.opts.StrictTokenOrdering {
		return nil
	}
	bodyOffset := entryOffset + entryHeaderSizeBytes
	var prev uint32
	for i := 0; i < bodyLen; i += tokenRecordBytes {
		id := binary.LittleEndian.Uint32(r.buf[bodyOffset+i:])
		if i > 0 && id <= prev {
			return fmt.Errorf("apcb: token entry at %d not strictly ascending at token_id 0x%x: %w",
				entryOffset, id, ErrTokenEntryInvalid)
		}
		prev = id
	}
	return nil
}

// checksumOver returns the arithmetic sum of b modulo 256. After
// UpdateChecksum this is always 0 over buf[:used_size].
func checksumOver(b []byte) uint8 {
	var s uint8
	for _, c := range b {
		s += c
	}
	return s
}

// Create initializes a fresh, empty blob (no groups) into buf, which must
// be zeroed or don't-care for its full length. version selects the header
// version; withV3Ext additionally lays down the V3 extended header.
func Create(buf []byte, version uint32, withV3Ext bool, initialInstance uint32) (*Root, error) {
	headerSize := headerV2Size
	if withV3Ext {
		headerSize += headerV3ExtSize
	}
	if len(buf) < headerSize {
		return nil, fmt.Errorf("apcb: buffer too small for header: %w", ErrOutOfSpace)
	}
	for i := range buf {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint32(buf[headerV2Version:], version)
	binary.LittleEndian.PutUint32(buf[headerV2HeaderSize:], uint32(headerSize))
	binary.LittleEndian.PutUint32(buf[headerV2UsedSize:], uint32(headerSize))
	binary.LittleEndian.PutUint32(buf[headerV2UniqueAPCB:], initialInstance)
	if withV3Ext {
		ext := buf[headerV2Size:headerSize]
		copy(ext[headerV3ExtSigOff:], headerV3ExtSignature[:])
		binary.LittleEndian.PutUint16(ext[headerV3ExtStructVerOff:], headerV3StructVersion)
		binary.LittleEndian.PutUint16(ext[headerV3ExtDataVerOff:], uint16(headerV3DataVersion))
		binary.LittleEndian.PutUint32(ext[headerV3ExtSizeOff:], headerV3ExtSize)
		binary.LittleEndian.PutUint16(ext[headerV3ExtDataOffOff:], uint16(headerV2Size+headerV3ExtSize))
		copy(ext[headerV3ExtEndingOff:], headerV3ExtEnding[:])
	}
	r, err := Load(buf, DefaultLoadOptions())
	if err != nil {
		return nil, err
	}
	if err := r.UpdateChecksum(); err != nil {
		return nil, err
	}
	return r, nil
}

// HeaderView exposes the fixed header prefix.
type HeaderView struct {
	root *Root
}

// Header returns a view over the fixed header prefix.
func (r *Root) Header() HeaderView { return HeaderView{root: r} }

// Version is the header's format discriminant.
func (h HeaderView) Version() uint32 {
	return binary.LittleEndian.Uint32(h.root.buf[headerV2Version:])
}

// HeaderSize is H, the byte length of the header prefix (including the V3
// extension, if present).
func (h HeaderView) HeaderSize() uint32 { return h.root.headerSize }

// UsedSize is the total number of meaningful bytes in the blob.
func (h HeaderView) UsedSize() uint32 { return h.root.usedSize }

// Capacity is the full length of the backing buffer.
func (h HeaderView) Capacity() int { return len(h.root.buf) }

// UniqueAPCBInstance is the instance tag re-randomized by UpdateChecksum.
func (h HeaderView) UniqueAPCBInstance() uint32 {
	return binary.LittleEndian.Uint32(h.root.buf[headerV2UniqueAPCB:])
}

// ChecksumByte is the stored checksum byte.
func (h HeaderView) ChecksumByte() uint8 {
	return h.root.buf[headerV2ChecksumByte]
}

// HasV3Ext reports whether the header carries the V3 extended prefix.
func (h HeaderView) HasV3Ext() bool { return h.root.hasV3Ext }

// UpdateChecksum re-randomizes unique_apcb_instance to a value guaranteed
// to differ from its predecessor, then recomputes checksum_byte so that
// the arithmetic sum of buf[0:used_size] is zero mod 256.
func (r *Root) UpdateChecksum() error {
	prev := binary.LittleEndian.Uint32(r.buf[headerV2UniqueAPCB:])
	next := nextAPCBInstance(prev)
	binary.LittleEndian.PutUint32(r.buf[headerV2UniqueAPCB:], next)

	r.buf[headerV2ChecksumByte] = 0
	s := checksumOver(r.buf[:r.usedSize])
	r.buf[headerV2ChecksumByte] = uint8((256 - int(s)) % 256)
	return nil
}

// nextAPCBInstance steps the re-randomization sequence. The platform's own
// stepping function is under-specified; any deterministic value that
// differs from prev satisfies every consumer that's ever inspected this
// field, so a simple odd-stride LCG step is used here.
func nextAPCBInstance(prev uint32) uint32 {
	next := prev*1664525 + 1013904223
	if next == prev {
		next++
	}
	return next
}

// Groups returns a forward iterator over every group in the blob.
func (r *Root) Groups() *GroupIterator {
	return &GroupIterator{root: r, gen: r.gen, offset: int(r.headerSize), end: int(r.usedSize)}
}

// Group returns the first group matching group_id.
func (r *Root) Group(id GroupID) (GroupView, error) {
	it := r.Groups()
	for it.Next() {
		g := it.Group()
		if g.ID() == id {
			return g, nil
		}
	}
	if err := it.Err(); err != nil {
		return GroupView{}, err
	}
	return GroupView{}, fmt.Errorf("apcb: group 0x%x: %w", uint16(id), ErrGroupNotFound)
}

// GroupsMut returns a forward iterator over every group, yielding mutable
// views. Once the Root is mutated, Next returns false and Err reports
// ErrIteratorInvalidated.
func (r *Root) GroupsMut() *GroupMutIterator {
	return &GroupMutIterator{root: r, gen: r.gen, offset: int(r.headerSize), end: int(r.usedSize)}
}

// GroupMut returns the first group matching group_id, as a mutable view.
func (r *Root) GroupMut(id GroupID) (GroupMutView, error) {
	it := r.GroupsMut()
	for it.Next() {
		g := it.Group()
		if g.ID() == id {
			return g, nil
		}
	}
	if err := it.Err(); err != nil {
		return GroupMutView{}, err
	}
	return GroupMutView{}, fmt.Errorf("apcb: group 0x%x: %w", uint16(id), ErrGroupNotFound)
}

// InsertGroup appends a new, empty group with the given id and signature.
// Groups are not kept in any particular order; the new one is appended
// after the last existing group.
func (r *Root) InsertGroup(id GroupID, signature [4]byte) (GroupMutView, error) {
	if _, err := r.Group(id); err == nil {
		return GroupMutView{}, fmt.Errorf("apcb: group 0x%x already exists: %w", uint16(id), ErrDuplicateKey)
	} else if !errors.Is(err, ErrGroupNotFound) {
		return GroupMutView{}, err
	}

	at := int(r.usedSize)
	if err := r.splice(at, 0, groupHeaderSizeBytes, nil); err != nil {
		return GroupMutView{}, err
	}
	copy(r.buf[at+groupHeaderSignature:], signature[:])
	binary.LittleEndian.PutUint16(r.buf[at+groupHeaderGroupID:], uint16(id))
	binary.LittleEndian.PutUint32(r.buf[at+groupHeaderSize:], groupHeaderSizeBytes)

	return GroupMutView{handle{root: r, offset: at, gen: r.gen}}, nil
}

// DeleteGroup removes the group matching group_id, including all of its
// entries.
func (r *Root) DeleteGroup(id GroupID) error {
	offset, err := r.findGroupOffset(id)
	if err != nil {
		return err
	}
	groupSize := int(binary.LittleEndian.Uint32(r.buf[offset+groupHeaderSize:]))
	return r.splice(offset, groupSize, 0, nil)
}

func (r *Root) findGroupOffset(id GroupID) (int, error) {
	offset := int(r.headerSize)
	end := int(r.usedSize)
	for offset < end {
		groupID := GroupID(binary.LittleEndian.Uint16(r.buf[offset+groupHeaderGroupID:]))
		groupSize := int(binary.LittleEndian.Uint32(r.buf[offset+groupHeaderSize:]))
		if groupID == id {
			return offset, nil
		}
		offset += groupSize
	}
	return 0, fmt.Errorf("apcb: group 0x%x: %w", uint16(id), ErrGroupNotFound)
}
