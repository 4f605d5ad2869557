// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustGroup(t *testing.T, r *Root, id GroupID) GroupMutView {
	t.Helper()
	_, err := r.InsertGroup(id, GroupSignature(id))
	require.NoError(t, err)
	g, err := r.GroupMut(id)
	require.NoError(t, err)
	return g
}

func TestInsertEntryThenFindExactAndCompatible(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)

	_, err := g.InsertEntry(EntryID(0x10), 3, 0x00FF, ContextTypeStruct, ContextFormatNative, 16, NewPriorityMask(PriorityLevelDefault))
	require.NoError(t, err)

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)

	e, err := g.EntryExact(EntryID(0x10), 3, 0x00FF)
	require.NoError(t, err)
	size, err := e.Size()
	require.NoError(t, err)
	require.Equal(t, uint16(entryAllocation(16)), size)

	_, err = g.EntryExact(EntryID(0x10), 3, 0xFF00)
	require.ErrorIs(t, err, ErrEntryNotFound)

	compat, err := g.EntryCompatible(EntryID(0x10), 3, 0x0001)
	require.NoError(t, err)
	id, err := compat.EntryID()
	require.NoError(t, err)
	require.Equal(t, EntryID(0x10), id)

	_, err = g.EntryCompatible(EntryID(0x10), 3, 0xFF00)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestInsertEntryDuplicateRejected(t *testing.T) {
	r, buf := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	_, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 8, 0)
	require.NoError(t, err)

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	before := append([]byte(nil), buf...)
	_, err = g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 8, 0)
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.Equal(t, before, buf)
}

func TestDeleteEntryRemovesItAndShrinksGroup(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	_, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 8, 0)
	require.NoError(t, err)

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	sizeBefore, err := g.Size()
	require.NoError(t, err)

	require.NoError(t, g.DeleteEntry(EntryID(0x10), 0, 0xFFFF))

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	sizeAfter, err := g.Size()
	require.NoError(t, err)
	require.Equal(t, sizeBefore-uint32(entryAllocation(8)), sizeAfter)

	_, err = g.EntryExact(EntryID(0x10), 0, 0xFFFF)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestDeleteEntryNotFound(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	err := g.DeleteEntry(EntryID(0x99), 0, 0xFFFF)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestResizeEntryByGrowsAndShrinksBody(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	_, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 4, 0)
	require.NoError(t, err)

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	require.NoError(t, g.ResizeEntryBy(EntryID(0x10), 0, 0xFFFF, 12))

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	e, err := g.EntryExact(EntryID(0x10), 0, 0xFFFF)
	require.NoError(t, err)
	body, err := e.BodyBytes()
	require.NoError(t, err)
	require.Len(t, body, 16)
	for _, b := range body {
		require.Equal(t, byte(0), b)
	}

	require.NoError(t, g.ResizeEntryBy(EntryID(0x10), 0, 0xFFFF, -10))
	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	e, err = g.EntryExact(EntryID(0x10), 0, 0xFFFF)
	require.NoError(t, err)
	body, err = e.BodyBytes()
	require.NoError(t, err)
	require.Len(t, body, 6)
}

func TestResizeEntryByShrinkPastBodyRejected(t *testing.T) {
	r, buf := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	_, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 4, 0)
	require.NoError(t, err)

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	before := append([]byte(nil), buf...)

	// Body is 4 bytes; shrinking by 5 would eat into the entry header.
	err = g.ResizeEntryBy(EntryID(0x10), 0, 0xFFFF, -5)
	require.ErrorIs(t, err, ErrOutOfSpace)
	require.Equal(t, before, buf)

	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	e, err := g.EntryExact(EntryID(0x10), 0, 0xFFFF)
	require.NoError(t, err)
	size, err := e.Size()
	require.NoError(t, err)
	require.Equal(t, uint16(entryAllocation(4)), size)

	// Shrinking by exactly the body length is allowed and leaves the
	// header-only entry intact and iterable.
	require.NoError(t, g.ResizeEntryBy(EntryID(0x10), 0, 0xFFFF, -4))
	g, err = r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	e, err = g.EntryExact(EntryID(0x10), 0, 0xFFFF)
	require.NoError(t, err)
	size, err = e.Size()
	require.NoError(t, err)
	require.Equal(t, uint16(entryHeaderSizeBytes), size)
}

func TestInsertEntryOutOfSpace(t *testing.T) {
	r, buf := newEmptyV2(t, headerV2Size+groupHeaderSizeBytes+4)
	g := mustGroup(t, r, GroupIDPsp)
	before := append([]byte(nil), buf...)

	_, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 4096, 0)
	require.ErrorIs(t, err, ErrOutOfSpace)
	require.Equal(t, before, buf)
}

func TestInsertStructEntryCopiesHeaderAndTail(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)

	header := []byte{0x01, 0x02, 0x03, 0x04}
	tail := []byte{0xAA, 0xBB}
	e, err := g.InsertStructEntry(EntryID(0x20), 0, 0xFFFF, 0, header, tail)
	require.NoError(t, err)
	body, err := e.BodyBytesMut()
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, header...), tail...), body)
}
