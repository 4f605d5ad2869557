// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustTokenEntry(t *testing.T, r *Root, kind TokenKind) EntryMutView {
	t.Helper()
	g := mustGroup(t, r, GroupIDPsp)
	e, err := g.InsertEntry(EntryID(kind), 0, 0xFFFF, ContextTypeTokens, ContextFormatNative, 0, 0)
	require.NoError(t, err)
	return e
}

// S3: insert a token into a fresh Tokens entry and read it back.
func TestTokenInsertAndGet(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindByte)

	tokens, err := e.Tokens()
	require.NoError(t, err)
	require.NoError(t, tokens.Insert(0x42, 1))

	v, err := tokens.Get(0x42)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v)
}

// S4: inserting the same token_id twice is rejected and leaves the buffer
// unchanged.
func TestTokenInsertDuplicateRejected(t *testing.T) {
	r, buf := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindByte)
	tokens, err := e.Tokens()
	require.NoError(t, err)
	require.NoError(t, tokens.Insert(0x42, 1))

	before := append([]byte(nil), buf...)
	err = tokens.Insert(0x42, 1)
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.Equal(t, before, buf)
}

// S5: tokens are returned in strictly ascending token_id order regardless
// of insertion order.
func TestTokenIterationIsSorted(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindByte)
	tokens, err := e.Tokens()
	require.NoError(t, err)

	require.NoError(t, tokens.Insert(0x10, 1))
	require.NoError(t, tokens.Insert(0x30, 2))
	require.NoError(t, tokens.Insert(0x20, 3))

	it, err := tokens.Iter()
	require.NoError(t, err)
	var ids []uint32
	for it.Next() {
		id, _ := it.Token()
		ids = append(ids, id)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []uint32{0x10, 0x20, 0x30}, ids)
}

func TestTokenDeletePreservesOrderAndShrinksBody(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindByte)
	tokens, err := e.Tokens()
	require.NoError(t, err)
	require.NoError(t, tokens.Insert(0x10, 1))
	require.NoError(t, tokens.Insert(0x20, 2))
	require.NoError(t, tokens.Insert(0x30, 3))

	require.NoError(t, tokens.Delete(0x20))
	_, err = tokens.Get(0x20)
	require.ErrorIs(t, err, ErrTokenNotFound)

	it, err := tokens.Iter()
	require.NoError(t, err)
	var ids []uint32
	for it.Next() {
		id, _ := it.Token()
		ids = append(ids, id)
	}
	require.Equal(t, []uint32{0x10, 0x30}, ids)

	start, end, err := tokens.bodyRange()
	require.NoError(t, err)
	require.Equal(t, 2*tokenRecordBytes, end-start)
}

func TestTokenDeleteNotFound(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindByte)
	tokens, err := e.Tokens()
	require.NoError(t, err)
	err = tokens.Delete(0x42)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

// Invariant 5: insert then delete of the same token preserves the entry
// body exactly.
func TestTokenInsertThenDeleteRoundTrips(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindByte)
	before, err := e.BodyBytes()
	require.NoError(t, err)
	beforeCopy := append([]byte{}, before...)

	tokens, err := e.Tokens()
	require.NoError(t, err)
	require.NoError(t, tokens.Insert(0x42, 1))
	require.NoError(t, tokens.Delete(0x42))

	// e was invalidated by the mutations above; look the entry up again.
	g, err := r.GroupMut(GroupIDPsp)
	require.NoError(t, err)
	fresh, err := g.EntryExact(EntryID(TokenKindByte), 0, 0xFFFF)
	require.NoError(t, err)
	after, err := fresh.BodyBytes()
	require.NoError(t, err)
	require.Equal(t, beforeCopy, after)
}

// Invariant 6: set_value then get round-trips through the token kind's
// mask for every kind.
func TestTokenSetValueRespectsKindMask(t *testing.T) {
	cases := []struct {
		kind TokenKind
		set  uint32
		want uint32
	}{
		{TokenKindBool, 0xFFFFFFFF, 0x1},
		{TokenKindByte, 0xFFFFFFFF, 0xFF},
		{TokenKindWord, 0xFFFFFFFF, 0xFFFF},
		{TokenKindDWord, 0xFFFFFFFF, 0xFFFFFFFF},
	}
	for _, c := range cases {
		r, _ := newEmptyV2(t, 1024)
		e := mustTokenEntry(t, r, c.kind)
		tokens, err := e.Tokens()
		require.NoError(t, err)
		require.NoError(t, tokens.Insert(0x1, 0))
		require.NoError(t, tokens.SetValue(0x1, c.set))
		v, err := tokens.Get(0x1)
		require.NoError(t, err)
		require.Equal(t, c.want, v)
	}
}

func TestTokenInsertValueOutOfRangeRejected(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindBool)
	tokens, err := e.Tokens()
	require.NoError(t, err)
	err = tokens.Insert(0x1, 2)
	require.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestTokensOnNonTokenEntryRejected(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	e, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 4, 0)
	require.NoError(t, err)
	_, err = e.Tokens()
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

// S6 (checksum after a token sequence): covered together with the root
// checksum tests in root_test.go; repeated here against a token-bearing
// blob to exercise the full ancestor chain (entry.size, group.size,
// header.used_size) all moving together.
func TestUpdateChecksumAfterTokenMutations(t *testing.T) {
	r, buf := newEmptyV2(t, 1024)
	e := mustTokenEntry(t, r, TokenKindWord)
	tokens, err := e.Tokens()
	require.NoError(t, err)
	require.NoError(t, tokens.Insert(0x10, 1))
	require.NoError(t, tokens.Insert(0x20, 2))

	prevInstance := r.Header().UniqueAPCBInstance()
	require.NoError(t, r.UpdateChecksum())
	require.Equal(t, uint8(0), checksumOver(buf[:r.Header().UsedSize()]))
	require.NotEqual(t, prevInstance, r.Header().UniqueAPCBInstance())
}
