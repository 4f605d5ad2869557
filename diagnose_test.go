// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiagnoseCleanBlobIsNil(t *testing.T) {
	r, _ := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	_, err := g.InsertEntry(EntryID(0x10), 0, 0xFFFF, ContextTypeStruct, ContextFormatNative, 4, 0)
	require.NoError(t, err)
	require.NoError(t, r.UpdateChecksum())

	require.NoError(t, r.Diagnose())
}

func TestDiagnoseFlagsChecksumResidue(t *testing.T) {
	r, buf := newEmptyV2(t, 1024)
	require.NoError(t, r.UpdateChecksum())
	buf[headerV2ChecksumByte] ^= 0x01

	err := r.Diagnose()
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum residue")
}

func TestDiagnoseFlagsUnsortedTokenEntry(t *testing.T) {
	r, buf := newEmptyV2(t, 1024)
	g := mustGroup(t, r, GroupIDPsp)
	e, err := g.InsertEntry(EntryID(TokenKindByte), 0, 0xFFFF, ContextTypeTokens, ContextFormatNative, 16, 0)
	require.NoError(t, err)

	body, err := e.BodyBytesMut()
	require.NoError(t, err)
	putToken(body[0:8], 0x20, 1)
	putToken(body[8:16], 0x10, 2)
	_ = buf

	err = r.Diagnose()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not strictly ascending")
}

func putToken(b []byte, id, value uint32) {
	le := func(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
	copy(b[0:4], le(id))
	copy(b[4:8], le(value))
}
