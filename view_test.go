// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleDetectsStaleGeneration(t *testing.T) {
	r, _ := newEmptyV2(t, 512)
	h := handle{root: r, offset: int(r.headerSize), gen: r.gen}
	require.NoError(t, h.valid())

	_, err := r.InsertGroup(GroupIDPsp, GroupSignature(GroupIDPsp))
	require.NoError(t, err)

	err = h.valid()
	require.ErrorIs(t, err, ErrIteratorInvalidated)

	_, err = h.u32(0)
	require.ErrorIs(t, err, ErrIteratorInvalidated)
	err = h.putU8(0, 1)
	require.ErrorIs(t, err, ErrIteratorInvalidated)
}

func TestGroupViewSignatureReturnsZeroOnStaleHandle(t *testing.T) {
	r, _ := newEmptyV2(t, 512)
	g, err := r.InsertGroup(GroupIDPsp, GroupSignature(GroupIDPsp))
	require.NoError(t, err)
	stale := GroupView{h: handle{root: r, offset: g.h.offset, gen: g.h.gen}}

	_, err = r.InsertGroup(GroupIDCcx, GroupSignature(GroupIDCcx))
	require.NoError(t, err)

	require.Equal(t, [4]byte{}, stale.Signature())
	require.Equal(t, GroupID(0), stale.ID())
}
