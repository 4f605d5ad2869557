// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newEmptyV2 builds a fresh, empty, checksummed V2 blob of the given
// capacity and loads it, the way every scenario in spec.md's S2 onward
// starts from.
func newEmptyV2(t *testing.T, capacity int) (*Root, []byte) {
	t.Helper()
	buf := make([]byte, capacity)
	r, err := Create(buf, VersionRome, false, 1)
	require.NoError(t, err)
	return r, buf
}
