// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// Reader exposes the used portion of the backing buffer as a standard
// io.ReadWriteSeeker, with no copy, for external collaborators (a hasher,
// the out-of-scope text-format serializer) that want to consume the blob
// through a stream interface rather than a raw slice.
func (r *Root) Reader() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(r.buf[:r.usedSize])
}
