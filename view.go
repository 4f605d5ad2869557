// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"encoding/binary"
	"fmt"
)

// handle is embedded in every view (group, entry, token) the engine hands
// out. It never stores a byte slice: only an absolute offset into the
// root's buffer and the generation the root was at when the view was
// created. Every accessor re-derives its slice from root.buf on each call,
// which is what lets a single mutation (which may shift every byte after
// its splice point) invalidate every other outstanding view cheaply -- the
// generation compare catches it before a stale offset is ever dereferenced.
type handle struct {
	root   *Root
	offset int
	gen    uint64
}

func (h handle) valid() error {
	if h.gen != h.root.gen {
		return fmt.Errorf("apcb: handle at offset %d: %w", h.offset, ErrIteratorInvalidated)
	}
	return nil
}

func (h handle) u8(off int) (uint8, error) {
	if err := h.valid(); err != nil {
		return 0, err
	}
	return h.root.buf[h.offset+off], nil
}

func (h handle) u16(off int) (uint16, error) {
	if err := h.valid(); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(h.root.buf[h.offset+off:]), nil
}

func (h handle) u32(off int) (uint32, error) {
	if err := h.valid(); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(h.root.buf[h.offset+off:]), nil
}

func (h handle) putU8(off int, v uint8) error {
	if err := h.valid(); err != nil {
		return err
	}
	h.root.buf[h.offset+off] = v
	return nil
}

func (h handle) putU16(off int, v uint16) error {
	if err := h.valid(); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(h.root.buf[h.offset+off:], v)
	return nil
}

func (h handle) putU32(off int, v uint32) error {
	if err := h.valid(); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(h.root.buf[h.offset+off:], v)
	return nil
}
