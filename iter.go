// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import "fmt"

// GroupIterator is a forward-only, non-restartable cursor over groups. It
// follows the bufio.Scanner shape: call Next until it returns false, then
// check Err.
type GroupIterator struct {
	root   *Root
	gen    uint64
	offset int
	end    int
	cur    GroupView
	err    error
}

func (it *GroupIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.gen != it.root.gen {
		it.err = fmt.Errorf("apcb: group iterator: %w", ErrIteratorInvalidated)
		return false
	}
	if it.offset >= it.end {
		return false
	}
	h := handle{root: it.root, offset: it.offset, gen: it.gen}
	size, err := h.u32(groupHeaderSize)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = GroupView{h: h}
	it.offset += int(size)
	return true
}

func (it *GroupIterator) Group() GroupView { return it.cur }
func (it *GroupIterator) Err() error       { return it.err }

// GroupMutIterator is the mutable counterpart of GroupIterator.
type GroupMutIterator struct {
	root   *Root
	gen    uint64
	offset int
	end    int
	cur    GroupMutView
	err    error
}

func (it *GroupMutIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.gen != it.root.gen {
		it.err = fmt.Errorf("apcb: group iterator: %w", ErrIteratorInvalidated)
		return false
	}
	if it.offset >= it.end {
		return false
	}
	h := handle{root: it.root, offset: it.offset, gen: it.gen}
	size, err := h.u32(groupHeaderSize)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = GroupMutView{h: h}
	it.offset += int(size)
	return true
}

func (it *GroupMutIterator) Group() GroupMutView { return it.cur }
func (it *GroupMutIterator) Err() error          { return it.err }

// EntryIterator is a forward-only cursor over one group's entries.
type EntryIterator struct {
	root        *Root
	gen         uint64
	groupOffset int
	offset      int
	end         int
	cur         EntryView
	err         error
}

func (it *EntryIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.gen != it.root.gen {
		it.err = fmt.Errorf("apcb: entry iterator: %w", ErrIteratorInvalidated)
		return false
	}
	if it.offset >= it.end {
		return false
	}
	h := handle{root: it.root, offset: it.offset, gen: it.gen}
	size, err := h.u16(entryHeaderSize)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = EntryView{h: h, groupOffset: it.groupOffset}
	it.offset += int(size)
	return true
}

func (it *EntryIterator) Entry() EntryView { return it.cur }
func (it *EntryIterator) Err() error       { return it.err }

// EntryMutIterator is the mutable counterpart of EntryIterator.
type EntryMutIterator struct {
	root        *Root
	gen         uint64
	groupOffset int
	offset      int
	end         int
	cur         EntryMutView
	err         error
}

func (it *EntryMutIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.gen != it.root.gen {
		it.err = fmt.Errorf("apcb: entry iterator: %w", ErrIteratorInvalidated)
		return false
	}
	if it.offset >= it.end {
		return false
	}
	h := handle{root: it.root, offset: it.offset, gen: it.gen}
	size, err := h.u16(entryHeaderSize)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = EntryMutView{h: h, groupOffset: it.groupOffset}
	it.offset += int(size)
	return true
}

func (it *EntryMutIterator) Entry() EntryMutView { return it.cur }
func (it *EntryMutIterator) Err() error          { return it.err }
