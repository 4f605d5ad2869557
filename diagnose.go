// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

// Diagnose walks the whole blob and collects every structural anomaly it
// can find, rather than stopping at the first one the way Load does. It
// never fails the caller outright; a non-nil, non-empty result is an
// advisory report, grounded on the platform's own split between fatal
// load-time checks and its later, advisory compatibility checks.
func (r *Root) Diagnose() error {
	var result *multierror.Error

	s := checksumOver(r.buf[:r.usedSize])
	if s != 0 {
		result = multierror.Append(result, fmt.Errorf(
			"apcb: checksum residue 0x%x over %s used (run UpdateChecksum)", s, humanize.Bytes(uint64(r.usedSize))))
	}

	groupIDs := map[GroupID]bool{}
	groups := r.Groups()
	for groups.Next() {
		g := groups.Group()
		id := g.ID()
		if groupIDs[id] {
			result = multierror.Append(result, fmt.Errorf("apcb: group 0x%x appears more than once", uint16(id)))
		}
		groupIDs[id] = true

		entries, err := g.Entries()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		type entryKey struct {
			id, instance, mask uint16
		}
		seen := map[entryKey]bool{}
		for entries.Next() {
			e := entries.Entry()
			entryID, _ := e.EntryID()
			instance, _ := e.InstanceID()
			mask, _ := e.BoardInstanceMask()
			key := entryKey{uint16(entryID), instance, mask}
			if seen[key] {
				result = multierror.Append(result, fmt.Errorf(
					"apcb: group 0x%x entry 0x%x/%d/0x%x appears more than once", uint16(id), key.id, key.instance, key.mask))
			}
			seen[key] = true

			contextType, _ := e.ContextType()
			if contextType == ContextTypeTokens {
				if err := diagnoseTokenOrdering(e); err != nil {
					result = multierror.Append(result, err)
				}
			}
		}
		if err := entries.Err(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := groups.Err(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func diagnoseTokenOrdering(e EntryView) error {
	tokens, err := e.Tokens()
	if err != nil {
		return err
	}
	it, err := tokens.Iter()
	if err != nil {
		return err
	}
	var prev uint32
	first := true
	for it.Next() {
		id, _ := it.Token()
		if !first && id <= prev {
			entryID, _ := e.EntryID()
			return fmt.Errorf("apcb: entry 0x%x token list not strictly ascending at 0x%x", uint16(entryID), id)
		}
		prev = id
		first = false
	}
	return it.Err()
}
