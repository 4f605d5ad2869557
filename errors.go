// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

import "errors"

// Sentinel errors returned by the engine. Callers should compare against
// these with errors.Is; every returned error wraps one of them with
// additional context via fmt.Errorf's %w verb.
var (
	// ErrVersionMismatch is returned when the header's version field is
	// outside the set of versions this engine understands.
	ErrVersionMismatch = errors.New("apcb: header version mismatch")

	// ErrSizeOutOfRange is returned when used_size falls outside
	// [header_size, len(buffer)].
	ErrSizeOutOfRange = errors.New("apcb: used_size out of range")

	// ErrStructureBroken is returned when walking groups or entries does
	// not exactly consume the region it is supposed to span.
	ErrStructureBroken = errors.New("apcb: structure broken")

	// ErrTokenEntryInvalid is returned when a Tokens-context entry fails
	// its shape invariants (unit_size, key_size, key_pos, strict
	// ascending token_id order).
	ErrTokenEntryInvalid = errors.New("apcb: token entry invalid")

	// ErrChecksumInvalid is returned by Load when CheckChecksum is set
	// and the stored checksum does not zero the arithmetic sum.
	ErrChecksumInvalid = errors.New("apcb: checksum invalid")

	// ErrGroupNotFound is returned when no group matches the requested
	// group_id.
	ErrGroupNotFound = errors.New("apcb: group not found")

	// ErrEntryNotFound is returned when no entry matches the requested
	// key within a group.
	ErrEntryNotFound = errors.New("apcb: entry not found")

	// ErrTokenNotFound is returned when no token matches the requested
	// token_id within a token entry.
	ErrTokenNotFound = errors.New("apcb: token not found")

	// ErrDuplicateKey is returned when inserting a group, entry, or token
	// whose key already exists.
	ErrDuplicateKey = errors.New("apcb: duplicate key")

	// ErrOutOfSpace is returned when a mutation would grow used_size
	// beyond the buffer's capacity. The buffer is left unchanged.
	ErrOutOfSpace = errors.New("apcb: out of space")

	// ErrValueOutOfRange is returned when a token value exceeds the bit
	// width implied by its token kind.
	ErrValueOutOfRange = errors.New("apcb: value out of range")

	// ErrSchemaMismatch is returned when a typed body interpretation
	// disagrees with the entry's declared size or context_type.
	ErrSchemaMismatch = errors.New("apcb: schema mismatch")

	// ErrSequenceBroken is returned when a struct sequence body
	// underflows or carries an inconsistent element header.
	ErrSequenceBroken = errors.New("apcb: struct sequence broken")

	// ErrIteratorInvalidated is returned when a live iterator is stepped
	// after the root it was created from has been mutated.
	ErrIteratorInvalidated = errors.New("apcb: iterator invalidated by mutation")
)
