// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apcb

// This file lays out the fixed-offset wire format the rest of the package
// reads and writes directly on buffer sub-slices with encoding/binary. No
// struct is ever overlaid on the buffer; every field is addressed by a
// byte offset and width, so a mutation never requires a round trip through
// a decoded-then-reencoded copy.

// Header versions understood by Load. Load and Create accept either version
// with or without the V3 extended header; header_size decides which.
const (
	VersionNaples uint32 = 0x20
	VersionRome   uint32 = 0x30
)

// HeaderV2 is the fixed prefix present in every APCB, V2 or V3.
//
//	offset  0  version              uint32
//	offset  4  header_size          uint32  (== HeaderSize(), spec's H)
//	offset  8  used_size            uint32  (spec's used_size, including header)
//	offset 12  unique_apcb_instance uint32
//	offset 16  checksum_byte        uint8
//	offset 17  reserved             [15]byte
const (
	headerV2Version      = 0
	headerV2HeaderSize   = 4
	headerV2UsedSize     = 8
	headerV2UniqueAPCB   = 12
	headerV2ChecksumByte = 16
	headerV2Size         = 32
)

// headerV3ExtSignature, when found at offset headerV2Size, marks a V3
// extended header immediately following the V2 prefix. Its presence is
// what Load uses to tell a V3 blob from a V2 one; HeaderSize is then the
// combined length of both.
//
//	offset  0  signature          [4]byte ("ECB2")
//	offset  4  struct_version     uint16
//	offset  6  data_version       uint16
//	offset  8  ext_header_size    uint32
//	offset 12  data_offset        uint16
//	offset 14  header_checksum    uint8
//	offset 15  reserved           uint8
//	offset 16  integrity_sign     [32]byte
//	offset 48  signature_ending   [4]byte ("BCPA")
const (
	headerV3ExtSigOff       = 0
	headerV3ExtStructVerOff = 4
	headerV3ExtDataVerOff   = 6
	headerV3ExtSizeOff      = 8
	headerV3ExtDataOffOff   = 12
	headerV3ExtChecksumOff  = 14
	headerV3ExtIntegrityOff = 16
	headerV3ExtEndingOff    = 48
	headerV3ExtSize         = 52

	headerV3StructVersion = 0x12
	headerV3DataVersion   = 0x100
)

var (
	headerV3ExtSignature = [4]byte{'E', 'C', 'B', '2'}
	headerV3ExtEnding    = [4]byte{'B', 'C', 'P', 'A'}
)

// GroupHeader is the fixed prefix of every group, per spec: a 4-byte
// signature, a 16-bit group_id, a 32-bit size (including this header), and
// a reserved trailer.
//
//	offset 0  signature  [4]byte
//	offset 4  group_id   uint16
//	offset 6  size       uint32
//	offset 10 reserved   uint16
const (
	groupHeaderSignature = 0
	groupHeaderGroupID   = 4
	groupHeaderSize      = 6
	groupHeaderSizeBytes = 12
)

// EntryHeader is the fixed prefix of every entry.
//
//	offset  0  group_id            uint16
//	offset  2  entry_id            uint16
//	offset  4  size                uint16  (including this header)
//	offset  6  instance_id         uint16
//	offset  8  context_type        uint8
//	offset  9  context_format      uint8
//	offset 10  unit_size           uint8
//	offset 11  priority_mask       uint8
//	offset 12  key_size            uint8
//	offset 13  key_pos             uint8
//	offset 14  board_instance_mask uint16
const (
	entryHeaderGroupID     = 0
	entryHeaderEntryID     = 2
	entryHeaderSize        = 4
	entryHeaderInstanceID  = 6
	entryHeaderContextType = 8
	entryHeaderContextFmt  = 9
	entryHeaderUnitSize    = 10
	entryHeaderPriority    = 11
	entryHeaderKeySize     = 12
	entryHeaderKeyPos      = 13
	entryHeaderBoardMask   = 14
	entryHeaderSizeBytes   = 16
)

// TokenRecord is the fixed 8-byte (token_id, value) pair stored in a
// Tokens-context entry's body.
//
//	offset 0  token_id  uint32
//	offset 4  value     uint32
const (
	tokenRecordID    = 0
	tokenRecordValue = 4
	tokenRecordBytes = 8
)

// ContextType discriminates how an entry's body is laid out.
type ContextType uint8

const (
	ContextTypeStruct     ContextType = 0
	ContextTypeParameters ContextType = 1
	ContextTypeTokens     ContextType = 2
)

// ContextFormat further qualifies a Struct-family body's element ordering.
type ContextFormat uint8

const (
	ContextFormatNative         ContextFormat = 0
	ContextFormatSortAscending  ContextFormat = 1
	ContextFormatSortDescending ContextFormat = 2 // not used by current firmware
)

// GroupID identifies a top-level group. The catalogue below names the
// groups AMD firmware actually defines; the engine itself never validates
// against it — these are caller conveniences, grounded in the platform's
// own group table.
type GroupID uint16

const (
	GroupIDPsp    GroupID = 0x1701
	GroupIDCcx    GroupID = 0x1702
	GroupIDDf     GroupID = 0x1703
	GroupIDMemory GroupID = 0x1704
	GroupIDGnb    GroupID = 0x1705
	GroupIDFch    GroupID = 0x1706
	GroupIDCbs    GroupID = 0x1707
	GroupIDOem    GroupID = 0x1708
	GroupIDToken  GroupID = 0x3000
)

// GroupSignature returns the usual 4-byte ASCII signature firmware pairs
// with a known GroupID. Unknown ids return four spaces, matching the
// platform's own "probably invalid" default signature.
func GroupSignature(id GroupID) [4]byte {
	switch id {
	case GroupIDPsp:
		return [4]byte{'P', 'S', 'P', 'G'}
	case GroupIDCcx:
		return [4]byte{'C', 'C', 'X', 'G'}
	case GroupIDDf:
		return [4]byte{'D', 'F', 'G', ' '}
	case GroupIDMemory:
		return [4]byte{'M', 'E', 'M', 'G'}
	case GroupIDGnb:
		return [4]byte{'G', 'N', 'B', 'G'}
	case GroupIDFch:
		return [4]byte{'F', 'C', 'H', 'G'}
	case GroupIDCbs:
		return [4]byte{'C', 'B', 'S', 'G'}
	case GroupIDOem:
		return [4]byte{'O', 'E', 'M', 'G'}
	case GroupIDToken:
		return [4]byte{'T', 'O', 'K', 'N'}
	default:
		return [4]byte{' ', ' ', ' ', ' '}
	}
}

// TokenKind is the effective bit width of a token's value, derived from the
// token entry's entry_id field (the platform overloads entry_id as the
// token-kind selector for Tokens-context entries).
type TokenKind uint16

const (
	TokenKindBool  TokenKind = 0
	TokenKindByte  TokenKind = 1
	TokenKindWord  TokenKind = 2
	TokenKindDWord TokenKind = 4
)

// Mask returns the bits of a token value that are significant for this
// kind; SetValue and Get both apply it.
func (k TokenKind) Mask() uint32 {
	switch k {
	case TokenKindBool:
		return 0x1
	case TokenKindByte:
		return 0xFF
	case TokenKindWord:
		return 0xFFFF
	case TokenKindDWord:
		return 0xFFFFFFFF
	default:
		return 0xFFFFFFFF
	}
}

// PriorityLevel is one purpose level in the APCB token priority hierarchy:
// a token entry at a higher level overrides the same token set at a lower
// one. HardForce is the highest priority, Default the lowest.
type PriorityLevel uint8

const (
	PriorityLevelHardForce    PriorityLevel = 1
	PriorityLevelHigh         PriorityLevel = 2
	PriorityLevelMedium       PriorityLevel = 3
	PriorityLevelEventLogging PriorityLevel = 4
	PriorityLevelLow          PriorityLevel = 5
	PriorityLevelDefault      PriorityLevel = 6
)

// PriorityMask is a combined set of PriorityLevel bits, stored directly in
// an entry header's priority_mask byte.
type PriorityMask uint8

// NewPriorityMask combines levels into a PriorityMask.
func NewPriorityMask(levels ...PriorityLevel) PriorityMask {
	var result uint8
	for _, l := range levels {
		result |= 1 << (uint8(l) - 1)
	}
	return PriorityMask(result)
}

// Has reports whether level is set in m.
func (m PriorityMask) Has(level PriorityLevel) bool {
	return m&(1<<(uint8(level)-1)) != 0
}
