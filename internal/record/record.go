// Package record implements the on-media record codec: the fixed-layout
// header, followed by key bytes and payload bytes, padded up to the
// destination address's program granularity.
//
// Header layout (18 bytes, little-endian, no padding between fields):
//
//	offset  size  field
//	0       4     magic           constant 0xFACEFACE
//	4       1     format_version  current value 0
//	5       1     flags           bit 7 set => tombstone
//	6       2     header_size     size of this header in bytes (18)
//	8       2     key_size        0 < key_size < MaxKeySize
//	10      4     data_size       payload length, may be 0
//	14      4     crc             CRC-16/CCITT-0, zero-extended; only the
//	                              low 16 bits are meaningful, the high 16
//	                              bits are always written as zero
//
// The crc field is declared 32 bits wide on media but only ever carries a
// 16-bit CRC; the high 16 bits are always written as zero so the
// CRC-over-header computation stays deterministic.
package record

import "encoding/binary"

const (
	// Magic marks a valid record start.
	Magic uint32 = 0xFACEFACE

	// HeaderSize is the fixed on-media size of a record header in bytes.
	HeaderSize = 18

	// FormatVersion is the only record layout version this codec emits or
	// accepts.
	FormatVersion uint8 = 0

	// FlagTombstone marks a record as a logical delete of its key.
	FlagTombstone uint8 = 1 << 7
)

// Header field byte offsets within the 18-byte on-media layout.
const (
	offMagic         = 0
	offFormatVersion = 4
	offFlags         = 5
	offHeaderSize    = 6
	offKeySize       = 8
	offDataSize      = 10
	offCRC           = 14
)

// Header is the decoded form of an on-media record header.
type Header struct {
	FormatVersion uint8
	Flags         uint8
	HeaderSize    uint16
	KeySize       uint16
	DataSize      uint32
	CRC           uint16 // low 16 bits of the zero-extended on-media field
}

// IsTombstone reports whether the delete flag is set.
func (h Header) IsTombstone() bool {
	return h.Flags&FlagTombstone != 0
}

// Outcome classifies the result of decoding a header from media.
type Outcome int

const (
	// OutcomeValid: magic, sizes and structural checks all passed; CRC is
	// not yet verified (callers check CRC separately once the key and
	// payload are also available).
	OutcomeValid Outcome = iota
	// OutcomeErased: magic read back as the erased pattern (all-0x00 or
	// all-0xFF); this is "past the end of written data," not corruption.
	OutcomeErased
	// OutcomeInvalid: magic did not match Magic and was not an erased
	// pattern, or the structural checks (key_size bounds) failed.
	OutcomeInvalid
)

// EncodeHeader serializes h into a fresh HeaderSize-byte buffer. The crc
// field's low 16 bits carry crc; the high 16 bits are always zero.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	buf[offFormatVersion] = h.FormatVersion
	buf[offFlags] = h.Flags
	binary.LittleEndian.PutUint16(buf[offHeaderSize:], h.HeaderSize)
	binary.LittleEndian.PutUint16(buf[offKeySize:], h.KeySize)
	binary.LittleEndian.PutUint32(buf[offDataSize:], h.DataSize)
	binary.LittleEndian.PutUint32(buf[offCRC:], uint32(h.CRC))
	return buf
}

// EncodeHeaderSansCRC serializes h the same way as EncodeHeader but with the
// crc field forced to zero, for feeding into the running CRC computation:
// crc = crc16(header_sans_crc) then key then payload.
func EncodeHeaderSansCRC(h Header) []byte {
	h.CRC = 0
	return EncodeHeader(h)
}

// DecodeHeader parses an HeaderSize-byte buffer into a Header and an
// Outcome. maxKeySize is the exclusive upper bound key_size must satisfy;
// buf must be at least HeaderSize bytes.
func DecodeHeader(buf []byte, maxKeySize uint16) (Header, Outcome) {
	magic := binary.LittleEndian.Uint32(buf[offMagic:])

	if magic == 0x00000000 || magic == 0xFFFFFFFF {
		return Header{}, OutcomeErased
	}
	if magic != Magic {
		return Header{}, OutcomeInvalid
	}

	h := Header{
		FormatVersion: buf[offFormatVersion],
		Flags:         buf[offFlags],
		HeaderSize:    binary.LittleEndian.Uint16(buf[offHeaderSize:]),
		KeySize:       binary.LittleEndian.Uint16(buf[offKeySize:]),
		DataSize:      binary.LittleEndian.Uint32(buf[offDataSize:]),
		CRC:           uint16(binary.LittleEndian.Uint32(buf[offCRC:])),
	}

	if h.KeySize == 0 || h.KeySize >= maxKeySize {
		return Header{}, OutcomeInvalid
	}

	return h, OutcomeValid
}

// Size returns align_up(HeaderSize + keySize + dataSize, programSize), the
// total padded on-media footprint of a record.
func Size(keySize, dataSize, programSize uint32) uint32 {
	return alignUp(HeaderSize+keySize+dataSize, programSize)
}

func alignUp(size, granularity uint32) uint32 {
	if granularity <= 1 {
		return size
	}
	rem := size % granularity
	if rem == 0 {
		return size
	}
	return size + (granularity - rem)
}
