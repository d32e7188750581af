package record

import "encoding/binary"

// AnchorKey is the reserved key of the first record in every area.
const AnchorKey = "MTBAREAIDX"

// AnchorPayloadSize is the size of the anchor's 4-byte payload.
const AnchorPayloadSize = 4

// Anchor is the decoded payload of an area's anchor record: a version that
// increments each time the area becomes active (post-compaction), plus the
// anchor's own format version.
type Anchor struct {
	Version       uint16
	FormatVersion uint16
}

// EncodeAnchorPayload serializes a into its 4-byte on-media payload.
func EncodeAnchorPayload(a Anchor) []byte {
	buf := make([]byte, AnchorPayloadSize)
	binary.LittleEndian.PutUint16(buf[0:], a.Version)
	binary.LittleEndian.PutUint16(buf[2:], a.FormatVersion)
	return buf
}

// DecodeAnchorPayload parses a 4-byte anchor payload.
func DecodeAnchorPayload(buf []byte) Anchor {
	return Anchor{
		Version:       binary.LittleEndian.Uint16(buf[0:]),
		FormatVersion: binary.LittleEndian.Uint16(buf[2:]),
	}
}

// VersionIsNewer reports whether candidate should be considered the newer
// of the two anchor versions, applying the wraparound rule: version == 0 is
// treated as strictly greater than any non-zero version, to model the
// rollover from 0xFFFF back to 0 after 2^16 compactions.
func VersionIsNewer(candidate, current uint16) bool {
	if candidate == current {
		return false
	}
	if candidate == 0 {
		return true
	}
	if current == 0 {
		return false
	}
	return candidate > current
}

// NextVersion returns the version an area gets the next time it is
// compacted into, wrapping from 0xFFFF to 0.
func NextVersion(current uint16) uint16 {
	return current + 1
}
