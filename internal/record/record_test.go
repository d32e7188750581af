package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	h := Header{
		FormatVersion: FormatVersion,
		Flags:         0,
		HeaderSize:    HeaderSize,
		KeySize:       5,
		DataSize:      3,
		CRC:           0x1234,
	}

	buf := EncodeHeader(h)
	if len(buf) != HeaderSize {
		t.Fatalf("EncodeHeader length = %d, want %d", len(buf), HeaderSize)
	}

	got, outcome := DecodeHeader(buf, 64)
	if outcome != OutcomeValid {
		t.Fatalf("DecodeHeader outcome = %v, want OutcomeValid", outcome)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHeader_ErasedPatterns(t *testing.T) {
	for _, fill := range []byte{0x00, 0xFF} {
		buf := make([]byte, HeaderSize)
		for i := range buf {
			buf[i] = fill
		}
		_, outcome := DecodeHeader(buf, 64)
		if outcome != OutcomeErased {
			t.Fatalf("fill %#02x: outcome = %v, want OutcomeErased", fill, outcome)
		}
	}
}

func TestDecodeHeader_InvalidMagic(t *testing.T) {
	h := Header{KeySize: 5, DataSize: 0}
	buf := EncodeHeader(h)
	buf[0] ^= 0x01 // corrupt the magic

	_, outcome := DecodeHeader(buf, 64)
	if outcome != OutcomeInvalid {
		t.Fatalf("outcome = %v, want OutcomeInvalid", outcome)
	}
}

func TestDecodeHeader_KeySizeBounds(t *testing.T) {
	tests := []struct {
		name    string
		keySize uint16
	}{
		{"zero", 0},
		{"at max", 64},
		{"above max", 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Header{KeySize: tt.keySize}
			buf := EncodeHeader(h)
			_, outcome := DecodeHeader(buf, 64)
			if outcome != OutcomeInvalid {
				t.Fatalf("keySize %d: outcome = %v, want OutcomeInvalid", tt.keySize, outcome)
			}
		})
	}
}

func TestCRC_CoversHeaderKeyAndPayload(t *testing.T) {
	h := Header{FormatVersion: FormatVersion, HeaderSize: HeaderSize, KeySize: 5, DataSize: 3}
	key := []byte("alpha")
	payload := []byte{0x01, 0x02, 0x03}

	crc := CRC(h, key, payload)

	// Flipping a payload bit must change the CRC.
	flipped := append([]byte(nil), payload...)
	flipped[0] ^= 0x01
	if CRC(h, key, flipped) == crc {
		t.Fatalf("CRC did not change when payload was corrupted")
	}

	// The crc field itself must be excluded from the computation: encoding
	// with a different CRC value already in the header must not change the
	// computed checksum.
	h2 := h
	h2.CRC = 0xBEEF
	if CRC(h2, key, payload) != crc {
		t.Fatalf("CRC changed when only the header's own crc field changed")
	}
}

func TestSize_AlignsUpToProgramGranularity(t *testing.T) {
	tests := []struct {
		keySize, dataSize, programSize, want uint32
	}{
		{5, 3, 8, 32}, // 18+5+3=26 -> next multiple of 8 is 32
		{5, 3, 1, 26}, // no alignment needed
		{0, 0, 8, 24}, // header alone: 18 -> 24
	}

	for _, tt := range tests {
		got := Size(tt.keySize, tt.dataSize, tt.programSize)
		if got != tt.want {
			t.Fatalf("Size(%d,%d,%d) = %d, want %d", tt.keySize, tt.dataSize, tt.programSize, got, tt.want)
		}
	}
}

func TestAnchorPayload_RoundTrip(t *testing.T) {
	a := Anchor{Version: 42, FormatVersion: 0}
	buf := EncodeAnchorPayload(a)
	if len(buf) != AnchorPayloadSize {
		t.Fatalf("payload length = %d, want %d", len(buf), AnchorPayloadSize)
	}
	got := DecodeAnchorPayload(buf)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Fatalf("anchor round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionIsNewer_WraparoundRule(t *testing.T) {
	tests := []struct {
		candidate, current uint16
		want                bool
	}{
		{2, 1, true},
		{1, 2, false},
		{0, 0xFFFF, true}, // wraparound: 0 beats any non-zero
		{0xFFFF, 0, false},
		{5, 5, false},
	}
	for _, tt := range tests {
		got := VersionIsNewer(tt.candidate, tt.current)
		if got != tt.want {
			t.Fatalf("VersionIsNewer(%d, %d) = %v, want %v", tt.candidate, tt.current, got, tt.want)
		}
	}
}

func TestNextVersion_WrapsFrom0xFFFFTo0(t *testing.T) {
	if got := NextVersion(0xFFFF); got != 0 {
		t.Fatalf("NextVersion(0xFFFF) = %d, want 0", got)
	}
}
