package crc16

import "testing"

func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"123456789", []byte("123456789"), 0x29B1}, // CRC-16/CCITT-FALSE check value
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Checksum(tt.in)
			if got != tt.want {
				t.Fatalf("Checksum(%q) = %#04x, want %#04x", tt.in, got, tt.want)
			}
		})
	}
}

func TestUpdate_ChainingMatchesConcatenation(t *testing.T) {
	header := []byte{0x01, 0x02, 0x03, 0x04}
	key := []byte("alpha")
	payload := []byte{0xAA, 0xBB, 0xCC}

	chained := Update(Update(Update(Init, header), key), payload)

	var all []byte
	all = append(all, header...)
	all = append(all, key...)
	all = append(all, payload...)
	whole := Checksum(all)

	if chained != whole {
		t.Fatalf("chained CRC %#04x != whole-buffer CRC %#04x", chained, whole)
	}
}

func TestChecksum_BitFlipChangesResult(t *testing.T) {
	data := []byte("the quick brown fox")
	base := Checksum(data)

	flipped := append([]byte(nil), data...)
	flipped[3] ^= 0x01

	if Checksum(flipped) == base {
		t.Fatalf("bit flip did not change checksum")
	}
}
