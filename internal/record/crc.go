package record

import "github.com/iamNilotpal/flashkv/internal/crc16"

// CRC computes the record checksum over header-excluding-crc, then key,
// then payload, without concatenating the three into one buffer.
func CRC(h Header, key, payload []byte) uint16 {
	crc := uint16(crc16.Init)
	crc = crc16.Update(crc, EncodeHeaderSansCRC(h))
	crc = crc16.Update(crc, key)
	crc = crc16.Update(crc, payload)
	return crc
}
