package engine

import (
	"context"

	"github.com/iamNilotpal/flashkv/internal/crc16"
	"github.com/iamNilotpal/flashkv/internal/index"
	"github.com/iamNilotpal/flashkv/internal/record"
)

// readHeader reads and decodes the header at addr, an absolute device
// address.
func (e *Engine) readHeader(ctx context.Context, addr uint32) (record.Header, record.Outcome, error) {
	buf := make([]byte, record.HeaderSize)
	if err := e.tx.ReadAt(ctx, addr, buf); err != nil {
		return record.Header{}, record.OutcomeInvalid, err
	}
	h, outcome := record.DecodeHeader(buf, e.maxKeySize)
	return h, outcome, nil
}

// readKey reads keySize bytes immediately following the header at addr.
func (e *Engine) readKey(ctx context.Context, addr uint32, keySize uint16) ([]byte, error) {
	buf := make([]byte, keySize)
	if err := e.tx.ReadAt(ctx, addr+record.HeaderSize, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readPayload reads h.DataSize bytes of payload following the key at addr.
func (e *Engine) readPayload(ctx context.Context, addr uint32, h record.Header) ([]byte, error) {
	buf := make([]byte, h.DataSize)
	if h.DataSize == 0 {
		return buf, nil
	}
	payloadAddr := addr + uint32(record.HeaderSize) + uint32(h.KeySize)
	if err := e.tx.ReadAt(ctx, payloadAddr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// recordSizeAt reads the header at an active-area offset and returns its
// padded on-media footprint, used to recover a previously-written record's
// size for update/delete size accounting.
func (e *Engine) recordSizeAt(ctx context.Context, offset uint32) (uint32, record.Header, error) {
	addr := e.areas.Active().Addr + offset
	h, _, err := e.readHeader(ctx, addr)
	if err != nil {
		return 0, record.Header{}, err
	}
	return record.Size(uint32(h.KeySize), h.DataSize, e.programSize), h, nil
}

// keyEqual builds an index.KeyEqualFunc bound to key, reading candidate
// records from the active area (offsets are relative to its start).
func (e *Engine) keyEqual(ctx context.Context, key []byte) index.KeyEqualFunc {
	return func(ctx context.Context, offset uint32) (bool, error) {
		addr := e.areas.Active().Addr + offset
		h, outcome, err := e.readHeader(ctx, addr)
		if err != nil {
			return false, err
		}
		if outcome != record.OutcomeValid {
			return false, nil
		}
		got, err := e.readKey(ctx, addr, h.KeySize)
		if err != nil {
			return false, err
		}
		return string(got) == string(key), nil
	}
}

// lookup resolves key against the RAM index.
func (e *Engine) lookup(ctx context.Context, key []byte) (pos int, found bool, entry index.Entry, err error) {
	hash := crc16.Checksum(key)
	return e.idx.Lookup(ctx, hash, e.keyEqual(ctx, key))
}

// writeRecord encodes and programs a full record (header+key+payload) at
// addr through the transaction buffer.
func (e *Engine) writeRecord(ctx context.Context, addr uint32, h record.Header, key, payload []byte) error {
	e.tx.BeginWrite(addr)
	if err := e.tx.Write(ctx, record.EncodeHeader(h)); err != nil {
		return err
	}
	if err := e.tx.Write(ctx, key); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := e.tx.Write(ctx, payload); err != nil {
			return err
		}
	}
	return e.tx.Flush(ctx)
}

// crcOf is a small naming convenience over crc16.Checksum for index hashing.
func crcOf(key []byte) uint16 { return crc16.Checksum(key) }

// indexEntry builds a RAM-index entry for hash/offset.
func indexEntry(hash uint16, offset uint32) index.Entry {
	return index.Entry{Hash: hash, Offset: offset}
}

// buildHeader assembles and CRCs a header for key/payload with the given
// flags.
func buildHeader(key, payload []byte, flags uint8) record.Header {
	h := record.Header{
		FormatVersion: record.FormatVersion,
		Flags:         flags,
		HeaderSize:    record.HeaderSize,
		KeySize:       uint16(len(key)),
		DataSize:      uint32(len(payload)),
	}
	h.CRC = record.CRC(h, key, payload)
	return h
}
