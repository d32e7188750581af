package engine

// This file implements the startup scan / recovery walk: after the area
// manager has chosen an active area, replay every record in append order
// into the RAM index, reconstructing live state exactly as if each record
// were applied one at a time. Corruption partway through triggers
// recovery-by-compaction, salvaging every record validated before the bad
// one; partial data loss is the documented outcome of media corruption.

import (
	"context"

	"github.com/iamNilotpal/flashkv/internal/area"
	"github.com/iamNilotpal/flashkv/internal/crc16"
	"github.com/iamNilotpal/flashkv/internal/index"
	"github.com/iamNilotpal/flashkv/internal/record"
	"github.com/iamNilotpal/flashkv/pkg/errors"
)

// scan walks the active area from just after its anchor, building the RAM
// index and the consumedSize/freeSpaceOffset counters.
func (e *Engine) scan(ctx context.Context) error {
	anchorSize := area.AnchorRecordSize(e.programSize)
	e.consumedSize = anchorSize
	e.freeSpaceOffset = e.areas.Active().Size

	offset := anchorSize
	activeAddr := e.areas.Active().Addr
	hitErased := false

	for offset+record.HeaderSize < e.freeSpaceOffset {
		addr := activeAddr + offset
		h, outcome, err := e.readHeader(ctx, addr)
		if err != nil {
			return err
		}

		switch outcome {
		case record.OutcomeErased:
			hitErased = true
			e.freeSpaceOffset = offset

		case record.OutcomeInvalid:
			e.log.Warnw("scan hit invalid record, recovering by compaction", "offset", offset)
			return e.compact(ctx, nil)

		case record.OutcomeValid:
			key, err := e.readKey(ctx, addr, h.KeySize)
			if err != nil {
				return err
			}
			payload, err := e.readPayload(ctx, addr, h)
			if err != nil {
				return err
			}
			if record.CRC(h, key, payload) != h.CRC {
				e.log.Warnw("scan hit CRC mismatch, recovering by compaction", "offset", offset)
				return e.compact(ctx, nil)
			}

			recSize := record.Size(uint32(h.KeySize), h.DataSize, e.programSize)
			if err := e.applyScanned(ctx, h, key, offset, recSize); err != nil {
				return err
			}
			offset += recSize
		}

		if hitErased {
			break
		}
	}
	if !hitErased {
		e.freeSpaceOffset = offset
	}
	return nil
}

// applyScanned replays one decoded record into the RAM index, classifying
// it as a no-op tombstone, delete, update or add.
func (e *Engine) applyScanned(ctx context.Context, h record.Header, key []byte, offset, recSize uint32) error {
	pos, found, entry, err := e.lookup(ctx, key)
	if err != nil {
		return err
	}

	if h.IsTombstone() {
		if !found {
			// Deleting a key that was already absent (e.g. an update that a
			// prior compaction turned into an add) is a documented no-op.
			return nil
		}
		oldSize, _, err := e.recordSizeAt(ctx, entry.Offset)
		if err != nil {
			return err
		}
		e.idx.RemoveAt(pos)
		e.consumedSize -= oldSize
		return nil
	}

	hash := crc16.Checksum(key)
	if found {
		oldSize, _, err := e.recordSizeAt(ctx, entry.Offset)
		if err != nil {
			return err
		}
		e.idx.UpdateAt(pos, index.Entry{Hash: hash, Offset: offset})
		e.consumedSize = e.consumedSize - oldSize + recSize
		return nil
	}

	if err := e.idx.InsertAt(pos, index.Entry{Hash: hash, Offset: offset}); err != nil {
		return errors.New(err, errors.CodeMemAlloc, "grow RAM index during scan")
	}
	e.consumedSize += recSize
	return nil
}
