package engine

// This file implements the add/update/delete dispatch: one routine,
// parameterized by a tombstone flag, handles both Write and Delete.

import (
	"context"

	"github.com/iamNilotpal/flashkv/internal/record"
	"github.com/iamNilotpal/flashkv/pkg/errors"
)

func (e *Engine) validateKey(key string) error {
	if len(key) == 0 || len(key) >= int(e.maxKeySize) {
		return errors.New(nil, errors.CodeBadParam, "key length must satisfy 0 < len(key) < MaxKeySize").
			WithKey(key).WithDetail("maxKeySize", e.maxKeySize)
	}
	return nil
}

// Write implements the add/update path: data may be empty but not
// nil-vs-zero-length-mismatched (Go's []byte makes that distinction moot;
// an empty slice and a nil slice are both zero-length, so a zero-size
// write with nil data is permitted).
func (e *Engine) Write(ctx context.Context, key string, data []byte) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.validateKey(key); err != nil {
		return err
	}

	keyBytes := []byte(key)
	pos, found, entry, err := e.lookup(ctx, keyBytes)
	if err != nil {
		return err
	}

	newSize := record.Size(uint32(len(keyBytes)), uint32(len(data)), e.programSize)

	if !found {
		return e.appendAdd(ctx, pos, keyBytes, data, newSize)
	}
	return e.appendUpdate(ctx, pos, entry.Offset, keyBytes, data, newSize)
}

// appendAdd handles the "not found, not tombstone" branch: add.
func (e *Engine) appendAdd(ctx context.Context, pos int, key, data []byte, newSize uint32) error {
	active := e.areas.Active()
	if e.consumedSize+newSize > active.Size {
		return errors.New(nil, errors.CodeStorageFull, "live data does not fit the area").WithKey(string(key))
	}

	// Reserve RAM-index capacity before touching media: an allocation
	// failure growing the index must fail the whole add before any record
	// is programmed, not after.
	if err := e.idx.EnsureCapacity(); err != nil {
		return errors.New(err, errors.CodeMemAlloc, "grow RAM index").WithKey(string(key))
	}

	if e.freeSpaceOffset+newSize > active.Size {
		if err := e.compact(ctx, nil); err != nil {
			return err
		}
		// Compaction preserves sorted hash order 1:1 (only offsets move),
		// so the insertion position computed before compaction is still
		// correct on the freshly compacted area.
		active = e.areas.Active()
	}

	h := buildHeader(key, data, 0)
	addr := active.Addr + e.freeSpaceOffset
	if err := e.writeRecord(ctx, addr, h, key, data); err != nil {
		return errors.Wrap(err, "append new record")
	}

	hash := crcOf(key)
	if err := e.idx.InsertAt(pos, indexEntry(hash, e.freeSpaceOffset)); err != nil {
		return err
	}
	e.consumedSize += newSize
	e.freeSpaceOffset += newSize
	return nil
}

// appendUpdate handles the "found, not tombstone" branch: update.
func (e *Engine) appendUpdate(ctx context.Context, pos int, oldOffset uint32, key, data []byte, newSize uint32) error {
	active := e.areas.Active()
	oldSize, _, err := e.recordSizeAt(ctx, oldOffset)
	if err != nil {
		return err
	}

	if e.consumedSize-oldSize+newSize > active.Size {
		return errors.New(nil, errors.CodeStorageFull, "live data does not fit the area").WithKey(string(key))
	}

	if e.freeSpaceOffset+newSize > active.Size {
		return e.compact(ctx, &pendingMutation{
			kind:          pendingUpdate,
			pos:           pos,
			key:           key,
			payload:       data,
			oldRecordSize: oldSize,
			newRecordSize: newSize,
		})
	}

	h := buildHeader(key, data, 0)
	addr := active.Addr + e.freeSpaceOffset
	if err := e.writeRecord(ctx, addr, h, key, data); err != nil {
		return errors.Wrap(err, "append updated record")
	}

	hash := crcOf(key)
	e.idx.UpdateAt(pos, indexEntry(hash, e.freeSpaceOffset))
	e.consumedSize = e.consumedSize - oldSize + newSize
	e.freeSpaceOffset += newSize
	return nil
}

// Delete is idempotent: a no-op when the key is already absent.
func (e *Engine) Delete(ctx context.Context, key string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.validateKey(key); err != nil {
		return err
	}

	keyBytes := []byte(key)
	pos, found, entry, err := e.lookup(ctx, keyBytes)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	active := e.areas.Active()
	oldSize, _, err := e.recordSizeAt(ctx, entry.Offset)
	if err != nil {
		return err
	}

	// A tombstone record is itself appended to the log (the delete flag
	// bit set in its header), so it needs the same space and append-room
	// checks as a write.
	tombstoneSize := record.Size(uint32(len(keyBytes)), 0, e.programSize)

	if e.consumedSize-oldSize+tombstoneSize > active.Size {
		return errors.New(nil, errors.CodeStorageFull, "tombstone does not fit the area").WithKey(key)
	}

	if e.freeSpaceOffset+tombstoneSize > active.Size {
		return e.compact(ctx, &pendingMutation{
			kind:          pendingDelete,
			pos:           pos,
			key:           keyBytes,
			oldRecordSize: oldSize,
			newRecordSize: 0,
		})
	}

	h := buildHeader(keyBytes, nil, record.FlagTombstone)
	addr := active.Addr + e.freeSpaceOffset
	if err := e.writeRecord(ctx, addr, h, keyBytes, nil); err != nil {
		return errors.Wrap(err, "append tombstone")
	}

	e.idx.RemoveAt(pos)
	e.consumedSize -= oldSize
	e.freeSpaceOffset += tombstoneSize
	return nil
}

// Read returns the current value for key. A non-existent key reports
// CodeItemNotFound; a CRC mismatch on the stored record reports
// CodeInvalidData rather than returning corrupted bytes.
func (e *Engine) Read(ctx context.Context, key string) ([]byte, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := e.validateKey(key); err != nil {
		return nil, err
	}

	keyBytes := []byte(key)
	_, found, entry, err := e.lookup(ctx, keyBytes)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(nil, errors.CodeItemNotFound, "key not found").WithKey(key)
	}

	addr := e.areas.Active().Addr + entry.Offset
	h, outcome, err := e.readHeader(ctx, addr)
	if err != nil {
		return nil, err
	}
	if outcome != record.OutcomeValid {
		return nil, errors.New(nil, errors.CodeInvalidData, "indexed record failed to decode").WithKey(key).WithOffset(entry.Offset)
	}

	payload, err := e.readPayload(ctx, addr, h)
	if err != nil {
		return nil, err
	}
	if record.CRC(h, keyBytes, payload) != h.CRC {
		return nil, errors.New(nil, errors.CodeInvalidData, "record failed CRC validation").WithKey(key).WithOffset(entry.Offset)
	}
	return payload, nil
}

// Exists is a thin existence probe, supplementing the nil-output-pointer
// read-as-probe calling convention with a dedicated boolean API.
func (e *Engine) Exists(ctx context.Context, key string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	if err := e.validateKey(key); err != nil {
		return false, err
	}
	_, found, _, err := e.lookup(ctx, []byte(key))
	return found, err
}

// Reset clears the RAM index and compacts, leaving only a fresh anchor.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.idx.Reset()
	if err := e.compact(ctx, nil); err != nil {
		return err
	}
	e.consumedSize = e.freeSpaceOffset
	return nil
}

// Size returns the total padded bytes of live records plus the anchor.
func (e *Engine) Size() uint32 { return e.consumedSize }

// RemainingSize returns the active area's size minus Size().
func (e *Engine) RemainingSize() uint32 { return e.areas.Active().Size - e.consumedSize }

// Len reports the number of live keys.
func (e *Engine) Len() int { return e.idx.Len() }
