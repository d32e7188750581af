package engine

// This file implements the compactor (GC): copy every live record into the
// spare area, optionally folding in one pending mutation as part of the
// copy, commit by writing the new anchor into the spare area, then swap
// active/spare roles. The anchor write is the atomic commit point: a crash
// before it leaves the old active area untouched and still winning; a
// crash after it leaves the new area winning once the area manager
// re-probes both anchors at next Open.

import (
	"context"

	"github.com/iamNilotpal/flashkv/internal/area"
	"github.com/iamNilotpal/flashkv/internal/crc16"
	"github.com/iamNilotpal/flashkv/internal/index"
	"github.com/iamNilotpal/flashkv/internal/record"
	"github.com/iamNilotpal/flashkv/pkg/errors"
)

// pendingKind classifies the single in-flight mutation a compaction may be
// asked to fold into its copy pass.
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingUpdate
	pendingDelete
)

// pendingMutation describes the one mutation being applied in the same
// compaction that reclaims space for it.
type pendingMutation struct {
	kind          pendingKind
	pos           int // RAM-index position of the existing entry being replaced/removed
	key           []byte
	payload       []byte
	oldRecordSize uint32
	newRecordSize uint32
}

// compact runs the GC procedure. pending is nil for a plain compaction
// (recovery during scan, reset, or making room for an add); non-nil to fold
// an update or delete into the same pass.
func (e *Engine) compact(ctx context.Context, pending *pendingMutation) error {
	spare := e.areas.Spare()
	active := e.areas.Active()

	if pending != nil && pending.kind == pendingUpdate {
		if e.consumedSize-pending.oldRecordSize+pending.newRecordSize > spare.Size {
			return errors.New(nil, errors.CodeStorageFull, "live data does not fit the area even after compaction")
		}
	}

	if err := e.areas.EraseArea(ctx, spare, e.eraseSize); err != nil {
		return errors.Wrap(err, "erase spare area")
	}

	dstOffset := area.AnchorRecordSize(e.programSize)

	entries := e.idx.All()
	newEntries := make([]index.Entry, 0, len(entries))

	for i, entry := range entries {
		if pending != nil && pending.pos == i && pending.kind != pendingNone {
			continue // skip copy: replaced (update) or removed (delete)
		}

		recSize, _, err := e.recordSizeAt(ctx, entry.Offset)
		if err != nil {
			return err
		}
		srcAddr := active.Addr + entry.Offset
		dstAddr := spare.Addr + dstOffset
		if err := e.tx.StreamCopy(ctx, srcAddr, dstAddr, recSize); err != nil {
			return errors.Wrap(err, "copy live record during compaction")
		}
		newEntries = append(newEntries, index.Entry{Hash: entry.Hash, Offset: dstOffset})
		dstOffset += recSize
	}

	if pending != nil && pending.kind == pendingUpdate {
		h := buildHeader(pending.key, pending.payload, 0)
		dstAddr := spare.Addr + dstOffset
		if err := e.writeRecord(ctx, dstAddr, h, pending.key, pending.payload); err != nil {
			return errors.Wrap(err, "append pending update during compaction")
		}
		newEntry := index.Entry{Hash: crc16.Checksum(pending.key), Offset: dstOffset}
		pos := pending.pos
		if pos > len(newEntries) {
			pos = len(newEntries)
		}
		newEntries = append(newEntries[:pos:pos], append([]index.Entry{newEntry}, newEntries[pos:]...)...)
		dstOffset += pending.newRecordSize
	}

	newVersion := record.NextVersion(e.areas.Version())
	if err := e.areas.WriteAnchor(ctx, spare, newVersion, e.programSize); err != nil {
		return errors.Wrap(err, "commit new anchor")
	}

	e.idx.ReplaceAll(newEntries)
	e.consumedSize = dstOffset
	e.freeSpaceOffset = dstOffset
	e.areas.Swap(newVersion)

	e.log.Infow("compaction complete", "newVersion", newVersion, "consumedSize", e.consumedSize)
	return nil
}
