// Package area implements the two-area "ping-pong" crash-safety protocol:
// the backing region is split into two equal areas, each beginning with an
// anchor record carrying a version; the area with the higher version
// (wraparound-aware) is active, the other is spare and is fully erased
// before the next compaction writes into it.
package area

import (
	"context"
	"fmt"

	"github.com/iamNilotpal/flashkv/internal/record"
	"github.com/iamNilotpal/flashkv/internal/txbuf"
	"github.com/iamNilotpal/flashkv/pkg/device"
)

// Area describes one half of the backing region.
type Area struct {
	Addr uint32
	Size uint32
}

// Manager owns the two areas and tracks which is active.
type Manager struct {
	dev        device.BlockDevice
	tx         *txbuf.Buffer
	areas      [2]Area
	activeIdx  int
	version    uint16
	maxKeySize uint16
}

// New describes the two equal areas carved out of [startAddr, startAddr+length).
func New(dev device.BlockDevice, tx *txbuf.Buffer, startAddr, length uint32, maxKeySize uint16) *Manager {
	half := length / 2
	return &Manager{
		dev: dev,
		tx:  tx,
		areas: [2]Area{
			{Addr: startAddr, Size: half},
			{Addr: startAddr + half, Size: half},
		},
		maxKeySize: maxKeySize,
	}
}

// Active returns the currently active area.
func (m *Manager) Active() Area { return m.areas[m.activeIdx] }

// Spare returns the currently spare area.
func (m *Manager) Spare() Area { return m.areas[1-m.activeIdx] }

// Version returns the active area's current anchor version.
func (m *Manager) Version() uint16 { return m.version }

// SetActive forces which area is active and its version, used once Select
// or a fresh-initialization has decided.
func (m *Manager) SetActive(idx int, version uint16) {
	m.activeIdx = idx
	m.version = version
}

// Swap flips the active/spare roles, used by the compactor once the new
// anchor has been committed to the (former) spare area.
func (m *Manager) Swap(newVersion uint16) {
	m.activeIdx = 1 - m.activeIdx
	m.version = newVersion
}

// probeResult is the outcome of reading one area's anchor record.
type probeResult struct {
	valid   bool
	version uint16
}

// probe reads and validates a's anchor record: it must decode successfully,
// carry the reserved key record.AnchorKey, and pass CRC.
func (m *Manager) probe(ctx context.Context, a Area, programSize uint32) (probeResult, error) {
	recSize := record.Size(uint32(len(record.AnchorKey)), record.AnchorPayloadSize, programSize)
	buf := make([]byte, recSize)
	if err := m.dev.Read(ctx, a.Addr, buf); err != nil {
		return probeResult{}, fmt.Errorf("area: probe read at %#x: %w", a.Addr, err)
	}

	h, outcome := record.DecodeHeader(buf[:record.HeaderSize], m.maxKeySize)
	if outcome != record.OutcomeValid {
		return probeResult{valid: false}, nil
	}

	keyStart := record.HeaderSize
	keyEnd := keyStart + int(h.KeySize)
	if keyEnd > len(buf) || string(buf[keyStart:keyEnd]) != record.AnchorKey {
		return probeResult{valid: false}, nil
	}

	dataStart := keyEnd
	dataEnd := dataStart + int(h.DataSize)
	if h.DataSize != record.AnchorPayloadSize || dataEnd > len(buf) {
		return probeResult{valid: false}, nil
	}

	crc := record.CRC(h, buf[keyStart:keyEnd], buf[dataStart:dataEnd])
	if crc != h.CRC {
		return probeResult{valid: false}, nil
	}

	anchor := record.DecodeAnchorPayload(buf[dataStart:dataEnd])
	return probeResult{valid: true, version: anchor.Version}, nil
}

// Select probes both areas and decides which is active: both valid picks
// the higher version (wraparound-aware); exactly one valid makes it active;
// neither valid initializes a fresh store with area 0 active at version 1.
func (m *Manager) Select(ctx context.Context, programSize, eraseSize uint32) error {
	r0, err := m.probe(ctx, m.areas[0], programSize)
	if err != nil {
		return err
	}
	r1, err := m.probe(ctx, m.areas[1], programSize)
	if err != nil {
		return err
	}

	switch {
	case r0.valid && r1.valid:
		if record.VersionIsNewer(r1.version, r0.version) {
			m.SetActive(1, r1.version)
		} else {
			m.SetActive(0, r0.version)
		}
	case r0.valid:
		m.SetActive(0, r0.version)
	case r1.valid:
		m.SetActive(1, r1.version)
	default:
		if err := m.EraseArea(ctx, m.areas[0], eraseSize); err != nil {
			return err
		}
		if err := m.WriteAnchor(ctx, m.areas[0], 1, programSize); err != nil {
			return err
		}
		m.SetActive(0, 1)
	}
	return nil
}

// EraseArea erases a's non-first sectors, then its first sector, so a crash
// mid-erase never leaves a spurious valid anchor sitting on stale data.
func (m *Manager) EraseArea(ctx context.Context, a Area, eraseSize uint32) error {
	if eraseSize == 0 || eraseSize > a.Size {
		return fmt.Errorf("area: invalid erase granularity %d for area size %d", eraseSize, a.Size)
	}
	if a.Size%eraseSize != 0 {
		return fmt.Errorf("area: area size %d is not a whole number of erase sectors of %d", a.Size, eraseSize)
	}

	if a.Size > eraseSize {
		if err := m.dev.Erase(ctx, a.Addr+eraseSize, a.Size-eraseSize); err != nil {
			return fmt.Errorf("area: erase non-first sectors of %#x: %w", a.Addr, err)
		}
	}
	if err := m.dev.Erase(ctx, a.Addr, eraseSize); err != nil {
		return fmt.Errorf("area: erase first sector of %#x: %w", a.Addr, err)
	}
	return nil
}

// WriteAnchor encodes and programs a's anchor record at its own start
// address, with the given version.
func (m *Manager) WriteAnchor(ctx context.Context, a Area, version uint16, programSize uint32) error {
	key := []byte(record.AnchorKey)
	payload := record.EncodeAnchorPayload(record.Anchor{Version: version, FormatVersion: 0})

	h := record.Header{
		FormatVersion: record.FormatVersion,
		HeaderSize:    record.HeaderSize,
		KeySize:       uint16(len(key)),
		DataSize:      uint32(len(payload)),
	}
	h.CRC = record.CRC(h, key, payload)

	m.tx.BeginWrite(a.Addr)
	if err := m.tx.Write(ctx, record.EncodeHeader(h)); err != nil {
		return err
	}
	if err := m.tx.Write(ctx, key); err != nil {
		return err
	}
	if err := m.tx.Write(ctx, payload); err != nil {
		return err
	}
	return m.tx.Flush(ctx)
}

// AnchorRecordSize returns the padded size of an anchor record at the given
// program granularity.
func AnchorRecordSize(programSize uint32) uint32 {
	return record.Size(uint32(len(record.AnchorKey)), record.AnchorPayloadSize, programSize)
}
