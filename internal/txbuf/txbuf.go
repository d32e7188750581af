// Package txbuf implements the single instance-owned transaction buffer:
// writes are aggregated into program-size-aligned bursts instead of
// issuing one Program call per byte, and CRC reads are streamed through
// the same buffer instead of materializing an entire record in memory
// before checksumming it.
package txbuf

import (
	"context"
	"fmt"

	"github.com/iamNilotpal/flashkv/internal/crc16"
	"github.com/iamNilotpal/flashkv/pkg/device"
)

// Buffer is the instance's single transaction buffer. It is reused across
// every append, flush and streamed read the engine performs; exactly one
// write session or one read stream may be in flight at a time, matching
// the single-threaded-per-instance-lock model callers are expected to run
// under.
type Buffer struct {
	dev  device.BlockDevice
	buf  []byte
	fill int

	// writeAddr is the destination address the next Flush (or the next
	// buffer-full burst) will Program to.
	writeAddr   uint32
	programSize uint32
}

// padByte fills alignment padding at the tail of a flush. 0xFF matches the
// erased state of the areas this buffer writes into, so padding never
// clears a bit outside the record's real content.
const padByte = 0xFF

// New allocates a transaction buffer sized to
// align_up(max(floor, max(programSize, readSize)), programSize).
func New(dev device.BlockDevice, floor, readSize, programSize uint32) (*Buffer, error) {
	if programSize == 0 {
		return nil, fmt.Errorf("txbuf: programSize must be non-zero")
	}
	size := floor
	if readSize > size {
		size = readSize
	}
	if programSize > size {
		size = programSize
	}
	size = device.AlignUp(size, programSize)

	return &Buffer{
		dev:         dev,
		buf:         make([]byte, size),
		programSize: programSize,
	}, nil
}

// Size returns the buffer's total capacity in bytes.
func (b *Buffer) Size() int { return len(b.buf) }

// BeginWrite starts a new buffered-append session targeted at addr. Any
// state left over from a prior, unflushed session is discarded: callers
// must always pair BeginWrite with a terminating Flush.
func (b *Buffer) BeginWrite(addr uint32) {
	b.writeAddr = addr
	b.fill = 0
}

// Write appends data to the current session, flushing full buffer-sized,
// program-size-aligned bursts to the device as the buffer fills.
func (b *Buffer) Write(ctx context.Context, data []byte) error {
	for len(data) > 0 {
		n := copy(b.buf[b.fill:], data)
		b.fill += n
		data = data[n:]

		if b.fill == len(b.buf) {
			if err := b.flushFull(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushFull programs a completely filled buffer and advances writeAddr.
func (b *Buffer) flushFull(ctx context.Context) error {
	if err := b.dev.Program(ctx, b.writeAddr, b.buf); err != nil {
		return fmt.Errorf("txbuf: program at %#x: %w", b.writeAddr, err)
	}
	b.writeAddr += uint32(len(b.buf))
	b.fill = 0
	return nil
}

// Flush pads any residual bytes up to the next program-size boundary and
// programs the partial burst, ending the write session. It is a no-op if
// nothing is pending.
func (b *Buffer) Flush(ctx context.Context) error {
	if b.fill == 0 {
		return nil
	}

	padded := device.AlignUp(uint32(b.fill), b.programSize)
	for i := b.fill; i < int(padded); i++ {
		b.buf[i] = padByte
	}

	if err := b.dev.Program(ctx, b.writeAddr, b.buf[:padded]); err != nil {
		return fmt.Errorf("txbuf: flush program at %#x: %w", b.writeAddr, err)
	}
	b.writeAddr += padded
	b.fill = 0
	return nil
}

// StreamCRC feeds length bytes starting at addr through the running CRC,
// reading them through this buffer in chunks so the caller never needs a
// length-sized allocation of its own.
func (b *Buffer) StreamCRC(ctx context.Context, addr, length uint32, crc uint16) (uint16, error) {
	for length > 0 {
		chunk := uint32(len(b.buf))
		if chunk > length {
			chunk = length
		}
		if err := b.dev.Read(ctx, addr, b.buf[:chunk]); err != nil {
			return 0, fmt.Errorf("txbuf: stream read at %#x: %w", addr, err)
		}
		crc = crc16.Update(crc, b.buf[:chunk])
		addr += chunk
		length -= chunk
	}
	return crc, nil
}

// StreamCopy copies length bytes from srcAddr to dstAddr through this
// buffer, used by the compactor to move live records into the spare area
// without holding an entire record in memory. length and dstAddr must
// already be multiples of the destination's program size (true for every
// record_size the codec produces).
func (b *Buffer) StreamCopy(ctx context.Context, srcAddr, dstAddr, length uint32) error {
	chunkSize := len(b.buf)
	for length > 0 {
		n := uint32(chunkSize)
		if n > length {
			n = length
		}
		if err := b.dev.Read(ctx, srcAddr, b.buf[:n]); err != nil {
			return fmt.Errorf("txbuf: copy read at %#x: %w", srcAddr, err)
		}
		if err := b.dev.Program(ctx, dstAddr, b.buf[:n]); err != nil {
			return fmt.Errorf("txbuf: copy program at %#x: %w", dstAddr, err)
		}
		srcAddr += n
		dstAddr += n
		length -= n
	}
	return nil
}

// ReadAt is a thin passthrough for one-shot, unbuffered reads (header
// probes, key-equality checks) that do not need buffer-chunked streaming.
func (b *Buffer) ReadAt(ctx context.Context, addr uint32, buf []byte) error {
	return b.dev.Read(ctx, addr, buf)
}
