package device

import (
	"context"
	"fmt"
)

// Memory is an in-RAM BlockDevice that simulates a NOR-flash-like region:
// uniform read/program/erase granularity across the whole range, an erased
// state of all-0xFF, and program operations that may only clear bits (never
// set a 0 bit back to 1) until the containing sector is erased again. It
// exists so the core and its tests can run without a physical flash part or
// a backing file, and so fault-injection scenarios can simulate power loss
// at an exact byte offset.
type Memory struct {
	buf         []byte
	readSize    uint32
	programSize uint32
	eraseSize   uint32

	// FailAfterProgram, if non-zero, causes the Nth successful Program call
	// (1-indexed) to still write its bytes but report an error afterward,
	// simulating power loss that lands mid-write. It is consumed once.
	FailAfterProgram int
	programCount     int
}

// NewMemory allocates a Memory device of the given size, erased to 0xFF.
func NewMemory(size, readSize, programSize, eraseSize uint32) *Memory {
	m := &Memory{
		buf:         make([]byte, size),
		readSize:    readSize,
		programSize: programSize,
		eraseSize:   eraseSize,
	}
	for i := range m.buf {
		m.buf[i] = 0xFF
	}
	return m
}

func (m *Memory) Read(_ context.Context, addr uint32, buf []byte) error {
	if int(addr)+len(buf) > len(m.buf) {
		return fmt.Errorf("device: read out of range at %#x len %d", addr, len(buf))
	}
	copy(buf, m.buf[addr:int(addr)+len(buf)])
	return nil
}

func (m *Memory) Program(_ context.Context, addr uint32, data []byte) error {
	if m.programSize != 0 && (addr%m.programSize != 0 || uint32(len(data))%m.programSize != 0) {
		return fmt.Errorf("device: program misaligned at %#x len %d (granularity %d)", addr, len(data), m.programSize)
	}
	if int(addr)+len(data) > len(m.buf) {
		return fmt.Errorf("device: program out of range at %#x len %d", addr, len(data))
	}
	for i, b := range data {
		// Flash semantics: programming can only clear bits.
		m.buf[int(addr)+i] &= b
	}

	m.programCount++
	if m.FailAfterProgram != 0 && m.programCount == m.FailAfterProgram {
		m.FailAfterProgram = 0
		return fmt.Errorf("device: simulated power loss during program at %#x", addr)
	}
	return nil
}

func (m *Memory) Erase(_ context.Context, addr uint32, length uint32) error {
	if m.eraseSize != 0 && (addr%m.eraseSize != 0 || length%m.eraseSize != 0) {
		return fmt.Errorf("device: erase misaligned at %#x len %d (granularity %d)", addr, length, m.eraseSize)
	}
	if int(addr)+int(length) > len(m.buf) {
		return fmt.Errorf("device: erase out of range at %#x len %d", addr, length)
	}
	for i := addr; i < addr+length; i++ {
		m.buf[i] = 0xFF
	}
	return nil
}

func (m *Memory) ReadSize(context.Context, uint32) (uint32, error)    { return m.readSize, nil }
func (m *Memory) ProgramSize(context.Context, uint32) (uint32, error) { return m.programSize, nil }
func (m *Memory) EraseSize(context.Context, uint32) (uint32, error)   { return m.eraseSize, nil }

// Len returns the total size of the simulated region, for test setup.
func (m *Memory) Len() uint32 { return uint32(len(m.buf)) }

// ProgramCount returns the number of successful Program calls so far, so
// tests can arm FailAfterProgram relative to the current call count instead
// of a hardcoded absolute number.
func (m *Memory) ProgramCount() int { return m.programCount }

// Snapshot returns a copy of the raw bytes, for tests that want to corrupt
// a specific byte and reinitialize a store against the mutated copy.
func (m *Memory) Snapshot() []byte {
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out
}

// CorruptByte flips one bit of the byte at addr, simulating bit-rot or a
// torn write landing on already-committed data.
func (m *Memory) CorruptByte(addr uint32) {
	m.buf[addr] ^= 0x01
}
