package device

import (
	"bytes"
	"context"
	"fmt"
	"os"

	natomic "github.com/natefinch/atomic"
)

// File is a BlockDevice backed by a single regular file, standing in for a
// memory-mapped or serial-flash part on hosts that have no raw flash
// access. It is the on-disk analogue of Memory and is meant for local
// development and integration tests that want writes to survive process
// restarts, not for production flash access.
type File struct {
	path        string
	f           *os.File
	readSize    uint32
	programSize uint32
	eraseSize   uint32
}

// OpenFile opens (creating if necessary) path as a File block device of the
// given size. If the file does not yet exist, or its size differs from
// size (larger or smaller), it is atomically replaced with one of exactly size bytes, erased to 0xFF, so
// that a crash during the initial allocation never leaves a partially sized
// region that later reads could misinterpret as valid flash content.
func OpenFile(path string, size, readSize, programSize, eraseSize uint32) (*File, error) {
	info, statErr := os.Stat(path)
	needsInit := statErr != nil || info.Size() != int64(size)

	if needsInit {
		erased := bytes.Repeat([]byte{0xFF}, int(size))
		if err := natomic.WriteFile(path, bytes.NewReader(erased)); err != nil {
			return nil, fmt.Errorf("device: allocate backing file %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("device: open backing file %s: %w", path, err)
	}

	return &File{
		path:        path,
		f:           f,
		readSize:    readSize,
		programSize: programSize,
		eraseSize:   eraseSize,
	}, nil
}

func (d *File) Read(_ context.Context, addr uint32, buf []byte) error {
	n, err := d.f.ReadAt(buf, int64(addr))
	if err != nil {
		return fmt.Errorf("device: read at %#x: %w", addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("device: short read at %#x: got %d want %d", addr, n, len(buf))
	}
	return nil
}

func (d *File) Program(_ context.Context, addr uint32, data []byte) error {
	if d.programSize != 0 && (addr%d.programSize != 0 || uint32(len(data))%d.programSize != 0) {
		return fmt.Errorf("device: program misaligned at %#x len %d (granularity %d)", addr, len(data), d.programSize)
	}

	// Flash semantics: a program can only clear bits that are currently
	// set. Read-modify-AND-write so repeated programs of overlapping
	// ranges behave like real NOR flash rather than silently overwriting.
	existing := make([]byte, len(data))
	if _, err := d.f.ReadAt(existing, int64(addr)); err != nil {
		return fmt.Errorf("device: program read-modify at %#x: %w", addr, err)
	}
	merged := make([]byte, len(data))
	for i := range data {
		merged[i] = existing[i] & data[i]
	}

	if _, err := d.f.WriteAt(merged, int64(addr)); err != nil {
		return fmt.Errorf("device: program at %#x: %w", addr, err)
	}
	return d.f.Sync()
}

func (d *File) Erase(_ context.Context, addr uint32, length uint32) error {
	if d.eraseSize != 0 && (addr%d.eraseSize != 0 || length%d.eraseSize != 0) {
		return fmt.Errorf("device: erase misaligned at %#x len %d (granularity %d)", addr, length, d.eraseSize)
	}
	erased := bytes.Repeat([]byte{0xFF}, int(length))
	if _, err := d.f.WriteAt(erased, int64(addr)); err != nil {
		return fmt.Errorf("device: erase at %#x: %w", addr, err)
	}
	return d.f.Sync()
}

func (d *File) ReadSize(context.Context, uint32) (uint32, error)    { return d.readSize, nil }
func (d *File) ProgramSize(context.Context, uint32) (uint32, error) { return d.programSize, nil }
func (d *File) EraseSize(context.Context, uint32) (uint32, error)   { return d.eraseSize, nil }

// Close releases the underlying file handle.
func (d *File) Close() error {
	return d.f.Close()
}
