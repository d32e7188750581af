// Package index implements the sorted, in-RAM directory of live records:
// each entry carries a key's CRC-16 hash and the byte offset of its record
// within the active area, kept sorted by hash so lookup can stop early
// instead of scanning every entry.
//
// A sorted array is used rather than a hash map because a map cannot
// satisfy the ">=" / ">" early-termination scan or the "first >= slot"
// insertion rule this package's Lookup/InsertAt need, and it cannot report
// a stable position for InsertAt/RemoveAt/UpdateAt.
package index

import (
	"context"

	"github.com/iamNilotpal/flashkv/pkg/alloc"
)

// entrySize is the logical footprint (hash + offset) the package reports
// to its Allocator when growing. Go's runtime manages the actual backing
// array; this only gates growth through the supplied Allocator so a
// bounded-heap simulation can fail it deterministically.
const entrySize = 6 // uint16 hash + uint32 offset

// Entry is one RAM-index record: a key's hash and where its record lives
// in the active area.
type Entry struct {
	Hash   uint16
	Offset uint32
}

// KeyEqualFunc verifies whether the on-media record at offset carries the
// exact key the caller is looking up, resolving hash collisions. It is
// supplied by the caller (the scanner/engine) because the index package
// has no notion of how to read a record's key back from media.
type KeyEqualFunc func(ctx context.Context, offset uint32) (bool, error)

// Index is the sorted RAM directory of live records in the active area.
type Index struct {
	alloc   alloc.Allocator
	entries []Entry
	cap     int
}

// New allocates an Index with the given initial capacity (default: 32).
// Capacity is tracked independently of Go's slice growth so that doubling
// and its allocation-failure path exactly matches the grow-on-insert rule:
// capacity doubles when the index is full.
func New(allocator alloc.Allocator, initialCapacity int) (*Index, error) {
	if allocator == nil {
		allocator = alloc.GC{}
	}
	if _, err := allocator.Bytes(initialCapacity * entrySize); err != nil {
		return nil, err
	}
	return &Index{
		alloc:   allocator,
		entries: make([]Entry, 0, initialCapacity),
		cap:     initialCapacity,
	}, nil
}

// Len returns the number of live entries.
func (x *Index) Len() int { return len(x.entries) }

// Cap returns the current logical capacity (before the next doubling).
func (x *Index) Cap() int { return x.cap }

// At returns the entry at pos.
func (x *Index) At(pos int) Entry { return x.entries[pos] }

// All returns the live entries in sorted-by-hash order. The returned slice
// must not be mutated by the caller.
func (x *Index) All() []Entry { return x.entries }

// Reset clears every entry without shrinking capacity, used by the store's
// Reset operation.
func (x *Index) Reset() {
	x.entries = x.entries[:0]
}

// ReplaceAll atomically swaps the live entry set, used by the compactor
// once it has finished copying every surviving record into the spare area
// at new offsets. entries must already be sorted by Hash.
func (x *Index) ReplaceAll(entries []Entry) {
	x.entries = x.entries[:0]
	x.entries = append(x.entries, entries...)
}

// Lookup performs a sorted scan: advance while
// index[i].hash < hash, then for every entry with index[i].hash == hash,
// call keyEquals to resolve the collision; stop at the first match or at
// the first index[i].hash > hash. It returns the position (an existing
// match, or the first insertion slot where index[i].hash >= hash, or
// Len() if hash sorts after every entry), whether a match was found, and
// the matching entry when found.
func (x *Index) Lookup(ctx context.Context, hash uint16, keyEquals KeyEqualFunc) (pos int, found bool, entry Entry, err error) {
	i := 0
	for i < len(x.entries) && x.entries[i].Hash < hash {
		i++
	}
	for i < len(x.entries) && x.entries[i].Hash == hash {
		ok, kerr := keyEquals(ctx, x.entries[i].Offset)
		if kerr != nil {
			return i, false, Entry{}, kerr
		}
		if ok {
			return i, true, x.entries[i], nil
		}
		i++
	}
	return i, false, Entry{}, nil
}

// EnsureCapacity grows the index (doubling) if it is currently full, so a
// subsequent InsertAt cannot fail on allocation. Callers that must fail
// before touching media on an allocation failure call this ahead of the
// media write, then InsertAt afterwards once the write has succeeded.
func (x *Index) EnsureCapacity() error {
	if len(x.entries) == x.cap {
		return x.grow()
	}
	return nil
}

// InsertAt inserts e at pos, shifting the tail right, growing capacity
// (doubling) first if the index is full.
func (x *Index) InsertAt(pos int, e Entry) error {
	if err := x.EnsureCapacity(); err != nil {
		return err
	}
	x.entries = append(x.entries, Entry{})
	copy(x.entries[pos+1:], x.entries[pos:len(x.entries)-1])
	x.entries[pos] = e
	return nil
}

// RemoveAt removes the entry at pos, shifting the tail left.
func (x *Index) RemoveAt(pos int) {
	x.entries = append(x.entries[:pos], x.entries[pos+1:]...)
}

// UpdateAt overwrites the entry at pos in place (same hash bucket, new
// offset — used when a key is superseded by an update, or by a later record
// for the same key during the startup scan, at the same sorted position).
func (x *Index) UpdateAt(pos int, e Entry) {
	x.entries[pos] = e
}

func (x *Index) grow() error {
	newCap := x.cap * 2
	if _, err := x.alloc.Bytes(newCap * entrySize); err != nil {
		return err
	}
	x.cap = newCap
	return nil
}
