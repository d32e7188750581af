package errors

// Code is a stable, external-compatible classification for flashkv errors.
type Code string

const (
	// CodeBadParam covers invalid arguments: a nil or empty key, a key at
	// or above MaxKeySize, or a data/size pair where data is nil but size
	// is non-zero.
	CodeBadParam Code = "BAD_PARAM"

	// CodeAlignment covers a start address or length not aligned to the
	// device's erase-sector granularity, or an odd sector count across the
	// two areas.
	CodeAlignment Code = "ALIGNMENT"

	// CodeMemAlloc covers a failed allocation of the initial RAM index or
	// of a RAM-index growth through the Allocator. The transaction buffer
	// is allocated directly by the Go runtime, not through the Allocator.
	CodeMemAlloc Code = "MEM_ALLOC"

	// CodeInvalidData covers a CRC mismatch, a magic value that is neither
	// a valid record nor the erased pattern, or an on-media key size
	// outside (0, MaxKeySize).
	CodeInvalidData Code = "INVALID_DATA"

	// CodeErasedData names the erased (unwritten) region outcome. The
	// scanner and the anchor probe handle that outcome internally (end of
	// log, or an area without a valid anchor), so no operation currently
	// returns this code.
	CodeErasedData Code = "ERASED_DATA"

	// CodeItemNotFound covers a key absent from the RAM index, or a
	// key-equality check that failed at a hash match.
	CodeItemNotFound Code = "ITEM_NOT_FOUND"

	// CodeStorageFull covers live data that cannot fit the area even after
	// compaction reclaims every dead byte.
	CodeStorageFull Code = "STORAGE_FULL"

	// CodeDevice wraps an error the block device returned verbatim.
	CodeDevice Code = "DEVICE_ERROR"

	// CodeAlreadyInitialized guards against calling Open/init twice on the
	// same handle without an intervening Close.
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"

	// CodeClosed covers operations attempted after Close.
	CodeClosed Code = "CLOSED"
)
