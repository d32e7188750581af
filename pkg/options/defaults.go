package options

import "time"

const (
	// DefaultMaxKeySize is the default exclusive upper bound on key length.
	DefaultMaxKeySize uint16 = 64

	// DefaultLockTimeout is the default instance-lock acquire timeout for
	// ordinary operations under an RTOS.
	DefaultLockTimeout = 50 * time.Millisecond

	// DefaultTransactionBufferFloor is the minimum transaction buffer size
	// before rounding up to the device's program-size granularity.
	DefaultTransactionBufferFloor uint32 = 128

	// DefaultInitialIndexCapacity is the RAM index's starting capacity
	// before any on-demand doubling.
	DefaultInitialIndexCapacity = 32
)

// NewDefaultOptions returns the default configuration for a flashkv store.
func NewDefaultOptions() Options {
	return Options{
		MaxKeySize:             DefaultMaxKeySize,
		LockTimeout:            DefaultLockTimeout,
		TransactionBufferFloor: DefaultTransactionBufferFloor,
		InitialIndexCapacity:   DefaultInitialIndexCapacity,
	}
}
