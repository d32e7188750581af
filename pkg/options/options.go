// Package options provides data structures and functions for configuring a
// flashkv store, following a functional-options pattern: OptionFunc,
// With... constructors, and NewDefaultOptions for the zero-configuration
// case.
package options

import (
	"time"

	"go.uber.org/zap"

	"github.com/iamNilotpal/flashkv/pkg/logger"
)

// Options defines the configurable parameters for a flashkv store.
type Options struct {
	// MaxKeySize is the exclusive upper bound on key length in bytes:
	// 0 < key_size < MaxKeySize.
	//
	// Default: 64
	MaxKeySize uint16 `json:"maxKeySize"`

	// LockTimeout bounds how long an ordinary operation waits to acquire
	// the instance lock under an RTOS-style timed Locker. Close always
	// waits unboundedly regardless of this value.
	//
	// Default: 50ms
	LockTimeout time.Duration `json:"lockTimeout"`

	// TransactionBufferFloor is the minimum size of the instance's single
	// transaction buffer, before rounding up to a multiple of the device's
	// program size.
	//
	// Default: 128 bytes
	TransactionBufferFloor uint32 `json:"transactionBufferFloor"`

	// InitialIndexCapacity is the number of RAM-index entries allocated at
	// Open, before any on-demand doubling.
	//
	// Default: 32
	InitialIndexCapacity int `json:"initialIndexCapacity"`

	// Logger receives structured logs from every subsystem. If nil, a
	// no-op logger is used.
	Logger *zap.SugaredLogger `json:"-"`
}

// OptionFunc is a function that modifies a store's configuration.
type OptionFunc func(*Options)

// WithMaxKeySize overrides the maximum key length.
func WithMaxKeySize(size uint16) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.MaxKeySize = size
		}
	}
}

// WithLockTimeout overrides the instance-lock acquire timeout for ordinary
// operations.
func WithLockTimeout(d time.Duration) OptionFunc {
	return func(o *Options) {
		if d > 0 {
			o.LockTimeout = d
		}
	}
}

// WithTransactionBufferFloor overrides the minimum transaction buffer size.
func WithTransactionBufferFloor(size uint32) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.TransactionBufferFloor = size
		}
	}
}

// WithInitialIndexCapacity overrides the initial RAM-index capacity.
func WithInitialIndexCapacity(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.InitialIndexCapacity = n
		}
	}
}

// WithLogger injects a structured logger. Passing nil is a no-op; use
// WithNopLogger to explicitly silence logging.
func WithLogger(log *zap.SugaredLogger) OptionFunc {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}

// WithServiceLogger builds and injects a logger.New(service) logger.
func WithServiceLogger(service string) OptionFunc {
	return func(o *Options) {
		o.Logger = logger.New(service)
	}
}

// WithNopLogger silences logging.
func WithNopLogger() OptionFunc {
	return func(o *Options) {
		o.Logger = logger.Nop()
	}
}
