// Package flashkv is the public entry point to the store: it wires the
// instance lock (pkg/lock) around internal/engine's mutation engine so
// that every exported operation acquires the lock on entry and releases it
// on every exit path, and exposes the full operation set
// (Open/Write/Read/Exists/Delete/Reset/Size/RemainingSize/Len/Close) as a
// single Store handle.
package flashkv

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/iamNilotpal/flashkv/internal/engine"
	"github.com/iamNilotpal/flashkv/pkg/alloc"
	"github.com/iamNilotpal/flashkv/pkg/device"
	"github.com/iamNilotpal/flashkv/pkg/errors"
	"github.com/iamNilotpal/flashkv/pkg/lock"
	"github.com/iamNilotpal/flashkv/pkg/options"
)

// Store is a handle to one open flashkv instance: a block-device region,
// its engine, and the lock serializing every call against it. The zero
// value is not ready to use; construct one with New (the common case) or
// call Open on a freshly zero-valued Store (a reusable-handle calling
// convention where calling Open twice without an intervening Close is an
// error).
type Store struct {
	eng         *engine.Engine
	dev         device.BlockDevice
	lock        lock.Locker
	lockTimeout time.Duration

	opened atomic.Bool
}

// Config holds everything Open needs to bring up a Store.
type Config struct {
	// Device is the block device backing this store. Required.
	Device device.BlockDevice

	// StartAddr and Length describe the backing region. Both must be
	// aligned to the device's erase-sector size at StartAddr, and the
	// region must span a non-zero, even number of erase sectors.
	StartAddr uint32
	Length    uint32

	// Options configures key-size limits, lock timeout, buffer sizing and
	// logging. The zero value is replaced with options.NewDefaultOptions().
	Options options.Options

	// Allocator overrides the heap-allocation collaborator; nil uses
	// alloc.GC{}.
	Allocator alloc.Allocator

	// Locker overrides the mutual-exclusion collaborator; nil uses a plain
	// lock.Mutex. Pass &lock.NoOp{} to run without an RTOS-style timed
	// lock, e.g. when the caller already serializes access externally.
	Locker lock.Locker
}

// New opens a fresh Store in one call, the common case for callers that
// don't need the original C API's reusable-handle, call-Open-twice-is-an-
// error shape.
func New(ctx context.Context, cfg Config) (*Store, error) {
	s := &Store{}
	if err := s.Open(ctx, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Open brings up s against cfg. Calling Open a second time on the same
// Store without an intervening Close reports CodeAlreadyInitialized rather
// than silently leaking the previous engine.
func (s *Store) Open(ctx context.Context, cfg Config) error {
	if !s.opened.CompareAndSwap(false, true) {
		return errors.New(nil, errors.CodeAlreadyInitialized, "store already initialized")
	}

	opts := cfg.Options
	if opts.MaxKeySize == 0 {
		opts = options.NewDefaultOptions()
	}
	if opts.LockTimeout == 0 {
		opts.LockTimeout = options.DefaultLockTimeout
	}

	eng, err := engine.New(ctx, engine.Config{
		Device:    cfg.Device,
		StartAddr: cfg.StartAddr,
		Length:    cfg.Length,
		Options:   opts,
		Allocator: cfg.Allocator,
	})
	if err != nil {
		s.opened.Store(false)
		return err
	}

	s.eng = eng
	s.dev = cfg.Device
	s.lockTimeout = opts.LockTimeout
	s.lock = cfg.Locker
	if s.lock == nil {
		s.lock = lock.NewMutex()
	}
	return nil
}

// acquire locks s for an ordinary operation, bounded by the configured
// lock timeout under an RTOS-style timed Locker (default 50ms).
func (s *Store) acquire(ctx context.Context) (context.CancelFunc, error) {
	lctx, cancel := lock.WithTimeout(ctx, s.lockTimeout)
	if err := s.lock.Lock(lctx); err != nil {
		cancel()
		return nil, errors.New(err, errors.CodeDevice, "lock acquisition timed out")
	}
	return cancel, nil
}

// Write adds or updates the value stored under key.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Write(ctx, key, data)
}

// Read returns a byte-identical copy of the value last written for key, or
// CodeItemNotFound / CodeInvalidData.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Read(ctx, key)
}

// Exists is the key-existence probe form (read with both output pointers
// nil), exposed directly rather than only via the two-nil-pointer calling
// convention.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Exists(ctx, key)
}

// Delete removes key. It is idempotent: a no-op when key is already absent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Delete(ctx, key)
}

// Reset clears every live key and leaves only a fresh anchor.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Reset(ctx)
}

// Size returns the active area's consumed_size. It does not touch the
// device, but it still takes the instance lock (with the same acquire
// timeout as every other operation) to avoid racing a concurrent
// mutation's in-flight counter update.
func (s *Store) Size(ctx context.Context) (uint32, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Size(), nil
}

// RemainingSize returns area_size - consumed_size for the active area.
func (s *Store) RemainingSize(ctx context.Context) (uint32, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.RemainingSize(), nil
}

// Len reports the number of live keys.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	cancel, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer s.lock.Unlock()
	return s.eng.Len(), nil
}

// Close acquires the lock with an unbounded wait so teardown can never be
// starved by the configured ordinary-operation timeout, marks the engine
// closed under the lock, and closes the block device too if it owns a
// resource outside the core read/program/erase contract (pkg/device.File's
// open file handle). Both teardown steps can fail independently (the
// engine if it was already closed, the device on its own I/O error), so
// their errors are combined with multierr rather than the second silently
// shadowing the first.
func (s *Store) Close() error {
	if !s.opened.CompareAndSwap(true, false) {
		return errors.New(nil, errors.CodeClosed, "store is not open")
	}

	// deinit's wait is unbounded: pass context.Background() rather than
	// the timed WithTimeout path used by every other operation.
	if err := s.lock.Lock(context.Background()); err != nil {
		return errors.New(err, errors.CodeDevice, "lock acquisition failed during close")
	}
	defer s.lock.Unlock()

	err := s.eng.Close()
	if closer, ok := s.dev.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

// checkOpen reports CodeClosed if Open has not yet succeeded or Close has
// already run; it does not need the lock since opened only ever
// transitions false→true in Open and true→false in Close, both under
// CompareAndSwap.
func (s *Store) checkOpen() error {
	if !s.opened.Load() {
		return errors.New(nil, errors.CodeClosed, "store is not open")
	}
	return nil
}
