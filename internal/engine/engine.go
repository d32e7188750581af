// Package engine is the mutation engine and startup-recovery coordinator:
// it owns the area manager, the RAM index and the single transaction
// buffer, and implements add/update/delete, the startup scan, and
// compaction against them under one set of invariants.
//
// The three concerns are kept as separate files (engine.go, scanner.go,
// compaction.go, mutate.go, record_io.go) rather than separate packages:
// all of them read and mutate the same unexported Engine fields
// (consumedSize, freeSpaceOffset, the RAM index, the area manager's
// active/spare roles) under a single instance lock. Splitting them into
// packages would force that state to be exported across package
// boundaries for no benefit, since nothing outside this package ever
// needs to see it mid-operation.
package engine

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iamNilotpal/flashkv/internal/area"
	"github.com/iamNilotpal/flashkv/internal/index"
	"github.com/iamNilotpal/flashkv/internal/txbuf"
	"github.com/iamNilotpal/flashkv/pkg/alloc"
	"github.com/iamNilotpal/flashkv/pkg/device"
	"github.com/iamNilotpal/flashkv/pkg/errors"
	"github.com/iamNilotpal/flashkv/pkg/logger"
	"github.com/iamNilotpal/flashkv/pkg/options"
)

// Engine coordinates the area manager, RAM index and transaction buffer
// backing one open store instance.
type Engine struct {
	dev   device.BlockDevice
	tx    *txbuf.Buffer
	areas *area.Manager
	idx   *index.Index
	alloc alloc.Allocator
	log   *zap.SugaredLogger

	closed atomic.Bool

	maxKeySize  uint16
	programSize uint32
	readSize    uint32
	eraseSize   uint32

	consumedSize    uint32
	freeSpaceOffset uint32
}

// Config holds everything New needs to bring up an Engine.
type Config struct {
	Device    device.BlockDevice
	StartAddr uint32
	Length    uint32
	Options   options.Options
	Allocator alloc.Allocator
}

// New validates the region geometry, allocates the transaction buffer and
// RAM index, selects the active area and scans it into memory.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Device == nil {
		return nil, errors.New(nil, errors.CodeBadParam, "device is required")
	}

	eraseSize, err := cfg.Device.EraseSize(ctx, cfg.StartAddr)
	if err != nil {
		return nil, errors.Wrap(err, "query erase size")
	}
	if eraseSize == 0 || cfg.StartAddr%eraseSize != 0 || cfg.Length%eraseSize != 0 {
		return nil, errors.New(nil, errors.CodeAlignment, "start address and length must be aligned to the erase-sector size").
			WithDetail("startAddr", cfg.StartAddr).WithDetail("length", cfg.Length).WithDetail("eraseSize", eraseSize)
	}
	sectors := cfg.Length / eraseSize
	if sectors == 0 || sectors%2 != 0 {
		return nil, errors.New(nil, errors.CodeAlignment, "region must span a non-zero, even number of erase sectors").
			WithDetail("sectors", sectors)
	}

	programSize, err := cfg.Device.ProgramSize(ctx, cfg.StartAddr)
	if err != nil {
		return nil, errors.Wrap(err, "query program size")
	}
	readSize, err := cfg.Device.ReadSize(ctx, cfg.StartAddr)
	if err != nil {
		return nil, errors.Wrap(err, "query read size")
	}

	tx, err := txbuf.New(cfg.Device, cfg.Options.TransactionBufferFloor, readSize, programSize)
	if err != nil {
		return nil, errors.New(err, errors.CodeBadParam, "allocate transaction buffer")
	}

	allocator := cfg.Allocator
	if allocator == nil {
		allocator = alloc.GC{}
	}
	idx, err := index.New(allocator, cfg.Options.InitialIndexCapacity)
	if err != nil {
		return nil, errors.New(err, errors.CodeMemAlloc, "allocate RAM index")
	}

	areas := area.New(cfg.Device, tx, cfg.StartAddr, cfg.Length, cfg.Options.MaxKeySize)
	if err := areas.Select(ctx, programSize, eraseSize); err != nil {
		return nil, errors.Wrap(err, "select active area")
	}

	log := cfg.Options.Logger
	if log == nil {
		log = logger.Nop()
	}

	e := &Engine{
		dev:         cfg.Device,
		tx:          tx,
		areas:       areas,
		idx:         idx,
		alloc:       allocator,
		log:         log,
		maxKeySize:  cfg.Options.MaxKeySize,
		programSize: programSize,
		readSize:    readSize,
		eraseSize:   eraseSize,
	}

	if err := e.scan(ctx); err != nil {
		return nil, err
	}

	log.Infow(
		"engine opened",
		"activeAddr", areas.Active().Addr,
		"version", areas.Version(),
		"consumedSize", e.consumedSize,
		"freeSpaceOffset", e.freeSpaceOffset,
	)
	return e, nil
}

// Close marks the engine unusable. It is idempotent-unsafe by design: a
// second Close reports CodeClosed rather than silently succeeding, so
// callers notice a double-close bug.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return errors.New(nil, errors.CodeClosed, "engine already closed")
	}
	return nil
}

// checkOpen returns CodeClosed if the engine has been closed.
func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return errors.New(nil, errors.CodeClosed, "engine is closed")
	}
	return nil
}
