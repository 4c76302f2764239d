// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package soft implements driver interfaces in pure Go.
// Command lists are executed on a queue goroutine against
// memory held in byte slices, with resource states, fence
// values and object lifetimes validated along the way.
// It does not run shaders.
package soft

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/logger"
)

const driverName = "soft"

// Placement alignment of resources in a Memory.
const placeAlign = 65536

// Maximum amount of device memory.
const memBudget = 1 << 30

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver.
type Driver struct {
	gpu *GPU
}

// Open initializes the driver.
func (d *Driver) Open(cfg driver.Config) (driver.GPU, error) {
	if d.gpu != nil {
		return d.gpu, nil
	}
	g := &GPU{
		drv:   d,
		debug: cfg.Debug,
		heaps: make(map[uintptr]*DescHeap),
	}
	g.cond = sync.NewCond(&g.mu)
	g.track.init(g)
	g.q = newQueue(g)
	d.gpu = g
	logger.Logger().Info("device created", "driver", driverName, "debug", cfg.Debug)
	return g, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
// Objects that are still alive are reported as
// violations of the GPU.
func (d *Driver) Close() {
	if d.gpu == nil {
		return
	}
	g := d.gpu
	g.q.stop()
	g.mu.Lock()
	g.track.leaks()
	g.closed = true
	g.mu.Unlock()
	d.gpu = nil
	logger.Logger().Debug("device destroyed", "driver", driverName)
}

// GPU implements driver.GPU and driver.Presenter.
type GPU struct {
	drv   *Driver
	debug bool
	q     *queue

	// mu guards everything that the queue goroutine
	// touches: resource states, fence values, pending
	// counts, statistics and the tracker.
	mu     sync.Mutex
	cond   *sync.Cond
	lost   error
	closed bool
	track  tracker
	used   int64
	stats  Stats

	heaps    map[uintptr]*DescHeap
	nextHeap uintptr
}

// Stats records executed work.
type Stats struct {
	Lists      int
	Dispatches int
	Groups     [3]int
	Clears     int
	Copies     int
	Barriers   int
	Presents   int
}

// Driver returns the Driver that owns g.
func (g *GPU) Driver() driver.Driver { return g.drv }

// Queue returns g's command queue.
func (g *GPU) Queue() driver.Queue { return g.q }

// Limits returns the implementation limits.
func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxDescHeap:      1 << 20,
		PlacementAlign:   placeAlign,
		CBVAlign:         256,
		MaxRenderTargets: driver.MaxRenderTargets,
	}
}

// Stats returns a snapshot of executed work.
func (g *GPU) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Violations returns the lifetime and usage violations
// recorded so far.
func (g *GPU) Violations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.track.violations...)
}

// Live returns the number of objects that were created
// and not yet destroyed.
func (g *GPU) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.track.live)
}

// Lost returns the error that caused the device to be
// lost, or nil.
func (g *GPU) Lost() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lost
}

// Lose puts g in the lost state, as a failed command
// would. Fences stop advancing and the queue rejects new
// work.
func (g *GPU) Lose(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLost(errors.New(reason))
}

// setLost puts g in the lost state.
// g.mu must be held.
func (g *GPU) setLost(err error) {
	if g.lost != nil {
		return
	}
	g.lost = errors.Wrap(driver.ErrFatal, err.Error())
	g.cond.Broadcast()
	logger.Logger().Error("device lost", "driver", driverName, "err", err)
}

// flag records a violation.
// g.mu must be held.
func (g *GPU) flag(format string, args ...any) {
	g.track.flag(format, args...)
}
