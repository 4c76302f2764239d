// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package driver defines a set of interfaces encompassing
// explicit GPU functionality in the style of Direct3D 12.
// It is designed to allow platform-specific APIs to be
// implemented in a mostly straightforward manner.
package driver

import (
	"errors"
	"sync"

	"github.com/gviegas/meshdraw/internal/logger"
)

// Driver is the interface that provides methods for
// loading and unloading an underlying implementation.
type Driver interface {
	// Open initializes the driver.
	// If it succeeds, further calls with the same receiver
	// have no effect and must return the same GPU instance.
	// Callers should assume that Open is not safe for
	// parallel execution.
	Open(cfg Config) (GPU, error)

	// Name returns the name of the driver.
	// It must not cause the driver to be opened.
	Name() string

	// Close deinitializes the driver.
	// Every object created from the GPU must have been
	// destroyed already.
	// Closing a driver that is not open has no effect.
	Close()
}

// Config is used to open a Driver.
type Config struct {
	// Enable the validation layer.
	// It must take effect before device creation.
	Debug bool
}

// ErrNotInstalled means that a platform-specific library
// required for the driver to work is not present in the
// system.
var ErrNotInstalled = errors.New("driver: missing required library")

// ErrNoDevice means that no suitable device could be
// found.
var ErrNoDevice = errors.New("driver: no suitable device found")

// ErrNoHostMemory means that host memory could not be
// allocated.
var ErrNoHostMemory = errors.New("driver: out of host memory")

// ErrNoDeviceMemory means that device memory could not
// be allocated.
var ErrNoDeviceMemory = errors.New("driver: out of device memory")

// ErrFatal means that the driver is in an unrecoverable
// state (i.e., the device was lost). Upon encountering
// such an error, the application must destroy everything
// that it created using the driver's GPU and then call
// the Close method.
var ErrFatal = errors.New("driver: fatal error")

// ErrState means that a command assumed a resource state
// that does not match the resource's true state.
var ErrState = errors.New("driver: resource state mismatch")

// ErrInFlight means that an object was reset or reused
// while the GPU may still be executing work that
// references it.
var ErrInFlight = errors.New("driver: object in use by the GPU")

// ErrUnwritten means that a descriptor slot was bound
// before any view was written into it.
var ErrUnwritten = errors.New("driver: unwritten descriptor")

// ErrRecording means that a command list was used in a
// way that its recording state does not allow.
var ErrRecording = errors.New("driver: invalid command list state")

// Drivers returns the registered Drivers.
// Client code imports specific driver packages, and then
// call this function. As such, drivers that do not
// register themselves on init will not be considered
// for selection.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver.
// Driver implementations are expected to call Register
// exactly once, from an init function.
// If a driver with the same name has already been
// registered, it will be replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			logger.Logger().Warn("driver replaced", "name", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	logger.Logger().Info("driver registered", "name", drv.Name())
}

// Variables used for driver registration.
var (
	mu      sync.Mutex
	drivers []Driver = make([]Driver, 0, 2)
)
