// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"errors"
)

// ErrCannotPresent means that the driver and/or device do not
// support presentation.
var ErrCannotPresent = errors.New("driver: presentation not supported")

// ErrSurface represents an error related to a specific
// surface. For instance, the driver may require a valid
// native window handle to create a swapchain.
var ErrSurface = errors.New("driver: surface-related error")

// Surface is the interface that a window must implement
// so that a swapchain can present to it.
type Surface interface {
	// Handle returns the platform-specific window handle.
	Handle() uintptr

	// Width returns the surface's width in pixels.
	Width() int

	// Height returns the surface's height in pixels.
	Height() int
}

// Presenter is the interface that a GPU may implement
// to enable presentation on a display.
type Presenter interface {
	// NewSwapchain creates a new swapchain with n images
	// of format f, presented by q.
	// Only one swapchain can be associated with a specific
	// Surface at a time.
	NewSwapchain(q Queue, s Surface, n int, f Format) (Swapchain, error)
}

// Swapchain is the interface that defines a n-buffered
// swapchain for presentation.
// To present, one calls Current to obtain the index of
// the image to target, transitions the image from
// StatePresent to StateRenderTarget, records commands as
// needed, transitions the image back to StatePresent,
// executes these commands, waits for their completion
// and then calls Present.
type Swapchain interface {
	Destroyer

	// Images returns the swapchain images.
	// They are in the StatePresent state when created.
	Images() []Resource

	// Current returns the index of the image that must be
	// rendered next. The presentation subsystem selects it,
	// so the value must not be cached across presents.
	Current() int

	// Present presents the current image.
	// The image must be in the StatePresent state.
	Present(vsync bool) error

	// Format returns the images' Format.
	Format() Format
}
