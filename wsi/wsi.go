// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package wsi provides window system integration (WSI)
// for the engine.
// Because a system need not have a window system, WSI
// is conditionally supported. A headless window is
// always available.
package wsi

import (
	"github.com/pkg/errors"
)

// Window is the interface that defines a presentable
// window.
// It satisfies driver.Surface.
type Window interface {
	// Handle returns the platform-specific window handle.
	Handle() uintptr

	// Width returns the window's width.
	Width() int

	// Height returns the window's height.
	Height() int

	// Poll processes pending window system events and
	// returns the ones of interest.
	Poll() []Event

	// Close closes the window.
	Close()
}

// EventKind is the type of window events.
type EventKind int

// Event kinds.
const (
	// The window was asked to close.
	Quit EventKind = iota
	// The pointer moved by (DX, DY).
	MouseMotion
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case Quit:
		return "Quit"
	case MouseMotion:
		return "MouseMotion"
	default:
		return "[!] invalid EventKind value"
	}
}

// Event is a window event.
type Event struct {
	Kind   EventKind
	DX, DY float64
}

// Platform is the type of window systems.
type Platform int

// Platforms.
const (
	None Platform = iota
	GLFW
)

// PlatformInUse returns the window system that NewWindow
// uses.
func PlatformInUse() Platform { return platform }

var (
	platform  = None
	newWindow = func(int, int, string) (Window, error) { return nil, errMissing }
)

var errMissing = errors.New("wsi: no window system")

// NewWindow creates a new window.
// It fails if no window system is available or if
// MaxWindows windows exist.
func NewWindow(width, height int, title string) (Window, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("wsi: invalid window size %dx%d", width, height)
	}
	if windowCount >= MaxWindows {
		return nil, errors.New("wsi: too many windows")
	}
	win, err := newWindow(width, height, title)
	if err != nil {
		return nil, err
	}
	addWindow(win)
	return win, nil
}

// The maximum number of windows that can exist at any
// given time.
const MaxWindows = 16

// Windows returns all created windows.
// The returned value becomes out of date after calls to
// NewWindow and Window.Close.
func Windows() []Window {
	if windowCount == 0 {
		return nil
	}
	wins := make([]Window, 0, windowCount)
	for i := range createdWindows {
		if createdWindows[i] != nil {
			wins = append(wins, createdWindows[i])
		}
	}
	return wins
}

func addWindow(win Window) {
	for i := range createdWindows {
		if createdWindows[i] == nil {
			createdWindows[i] = win
			windowCount++
			return
		}
	}
}

// closeWindow removes win from createdWindows and
// decrements windowCount.
// It must be called by implementations on win.Close.
// Note that win must be comparable.
func closeWindow(win Window) {
	for i := range createdWindows {
		if createdWindows[i] == win {
			createdWindows[i] = nil
			windowCount--
			return
		}
	}
}

var (
	windowCount    int
	createdWindows [MaxWindows]Window
)
