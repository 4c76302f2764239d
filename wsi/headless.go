// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package wsi

// Headless is a window that is never displayed.
// Its events are scripted with Push.
type Headless struct {
	width  int
	height int
	frames int
	polls  int
	events []Event
	closed bool
}

// NewHeadless creates a headless window.
// If frames is positive, the window reports Quit on
// every call to Poll after the first frames calls.
// NewHeadless does not count towards MaxWindows.
func NewHeadless(width, height, frames int) *Headless {
	return &Headless{width: width, height: height, frames: frames}
}

// Push queues events to be returned by the next call to
// Poll.
func (w *Headless) Push(ev ...Event) { w.events = append(w.events, ev...) }

// Handle returns 0.
func (w *Headless) Handle() uintptr { return 0 }

// Width returns the window's width.
func (w *Headless) Width() int { return w.width }

// Height returns the window's height.
func (w *Headless) Height() int { return w.height }

// Polls returns the number of calls to Poll.
func (w *Headless) Polls() int { return w.polls }

// Poll returns the queued events.
// A closed window always reports Quit.
func (w *Headless) Poll() []Event {
	w.polls++
	ev := w.events
	w.events = nil
	if w.closed || (w.frames > 0 && w.polls > w.frames) {
		ev = append(ev, Event{Kind: Quit})
	}
	return ev
}

// Close closes the window.
func (w *Headless) Close() { w.closed = true }
