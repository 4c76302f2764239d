// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build cgo && (windows || linux)

package wsi

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/internal/logger"
)

func init() {
	// GLFW calls must happen on the main thread.
	runtime.LockOSThread()
	platform = GLFW
	newWindow = newWindowGLFW
}

var glfwReady bool

// glfwWindow implements Window using GLFW.
// The window has no client API and cannot be resized.
type glfwWindow struct {
	win    *glfw.Window
	width  int
	height int
	events []Event
	lastX  float64
	lastY  float64
	moved  bool
}

func newWindowGLFW(width, height int, title string) (Window, error) {
	if !glfwReady {
		if err := glfw.Init(); err != nil {
			return nil, errors.Wrap(err, "wsi: glfw")
		}
		glfwReady = true
	}
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		if windowCount == 0 {
			glfw.Terminate()
			glfwReady = false
		}
		return nil, errors.Wrap(err, "wsi: glfw")
	}
	w := &glfwWindow{win: win, width: width, height: height}
	win.SetCloseCallback(func(*glfw.Window) { w.quit() })
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.quit()
		}
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if w.moved {
			w.events = append(w.events, Event{Kind: MouseMotion, DX: x - w.lastX, DY: y - w.lastY})
		}
		w.lastX, w.lastY, w.moved = x, y, true
	})
	logger.Logger().Debug("window created", "width", width, "height", height, "title", title)
	return w, nil
}

func (w *glfwWindow) quit() { w.events = append(w.events, Event{Kind: Quit}) }

func (w *glfwWindow) Handle() uintptr { return nativeHandle(w.win) }
func (w *glfwWindow) Width() int      { return w.width }
func (w *glfwWindow) Height() int     { return w.height }

func (w *glfwWindow) Poll() []Event {
	glfw.PollEvents()
	ev := w.events
	w.events = nil
	return ev
}

func (w *glfwWindow) Close() {
	if w.win == nil {
		return
	}
	w.win.Destroy()
	w.win = nil
	closeWindow(w)
	if windowCount == 0 {
		glfw.Terminate()
		glfwReady = false
	}
}
