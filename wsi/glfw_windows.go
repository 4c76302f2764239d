// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build cgo

package wsi

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// nativeHandle returns the HWND of w.
func nativeHandle(w *glfw.Window) uintptr { return uintptr(unsafe.Pointer(w.GetWin32Window())) }
