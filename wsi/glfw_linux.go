// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build cgo

package wsi

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// nativeHandle returns 0.
// Only the soft driver presents on Linux, and it does
// not use the handle.
func nativeHandle(*glfw.Window) uintptr { return 0 }
