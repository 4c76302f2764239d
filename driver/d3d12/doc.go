// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package d3d12 implements driver interfaces using the
// Direct3D 12 API.
// It is only built on Windows, where it calls into
// d3d12.dll and dxgi.dll through COM vtables.
// The device must support mesh shaders and resource heap
// tier 2.
package d3d12
