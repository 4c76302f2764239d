// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/logger"
)

// descHeapDesc matches D3D12_DESCRIPTOR_HEAP_DESC.
type descHeapDesc struct {
	Type           uint32
	NumDescriptors uint32
	Flags          uint32
	NodeMask       uint32
}

// cbvDesc matches D3D12_CONSTANT_BUFFER_VIEW_DESC.
type cbvDesc struct {
	BufferLocation uint64
	SizeInBytes    uint32
}

// srvDesc matches D3D12_SHADER_RESOURCE_VIEW_DESC for
// buffers.
type srvDesc struct {
	Format                  uint32
	ViewDimension           uint32
	Shader4ComponentMapping uint32
	FirstElement            uint64
	NumElements             uint32
	StructureByteStride     uint32
	Flags                   uint32
}

// uavDesc matches D3D12_UNORDERED_ACCESS_VIEW_DESC for
// buffers.
type uavDesc struct {
	Format               uint32
	ViewDimension        uint32
	FirstElement         uint64
	NumElements          uint32
	StructureByteStride  uint32
	CounterOffsetInBytes uint64
	Flags                uint32
}

const (
	srvDimensionBuffer = 1
	uavDimensionBuffer = 1
	// D3D12_DEFAULT_SHADER_4_COMPONENT_MAPPING.
	defaultComponentMapping = 0x1688
)

// DescIncrement returns the handle increment of kind.
func (g *GPU) DescIncrement(kind driver.DescKind) int {
	if kind < 0 || int(kind) >= len(g.inc) {
		return 0
	}
	return g.inc[kind]
}

// DescHeap implements driver.DescHeap.
// Heaps are not shader-visible.
type DescHeap struct {
	heap  uintptr // ID3D12DescriptorHeap
	kind  driver.DescKind
	n     int
	start driver.CPUHandle
}

// NewDescHeap creates a new descriptor heap.
func (g *GPU) NewDescHeap(kind driver.DescKind, n int) (driver.DescHeap, error) {
	if g.DescIncrement(kind) == 0 {
		return nil, errors.Errorf("d3d12: NewDescHeap: invalid kind %d", kind)
	}
	desc := descHeapDesc{Type: uint32(kind), NumDescriptors: uint32(n)}
	h := &DescHeap{kind: kind, n: n}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateDescriptorHeap), g.dev, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&iidID3D12DescriptorHeap)), uintptr(unsafe.Pointer(&h.heap)))
	if err := check(hr, "CreateDescriptorHeap"); err != nil {
		return nil, err
	}
	var start uintptr
	syscall.SyscallN(comVtblFn(h.heap, descHeapGetCPUHandleForHeapStart), h.heap, uintptr(unsafe.Pointer(&start)))
	h.start = driver.CPUHandle(start)
	logger.Logger().Debug("descriptor heap created", "driver", driverName, "kind", kind.String(), "len", n)
	return h, nil
}

// Kind returns the heap's kind.
func (h *DescHeap) Kind() driver.DescKind { return h.kind }

// Len returns the number of slots.
func (h *DescHeap) Len() int { return h.n }

// Start returns the handle of slot 0.
func (h *DescHeap) Start() driver.CPUHandle { return h.start }

// Destroy destroys the heap.
func (h *DescHeap) Destroy() {
	if h == nil {
		return
	}
	release(h.heap)
	*h = DescHeap{}
}

func resOf(res driver.Resource) uintptr {
	if r, ok := res.(*Resource); ok {
		return r.res
	}
	return 0
}

// WriteRTV writes a render target view.
func (g *GPU) WriteRTV(res driver.Resource, dst driver.CPUHandle) {
	call(g.dev, deviceCreateRenderTargetView, resOf(res), 0, uintptr(dst))
}

// WriteDSV writes a depth/stencil view.
func (g *GPU) WriteDSV(res driver.Resource, dst driver.CPUHandle) {
	call(g.dev, deviceCreateDepthStencilView, resOf(res), 0, uintptr(dst))
}

// WriteCBV writes a constant buffer view.
func (g *GPU) WriteCBV(res driver.Resource, size int, dst driver.CPUHandle) {
	r, ok := res.(*Resource)
	if !ok {
		return
	}
	desc := cbvDesc{BufferLocation: uint64(r.gpuAddress()), SizeInBytes: uint32(size)}
	syscall.SyscallN(comVtblFn(g.dev, deviceCreateConstantBufferView), g.dev, uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

// WriteSRV writes a structured buffer view.
func (g *GPU) WriteSRV(res driver.Resource, elems, stride int, dst driver.CPUHandle) {
	desc := srvDesc{
		ViewDimension:           srvDimensionBuffer,
		Shader4ComponentMapping: defaultComponentMapping,
		NumElements:             uint32(elems),
		StructureByteStride:     uint32(stride),
	}
	syscall.SyscallN(comVtblFn(g.dev, deviceCreateShaderResourceView), g.dev, resOf(res), uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

// WriteUAV writes an unordered access view.
func (g *GPU) WriteUAV(res driver.Resource, elems, stride int, dst driver.CPUHandle) {
	desc := uavDesc{
		ViewDimension:       uavDimensionBuffer,
		NumElements:         uint32(elems),
		StructureByteStride: uint32(stride),
	}
	syscall.SyscallN(comVtblFn(g.dev, deviceCreateUnorderedAccessView), g.dev, resOf(res), 0, uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}
