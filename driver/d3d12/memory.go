// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// heapDesc matches D3D12_HEAP_DESC.
type heapDesc struct {
	SizeInBytes uint64
	Properties  heapProperties
	Alignment   uint64
	Flags       uint32
}

// heapProperties matches D3D12_HEAP_PROPERTIES.
type heapProperties struct {
	Type                 uint32
	CPUPageProperty      uint32
	MemoryPoolPreference uint32
	CreationNodeMask     uint32
	VisibleNodeMask      uint32
}

// resourceDesc matches D3D12_RESOURCE_DESC.
type resourceDesc struct {
	Dimension        uint32
	Alignment        uint64
	Width            uint64
	Height           uint32
	DepthOrArraySize uint16
	MipLevels        uint16
	Format           uint32
	SampleCount      uint32
	SampleQuality    uint32
	Layout           uint32
	Flags            uint32
}

// allocationInfo matches D3D12_RESOURCE_ALLOCATION_INFO.
type allocationInfo struct {
	SizeInBytes uint64
	Alignment   uint64
}

// clearValue matches D3D12_CLEAR_VALUE.
type clearValue struct {
	Format uint32
	// Color, or depth followed by stencil.
	Value [4]float32
}

const (
	layoutUnknown  = 0
	layoutRowMajor = 1

	resourceFlagAllowRenderTarget  = 0x1
	resourceFlagAllowDepthStencil  = 0x2
	resourceFlagAllowUnordered     = 0x4
	resourceFlagDenyShaderResource = 0x8
)

func convDesc(desc *driver.ResourceDesc) resourceDesc {
	rd := resourceDesc{
		Dimension:        uint32(desc.Dim),
		Width:            uint64(desc.Width),
		Height:           uint32(max(desc.Height, 1)),
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           uint32(desc.Format),
		SampleCount:      1,
		Layout:           layoutUnknown,
	}
	if desc.Dim == driver.DimBuffer {
		rd.Layout = layoutRowMajor
	}
	if desc.Usage&driver.UsageRenderTarget != 0 {
		rd.Flags |= resourceFlagAllowRenderTarget
	}
	if desc.Usage&driver.UsageDepthStencil != 0 {
		rd.Flags |= resourceFlagAllowDepthStencil
	}
	if desc.Usage&driver.UsageUnordered != 0 {
		rd.Flags |= resourceFlagAllowUnordered
	}
	if desc.Usage&driver.UsageDenyShaderResource != 0 {
		rd.Flags |= resourceFlagDenyShaderResource
	}
	return rd
}

// Memory implements driver.Memory.
type Memory struct {
	heap uintptr // ID3D12Heap
	kind driver.HeapKind
	size int64
}

// NewMemory allocates a block of device memory.
func (g *GPU) NewMemory(kind driver.HeapKind, size int64) (driver.Memory, error) {
	switch kind {
	case driver.HeapDefault, driver.HeapUpload, driver.HeapReadback:
	default:
		return nil, errors.Errorf("d3d12: NewMemory: invalid heap kind %d", kind)
	}
	desc := heapDesc{
		SizeInBytes: uint64(size),
		Properties:  heapProperties{Type: uint32(kind)},
		Alignment:   uint64(g.Limits().PlacementAlign),
	}
	m := &Memory{kind: kind, size: size}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateHeap), g.dev, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&iidID3D12Heap)), uintptr(unsafe.Pointer(&m.heap)))
	if err := check(hr, "CreateHeap"); err != nil {
		if errors.Is(err, driver.ErrNoHostMemory) {
			err = errors.Wrap(driver.ErrNoDeviceMemory, err.Error())
		}
		return nil, err
	}
	return m, nil
}

// Kind returns the memory's heap kind.
func (m *Memory) Kind() driver.HeapKind { return m.kind }

// Size returns the size of the block.
func (m *Memory) Size() int64 { return m.size }

// Destroy destroys the memory block.
func (m *Memory) Destroy() {
	if m == nil {
		return
	}
	release(m.heap)
	*m = Memory{}
}

// ResourceSize returns the size and alignment required to
// place a resource described by desc.
func (g *GPU) ResourceSize(desc *driver.ResourceDesc) (size, align int64) {
	rd := convDesc(desc)
	var info allocationInfo
	syscall.SyscallN(comVtblFn(g.dev, deviceGetResourceAllocationInfo), g.dev, uintptr(unsafe.Pointer(&info)), 0, 1, uintptr(unsafe.Pointer(&rd)))
	return int64(info.SizeInBytes), int64(info.Alignment)
}

// Resource implements driver.Resource.
type Resource struct {
	res  uintptr // ID3D12Resource
	desc driver.ResourceDesc
	kind driver.HeapKind
	// Owned by a swapchain.
	swap bool
}

// NewResource creates a resource placed in mem at off.
func (g *GPU) NewResource(mem driver.Memory, off int64, desc *driver.ResourceDesc, state driver.State, clear *driver.ClearValue) (driver.Resource, error) {
	m, ok := mem.(*Memory)
	if !ok || m.heap == 0 {
		return nil, errors.New("d3d12: NewResource: invalid memory")
	}
	rd := convDesc(desc)
	var cv *clearValue
	if clear != nil {
		cv = &clearValue{Format: uint32(clear.Format), Value: clear.Color}
		if desc.Usage&driver.UsageDepthStencil != 0 {
			cv.Value = [4]float32{clear.Depth}
		}
	}
	r := &Resource{desc: *desc, kind: m.kind}
	hr := call(g.dev, deviceCreatePlacedResource,
		m.heap,
		uintptr(off),
		uintptr(unsafe.Pointer(&rd)),
		uintptr(state),
		uintptr(unsafe.Pointer(cv)),
		uintptr(unsafe.Pointer(&iidID3D12Resource)),
		uintptr(unsafe.Pointer(&r.res)))
	if err := check(hr, "CreatePlacedResource"); err != nil {
		return nil, err
	}
	return r, nil
}

// Desc returns the resource's description.
func (r *Resource) Desc() driver.ResourceDesc { return r.desc }

// gpuAddress returns the resource's GPU virtual address.
func (r *Resource) gpuAddress() uintptr {
	return call(r.res, resourceGetGPUVirtualAddress)
}

// Map maps a buffer placed in upload or readback memory.
func (r *Resource) Map() ([]byte, error) {
	if r.kind == driver.HeapDefault {
		return nil, errors.New("d3d12: Map: resource is not CPU-visible")
	}
	var p uintptr
	// An empty read range means that the CPU will not read
	// upload memory.
	var rng *[2]uintptr
	if r.kind == driver.HeapUpload {
		rng = &[2]uintptr{}
	}
	hr, _, _ := syscall.SyscallN(comVtblFn(r.res, resourceMap), r.res, 0, uintptr(unsafe.Pointer(rng)), uintptr(unsafe.Pointer(&p)))
	if err := check(hr, "Map"); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), r.desc.Width), nil
}

// Unmap invalidates the slice returned by Map.
func (r *Resource) Unmap() {
	var rng *[2]uintptr
	if r.kind == driver.HeapReadback {
		rng = &[2]uintptr{}
	}
	syscall.SyscallN(comVtblFn(r.res, resourceUnmap), r.res, 0, uintptr(unsafe.Pointer(rng)))
}

// Destroy destroys the resource.
// Swapchain images are released by their swapchain.
func (r *Resource) Destroy() {
	if r == nil || r.swap {
		return
	}
	release(r.res)
	*r = Resource{}
}
