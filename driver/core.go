// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create other types and to execute commands.
// A GPU is obtained from a call to Driver.Open.
// There is exactly one direct Queue per GPU.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// Queue returns the GPU's command queue.
	Queue() Queue

	// NewCmdAllocator creates a new command allocator.
	NewCmdAllocator() (CmdAllocator, error)

	// NewCmdList creates a new command list that records
	// into ca.
	// The list is created closed, so Reset must be called
	// before recording.
	NewCmdList(ca CmdAllocator) (CmdList, error)

	// NewFence creates a new fence and its wait event.
	NewFence(initial uint64) (Fence, error)

	// NewDescHeap creates a new CPU-visible descriptor heap
	// with n slots.
	NewDescHeap(kind DescKind, n int) (DescHeap, error)

	// DescIncrement returns the distance between two
	// consecutive slots of a descriptor heap of the given
	// kind. It is device-specific.
	DescIncrement(kind DescKind) int

	// ResourceSize returns the size and alignment that a
	// resource described by desc requires when placed in
	// a Memory.
	ResourceSize(desc *ResourceDesc) (size, align int64)

	// NewMemory allocates a block of device memory.
	NewMemory(kind HeapKind, size int64) (Memory, error)

	// NewResource creates a resource placed in mem at the
	// given offset.
	// clear is the optimized clear value of render targets
	// and depth/stencil textures. It may be nil.
	NewResource(mem Memory, off int64, desc *ResourceDesc, state State, clear *ClearValue) (Resource, error)

	// WriteRTV writes a render target view of res into dst.
	WriteRTV(res Resource, dst CPUHandle)

	// WriteDSV writes a depth/stencil view of res into dst.
	WriteDSV(res Resource, dst CPUHandle)

	// WriteCBV writes a constant buffer view of the first
	// size bytes of res into dst.
	WriteCBV(res Resource, size int, dst CPUHandle)

	// WriteSRV writes a structured buffer view of res into
	// dst.
	WriteSRV(res Resource, elems, stride int, dst CPUHandle)

	// WriteUAV writes an unordered access view of res into
	// dst.
	WriteUAV(res Resource, elems, stride int, dst CPUHandle)

	// SerializeRootSig serializes a root signature that
	// declares params.
	// On failure, the error contains the diagnostic
	// text produced by the serializer.
	SerializeRootSig(params []RootParam) ([]byte, error)

	// NewRootSig creates a root signature from a blob
	// produced by SerializeRootSig.
	NewRootSig(blob []byte) (RootSig, error)

	// NewPipelineState creates a pipeline state object from
	// a chain of subobjects.
	NewPipelineState(chain []Subobject) (PipelineState, error)

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Queue is the interface that defines a command queue.
type Queue interface {
	// Execute submits closed command lists for execution.
	Execute(cl []CmdList) error

	// Signal sets the fence to v once all previously
	// submitted work completes.
	Signal(f Fence, v uint64) error
}

// CmdAllocator is the interface that defines the backing
// storage of command lists.
type CmdAllocator interface {
	Destroyer

	// Reset reclaims the memory of recorded commands.
	// It must not be called while a list recorded with
	// the allocator is executing.
	Reset() error
}

// CmdList is the interface that defines a command list.
// The usage is as follows: call Reset to begin recording,
// record commands, then call Close. A closed list may be
// executed by the Queue.
// Recording methods do not return errors. Instead, the
// first error is reported by Close.
type CmdList interface {
	Destroyer

	// Reset begins recording into ca.
	Reset(ca CmdAllocator) error

	// Close ends recording.
	Close() error

	// Barrier records resource state transitions.
	Barrier(t []Transition)

	// ClearRTV clears the render target view at h.
	// A nil rects clears the whole view.
	ClearRTV(h CPUHandle, color [4]float32, rects []Rect)

	// ClearDSV clears the depth of the depth/stencil view
	// at h.
	ClearDSV(h CPUHandle, depth float32)

	// SetRenderTargets binds render target views and an
	// optional depth/stencil view.
	SetRenderTargets(rtv []CPUHandle, dsv *CPUHandle)

	// SetViewport sets the viewport.
	SetViewport(vp Viewport)

	// SetScissor sets the scissor rectangle.
	SetScissor(r Rect)

	// SetRootSig binds a graphics root signature.
	SetRootSig(rs RootSig)

	// SetPipelineState binds a pipeline state object.
	SetPipelineState(ps PipelineState)

	// SetRootCBV binds res to a constant buffer root
	// parameter.
	SetRootCBV(param int, res Resource)

	// SetRootSRV binds res to a shader resource root
	// parameter.
	SetRootSRV(param int, res Resource)

	// SetRootUAV binds res to an unordered access root
	// parameter.
	SetRootUAV(param int, res Resource)

	// DispatchMesh launches amplification/mesh shader
	// groups.
	DispatchMesh(x, y, z int)

	// CopyBuffer copies n bytes from src to dst.
	CopyBuffer(dst Resource, dstOff int64, src Resource, srcOff int64, n int64)
}

// Fence is the interface that defines a GPU/CPU
// synchronization counter.
// Every fence owns one CPU wait event.
type Fence interface {
	Destroyer

	// Completed returns the fence's current value.
	Completed() uint64

	// Signal sets the fence's value from the CPU.
	Signal(v uint64) error

	// Wait blocks the calling goroutine until the fence
	// reaches v.
	Wait(v uint64) error
}

// DescKind is the type of descriptor heaps.
type DescKind int

// Descriptor heap kinds.
const (
	DescCBVSRVUAV DescKind = 0
	DescRTV       DescKind = 2
	DescDSV       DescKind = 3
)

func (k DescKind) String() string {
	switch k {
	case DescCBVSRVUAV:
		return "CBV/SRV/UAV"
	case DescRTV:
		return "RTV"
	case DescDSV:
		return "DSV"
	}
	return "DescKind(?)"
}

// CPUHandle is the CPU address of a descriptor slot.
type CPUHandle uintptr

// DescHeap is the interface that defines a descriptor heap.
type DescHeap interface {
	Destroyer

	// Kind returns the heap's kind.
	Kind() DescKind

	// Len returns the number of slots.
	Len() int

	// Start returns the handle of slot 0.
	Start() CPUHandle
}

// HeapKind is the type of memory heaps.
type HeapKind int

// Memory heap kinds.
const (
	// GPU-only memory.
	HeapDefault HeapKind = iota + 1
	// CPU-visible memory for uploads.
	HeapUpload
	// CPU-visible memory for readbacks.
	HeapReadback
)

func (k HeapKind) String() string {
	switch k {
	case HeapDefault:
		return "default"
	case HeapUpload:
		return "upload"
	case HeapReadback:
		return "readback"
	}
	return "HeapKind(?)"
}

// Memory is the interface that defines a block of device
// memory in which resources are placed.
type Memory interface {
	Destroyer

	// Kind returns the memory's heap kind.
	Kind() HeapKind

	// Size returns the size of the block in bytes.
	Size() int64
}

// State is the type of resource states.
// Values can be combined.
type State int

// Resource states.
const (
	StateCommon        State = 0
	StatePresent       State = 0
	StateVertexCB      State = 0x1
	StateIndexBuffer   State = 0x2
	StateRenderTarget  State = 0x4
	StateUnordered     State = 0x8
	StateDepthWrite    State = 0x10
	StateDepthRead     State = 0x20
	StateNonPixelSR    State = 0x40
	StatePixelSR       State = 0x80
	StateIndirectArg   State = 0x200
	StateCopyDest      State = 0x400
	StateCopySource    State = 0x800
	StateGenericRead   State = StateVertexCB | StateIndexBuffer | StateNonPixelSR | StatePixelSR | StateIndirectArg | StateCopySource
	StateAllShaderRead State = StateNonPixelSR | StatePixelSR
)

func (s State) String() string {
	switch s {
	case StatePresent:
		return "present"
	case StateRenderTarget:
		return "render-target"
	case StateUnordered:
		return "unordered-access"
	case StateDepthWrite:
		return "depth-write"
	case StateCopyDest:
		return "copy-dest"
	case StateCopySource:
		return "copy-source"
	case StateGenericRead:
		return "generic-read"
	case StateAllShaderRead:
		return "shader-resource"
	}
	return "State(?)"
}

// Transition describes a resource state transition.
// Before must be the resource's true state.
type Transition struct {
	Res    Resource
	Before State
	After  State
}

// Dim is the type of resource dimensions.
type Dim int

// Resource dimensions.
const (
	DimBuffer    Dim = 1
	DimTexture2D Dim = 3
)

// Usage is the type of resource usage flags.
type Usage int

// Resource usage flags.
const (
	UsageRenderTarget Usage = 1 << iota
	UsageDepthStencil
	UsageUnordered
	UsageDenyShaderResource
)

// Format is the type of resource formats.
type Format uint32

// Resource formats.
const (
	FmtUnknown Format = 0
	RGBA32f    Format = 2
	RGBA16f    Format = 10
	RGBA8un    Format = 28
	D32f       Format = 40
	R32f       Format = 41
	R32ui      Format = 42
	D24unS8ui  Format = 45
	BGRA8un    Format = 87
)

// Size returns the number of bytes of a single texel.
func (f Format) Size() int {
	switch f {
	case RGBA8un, BGRA8un, D32f, R32f, R32ui, D24unS8ui:
		return 4
	case RGBA16f:
		return 8
	case RGBA32f:
		return 16
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case FmtUnknown:
		return "unknown"
	case RGBA32f:
		return "RGBA32f"
	case RGBA16f:
		return "RGBA16f"
	case RGBA8un:
		return "RGBA8un"
	case D32f:
		return "D32f"
	case R32f:
		return "R32f"
	case R32ui:
		return "R32ui"
	case D24unS8ui:
		return "D24unS8ui"
	case BGRA8un:
		return "BGRA8un"
	}
	return "Format(?)"
}

// ResourceDesc describes a buffer or a 2D texture.
type ResourceDesc struct {
	Dim Dim
	// Size in bytes for buffers, width in texels
	// for textures.
	Width  int64
	Height int
	// Must be FmtUnknown for buffers.
	Format Format
	Usage  Usage
}

// Buffer returns the description of a buffer.
func Buffer(size int64, usg Usage) ResourceDesc {
	return ResourceDesc{Dim: DimBuffer, Width: size, Height: 1, Usage: usg}
}

// Texture2D returns the description of a 2D texture.
func Texture2D(f Format, width, height int, usg Usage) ResourceDesc {
	return ResourceDesc{Dim: DimTexture2D, Width: int64(width), Height: height, Format: f, Usage: usg}
}

// ClearValue is the optimized clear value of a resource.
type ClearValue struct {
	Format Format
	Color  [4]float32
	Depth  float32
}

// Resource is the interface that defines a buffer or a
// texture placed in a Memory.
type Resource interface {
	Destroyer

	// Desc returns the resource's description.
	Desc() ResourceDesc

	// Map returns a slice of CPU-visible memory.
	// It fails for resources in HeapDefault memory.
	Map() ([]byte, error)

	// Unmap invalidates the slice returned by Map.
	Unmap()
}

// Viewport defines the viewport transform.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a rectangle in pixels.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// RootParamKind is the type of root parameters.
type RootParamKind int

// Root parameter kinds.
// Only direct (descriptor-less) parameters are supported.
const (
	RootCBV RootParamKind = 2
	RootSRV RootParamKind = 3
	RootUAV RootParamKind = 4
)

// ShaderVis is the type of shader visibility flags of root
// parameters.
type ShaderVis int

// Shader visibility values.
const (
	VisAll   ShaderVis = 0
	VisPixel ShaderVis = 5
	VisAmp   ShaderVis = 6
	VisMesh  ShaderVis = 7
)

// RootParam describes a root signature parameter.
type RootParam struct {
	Kind     RootParamKind
	Register uint32
	Space    uint32
	Vis      ShaderVis
}

// RootSig is the interface that defines a root signature.
type RootSig interface {
	Destroyer
}

// PipelineState is the interface that defines an immutable
// pipeline state object.
type PipelineState interface {
	Destroyer
}

// Limits describes implementation limits.
type Limits struct {
	// Maximum number of slots in a descriptor heap.
	MaxDescHeap int
	// Alignment of resources placed in a Memory.
	PlacementAlign int64
	// Alignment of constant buffer views.
	CBVAlign int64
	// Maximum number of render targets.
	MaxRenderTargets int
}
