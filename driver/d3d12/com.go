// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/gviegas/meshdraw/driver"
)

var (
	d3d12DLL = windows.NewLazySystemDLL("d3d12.dll")
	dxgiDLL  = windows.NewLazySystemDLL("dxgi.dll")

	procD3D12CreateDevice         = d3d12DLL.NewProc("D3D12CreateDevice")
	procD3D12GetDebugInterface    = d3d12DLL.NewProc("D3D12GetDebugInterface")
	procD3D12SerializeVersionedRS = d3d12DLL.NewProc("D3D12SerializeVersionedRootSignature")
	procCreateDXGIFactory2        = dxgiDLL.NewProc("CreateDXGIFactory2")
)

// Interface identifiers.
var (
	iidIDXGIFactory6              = windows.GUID{Data1: 0xc1b6694f, Data2: 0xff09, Data3: 0x44a9, Data4: [8]byte{0xb0, 0x3c, 0x77, 0x90, 0x0a, 0x0a, 0x1d, 0x17}}
	iidIDXGIAdapter1              = windows.GUID{Data1: 0x29038f61, Data2: 0x3839, Data3: 0x4626, Data4: [8]byte{0x91, 0xfd, 0x08, 0x68, 0x79, 0x01, 0x1a, 0x05}}
	iidIDXGISwapChain3            = windows.GUID{Data1: 0x94d99bdb, Data2: 0xf1f8, Data3: 0x4ab0, Data4: [8]byte{0xb2, 0x36, 0x7d, 0xa0, 0x17, 0x0e, 0xda, 0xb1}}
	iidID3D12Device2              = windows.GUID{Data1: 0x30baa41e, Data2: 0xb15b, Data3: 0x475c, Data4: [8]byte{0xa0, 0xbb, 0x1a, 0xf5, 0xc5, 0xb6, 0x43, 0x28}}
	iidID3D12Debug                = windows.GUID{Data1: 0x344488b7, Data2: 0x6846, Data3: 0x474b, Data4: [8]byte{0xb9, 0x89, 0xf0, 0x27, 0x44, 0x82, 0x45, 0xe0}}
	iidID3D12InfoQueue            = windows.GUID{Data1: 0x0742a90b, Data2: 0xc387, Data3: 0x483f, Data4: [8]byte{0xb9, 0x46, 0x30, 0xa7, 0xe4, 0xe6, 0x14, 0x58}}
	iidID3D12CommandQueue         = windows.GUID{Data1: 0x0ec870a6, Data2: 0x5d7e, Data3: 0x4c22, Data4: [8]byte{0x8c, 0xfc, 0x5b, 0xaa, 0xe0, 0x76, 0x16, 0xed}}
	iidID3D12CommandAllocator     = windows.GUID{Data1: 0x6102dee4, Data2: 0xaf59, Data3: 0x4b09, Data4: [8]byte{0xb9, 0x99, 0xb4, 0x4d, 0x73, 0xf0, 0x9b, 0x24}}
	iidID3D12GraphicsCommandList6 = windows.GUID{Data1: 0xc3827890, Data2: 0xe548, Data3: 0x4cfa, Data4: [8]byte{0x96, 0xcf, 0x56, 0x89, 0xa9, 0x37, 0x0f, 0x80}}
	iidID3D12Fence                = windows.GUID{Data1: 0x0a753dcf, Data2: 0xc4d8, Data3: 0x4b91, Data4: [8]byte{0xad, 0xf6, 0xbe, 0x5a, 0x60, 0xd9, 0x5a, 0x76}}
	iidID3D12DescriptorHeap       = windows.GUID{Data1: 0x8efb471d, Data2: 0x616c, Data3: 0x4f49, Data4: [8]byte{0x90, 0xf7, 0x12, 0x7b, 0xb7, 0x63, 0xfa, 0x51}}
	iidID3D12Resource             = windows.GUID{Data1: 0x696442be, Data2: 0xa72e, Data3: 0x4059, Data4: [8]byte{0xbc, 0x79, 0x5b, 0x5c, 0x98, 0x04, 0x0f, 0xad}}
	iidID3D12Heap                 = windows.GUID{Data1: 0x6b3b2502, Data2: 0x6e51, Data3: 0x45b3, Data4: [8]byte{0x90, 0xee, 0x98, 0x84, 0x26, 0x5e, 0x8d, 0xf3}}
	iidID3D12RootSignature        = windows.GUID{Data1: 0xc54a6b66, Data2: 0x72df, Data3: 0x4ee8, Data4: [8]byte{0x8b, 0xe5, 0xa9, 0x46, 0xa1, 0x42, 0x92, 0x14}}
	iidID3D12PipelineState        = windows.GUID{Data1: 0x765a30f3, Data2: 0xf624, Data3: 0x4c6f, Data4: [8]byte{0xa8, 0x28, 0xac, 0xe9, 0x48, 0x62, 0x24, 0x45}}
)

// COM vtable indices.
const (
	iunknownQueryInterface = 0
	iunknownRelease        = 2

	dxgiFactoryMakeWindowAssociation   = 8
	dxgiFactory2CreateSwapChainForHwnd = 15
	dxgiFactory6EnumAdapterByGpuPref   = 29
	dxgiAdapter1GetDesc1               = 10
	dxgiSwapChainPresent               = 8
	dxgiSwapChainGetBuffer             = 9
	dxgiSwapChain3GetCurrentBackBuffer = 36

	debugEnableDebugLayer       = 3
	infoQueueSetBreakOnSeverity = 31
	blobGetBufferPointer        = 3
	blobGetBufferSize           = 4

	deviceCreateCommandQueue           = 8
	deviceCreateCommandAllocator       = 9
	deviceCreateCommandList            = 12
	deviceCheckFeatureSupport          = 13
	deviceCreateDescriptorHeap         = 14
	deviceGetDescriptorHandleIncrement = 15
	deviceCreateRootSignature          = 16
	deviceCreateConstantBufferView     = 17
	deviceCreateShaderResourceView     = 18
	deviceCreateUnorderedAccessView    = 19
	deviceCreateRenderTargetView       = 20
	deviceCreateDepthStencilView       = 21
	deviceGetResourceAllocationInfo    = 25
	deviceCreateHeap                   = 28
	deviceCreatePlacedResource         = 29
	deviceCreateFence                  = 36
	deviceGetDeviceRemovedReason       = 37
	device2CreatePipelineState         = 47

	descHeapGetCPUHandleForHeapStart = 9
	resourceMap                      = 8
	resourceUnmap                    = 9
	resourceGetGPUVirtualAddress     = 11
	cmdAllocatorReset                = 8

	fenceGetCompletedValue    = 8
	fenceSetEventOnCompletion = 9
	fenceSignal               = 10

	queueExecuteCommandLists = 10
	queueSignal              = 14

	listClose                    = 9
	listReset                    = 10
	listCopyBufferRegion         = 15
	listRSSetViewports           = 21
	listRSSetScissorRects        = 22
	listSetPipelineState         = 25
	listResourceBarrier          = 26
	listSetGraphicsRootSignature = 30
	listSetGraphicsRootCBV       = 38
	listSetGraphicsRootSRV       = 40
	listSetGraphicsRootUAV       = 42
	listOMSetRenderTargets       = 46
	listClearDepthStencilView    = 47
	listClearRenderTargetView    = 48
	list6DispatchMesh            = 79
)

// HRESULT values that map to driver errors.
const (
	hrOutOfMemory         = 0x8007000e
	hrDeviceRemoved       = 0x887a0005
	hrDeviceHung          = 0x887a0006
	hrDeviceReset         = 0x887a0007
	hrDriverInternalError = 0x887a0020
)

// comVtblFn returns the function at index idx of obj's
// vtable.
func comVtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// call invokes method idx of obj.
// Arguments must not be derived from Go pointers, since
// the conversion happens outside the syscall expression.
func call(obj uintptr, idx int, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(comVtblFn(obj, idx), append([]uintptr{obj}, args...)...)
	return r
}

// release decrements obj's reference count.
// It is a no-op for a zero obj.
func release(obj uintptr) {
	if obj != 0 {
		call(obj, iunknownRelease)
	}
}

// queryInterface obtains the iid interface of obj.
func queryInterface(obj uintptr, iid *windows.GUID) (uintptr, error) {
	var out uintptr
	hr, _, _ := syscall.SyscallN(comVtblFn(obj, iunknownQueryInterface), obj, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if err := check(hr, "QueryInterface"); err != nil {
		return 0, err
	}
	return out, nil
}

// check converts a failed HRESULT into an error whose
// message is the system's description of the code.
func check(hr uintptr, op string) error {
	if int32(hr) >= 0 {
		return nil
	}
	msg := windows.Errno(uint32(hr)).Error()
	var err error
	switch uint32(hr) {
	case hrOutOfMemory:
		err = driver.ErrNoHostMemory
	case hrDeviceRemoved, hrDeviceHung, hrDeviceReset, hrDriverInternalError:
		err = driver.ErrFatal
	default:
		return errors.Errorf("d3d12: %s failed: %s (%#08x)", op, msg, uint32(hr))
	}
	return errors.Wrapf(err, "d3d12: %s failed: %s (%#08x)", op, msg, uint32(hr))
}

// blobBytes copies the contents of an ID3DBlob.
func blobBytes(blob uintptr) []byte {
	p := call(blob, blobGetBufferPointer)
	n := call(blob, blobGetBufferSize)
	if p == 0 || n == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(p)), n)...)
}

func b2u(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}
