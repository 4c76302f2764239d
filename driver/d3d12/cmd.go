// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"math"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// CmdAllocator implements driver.CmdAllocator.
type CmdAllocator struct {
	ca uintptr // ID3D12CommandAllocator
}

// NewCmdAllocator creates a new command allocator.
func (g *GPU) NewCmdAllocator() (driver.CmdAllocator, error) {
	a := &CmdAllocator{}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateCommandAllocator), g.dev, cmdListTypeDirect, uintptr(unsafe.Pointer(&iidID3D12CommandAllocator)), uintptr(unsafe.Pointer(&a.ca)))
	if err := check(hr, "CreateCommandAllocator"); err != nil {
		return nil, err
	}
	return a, nil
}

// Reset reclaims the memory of recorded commands.
func (a *CmdAllocator) Reset() error {
	return check(call(a.ca, cmdAllocatorReset), "CommandAllocator.Reset")
}

// Destroy destroys the allocator.
func (a *CmdAllocator) Destroy() {
	if a == nil {
		return
	}
	release(a.ca)
	*a = CmdAllocator{}
}

// resourceBarrier matches D3D12_RESOURCE_BARRIER for
// transitions.
type resourceBarrier struct {
	Type        uint32
	Flags       uint32
	Resource    uintptr
	Subresource uint32
	StateBefore uint32
	StateAfter  uint32
}

const (
	barrierTypeTransition = 0
	allSubresources       = 0xffffffff
	clearFlagDepth        = 0x1
)

// CmdList implements driver.CmdList.
type CmdList struct {
	cl  uintptr // ID3D12GraphicsCommandList6
	err error
}

// NewCmdList creates a new, closed, command list.
func (g *GPU) NewCmdList(ca driver.CmdAllocator) (driver.CmdList, error) {
	a, ok := ca.(*CmdAllocator)
	if !ok {
		return nil, errors.New("d3d12: NewCmdList: invalid allocator")
	}
	l := &CmdList{}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateCommandList), g.dev, 0, cmdListTypeDirect, a.ca, 0, uintptr(unsafe.Pointer(&iidID3D12GraphicsCommandList6)), uintptr(unsafe.Pointer(&l.cl)))
	if err := check(hr, "CreateCommandList"); err != nil {
		return nil, err
	}
	// Lists are created open.
	if err := check(call(l.cl, listClose), "CommandList.Close"); err != nil {
		release(l.cl)
		return nil, err
	}
	return l, nil
}

// Reset begins recording into ca.
func (l *CmdList) Reset(ca driver.CmdAllocator) error {
	a, ok := ca.(*CmdAllocator)
	if !ok {
		return errors.New("d3d12: CmdList.Reset: invalid allocator")
	}
	l.err = nil
	return check(call(l.cl, listReset, a.ca, 0), "CommandList.Reset")
}

// Close ends recording.
func (l *CmdList) Close() error {
	err := check(call(l.cl, listClose), "CommandList.Close")
	if l.err != nil {
		return l.err
	}
	return err
}

func (l *CmdList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// Destroy destroys the list.
func (l *CmdList) Destroy() {
	if l == nil {
		return
	}
	release(l.cl)
	*l = CmdList{}
}

// Barrier records resource state transitions.
func (l *CmdList) Barrier(t []driver.Transition) {
	if len(t) == 0 {
		return
	}
	b := make([]resourceBarrier, len(t))
	for i, x := range t {
		r := resOf(x.Res)
		if r == 0 {
			l.fail(errors.New("d3d12: Barrier: invalid resource"))
			return
		}
		b[i] = resourceBarrier{
			Type:        barrierTypeTransition,
			Resource:    r,
			Subresource: allSubresources,
			StateBefore: uint32(x.Before),
			StateAfter:  uint32(x.After),
		}
	}
	syscall.SyscallN(comVtblFn(l.cl, listResourceBarrier), l.cl, uintptr(len(b)), uintptr(unsafe.Pointer(&b[0])))
}

// ClearRTV clears a render target view.
func (l *CmdList) ClearRTV(h driver.CPUHandle, color [4]float32, rects []driver.Rect) {
	var rp *driver.Rect
	if len(rects) > 0 {
		rp = &rects[0]
	}
	syscall.SyscallN(comVtblFn(l.cl, listClearRenderTargetView), l.cl, uintptr(h), uintptr(unsafe.Pointer(&color)), uintptr(len(rects)), uintptr(unsafe.Pointer(rp)))
}

// ClearDSV clears the depth of a depth/stencil view.
// The float argument goes in the fourth register, which the
// call sequence copies to both integer and XMM registers.
func (l *CmdList) ClearDSV(h driver.CPUHandle, depth float32) {
	call(l.cl, listClearDepthStencilView, uintptr(h), clearFlagDepth, uintptr(math.Float32bits(depth)), 0, 0, 0)
}

// SetRenderTargets binds render target views and an
// optional depth/stencil view.
func (l *CmdList) SetRenderTargets(rtv []driver.CPUHandle, dsv *driver.CPUHandle) {
	if len(rtv) > driver.MaxRenderTargets {
		l.fail(errors.New("d3d12: SetRenderTargets: too many render targets"))
		return
	}
	var p *driver.CPUHandle
	if len(rtv) > 0 {
		p = &rtv[0]
	}
	syscall.SyscallN(comVtblFn(l.cl, listOMSetRenderTargets), l.cl, uintptr(len(rtv)), uintptr(unsafe.Pointer(p)), 0, uintptr(unsafe.Pointer(dsv)))
}

// SetViewport sets the viewport.
func (l *CmdList) SetViewport(vp driver.Viewport) {
	syscall.SyscallN(comVtblFn(l.cl, listRSSetViewports), l.cl, 1, uintptr(unsafe.Pointer(&vp)))
}

// SetScissor sets the scissor rectangle.
func (l *CmdList) SetScissor(r driver.Rect) {
	syscall.SyscallN(comVtblFn(l.cl, listRSSetScissorRects), l.cl, 1, uintptr(unsafe.Pointer(&r)))
}

// SetRootSig binds a graphics root signature.
func (l *CmdList) SetRootSig(rs driver.RootSig) {
	s, ok := rs.(*RootSig)
	if !ok {
		l.fail(errors.New("d3d12: SetRootSig: invalid root signature"))
		return
	}
	call(l.cl, listSetGraphicsRootSignature, s.rs)
}

// SetPipelineState binds a pipeline state object.
func (l *CmdList) SetPipelineState(ps driver.PipelineState) {
	p, ok := ps.(*Pipeline)
	if !ok {
		l.fail(errors.New("d3d12: SetPipelineState: invalid pipeline"))
		return
	}
	call(l.cl, listSetPipelineState, p.pso)
}

func (l *CmdList) setRoot(idx int, name string, param int, res driver.Resource) {
	r, ok := res.(*Resource)
	if !ok {
		l.fail(errors.Errorf("d3d12: %s: invalid resource", name))
		return
	}
	call(l.cl, idx, uintptr(param), r.gpuAddress())
}

// SetRootCBV binds res to a constant buffer root parameter.
func (l *CmdList) SetRootCBV(param int, res driver.Resource) {
	l.setRoot(listSetGraphicsRootCBV, "SetRootCBV", param, res)
}

// SetRootSRV binds res to a shader resource root parameter.
func (l *CmdList) SetRootSRV(param int, res driver.Resource) {
	l.setRoot(listSetGraphicsRootSRV, "SetRootSRV", param, res)
}

// SetRootUAV binds res to an unordered access root
// parameter.
func (l *CmdList) SetRootUAV(param int, res driver.Resource) {
	l.setRoot(listSetGraphicsRootUAV, "SetRootUAV", param, res)
}

// DispatchMesh launches amplification/mesh shader groups.
func (l *CmdList) DispatchMesh(x, y, z int) {
	call(l.cl, list6DispatchMesh, uintptr(x), uintptr(y), uintptr(z))
}

// CopyBuffer copies n bytes between buffers.
func (l *CmdList) CopyBuffer(dst driver.Resource, dstOff int64, src driver.Resource, srcOff int64, n int64) {
	d, s := resOf(dst), resOf(src)
	if d == 0 || s == 0 {
		l.fail(errors.New("d3d12: CopyBuffer: invalid resource"))
		return
	}
	call(l.cl, listCopyBufferRegion, d, uintptr(dstOff), s, uintptr(srcOff), uintptr(n))
}
