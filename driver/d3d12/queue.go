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

// commandQueueDesc matches D3D12_COMMAND_QUEUE_DESC.
type commandQueueDesc struct {
	Type     int32
	Priority int32
	Flags    uint32
	NodeMask uint32
}

const queuePriorityHigh = 100

// queue implements driver.Queue.
type queue struct {
	gpu *GPU
	q   uintptr // ID3D12CommandQueue
}

func newQueue(g *GPU) (*queue, error) {
	desc := commandQueueDesc{Type: cmdListTypeDirect, Priority: queuePriorityHigh}
	q := &queue{gpu: g}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateCommandQueue), g.dev, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&iidID3D12CommandQueue)), uintptr(unsafe.Pointer(&q.q)))
	if err := check(hr, "CreateCommandQueue"); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *queue) destroy() {
	release(q.q)
	q.q = 0
}

// Execute submits closed command lists for execution.
func (q *queue) Execute(cl []driver.CmdList) error {
	if len(cl) == 0 {
		return nil
	}
	lists := make([]uintptr, len(cl))
	for i, x := range cl {
		l, ok := x.(*CmdList)
		if !ok || l.cl == 0 {
			return errors.New("d3d12: Execute: invalid command list")
		}
		lists[i] = l.cl
	}
	syscall.SyscallN(comVtblFn(q.q, queueExecuteCommandLists), q.q, uintptr(len(lists)), uintptr(unsafe.Pointer(&lists[0])))
	return q.gpu.removed()
}

// Signal sets f to v once previously submitted work
// completes.
func (q *queue) Signal(f driver.Fence, v uint64) error {
	x, ok := f.(*Fence)
	if !ok {
		return errors.New("d3d12: Signal: invalid fence")
	}
	return check(call(q.q, queueSignal, x.f, uintptr(v)), "CommandQueue.Signal")
}

// Fence implements driver.Fence.
type Fence struct {
	gpu   *GPU
	f     uintptr // ID3D12Fence
	event windows.Handle
}

// NewFence creates a new fence and its wait event.
func (g *GPU) NewFence(initial uint64) (driver.Fence, error) {
	f := &Fence{gpu: g}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateFence), g.dev, uintptr(initial), 0, uintptr(unsafe.Pointer(&iidID3D12Fence)), uintptr(unsafe.Pointer(&f.f)))
	if err := check(hr, "CreateFence"); err != nil {
		return nil, err
	}
	ev, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		release(f.f)
		return nil, errors.Wrap(err, "d3d12: CreateEvent failed")
	}
	f.event = ev
	return f, nil
}

// Completed returns the fence's current value.
func (f *Fence) Completed() uint64 {
	return uint64(call(f.f, fenceGetCompletedValue))
}

// Signal sets the fence's value from the CPU.
func (f *Fence) Signal(v uint64) error {
	return check(call(f.f, fenceSignal, uintptr(v)), "Fence.Signal")
}

// Wait blocks until the fence reaches v.
func (f *Fence) Wait(v uint64) error {
	if f.Completed() >= v {
		return nil
	}
	if err := check(call(f.f, fenceSetEventOnCompletion, uintptr(v), uintptr(f.event)), "SetEventOnCompletion"); err != nil {
		return err
	}
	if _, err := windows.WaitForSingleObject(f.event, windows.INFINITE); err != nil {
		return errors.Wrap(err, "d3d12: WaitForSingleObject failed")
	}
	// A removed device signals every fence with the
	// maximum value.
	if f.Completed() == ^uint64(0) {
		return f.gpu.removed()
	}
	return nil
}

// Destroy destroys the fence.
func (f *Fence) Destroy() {
	if f == nil || f.f == 0 {
		return
	}
	windows.CloseHandle(f.event)
	release(f.f)
	*f = Fence{}
}
