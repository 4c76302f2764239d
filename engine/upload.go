// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/engine/alloc"
)

// Upload creates a device-local buffer containing data.
// The buffer is left in finalState. The copy leaves it in
// driver.StateCopyDest, so a transition is recorded
// unless finalState is driver.StateCopyDest.
// Upload blocks until the copy completes, so it is meant
// for setup code and not for the frame loop.
func Upload(gpu driver.GPU, al *alloc.Allocator, data []byte, usg driver.Usage, finalState driver.State) (driver.Resource, *alloc.Allocation, error) {
	n := int64(len(data))
	if n == 0 {
		return nil, nil, errors.New("engine: Upload: no data")
	}
	var stk Stack
	defer stk.Unwind()

	sdesc := driver.Buffer(n, 0)
	stg, sal, err := al.Allocate(driver.HeapUpload, &sdesc, driver.StateGenericRead, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "engine: Upload: staging buffer")
	}
	stk.Push("staging buffer", func() { al.Release(stg, sal) })
	p, err := stg.Map()
	if err != nil {
		return nil, nil, errors.Wrap(err, "engine: Upload")
	}
	copy(p, data)
	stg.Unmap()

	ddesc := driver.Buffer(n, usg)
	dst, dal, err := al.Allocate(driver.HeapDefault, &ddesc, driver.StateCopyDest, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "engine: Upload: destination buffer")
	}
	keep := false
	stk.Push("destination buffer", func() {
		if !keep {
			al.Release(dst, dal)
		}
	})
	err = oneShot(gpu, &stk, func(cl driver.CmdList) {
		cl.CopyBuffer(dst, 0, stg, 0, n)
		if finalState != driver.StateCopyDest {
			cl.Barrier([]driver.Transition{{Res: dst, Before: driver.StateCopyDest, After: finalState}})
		}
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "engine: Upload")
	}
	keep = true
	return dst, dal, nil
}

// Readback copies the first n bytes of res, which must be
// in state, to host memory.
// res is returned to state afterwards.
func Readback(gpu driver.GPU, al *alloc.Allocator, res driver.Resource, state driver.State, n int64) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("engine: Readback: no data")
	}
	var stk Stack
	defer stk.Unwind()

	rdesc := driver.Buffer(n, 0)
	rb, ral, err := al.Allocate(driver.HeapReadback, &rdesc, driver.StateCopyDest, nil)
	if err != nil {
		return nil, errors.Wrap(err, "engine: Readback: readback buffer")
	}
	stk.Push("readback buffer", func() { al.Release(rb, ral) })
	err = oneShot(gpu, &stk, func(cl driver.CmdList) {
		if state != driver.StateCopySource {
			cl.Barrier([]driver.Transition{{Res: res, Before: state, After: driver.StateCopySource}})
		}
		cl.CopyBuffer(rb, 0, res, 0, n)
		if state != driver.StateCopySource {
			cl.Barrier([]driver.Transition{{Res: res, Before: driver.StateCopySource, After: state}})
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "engine: Readback")
	}
	p, err := rb.Map()
	if err != nil {
		return nil, errors.Wrap(err, "engine: Readback")
	}
	b := append([]byte(nil), p[:n]...)
	rb.Unmap()
	return b, nil
}

// oneShot records commands with private objects, executes
// them and waits for completion.
// The objects are pushed onto stk, so they are released
// before anything that stk already holds.
func oneShot(gpu driver.GPU, stk *Stack, record func(driver.CmdList)) error {
	ca, err := gpu.NewCmdAllocator()
	if err != nil {
		return err
	}
	stk.Push("command allocator", ca.Destroy)
	cl, err := gpu.NewCmdList(ca)
	if err != nil {
		return err
	}
	stk.Push("command list", cl.Destroy)
	fence, err := gpu.NewFence(0)
	if err != nil {
		return err
	}
	stk.Push("fence", fence.Destroy)

	if err := cl.Reset(ca); err != nil {
		return err
	}
	record(cl)
	if err := cl.Close(); err != nil {
		return err
	}
	q := gpu.Queue()
	if err := q.Execute([]driver.CmdList{cl}); err != nil {
		return err
	}
	if err := q.Signal(fence, 1); err != nil {
		return err
	}
	if fence.Completed() < 1 {
		return fence.Wait(1)
	}
	return nil
}
