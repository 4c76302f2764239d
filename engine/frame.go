// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// ErrFrameState means that a Frame method was called in a
// state that does not allow it.
var ErrFrameState = errors.New("engine: invalid frame state")

// FrameState is the type of Frame states.
type FrameState int

// Frame states.
// A frame cycles through them in order, returning to
// FrameIdle once the image is presented.
const (
	FrameIdle FrameState = iota
	FrameRecording
	FrameSubmitted
	FrameComplete
	// Submit or Wait failed. The frame cannot be used
	// again.
	FrameFailed
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "Idle"
	case FrameRecording:
		return "Recording"
	case FrameSubmitted:
		return "Submitted"
	case FrameComplete:
		return "Complete"
	case FrameFailed:
		return "Failed"
	}
	return "FrameState(?)"
}

// Pass describes the commands that a Frame records.
type Pass struct {
	// Image to render to and its RTV.
	Target driver.Resource
	RTV    driver.CPUHandle
	// Optional depth view. It is cleared to 1.
	DSV    *driver.CPUHandle

	Width, Height int
	ClearColor    [4]float32

	RootSig  driver.RootSig
	Pipeline driver.PipelineState

	// Optional root arguments, bound to parameters 0, 1, 2
	// and 3 in this order. A nil resource ends the list.
	CBV  driver.Resource
	SRVs [2]driver.Resource
	UAV  driver.Resource
}

// Frame records, submits and waits on a single command
// list. CPU and GPU work is serialized: a frame must be
// presented before the next one begins.
// The fence only ever holds the values 0 and 1.
type Frame struct {
	q     driver.Queue
	ca    driver.CmdAllocator
	cl    driver.CmdList
	fence driver.Fence
	state FrameState

	// Whether the list was closed by Record.
	recorded bool
}

// newFrame creates the command allocator, list and fence
// of a frame.
func newFrame(gpu driver.GPU) (*Frame, error) {
	var (
		f   = &Frame{q: gpu.Queue()}
		err error
	)
	if f.ca, err = gpu.NewCmdAllocator(); err != nil {
		goto fail
	}
	if f.cl, err = gpu.NewCmdList(f.ca); err != nil {
		goto fail
	}
	// A completed initial value lets teardown wait on a
	// frame that never ran.
	if f.fence, err = gpu.NewFence(1); err != nil {
		goto fail
	}
	return f, nil
fail:
	f.destroy()
	return nil, errors.Wrap(err, "engine: frame")
}

// State returns the frame's state.
func (f *Frame) State() FrameState { return f.state }

func (f *Frame) expect(op string, s FrameState) error {
	if f.state != s {
		return errors.Wrapf(ErrFrameState, "%s in %v state", op, f.state)
	}
	return nil
}

// Begin resets the fence to 0 and prepares the command
// list for recording.
func (f *Frame) Begin() error {
	if err := f.expect("Begin", FrameIdle); err != nil {
		return err
	}
	if err := f.fence.Signal(0); err != nil {
		return err
	}
	if err := f.ca.Reset(); err != nil {
		return err
	}
	if err := f.cl.Reset(f.ca); err != nil {
		return err
	}
	f.state = FrameRecording
	return nil
}

// Record records p and closes the command list.
// The target goes from StatePresent to StateRenderTarget
// and back.
func (f *Frame) Record(p *Pass) error {
	if err := f.expect("Record", FrameRecording); err != nil {
		return err
	}
	if f.recorded {
		return errors.Wrap(ErrFrameState, "Record after Record")
	}
	cl := f.cl
	cl.Barrier([]driver.Transition{{Res: p.Target, Before: driver.StatePresent, After: driver.StateRenderTarget}})

	rect := driver.Rect{Right: int32(p.Width), Bottom: int32(p.Height)}
	cl.SetViewport(driver.Viewport{Width: float32(p.Width), Height: float32(p.Height), MaxDepth: 1})
	cl.SetScissor(rect)
	cl.ClearRTV(p.RTV, p.ClearColor, []driver.Rect{rect})
	if p.DSV != nil {
		cl.ClearDSV(*p.DSV, 1)
	}
	cl.SetRenderTargets([]driver.CPUHandle{p.RTV}, p.DSV)

	cl.SetRootSig(p.RootSig)
	cl.SetPipelineState(p.Pipeline)
	if p.CBV != nil {
		cl.SetRootCBV(0, p.CBV)
		if p.SRVs[0] != nil && p.SRVs[1] != nil {
			cl.SetRootSRV(1, p.SRVs[0])
			cl.SetRootSRV(2, p.SRVs[1])
			if p.UAV != nil {
				cl.SetRootUAV(3, p.UAV)
			}
		}
	}
	cl.DispatchMesh(1, 1, 1)

	cl.Barrier([]driver.Transition{{Res: p.Target, Before: driver.StateRenderTarget, After: driver.StatePresent}})
	if err := cl.Close(); err != nil {
		// The list is closed regardless, so the frame
		// can begin again.
		f.state = FrameIdle
		return err
	}
	f.recorded = true
	return nil
}

// Submit executes the recorded list between queue signals
// of 0 and 1.
func (f *Frame) Submit() error {
	if err := f.expect("Submit", FrameRecording); err != nil {
		return err
	}
	if !f.recorded {
		return errors.Wrap(ErrFrameState, "Submit before Record")
	}
	f.recorded = false
	// Without the signal of 1 there is nothing to wait on.
	f.state = FrameFailed
	if err := f.q.Signal(f.fence, 0); err != nil {
		return errors.Wrap(err, "engine: Submit")
	}
	if err := f.q.Execute([]driver.CmdList{f.cl}); err != nil {
		return errors.Wrap(err, "engine: Submit")
	}
	if err := f.q.Signal(f.fence, 1); err != nil {
		return errors.Wrap(err, "engine: Submit")
	}
	f.state = FrameSubmitted
	return nil
}

// Wait blocks until the submitted work completes.
func (f *Frame) Wait() error {
	if err := f.expect("Wait", FrameSubmitted); err != nil {
		return err
	}
	if err := f.wait(); err != nil {
		f.state = FrameFailed
		return errors.Wrap(err, "engine: Wait")
	}
	f.state = FrameComplete
	return nil
}

func (f *Frame) wait() error {
	if f.fence.Completed() < 1 {
		return f.fence.Wait(1)
	}
	return nil
}

// present presents the image of a completed frame.
func (f *Frame) present(t *targets, vsync bool) error {
	if err := f.expect("Present", FrameComplete); err != nil {
		return err
	}
	if err := t.present(vsync); err != nil {
		return err
	}
	f.state = FrameIdle
	return nil
}

// Completed returns the fence's value.
func (f *Frame) Completed() uint64 { return f.fence.Completed() }

// destroy waits for submitted work and then destroys the
// frame's objects.
// It returns the error of the wait, if any.
func (f *Frame) destroy() (err error) {
	if f.fence != nil {
		if f.state == FrameSubmitted {
			err = f.wait()
		}
		f.fence.Destroy()
	}
	if f.cl != nil {
		f.cl.Destroy()
	}
	if f.ca != nil {
		f.ca.Destroy()
	}
	*f = Frame{}
	return
}
