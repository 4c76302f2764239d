// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
)

func TestFrameState(t *testing.T) {
	for s, x := range map[FrameState]string{
		FrameIdle:      "Idle",
		FrameRecording: "Recording",
		FrameSubmitted: "Submitted",
		FrameComplete:  "Complete",
		FrameFailed:    "Failed",
	} {
		assert.Equal(t, x, s.String())
	}
}

func TestFrameTransitions(t *testing.T) {
	cfg := testConfig(t)
	e, _ := newEngine(t, &cfg)
	f := e.frame
	p, err := e.pass()
	require.NoError(t, err)

	require.Equal(t, FrameIdle, f.State())
	assert.ErrorIs(t, f.Record(p), ErrFrameState)
	assert.ErrorIs(t, f.Submit(), ErrFrameState)
	assert.ErrorIs(t, f.Wait(), ErrFrameState)
	assert.ErrorIs(t, f.present(e.tgts, false), ErrFrameState)

	require.NoError(t, f.Begin())
	require.Equal(t, FrameRecording, f.State())
	assert.Equal(t, uint64(0), f.Completed())
	assert.ErrorIs(t, f.Begin(), ErrFrameState)
	assert.ErrorIs(t, f.Submit(), ErrFrameState)
	assert.ErrorIs(t, f.Wait(), ErrFrameState)

	require.NoError(t, f.Record(p))
	assert.ErrorIs(t, f.Record(p), ErrFrameState)
	require.NoError(t, f.Submit())
	require.Equal(t, FrameSubmitted, f.State())
	assert.ErrorIs(t, f.Begin(), ErrFrameState)
	assert.ErrorIs(t, f.present(e.tgts, false), ErrFrameState)

	require.NoError(t, f.Wait())
	require.Equal(t, FrameComplete, f.State())
	assert.Equal(t, uint64(1), f.Completed())
	assert.ErrorIs(t, f.Begin(), ErrFrameState)

	require.NoError(t, f.present(e.tgts, false))
	require.Equal(t, FrameIdle, f.State())
	checkPresented(t, e)

	// The next frame targets the next image.
	require.NoError(t, e.Frame(identity()))
	checkPresented(t, e)
}

func TestFrameDestroyIdle(t *testing.T) {
	g := openGPU(t)
	f, err := newFrame(g)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Completed())
	// The initial fence value is complete, so this does
	// not block.
	f.destroy()
	assert.Zero(t, g.Live())
}

func TestFrameDestroyRecording(t *testing.T) {
	g := openGPU(t)
	f, err := newFrame(g)
	require.NoError(t, err)
	require.NoError(t, f.Begin())
	assert.Zero(t, f.Completed())
	// Nothing was submitted, so there is nothing to wait for.
	f.destroy()
	assert.Zero(t, g.Live())
}

func TestFrameSubmitLost(t *testing.T) {
	cfg := testConfig(t)
	e, g := newEngine(t, &cfg)
	f := e.frame
	p, err := e.pass()
	require.NoError(t, err)
	require.NoError(t, f.Begin())
	require.NoError(t, f.Record(p))

	g.Lose("device removed")
	assert.ErrorIs(t, f.Submit(), driver.ErrFatal)
	require.Equal(t, FrameFailed, f.State())
	assert.ErrorIs(t, f.Wait(), ErrFrameState)
	assert.ErrorIs(t, f.Begin(), ErrFrameState)
	assert.ErrorIs(t, e.Frame(identity()), ErrFrameState)

	// No completion signal was queued, so Close must not
	// wait for one.
	done := make(chan error, 1)
	go func() { done <- e.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Engine.Close did not return")
	}
}

// stuckFence is a fence whose wait fails.
type stuckFence struct {
	driver.Fence
	err error
}

func (f stuckFence) Completed() uint64 { return 0 }
func (f stuckFence) Wait(uint64) error { return f.err }

func TestFrameCloseWaitError(t *testing.T) {
	cfg := testConfig(t)
	e, _ := newEngine(t, &cfg)
	require.NoError(t, e.Frame(identity()))

	errWait := errors.New("wait failed")
	e.frame.fence = stuckFence{e.frame.fence, errWait}
	e.frame.state = FrameSubmitted
	err := e.Close()
	assert.ErrorIs(t, err, errWait)
	assert.ErrorContains(t, err, "engine: Close")
}
