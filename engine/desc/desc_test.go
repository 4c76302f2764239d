// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package desc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/driver/soft"
	"github.com/gviegas/meshdraw/engine/desc"
)

func newGPU(t *testing.T) *soft.GPU {
	t.Helper()
	d := &soft.Driver{}
	g, err := d.Open(driver.Config{Debug: true})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return g.(*soft.GPU)
}

func TestSlotHandle(t *testing.T) {
	for _, inc := range []int{8, 24, 32} {
		start := driver.CPUHandle(0x1000000)
		prev := desc.SlotHandle(start, 0, inc)
		assert.Equal(t, start, prev)
		for i := 1; i < 64; i++ {
			h := desc.SlotHandle(start, i, inc)
			assert.Equal(t, h, desc.SlotHandle(start, i, inc))
			assert.Greater(t, h, prev)
			assert.Equal(t, driver.CPUHandle(inc), h-prev)
			prev = h
		}
	}
}

func TestNewHeap(t *testing.T) {
	g := newGPU(t)
	for _, k := range []driver.DescKind{driver.DescRTV, driver.DescDSV, driver.DescCBVSRVUAV} {
		h, err := desc.NewHeap(g, k, 3)
		require.NoError(t, err)
		assert.Equal(t, k, h.Kind())
		assert.Equal(t, 3, h.Len())
		assert.Equal(t, 3, h.Free())
		assert.Equal(t, g.DescIncrement(k), h.Increment())
		h.Destroy()
		h.Destroy()
	}
	_, err := desc.NewHeap(g, driver.DescRTV, 0)
	assert.Error(t, err)
	_, err = desc.NewHeap(g, driver.DescKind(1), 1)
	assert.Error(t, err)
	assert.Empty(t, g.Violations())
}

func TestAlloc(t *testing.T) {
	g := newGPU(t)
	h, err := desc.NewHeap(g, driver.DescRTV, 2)
	require.NoError(t, err)
	defer h.Destroy()

	i, err := h.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	j, err := h.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 1, j)
	_, err = h.Alloc()
	assert.ErrorIs(t, err, desc.ErrFull)

	require.NoError(t, h.Release(0))
	assert.ErrorIs(t, h.Release(0), desc.ErrSlot)
	assert.ErrorIs(t, h.Release(2), desc.ErrSlot)
	i, err = h.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 0, i)
}

func TestHandle(t *testing.T) {
	g := newGPU(t)
	mem, err := g.NewMemory(driver.HeapUpload, 65536)
	require.NoError(t, err)
	defer mem.Destroy()
	bd := driver.Buffer(1024, 0)
	buf, err := g.NewResource(mem, 0, &bd, driver.StateGenericRead, nil)
	require.NoError(t, err)
	defer buf.Destroy()

	h, err := desc.NewHeap(g, driver.DescCBVSRVUAV, 4)
	require.NoError(t, err)
	defer h.Destroy()

	cbv, err := h.Alloc()
	require.NoError(t, err)
	_, err = h.Handle(cbv)
	assert.ErrorIs(t, err, driver.ErrUnwritten)

	require.NoError(t, h.WriteCBV(cbv, buf, 256))
	x, err := h.Handle(cbv)
	require.NoError(t, err)
	assert.Equal(t, desc.SlotHandle(x, 0, h.Increment()), x)

	srv, err := h.Alloc()
	require.NoError(t, err)
	require.NoError(t, h.WriteSRV(srv, buf, 16, 64))
	y, err := h.Handle(srv)
	require.NoError(t, err)
	assert.Equal(t, x+driver.CPUHandle(h.Increment()), y)

	// Overwriting is allowed.
	require.NoError(t, h.WriteUAV(srv, buf, 32, 32))

	// Released slots must be written again.
	require.NoError(t, h.Release(srv))
	srv, err = h.Alloc()
	require.NoError(t, err)
	_, err = h.Handle(srv)
	assert.ErrorIs(t, err, driver.ErrUnwritten)

	_, err = h.Handle(3)
	assert.ErrorIs(t, err, desc.ErrSlot)
	assert.Empty(t, g.Violations())
}

func TestWrongKind(t *testing.T) {
	g := newGPU(t)
	h, err := desc.NewHeap(g, driver.DescDSV, 1)
	require.NoError(t, err)
	defer h.Destroy()
	i, err := h.Alloc()
	require.NoError(t, err)
	assert.Error(t, h.WriteRTV(i, nil))
	assert.Error(t, h.WriteCBV(i, nil, 256))
	_, err = h.Handle(i)
	assert.ErrorIs(t, err, driver.ErrUnwritten)
}
