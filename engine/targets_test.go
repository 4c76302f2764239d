// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/engine/desc"
	"github.com/gviegas/meshdraw/wsi"
)

func TestTargets(t *testing.T) {
	g := openGPU(t)
	heap, err := desc.NewHeap(g, driver.DescRTV, 3)
	require.NoError(t, err)
	defer heap.Destroy()

	tg, err := newTargets(g, heap, wsi.NewHeadless(64, 32, 0), 3)
	require.NoError(t, err)
	assert.Len(t, tg.images, 3)
	assert.Equal(t, 0, heap.Free())
	assert.Equal(t, 64, tg.width)
	assert.Equal(t, 32, tg.height)

	// Current is stable until a present.
	cur := tg.current()
	assert.Equal(t, cur, tg.current())
	img, h, err := tg.view(cur)
	require.NoError(t, err)
	assert.Equal(t, tg.images[cur], img)
	assert.Equal(t, desc.SlotHandle(heap.Start(), tg.rtv[cur], heap.Increment()), h)

	require.NoError(t, tg.present(false))
	assert.Equal(t, (cur+1)%3, tg.current())
	assert.Equal(t, tg.current(), tg.current())

	_, _, err = tg.view(3)
	assert.Error(t, err)

	tg.destroy()
	assert.Equal(t, 3, heap.Free())
}

func TestTargetsError(t *testing.T) {
	g := openGPU(t)
	rtvs, err := desc.NewHeap(g, driver.DescRTV, 2)
	require.NoError(t, err)
	defer rtvs.Destroy()
	dsvs, err := desc.NewHeap(g, driver.DescDSV, 2)
	require.NoError(t, err)
	defer dsvs.Destroy()
	win := wsi.NewHeadless(64, 32, 0)

	_, err = newTargets(g, rtvs, win, 1)
	assert.Error(t, err)
	_, err = newTargets(g, rtvs, win, 3)
	assert.Error(t, err)
	_, err = newTargets(g, dsvs, win, 2)
	assert.Error(t, err)
	_, err = newTargets(g, rtvs, wsi.NewHeadless(0, 32, 0), 2)
	assert.ErrorIs(t, err, driver.ErrSurface)
	assert.Equal(t, 2, rtvs.Free())
}
