// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/driver/soft"
	"github.com/gviegas/meshdraw/engine/alloc"
)

func newGPU(t *testing.T) *soft.GPU {
	t.Helper()
	d := &soft.Driver{}
	g, err := d.Open(driver.Config{Debug: true})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return g.(*soft.GPU)
}

func bufDesc(n int64) *driver.ResourceDesc {
	desc := driver.Buffer(n, 0)
	return &desc
}

func TestNew(t *testing.T) {
	g := newGPU(t)
	assert.Equal(t, int64(alloc.DefaultBlockSize), alloc.New(g, 0).BlockSize())
	assert.Equal(t, int64(2*alloc.PageSize), alloc.New(g, alloc.PageSize+1).BlockSize())
}

func TestAllocatePooled(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	defer a.Close()

	r1, al1, err := a.Allocate(driver.HeapUpload, bufDesc(100), driver.StateGenericRead, nil)
	require.NoError(t, err)
	r2, al2, err := a.Allocate(driver.HeapUpload, bufDesc(alloc.PageSize+1), driver.StateGenericRead, nil)
	require.NoError(t, err)

	assert.False(t, al1.Dedicated())
	assert.Equal(t, driver.HeapUpload, al1.Kind())
	assert.Equal(t, int64(0), al1.Offset())
	assert.Equal(t, int64(alloc.PageSize), al1.Size())
	assert.Equal(t, int64(alloc.PageSize), al2.Offset())
	assert.Equal(t, int64(2*alloc.PageSize), al2.Size())

	s := a.Stats()
	assert.Equal(t, alloc.Stats{Blocks: 1, Allocations: 2, Reserved: 1 << 20, Used: 3 * alloc.PageSize}, s)

	require.NoError(t, a.Release(r1, al1))
	require.NoError(t, a.Release(r2, al2))
	s = a.Stats()
	assert.Equal(t, 0, s.Allocations)
	assert.Equal(t, int64(0), s.Used)
	// Pooled blocks survive until Close.
	assert.Equal(t, 1, s.Blocks)
}

func TestAllocateKinds(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	defer a.Close()

	r1, al1, err := a.Allocate(driver.HeapUpload, bufDesc(64), driver.StateGenericRead, nil)
	require.NoError(t, err)
	r2, al2, err := a.Allocate(driver.HeapReadback, bufDesc(64), driver.StateCopyDest, nil)
	require.NoError(t, err)
	r3, al3, err := a.Allocate(driver.HeapDefault, bufDesc(64), driver.StateCopyDest, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Stats().Blocks)
	for _, al := range []*alloc.Allocation{al1, al2, al3} {
		assert.Equal(t, int64(0), al.Offset())
	}
	require.NoError(t, a.Release(r3, al3))
	require.NoError(t, a.Release(r2, al2))
	require.NoError(t, a.Release(r1, al1))
}

func TestAllocateDedicated(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	defer a.Close()

	r, al, err := a.Allocate(driver.HeapUpload, bufDesc(768<<10), driver.StateGenericRead, nil)
	require.NoError(t, err)
	assert.True(t, al.Dedicated())
	assert.Equal(t, int64(0), al.Offset())
	s := a.Stats()
	assert.Equal(t, 0, s.Blocks)
	assert.Equal(t, 1, s.Dedicated)
	assert.Equal(t, int64(768<<10), s.Reserved)

	require.NoError(t, a.Release(r, al))
	s = a.Stats()
	assert.Equal(t, 0, s.Dedicated)
	assert.Equal(t, int64(0), s.Reserved)
	assert.Empty(t, g.Violations())
}

func TestReleaseTwice(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	defer a.Close()

	r, al, err := a.Allocate(driver.HeapUpload, bufDesc(16), driver.StateGenericRead, nil)
	require.NoError(t, err)
	require.NoError(t, a.Release(r, al))
	assert.ErrorIs(t, a.Release(r, al), alloc.ErrReleased)
	assert.Equal(t, 0, a.Stats().Allocations)
}

func TestReuse(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	defer a.Close()

	var (
		res [4]driver.Resource
		als [4]*alloc.Allocation
	)
	for i := range res {
		var err error
		res[i], als[i], err = a.Allocate(driver.HeapUpload, bufDesc(alloc.PageSize), driver.StateGenericRead, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(i)*alloc.PageSize, als[i].Offset())
	}
	require.NoError(t, a.Release(res[1], als[1]))
	r, al, err := a.Allocate(driver.HeapUpload, bufDesc(alloc.PageSize), driver.StateGenericRead, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(alloc.PageSize), al.Offset())
	require.NoError(t, a.Release(r, al))

	// Page 1 alone cannot hold two pages.
	r, al, err = a.Allocate(driver.HeapUpload, bufDesc(2*alloc.PageSize), driver.StateGenericRead, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4*alloc.PageSize), al.Offset())
	require.NoError(t, a.Release(r, al))

	for _, i := range []int{0, 2, 3} {
		require.NoError(t, a.Release(res[i], als[i]))
	}
}

func TestNoAlias(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 4*alloc.PageSize)
	defer a.Close()

	var (
		res []driver.Resource
		als []*alloc.Allocation
	)
	// Mixed sizes force new blocks.
	for i := 0; i < 12; i++ {
		n := int64(1+i%2) * alloc.PageSize
		r, al, err := a.Allocate(driver.HeapUpload, bufDesc(n), driver.StateGenericRead, nil)
		require.NoError(t, err)
		res = append(res, r)
		als = append(als, al)
	}
	assert.Greater(t, a.Stats().Blocks, 1)
	// The soft driver rejects overlapping placements, so
	// every successful allocation is disjoint.
	assert.Empty(t, g.Violations())
	for i := len(res) - 1; i >= 0; i-- {
		require.NoError(t, a.Release(res[i], als[i]))
	}
	assert.Equal(t, int64(0), a.Stats().Used)
}

func TestAllocateFailure(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	defer a.Close()

	// Textures cannot be placed in upload memory.
	desc := driver.Texture2D(driver.RGBA8un, 4, 4, 0)
	_, _, err := a.Allocate(driver.HeapUpload, &desc, driver.StateGenericRead, nil)
	require.Error(t, err)
	assert.Equal(t, 0, a.Stats().Allocations)
	assert.Equal(t, int64(0), a.Stats().Used)
}

func TestClose(t *testing.T) {
	g := newGPU(t)
	a := alloc.New(g, 1<<20)
	r, al, err := a.Allocate(driver.HeapDefault, bufDesc(1024), driver.StateCopyDest, nil)
	require.NoError(t, err)
	require.NoError(t, a.Release(r, al))
	a.Close()
	a.Close()
	assert.Equal(t, 0, g.Live())
	_, _, err = a.Allocate(driver.HeapDefault, bufDesc(1024), driver.StateCopyDest, nil)
	assert.ErrorIs(t, err, alloc.ErrClosed)
}
