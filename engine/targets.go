// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/engine/desc"
)

// Format of swapchain images.
const targetFormat = driver.BGRA8un

// targets is the set of swapchain images and their render
// target views.
type targets struct {
	sc     driver.Swapchain
	images []driver.Resource
	// Slot of images[i] in the RTV heap.
	rtv    []int
	heap   *desc.Heap
	width  int
	height int
}

// newTargets creates a swapchain of n images for s and
// writes a view of each image into its own slot of heap.
func newTargets(gpu driver.GPU, heap *desc.Heap, s driver.Surface, n int) (*targets, error) {
	pres, ok := gpu.(driver.Presenter)
	if !ok {
		return nil, errors.Wrap(driver.ErrCannotPresent, "engine")
	}
	if n < 2 {
		return nil, errors.Errorf("engine: swapchain needs at least 2 images, not %d", n)
	}
	if heap.Kind() != driver.DescRTV || heap.Free() < n {
		return nil, errors.Errorf("engine: RTV heap cannot hold %d views", n)
	}
	sc, err := pres.NewSwapchain(gpu.Queue(), s, n, targetFormat)
	if err != nil {
		return nil, errors.Wrap(err, "engine: swapchain")
	}
	t := &targets{
		sc:     sc,
		images: sc.Images(),
		heap:   heap,
		width:  s.Width(),
		height: s.Height(),
	}
	for _, img := range t.images {
		i, err := heap.Alloc()
		if err != nil {
			t.destroy()
			return nil, err
		}
		t.rtv = append(t.rtv, i)
		if err := heap.WriteRTV(i, img); err != nil {
			t.destroy()
			return nil, err
		}
	}
	return t, nil
}

// current returns the index of the image to render next.
// It is queried from the swapchain on every call.
func (t *targets) current() int { return t.sc.Current() }

// view returns the image at index i and its RTV handle.
func (t *targets) view(i int) (driver.Resource, driver.CPUHandle, error) {
	if i < 0 || i >= len(t.images) {
		return nil, 0, errors.Errorf("engine: image index %d out of range", i)
	}
	h, err := t.heap.Handle(t.rtv[i])
	if err != nil {
		return nil, 0, err
	}
	return t.images[i], h, nil
}

// present presents the current image.
func (t *targets) present(vsync bool) error {
	return t.sc.Present(vsync)
}

// destroy releases the RTV slots and then the swapchain.
func (t *targets) destroy() {
	for i := len(t.rtv) - 1; i >= 0; i-- {
		t.heap.Release(t.rtv[i])
	}
	t.rtv = nil
	if t.sc != nil {
		t.sc.Destroy()
		t.sc = nil
	}
}
