// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package desc manages slots of fixed-capacity descriptor
// heaps.
package desc

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/bitvec"
)

// ErrFull means that every slot of a heap is allocated.
var ErrFull = errors.New("desc: heap is full")

// ErrSlot means that a slot index is out of range or was
// not allocated.
var ErrSlot = errors.New("desc: invalid slot")

// SlotHandle returns the handle of the slot at index in a
// heap whose slot 0 is at start.
func SlotHandle(start driver.CPUHandle, index, increment int) driver.CPUHandle {
	return start + driver.CPUHandle(index*increment)
}

// Heap is a descriptor heap with slot allocation.
// Slots are reused lowest index first.
type Heap struct {
	gpu     driver.GPU
	heap    driver.DescHeap
	inc     int
	used    *bitvec.V[uint32]
	written *bitvec.V[uint32]
}

// NewHeap creates a heap of the given kind with n slots.
func NewHeap(gpu driver.GPU, kind driver.DescKind, n int) (*Heap, error) {
	if n <= 0 {
		return nil, errors.Errorf("desc: NewHeap: invalid capacity %d", n)
	}
	inc := gpu.DescIncrement(kind)
	if inc <= 0 {
		return nil, errors.Errorf("desc: NewHeap: invalid kind %d", kind)
	}
	heap, err := gpu.NewDescHeap(kind, n)
	if err != nil {
		return nil, errors.Wrapf(err, "desc: NewHeap(%v)", kind)
	}
	return &Heap{
		gpu:     gpu,
		heap:    heap,
		inc:     inc,
		used:    bitvec.New[uint32](n),
		written: bitvec.New[uint32](n),
	}, nil
}

// Kind returns the heap's kind.
func (h *Heap) Kind() driver.DescKind { return h.heap.Kind() }

// Len returns the heap's capacity.
func (h *Heap) Len() int { return h.used.Len() }

// Free returns the number of unallocated slots.
func (h *Heap) Free() int { return h.used.Rem() }

// Start returns the handle of the first slot.
func (h *Heap) Start() driver.CPUHandle { return h.heap.Start() }

// Increment returns the handle increment of the heap.
func (h *Heap) Increment() int { return h.inc }

// Alloc allocates a slot.
func (h *Heap) Alloc() (int, error) {
	i, ok := h.used.Search()
	if !ok {
		return -1, errors.Wrapf(ErrFull, "%v heap of %d slots", h.Kind(), h.Len())
	}
	h.used.Set(i)
	return i, nil
}

// Release frees the slot at index.
// The slot's view is discarded.
func (h *Heap) Release(index int) error {
	if err := h.check(index); err != nil {
		return err
	}
	h.used.Unset(index)
	h.written.Unset(index)
	return nil
}

func (h *Heap) check(index int) error {
	if index < 0 || index >= h.Len() || !h.used.IsSet(index) {
		return errors.Wrapf(ErrSlot, "%v slot %d", h.Kind(), index)
	}
	return nil
}

// slot validates index and the heap kind that a view
// requires.
func (h *Heap) slot(index int, kind driver.DescKind) (driver.CPUHandle, error) {
	if h.Kind() != kind {
		return 0, errors.Errorf("desc: %v view written to a %v heap", kind, h.Kind())
	}
	if err := h.check(index); err != nil {
		return 0, err
	}
	return SlotHandle(h.heap.Start(), index, h.inc), nil
}

// WriteRTV writes a render target view of res at index.
// Slots can be overwritten.
func (h *Heap) WriteRTV(index int, res driver.Resource) error {
	dst, err := h.slot(index, driver.DescRTV)
	if err != nil {
		return err
	}
	h.gpu.WriteRTV(res, dst)
	h.written.Set(index)
	return nil
}

// WriteDSV writes a depth/stencil view of res at index.
func (h *Heap) WriteDSV(index int, res driver.Resource) error {
	dst, err := h.slot(index, driver.DescDSV)
	if err != nil {
		return err
	}
	h.gpu.WriteDSV(res, dst)
	h.written.Set(index)
	return nil
}

// WriteCBV writes a constant buffer view of the first size
// bytes of res at index.
func (h *Heap) WriteCBV(index int, res driver.Resource, size int) error {
	dst, err := h.slot(index, driver.DescCBVSRVUAV)
	if err != nil {
		return err
	}
	h.gpu.WriteCBV(res, size, dst)
	h.written.Set(index)
	return nil
}

// WriteSRV writes a structured buffer view of res at
// index.
func (h *Heap) WriteSRV(index int, res driver.Resource, elems, stride int) error {
	dst, err := h.slot(index, driver.DescCBVSRVUAV)
	if err != nil {
		return err
	}
	h.gpu.WriteSRV(res, elems, stride, dst)
	h.written.Set(index)
	return nil
}

// WriteUAV writes an unordered access view of res at
// index.
func (h *Heap) WriteUAV(index int, res driver.Resource, elems, stride int) error {
	dst, err := h.slot(index, driver.DescCBVSRVUAV)
	if err != nil {
		return err
	}
	h.gpu.WriteUAV(res, elems, stride, dst)
	h.written.Set(index)
	return nil
}

// Handle returns the handle of the slot at index.
// It fails with driver.ErrUnwritten if no view was written
// into the slot.
func (h *Heap) Handle(index int) (driver.CPUHandle, error) {
	if err := h.check(index); err != nil {
		return 0, err
	}
	if !h.written.IsSet(index) {
		return 0, errors.Wrapf(driver.ErrUnwritten, "%v slot %d", h.Kind(), index)
	}
	return SlotHandle(h.heap.Start(), index, h.inc), nil
}

// Destroy destroys the heap.
func (h *Heap) Destroy() {
	if h == nil || h.heap == nil {
		return
	}
	h.heap.Destroy()
	*h = Heap{}
}
