// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// Handle increments per heap kind.
// They differ on purpose, so callers that assume a fixed
// increment compute wrong handles.
const (
	incCBVSRVUAV = 32
	incRTV       = 24
	incDSV       = 8
)

// Bits of a CPUHandle below the heap identifier.
const heapShift = 24

// DescIncrement returns the handle increment of kind.
func (g *GPU) DescIncrement(kind driver.DescKind) int {
	switch kind {
	case driver.DescCBVSRVUAV:
		return incCBVSRVUAV
	case driver.DescRTV:
		return incRTV
	case driver.DescDSV:
		return incDSV
	}
	return 0
}

type viewKind int

const (
	viewNone viewKind = iota
	viewRTV
	viewDSV
	viewCBV
	viewSRV
	viewUAV
)

func (k viewKind) String() string {
	return [...]string{"none", "RTV", "DSV", "CBV", "SRV", "UAV"}[k]
}

// view is the content of a descriptor slot.
type view struct {
	kind          viewKind
	res           *Resource
	size          int
	elems, stride int
}

// DescHeap implements driver.DescHeap.
type DescHeap struct {
	gpu   *GPU
	node  *node
	kind  driver.DescKind
	id    uintptr
	slots []view
}

// NewDescHeap creates a new descriptor heap.
func (g *GPU) NewDescHeap(kind driver.DescKind, n int) (driver.DescHeap, error) {
	if g.DescIncrement(kind) == 0 {
		return nil, errors.Errorf("soft: NewDescHeap: invalid kind %d", kind)
	}
	if n <= 0 || n > g.Limits().MaxDescHeap {
		return nil, errors.Errorf("soft: NewDescHeap: invalid length %d", n)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextHeap++
	h := &DescHeap{
		gpu:   g,
		node:  g.track.add("DescHeap(" + kind.String() + ")"),
		kind:  kind,
		id:    g.nextHeap,
		slots: make([]view, n),
	}
	g.heaps[h.id] = h
	return h, nil
}

// Kind returns the heap's kind.
func (h *DescHeap) Kind() driver.DescKind { return h.kind }

// Len returns the number of slots.
func (h *DescHeap) Len() int { return len(h.slots) }

// Start returns the handle of slot 0.
func (h *DescHeap) Start() driver.CPUHandle { return driver.CPUHandle(h.id << heapShift) }

// Destroy destroys the heap.
func (h *DescHeap) Destroy() {
	if h == nil || h.gpu == nil {
		return
	}
	g := h.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	g.track.remove(h.node)
	delete(g.heaps, h.id)
}

// slotAt resolves a handle to a descriptor slot.
// g.mu must be held.
func (g *GPU) slotAt(x driver.CPUHandle, kind driver.DescKind) (*view, error) {
	h, ok := g.heaps[uintptr(x)>>heapShift]
	if !ok {
		return nil, errors.Errorf("handle %#x is not in a live heap", x)
	}
	if h.kind != kind {
		return nil, errors.Errorf("handle %#x is in a %v heap, not %v", x, h.kind, kind)
	}
	d := int(uintptr(x) - uintptr(h.Start()))
	inc := g.DescIncrement(kind)
	if d%inc != 0 || d/inc >= len(h.slots) {
		return nil, errors.Errorf("handle %#x is not a slot of its heap", x)
	}
	return &h.slots[d/inc], nil
}

// write stores v at the slot identified by dst.
// Invalid writes are recorded as violations, since the
// native calls cannot fail.
func (g *GPU) write(name string, kind driver.DescKind, dst driver.CPUHandle, v view) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v.res == nil {
		g.flag("%s: nil resource", name)
		return
	}
	s, err := g.slotAt(dst, kind)
	if err != nil {
		g.flag("%s: %v", name, err)
		return
	}
	*s = v
}

func asResource(res driver.Resource) *Resource {
	r, _ := res.(*Resource)
	return r
}

// WriteRTV writes a render target view.
func (g *GPU) WriteRTV(res driver.Resource, dst driver.CPUHandle) {
	r := asResource(res)
	if r != nil && r.desc.Usage&driver.UsageRenderTarget == 0 {
		g.mu.Lock()
		g.flag("WriteRTV: resource lacks render target usage")
		g.mu.Unlock()
		return
	}
	g.write("WriteRTV", driver.DescRTV, dst, view{kind: viewRTV, res: r})
}

// WriteDSV writes a depth/stencil view.
func (g *GPU) WriteDSV(res driver.Resource, dst driver.CPUHandle) {
	r := asResource(res)
	if r != nil && r.desc.Usage&driver.UsageDepthStencil == 0 {
		g.mu.Lock()
		g.flag("WriteDSV: resource lacks depth/stencil usage")
		g.mu.Unlock()
		return
	}
	g.write("WriteDSV", driver.DescDSV, dst, view{kind: viewDSV, res: r})
}

// WriteCBV writes a constant buffer view.
func (g *GPU) WriteCBV(res driver.Resource, size int, dst driver.CPUHandle) {
	r := asResource(res)
	if r != nil && (r.desc.Dim != driver.DimBuffer || size <= 0 || size%256 != 0 || int64(size) > r.size) {
		g.mu.Lock()
		g.flag("WriteCBV: invalid size %d", size)
		g.mu.Unlock()
		return
	}
	g.write("WriteCBV", driver.DescCBVSRVUAV, dst, view{kind: viewCBV, res: r, size: size})
}

func (g *GPU) writeStructured(name string, k viewKind, res driver.Resource, elems, stride int, dst driver.CPUHandle) {
	r := asResource(res)
	if r != nil && (r.desc.Dim != driver.DimBuffer || elems <= 0 || stride <= 0 || int64(elems*stride) > r.desc.Width) {
		g.mu.Lock()
		g.flag("%s: %d elements of %d bytes do not fit", name, elems, stride)
		g.mu.Unlock()
		return
	}
	g.write(name, driver.DescCBVSRVUAV, dst, view{kind: k, res: r, elems: elems, stride: stride})
}

// WriteSRV writes a structured buffer view.
func (g *GPU) WriteSRV(res driver.Resource, elems, stride int, dst driver.CPUHandle) {
	g.writeStructured("WriteSRV", viewSRV, res, elems, stride, dst)
}

// WriteUAV writes an unordered access view.
func (g *GPU) WriteUAV(res driver.Resource, elems, stride int, dst driver.CPUHandle) {
	r := asResource(res)
	if r != nil && r.desc.Usage&driver.UsageUnordered == 0 {
		g.mu.Lock()
		g.flag("WriteUAV: resource lacks unordered access usage")
		g.mu.Unlock()
		return
	}
	g.writeStructured("WriteUAV", viewUAV, res, elems, stride, dst)
}
