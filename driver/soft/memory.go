// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// ErrAlias means that a placed resource would overlap a
// live resource in the same Memory.
var ErrAlias = errors.New("soft: resource overlaps a live resource")

// Memory implements driver.Memory.
type Memory struct {
	gpu    *GPU
	node   *node
	kind   driver.HeapKind
	buf    []byte
	placed []*Resource
}

// NewMemory allocates a block of device memory.
func (g *GPU) NewMemory(kind driver.HeapKind, size int64) (driver.Memory, error) {
	switch kind {
	case driver.HeapDefault, driver.HeapUpload, driver.HeapReadback:
	default:
		return nil, errors.Errorf("soft: NewMemory: invalid heap kind %d", kind)
	}
	if size <= 0 || size%placeAlign != 0 {
		return nil, errors.Errorf("soft: NewMemory: size %d is not a positive multiple of %d", size, placeAlign)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used+size > memBudget {
		return nil, driver.ErrNoDeviceMemory
	}
	g.used += size
	m := &Memory{
		gpu:  g,
		node: g.track.add("Memory(" + kind.String() + ")"),
		kind: kind,
		buf:  make([]byte, size),
	}
	return m, nil
}

// Kind returns the memory's heap kind.
func (m *Memory) Kind() driver.HeapKind { return m.kind }

// Size returns the size of the block.
func (m *Memory) Size() int64 { return int64(len(m.buf)) }

// Destroy destroys the memory block.
// Resources placed in m must be destroyed first.
func (m *Memory) Destroy() {
	if m == nil || m.gpu == nil {
		return
	}
	g := m.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	if m.node.dead {
		g.flag("%s destroyed twice", m.node)
		return
	}
	g.track.remove(m.node)
	g.used -= int64(len(m.buf))
}

// ResourceSize returns the size and alignment required to
// place a resource described by desc.
func (g *GPU) ResourceSize(desc *driver.ResourceDesc) (size, align int64) {
	switch desc.Dim {
	case driver.DimBuffer:
		size = desc.Width
	case driver.DimTexture2D:
		size = desc.Width * int64(desc.Height) * int64(desc.Format.Size())
	}
	return (size + placeAlign - 1) &^ (placeAlign - 1), placeAlign
}

// Resource implements driver.Resource.
type Resource struct {
	gpu  *GPU
	node *node
	mem  *Memory
	off  int64
	size int64
	desc driver.ResourceDesc
	// Guarded by gpu.mu.
	state  driver.State
	mapped bool
	dead   bool
}

func (g *GPU) checkDesc(kind driver.HeapKind, desc *driver.ResourceDesc, state driver.State) error {
	switch desc.Dim {
	case driver.DimBuffer:
		if desc.Width <= 0 || desc.Format != driver.FmtUnknown {
			return errors.New("invalid buffer description")
		}
		if desc.Usage&(driver.UsageRenderTarget|driver.UsageDepthStencil) != 0 {
			return errors.New("buffers cannot be render or depth targets")
		}
	case driver.DimTexture2D:
		if desc.Width <= 0 || desc.Height <= 0 || desc.Format.Size() == 0 {
			return errors.New("invalid texture description")
		}
		ds := desc.Format == driver.D32f || desc.Format == driver.D24unS8ui
		if ds != (desc.Usage&driver.UsageDepthStencil != 0) {
			return errors.New("depth/stencil usage and format disagree")
		}
		if kind != driver.HeapDefault {
			return errors.New("textures must be placed in default memory")
		}
	default:
		return errors.Errorf("invalid dimension %d", desc.Dim)
	}
	switch kind {
	case driver.HeapUpload:
		if state != driver.StateGenericRead {
			return errors.New("upload resources must start in the generic-read state")
		}
	case driver.HeapReadback:
		if state != driver.StateCopyDest {
			return errors.New("readback resources must start in the copy-dest state")
		}
	}
	return nil
}

// NewResource creates a resource placed in mem at off.
func (g *GPU) NewResource(mem driver.Memory, off int64, desc *driver.ResourceDesc, state driver.State, clear *driver.ClearValue) (driver.Resource, error) {
	m, ok := mem.(*Memory)
	if !ok || m.gpu != g {
		return nil, errors.New("soft: NewResource: foreign memory")
	}
	if err := g.checkDesc(m.kind, desc, state); err != nil {
		return nil, errors.Wrap(err, "soft: NewResource")
	}
	if clear != nil && desc.Usage&(driver.UsageRenderTarget|driver.UsageDepthStencil) == 0 {
		return nil, errors.New("soft: NewResource: clear value on a non-target resource")
	}
	size, align := g.ResourceSize(desc)
	if off < 0 || off%align != 0 || off+size > m.Size() {
		return nil, errors.Errorf("soft: NewResource: placement [%d, %d) out of %d-byte memory", off, off+size, m.Size())
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range m.placed {
		if off < r.off+r.size && r.off < off+size {
			return nil, errors.Wrapf(ErrAlias, "[%d, %d) and [%d, %d)", off, off+size, r.off, r.off+r.size)
		}
	}
	r := &Resource{
		gpu:   g,
		node:  g.track.add("Resource", m.node),
		mem:   m,
		off:   off,
		size:  size,
		desc:  *desc,
		state: state,
	}
	m.placed = append(m.placed, r)
	return r, nil
}

// Desc returns the resource's description.
func (r *Resource) Desc() driver.ResourceDesc { return r.desc }

// Map returns the CPU-visible contents of a buffer placed
// in upload or readback memory.
func (r *Resource) Map() ([]byte, error) {
	if r.mem.kind == driver.HeapDefault {
		return nil, errors.New("soft: Map: resource is not CPU-visible")
	}
	if r.desc.Dim != driver.DimBuffer {
		return nil, errors.New("soft: Map: resource is not a buffer")
	}
	r.gpu.mu.Lock()
	r.mapped = true
	r.gpu.mu.Unlock()
	return r.mem.buf[r.off : r.off+r.desc.Width : r.off+r.desc.Width], nil
}

// Unmap invalidates the slice returned by Map.
func (r *Resource) Unmap() {
	r.gpu.mu.Lock()
	r.mapped = false
	r.gpu.mu.Unlock()
}

// State returns the resource's current state, as of the
// last executed command.
func (r *Resource) State() driver.State {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()
	return r.state
}

// Bytes returns a copy of the resource's contents,
// regardless of the memory it is placed in.
func (r *Resource) Bytes() []byte {
	r.gpu.mu.Lock()
	defer r.gpu.mu.Unlock()
	n := r.desc.Width
	if r.desc.Dim == driver.DimTexture2D {
		n *= int64(r.desc.Height) * int64(r.desc.Format.Size())
	}
	return append([]byte(nil), r.mem.buf[r.off:r.off+n]...)
}

// data returns the resource's backing bytes.
func (r *Resource) data() []byte { return r.mem.buf[r.off : r.off+r.size] }

// Destroy destroys the resource.
func (r *Resource) Destroy() {
	if r == nil || r.gpu == nil {
		return
	}
	g := r.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.node == nil {
		g.flag("swapchain image destroyed by the application")
		return
	}
	if r.dead {
		g.flag("%s destroyed twice", r.node)
		return
	}
	g.track.remove(r.node)
	r.dead = true
	m := r.mem
	for i, x := range m.placed {
		if x == r {
			m.placed = append(m.placed[:i], m.placed[i+1:]...)
			break
		}
	}
}
