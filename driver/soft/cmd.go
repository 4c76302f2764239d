// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// CmdAllocator implements driver.CmdAllocator.
type CmdAllocator struct {
	gpu  *GPU
	node *node
	// Guarded by gpu.mu.
	pending   int
	recording *CmdList
}

// NewCmdAllocator creates a new command allocator.
func (g *GPU) NewCmdAllocator() (driver.CmdAllocator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &CmdAllocator{gpu: g, node: g.track.add("CmdAllocator")}, nil
}

// Reset reclaims the memory of recorded commands.
func (a *CmdAllocator) Reset() error {
	g := a.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case a.pending > 0:
		return errors.Wrap(driver.ErrInFlight, "soft: CmdAllocator.Reset")
	case a.recording != nil:
		return errors.Wrap(driver.ErrRecording, "soft: CmdAllocator.Reset: a list is recording")
	}
	return nil
}

// Destroy destroys the allocator.
func (a *CmdAllocator) Destroy() {
	if a == nil || a.gpu == nil {
		return
	}
	g := a.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	if a.pending > 0 {
		g.flag("%s destroyed while executing", a.node)
	}
	g.track.remove(a.node)
}

// cmd is a recorded command.
type cmd func(x *execCtx) error

// CmdList implements driver.CmdList.
type CmdList struct {
	gpu       *GPU
	node      *node
	ca        *CmdAllocator
	recording bool
	err       error
	cmds      []cmd
	// Guarded by gpu.mu.
	pending int
}

// NewCmdList creates a new, closed, command list.
func (g *GPU) NewCmdList(ca driver.CmdAllocator) (driver.CmdList, error) {
	a, ok := ca.(*CmdAllocator)
	if !ok || a.gpu != g {
		return nil, errors.New("soft: NewCmdList: foreign allocator")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return &CmdList{gpu: g, node: g.track.add("CmdList", a.node), ca: a}, nil
}

// Reset begins recording into ca.
func (l *CmdList) Reset(ca driver.CmdAllocator) error {
	a, ok := ca.(*CmdAllocator)
	if !ok || a.gpu != l.gpu {
		return errors.New("soft: CmdList.Reset: foreign allocator")
	}
	g := l.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case l.recording:
		return errors.Wrap(driver.ErrRecording, "soft: CmdList.Reset: already recording")
	case a.recording != nil:
		return errors.Wrap(driver.ErrRecording, "soft: CmdList.Reset: allocator in use by another list")
	case a.pending > 0:
		return errors.Wrap(driver.ErrInFlight, "soft: CmdList.Reset: allocator")
	}
	a.recording = l
	l.ca = a
	l.recording = true
	l.err = nil
	// Executing work may still reference the old slice.
	l.cmds = nil
	return nil
}

// Close ends recording.
func (l *CmdList) Close() error {
	g := l.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	if !l.recording {
		return errors.Wrap(driver.ErrRecording, "soft: CmdList.Close: not recording")
	}
	l.recording = false
	l.ca.recording = nil
	return l.err
}

// Destroy destroys the list.
func (l *CmdList) Destroy() {
	if l == nil || l.gpu == nil {
		return
	}
	g := l.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	if l.pending > 0 {
		g.flag("%s destroyed while executing", l.node)
	}
	if l.recording {
		l.ca.recording = nil
	}
	g.track.remove(l.node)
}

// record appends c unless l is in an invalid state.
func (l *CmdList) record(name string, c cmd) {
	if !l.recording {
		if l.err == nil {
			l.err = errors.Wrapf(driver.ErrRecording, "soft: %s on a closed list", name)
		}
		return
	}
	l.cmds = append(l.cmds, func(x *execCtx) error {
		if err := c(x); err != nil {
			return errors.Wrap(err, name)
		}
		return nil
	})
}

func (l *CmdList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// execCtx is the state of an executing list.
// Access to it happens with gpu.mu held.
type execCtx struct {
	g        *GPU
	sig      *RootSig
	pso      *Pipeline
	rtv      []*view
	dsv      *view
	viewport bool
	scissor  bool
	roots    map[int]*Resource
}

func stateErr(r *Resource, want driver.State) error {
	return errors.Wrapf(driver.ErrState, "resource is %v, want %v", r.state, want)
}

// Barrier records resource state transitions.
func (l *CmdList) Barrier(t []driver.Transition) {
	t = append([]driver.Transition(nil), t...)
	for _, x := range t {
		if asResource(x.Res) == nil {
			l.fail(errors.New("soft: Barrier: foreign resource"))
			return
		}
	}
	l.record("Barrier", func(x *execCtx) error {
		for _, b := range t {
			r := asResource(b.Res)
			if r.dead {
				return errors.New("resource destroyed")
			}
			if r.state != b.Before {
				return stateErr(r, b.Before)
			}
			r.state = b.After
			x.g.stats.Barriers++
		}
		return nil
	})
}

// unorm converts c to an 8-bit normalized value.
func unorm(c float32) byte {
	return byte(math.Round(float64(min(max(c, 0), 1)) * 255))
}

// fill writes texel to every texel of r inside rects.
func fill(r *Resource, texel []byte, rects []driver.Rect) {
	w, h := int(r.desc.Width), r.desc.Height
	if rects == nil {
		rects = []driver.Rect{{Right: int32(w), Bottom: int32(h)}}
	}
	b := r.data()
	n := len(texel)
	for _, rc := range rects {
		for y := max(int(rc.Top), 0); y < min(int(rc.Bottom), h); y++ {
			for x := max(int(rc.Left), 0); x < min(int(rc.Right), w); x++ {
				copy(b[(y*w+x)*n:], texel)
			}
		}
	}
}

// ClearRTV clears a render target view.
func (l *CmdList) ClearRTV(h driver.CPUHandle, color [4]float32, rects []driver.Rect) {
	rects = append([]driver.Rect(nil), rects...)
	if len(rects) == 0 {
		rects = nil
	}
	l.record("ClearRTV", func(x *execCtx) error {
		v, err := x.g.boundView(h, driver.DescRTV, viewRTV)
		if err != nil {
			return err
		}
		r := v.res
		if r.state != driver.StateRenderTarget {
			return stateErr(r, driver.StateRenderTarget)
		}
		var texel []byte
		switch r.desc.Format {
		case driver.BGRA8un:
			texel = []byte{unorm(color[2]), unorm(color[1]), unorm(color[0]), unorm(color[3])}
		case driver.RGBA8un:
			texel = []byte{unorm(color[0]), unorm(color[1]), unorm(color[2]), unorm(color[3])}
		default:
			texel = make([]byte, 4*len(color))
			for i, c := range color {
				binary.LittleEndian.PutUint32(texel[4*i:], math.Float32bits(c))
			}
			texel = texel[:r.desc.Format.Size()]
		}
		fill(r, texel, rects)
		x.g.stats.Clears++
		return nil
	})
}

// ClearDSV clears the depth of a depth/stencil view.
func (l *CmdList) ClearDSV(h driver.CPUHandle, depth float32) {
	l.record("ClearDSV", func(x *execCtx) error {
		v, err := x.g.boundView(h, driver.DescDSV, viewDSV)
		if err != nil {
			return err
		}
		r := v.res
		if r.state != driver.StateDepthWrite {
			return stateErr(r, driver.StateDepthWrite)
		}
		if depth < 0 || depth > 1 {
			return errors.Errorf("depth %v out of [0, 1]", depth)
		}
		texel := make([]byte, 4)
		binary.LittleEndian.PutUint32(texel, math.Float32bits(depth))
		fill(r, texel, nil)
		x.g.stats.Clears++
		return nil
	})
}

// boundView resolves a handle used by a command.
// g.mu must be held.
func (g *GPU) boundView(h driver.CPUHandle, kind driver.DescKind, vk viewKind) (*view, error) {
	v, err := g.slotAt(h, kind)
	if err != nil {
		return nil, err
	}
	switch {
	case v.kind == viewNone:
		return nil, errors.Wrapf(driver.ErrUnwritten, "handle %#x", h)
	case v.kind != vk:
		return nil, errors.Errorf("handle %#x holds a %v, not a %v", h, v.kind, vk)
	case v.res.dead:
		return nil, errors.Errorf("handle %#x refers to a destroyed resource", h)
	}
	return v, nil
}

// SetRenderTargets binds render target views and an
// optional depth/stencil view.
func (l *CmdList) SetRenderTargets(rtv []driver.CPUHandle, dsv *driver.CPUHandle) {
	rtv = append([]driver.CPUHandle(nil), rtv...)
	var ds *driver.CPUHandle
	if dsv != nil {
		h := *dsv
		ds = &h
	}
	if len(rtv) > driver.MaxRenderTargets {
		l.fail(errors.New("soft: SetRenderTargets: too many render targets"))
		return
	}
	l.record("SetRenderTargets", func(x *execCtx) error {
		x.rtv = x.rtv[:0]
		for _, h := range rtv {
			v, err := x.g.boundView(h, driver.DescRTV, viewRTV)
			if err != nil {
				return err
			}
			x.rtv = append(x.rtv, v)
		}
		x.dsv = nil
		if ds != nil {
			v, err := x.g.boundView(*ds, driver.DescDSV, viewDSV)
			if err != nil {
				return err
			}
			x.dsv = v
		}
		return nil
	})
}

// SetViewport sets the viewport.
func (l *CmdList) SetViewport(vp driver.Viewport) {
	if vp.Width <= 0 || vp.Height <= 0 || vp.MinDepth < 0 || vp.MaxDepth > 1 || vp.MinDepth > vp.MaxDepth {
		l.fail(errors.Errorf("soft: SetViewport: invalid viewport %+v", vp))
		return
	}
	l.record("SetViewport", func(x *execCtx) error {
		x.viewport = true
		return nil
	})
}

// SetScissor sets the scissor rectangle.
func (l *CmdList) SetScissor(r driver.Rect) {
	if r.Right < r.Left || r.Bottom < r.Top {
		l.fail(errors.Errorf("soft: SetScissor: invalid rectangle %+v", r))
		return
	}
	l.record("SetScissor", func(x *execCtx) error {
		x.scissor = true
		return nil
	})
}

// SetRootSig binds a graphics root signature.
// Root arguments are reset.
func (l *CmdList) SetRootSig(rs driver.RootSig) {
	s, ok := rs.(*RootSig)
	if !ok {
		l.fail(errors.New("soft: SetRootSig: foreign root signature"))
		return
	}
	l.record("SetRootSig", func(x *execCtx) error {
		x.sig = s
		clear(x.roots)
		return nil
	})
}

// SetPipelineState binds a pipeline state object.
func (l *CmdList) SetPipelineState(ps driver.PipelineState) {
	p, ok := ps.(*Pipeline)
	if !ok {
		l.fail(errors.New("soft: SetPipelineState: foreign pipeline"))
		return
	}
	l.record("SetPipelineState", func(x *execCtx) error {
		x.pso = p
		return nil
	})
}

func (l *CmdList) setRoot(name string, kind driver.RootParamKind, param int, res driver.Resource) {
	r := asResource(res)
	if r == nil || r.desc.Dim != driver.DimBuffer {
		l.fail(errors.Errorf("soft: %s: not a buffer", name))
		return
	}
	l.record(name, func(x *execCtx) error {
		if x.sig == nil {
			return errors.New("no root signature bound")
		}
		if param < 0 || param >= len(x.sig.params) || x.sig.params[param].Kind != kind {
			return errors.Errorf("root parameter %d is not a %d parameter", param, kind)
		}
		x.roots[param] = r
		return nil
	})
}

// SetRootCBV binds res to a constant buffer root parameter.
func (l *CmdList) SetRootCBV(param int, res driver.Resource) {
	l.setRoot("SetRootCBV", driver.RootCBV, param, res)
}

// SetRootSRV binds res to a shader resource root parameter.
func (l *CmdList) SetRootSRV(param int, res driver.Resource) {
	l.setRoot("SetRootSRV", driver.RootSRV, param, res)
}

// SetRootUAV binds res to an unordered access root
// parameter.
func (l *CmdList) SetRootUAV(param int, res driver.Resource) {
	l.setRoot("SetRootUAV", driver.RootUAV, param, res)
}

// DispatchMesh validates the bound state and counts the
// launched groups. Shaders are not executed.
func (l *CmdList) DispatchMesh(gx, gy, gz int) {
	if gx < 1 || gy < 1 || gz < 1 {
		l.fail(errors.Errorf("soft: DispatchMesh: invalid group count (%d, %d, %d)", gx, gy, gz))
		return
	}
	l.record("DispatchMesh", func(x *execCtx) error {
		if err := x.checkDraw(); err != nil {
			return err
		}
		x.g.stats.Dispatches++
		x.g.stats.Groups[0] += gx
		x.g.stats.Groups[1] += gy
		x.g.stats.Groups[2] += gz
		return nil
	})
}

func (x *execCtx) checkDraw() error {
	switch {
	case x.pso == nil:
		return errors.New("no pipeline state bound")
	case x.sig == nil:
		return errors.New("no root signature bound")
	case x.pso.desc.RootSig != x.sig:
		return errors.New("pipeline created with a different root signature")
	case !x.viewport || !x.scissor:
		return errors.New("viewport or scissor not set")
	case len(x.rtv) != x.pso.desc.NumRenderTargets:
		return errors.Errorf("%d render targets bound, pipeline expects %d", len(x.rtv), x.pso.desc.NumRenderTargets)
	}
	for i, v := range x.rtv {
		if f := x.pso.desc.RTFormats[i]; v.res.desc.Format != f {
			return errors.Errorf("render target %d is %v, pipeline expects %v", i, v.res.desc.Format, f)
		}
		if v.res.state != driver.StateRenderTarget {
			return stateErr(v.res, driver.StateRenderTarget)
		}
	}
	if x.pso.desc.DepthStencil.DepthEnable {
		if x.dsv == nil {
			return errors.New("depth test enabled without a depth/stencil view")
		}
		if x.dsv.res.desc.Format != x.pso.desc.DSFormat {
			return errors.Errorf("depth/stencil view is %v, pipeline expects %v", x.dsv.res.desc.Format, x.pso.desc.DSFormat)
		}
		if x.dsv.res.state&(driver.StateDepthWrite|driver.StateDepthRead) == 0 {
			return stateErr(x.dsv.res, driver.StateDepthWrite)
		}
	}
	for i, p := range x.sig.params {
		r, ok := x.roots[i]
		if !ok {
			return errors.Errorf("root parameter %d not bound", i)
		}
		if r.dead {
			return errors.Errorf("root parameter %d refers to a destroyed resource", i)
		}
		var need driver.State
		switch p.Kind {
		case driver.RootCBV:
			need = driver.StateVertexCB
		case driver.RootSRV:
			need = driver.StateNonPixelSR
		case driver.RootUAV:
			need = driver.StateUnordered
		}
		if r.state&need == 0 {
			return errors.Wrapf(driver.ErrState, "root parameter %d: resource is %v", i, r.state)
		}
	}
	return nil
}

// CopyBuffer copies n bytes between buffers.
func (l *CmdList) CopyBuffer(dst driver.Resource, dstOff int64, src driver.Resource, srcOff int64, n int64) {
	d, s := asResource(dst), asResource(src)
	switch {
	case d == nil || s == nil:
		l.fail(errors.New("soft: CopyBuffer: foreign resource"))
		return
	case d.desc.Dim != driver.DimBuffer || s.desc.Dim != driver.DimBuffer:
		l.fail(errors.New("soft: CopyBuffer: not a buffer"))
		return
	case n <= 0 || dstOff < 0 || srcOff < 0 || dstOff+n > d.desc.Width || srcOff+n > s.desc.Width:
		l.fail(errors.Errorf("soft: CopyBuffer: range out of bounds (%d bytes)", n))
		return
	}
	l.record("CopyBuffer", func(x *execCtx) error {
		if d.dead || s.dead {
			return errors.New("resource destroyed")
		}
		if d.state != driver.StateCopyDest {
			return stateErr(d, driver.StateCopyDest)
		}
		if s.state&driver.StateCopySource == 0 {
			return stateErr(s, driver.StateCopySource)
		}
		copy(d.data()[dstOff:dstOff+n], s.data()[srcOff:srcOff+n])
		x.g.stats.Copies++
		return nil
	})
}
