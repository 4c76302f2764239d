// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/engine/alloc"
	"github.com/gviegas/meshdraw/engine/camera"
	"github.com/gviegas/meshdraw/engine/desc"
	"github.com/gviegas/meshdraw/engine/internal/ctxt"
	"github.com/gviegas/meshdraw/engine/mesh"
	"github.com/gviegas/meshdraw/internal/logger"
	"github.com/gviegas/meshdraw/linear"
	"github.com/gviegas/meshdraw/wsi"
)

// Size of the constant buffer. It holds the
// view-projection matrix followed by the meshlet count
// and the offset of meshlet data in the meshlet buffer.
const constSize = 256

// Engine owns every GPU object used to render frames.
type Engine struct {
	cfg Config
	drv driver.Driver
	gpu driver.GPU
	stk Stack

	alloc *alloc.Allocator
	rtvs  *desc.Heap
	dsvs  *desc.Heap
	cbvs  *desc.Heap
	tgts  *targets

	depth driver.Resource
	dsv   int

	cb     driver.Resource
	cbData []byte
	cbv    int

	pipe *Pipeline
	mesh *meshBuffers

	frame   *Frame
	waitErr error
	closed  bool
}

// meshBuffers are the device-local buffers of a mesh.
type meshBuffers struct {
	vertices driver.Resource
	meshlets driver.Resource
	stats    driver.Resource
	count    int
	dataOff  int
}

// New creates an Engine that presents to s.
// Objects are created in dependency order and, on
// failure, destroyed in reverse.
func New(cfg *Config, s driver.Surface) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: *cfg}
	if err := e.init(s); err != nil {
		e.stk.Unwind()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(s driver.Surface) (err error) {
	cfg := &e.cfg
	e.drv, e.gpu, err = ctxt.Load(cfg.Driver, driver.Config{Debug: cfg.Debug})
	if err != nil {
		return err
	}
	e.stk.Push("driver "+e.drv.Name(), e.drv.Close)
	logger.Logger().Info("engine started", "driver", e.drv.Name(), "debug", cfg.Debug)

	e.alloc = alloc.New(e.gpu, cfg.BlockSize)
	e.stk.Push("allocator", e.alloc.Close)

	if err = e.initHeaps(); err != nil {
		return err
	}
	if e.tgts, err = newTargets(e.gpu, e.rtvs, s, cfg.ImageCount); err != nil {
		return err
	}
	e.stk.Push("swapchain", e.tgts.destroy)
	if cfg.Depth {
		if err = e.initDepth(s.Width(), s.Height()); err != nil {
			return err
		}
	}
	if err = e.initConst(); err != nil {
		return err
	}
	if err = e.initPipeline(); err != nil {
		return err
	}
	if cfg.Mesh != "" {
		if err = e.initMesh(cfg.Mesh); err != nil {
			return err
		}
	}
	if e.frame, err = newFrame(e.gpu); err != nil {
		return err
	}
	e.stk.Push("frame", func() { e.waitErr = e.frame.destroy() })
	return nil
}

func (e *Engine) initHeaps() error {
	for _, x := range [...]struct {
		name string
		kind driver.DescKind
		n    int
		dst  **desc.Heap
	}{
		{"RTV heap", driver.DescRTV, e.cfg.RTVCapacity, &e.rtvs},
		{"DSV heap", driver.DescDSV, e.cfg.DSVCapacity, &e.dsvs},
		{"CBV/SRV/UAV heap", driver.DescCBVSRVUAV, e.cfg.CBVCapacity, &e.cbvs},
	} {
		if x.n <= 0 {
			continue
		}
		h, err := desc.NewHeap(e.gpu, x.kind, x.n)
		if err != nil {
			return err
		}
		*x.dst = h
		e.stk.Push(x.name, h.Destroy)
	}
	return nil
}

// initDepth creates the depth buffer and its view.
func (e *Engine) initDepth(width, height int) error {
	d := driver.Texture2D(driver.D32f, width, height, driver.UsageDepthStencil|driver.UsageDenyShaderResource)
	clear := driver.ClearValue{Format: driver.D32f, Depth: 1}
	res, al, err := e.alloc.Allocate(driver.HeapDefault, &d, driver.StateDepthWrite, &clear)
	if err != nil {
		return errors.Wrap(err, "engine: depth buffer")
	}
	e.depth = res
	e.stk.Push("depth buffer", func() { e.alloc.Release(res, al) })
	if e.dsv, err = e.dsvs.Alloc(); err != nil {
		return err
	}
	e.stk.Push("depth view", func() { e.dsvs.Release(e.dsv) })
	return e.dsvs.WriteDSV(e.dsv, res)
}

// initConst creates the constant buffer, which remains
// mapped until it is released.
func (e *Engine) initConst() error {
	d := driver.Buffer(constSize, 0)
	res, al, err := e.alloc.Allocate(driver.HeapUpload, &d, driver.StateGenericRead, nil)
	if err != nil {
		return errors.Wrap(err, "engine: constant buffer")
	}
	e.stk.Push("constant buffer", func() { e.alloc.Release(res, al) })
	if e.cbData, err = res.Map(); err != nil {
		return errors.Wrap(err, "engine: constant buffer")
	}
	e.stk.Push("constant buffer mapping", res.Unmap)
	e.cb = res
	if e.cbv, err = e.cbvs.Alloc(); err != nil {
		return err
	}
	e.stk.Push("constant buffer view", func() { e.cbvs.Release(e.cbv) })
	return e.cbvs.WriteCBV(e.cbv, res, constSize)
}

// initMesh loads a mesh and uploads its vertices and
// meshlets.
func (e *Engine) initMesh(path string) error {
	m, err := mesh.Load(path)
	if err != nil {
		return err
	}
	mb := &meshBuffers{count: len(m.Meshlets), dataOff: m.DataOffset()}
	srv := driver.StateAllShaderRead
	for _, x := range [...]struct {
		name   string
		data   []byte
		usg    driver.Usage
		state  driver.State
		dst    *driver.Resource
		stride int
	}{
		{"vertex buffer", m.VertexBytes(), 0, srv, &mb.vertices, mesh.VertexSize},
		{"meshlet buffer", m.MeshletBytes(), 0, srv, &mb.meshlets, 4},
		{"meshlet statistics", make([]byte, 4*len(m.Meshlets)), driver.UsageUnordered, driver.StateUnordered, &mb.stats, 4},
	} {
		res, al, err := Upload(e.gpu, e.alloc, x.data, x.usg, x.state)
		if err != nil {
			return errors.Wrap(err, x.name)
		}
		e.stk.Push(x.name, func() { e.alloc.Release(res, al) })
		*x.dst = res
		i, err := e.cbvs.Alloc()
		if err != nil {
			return errors.Wrap(err, x.name)
		}
		e.stk.Push(x.name+" view", func() { e.cbvs.Release(i) })
		n := len(x.data) / x.stride
		if x.usg&driver.UsageUnordered != 0 {
			err = e.cbvs.WriteUAV(i, res, n, x.stride)
		} else {
			err = e.cbvs.WriteSRV(i, res, n, x.stride)
		}
		if err != nil {
			return err
		}
	}
	e.mesh = mb
	logger.Logger().Info("mesh loaded", "path", path, "vertices", len(m.Vertices), "meshlets", len(m.Meshlets))
	return nil
}

func (e *Engine) initPipeline() error {
	sh, err := LoadShaders(e.cfg.ShaderDir, ShaderNames{
		AS: e.cfg.AmplificationShader,
		MS: e.cfg.MeshShader,
		PS: e.cfg.PixelShader,
	})
	if err != nil {
		return err
	}
	pc := PipelineConfig{
		Params:    []driver.RootParam{{Kind: driver.RootCBV, Register: 0}},
		Shaders:   sh,
		RTFormats: []driver.Format{targetFormat},
	}
	if e.cfg.Mesh != "" {
		pc.Params = append(pc.Params,
			driver.RootParam{Kind: driver.RootSRV, Register: 0},
			driver.RootParam{Kind: driver.RootSRV, Register: 1},
			driver.RootParam{Kind: driver.RootUAV, Register: 0},
		)
	}
	if e.depth != nil {
		pc.DepthStencil = driver.DepthStencilDesc{DepthEnable: true, DepthWrite: true, Func: driver.CmpLess}
		pc.DSFormat = driver.D32f
	}
	if e.pipe, err = BuildPipeline(e.gpu, &pc); err != nil {
		return err
	}
	e.stk.Push("pipeline", e.pipe.Destroy)
	return nil
}

// writeConst writes the frame constants.
// The previous frame must be complete.
func (e *Engine) writeConst(vp *linear.M4) {
	b := e.cbData
	for i := range vp {
		for j := range vp[i] {
			binary.LittleEndian.PutUint32(b[(i*4+j)*4:], math.Float32bits(vp[i][j]))
		}
	}
	var n, off int
	if e.mesh != nil {
		n, off = e.mesh.count, e.mesh.dataOff
	}
	binary.LittleEndian.PutUint32(b[64:], uint32(n))
	binary.LittleEndian.PutUint32(b[68:], uint32(off))
}

// Frame renders and presents one frame using vp as the
// view-projection matrix.
// It returns after the image is presented.
func (e *Engine) Frame(vp *linear.M4) error {
	if e.closed {
		return errors.New("engine: Frame: engine closed")
	}
	e.writeConst(vp)
	f := e.frame
	if err := f.Begin(); err != nil {
		return err
	}
	p, err := e.pass()
	if err != nil {
		return err
	}
	if err := f.Record(p); err != nil {
		return err
	}
	if err := f.Submit(); err != nil {
		return err
	}
	if err := f.Wait(); err != nil {
		return err
	}
	return f.present(e.tgts, e.cfg.VSync)
}

// pass describes the frame that targets the current
// image.
func (e *Engine) pass() (*Pass, error) {
	img, rtv, err := e.tgts.view(e.tgts.current())
	if err != nil {
		return nil, err
	}
	p := &Pass{
		Target:     img,
		RTV:        rtv,
		Width:      e.tgts.width,
		Height:     e.tgts.height,
		ClearColor: e.cfg.ClearColor,
		RootSig:    e.pipe.RootSig,
		Pipeline:   e.pipe.State,
		CBV:        e.cb,
	}
	if e.depth != nil {
		h, err := e.dsvs.Handle(e.dsv)
		if err != nil {
			return nil, err
		}
		p.DSV = &h
	}
	if e.mesh != nil {
		p.SRVs = [2]driver.Resource{e.mesh.vertices, e.mesh.meshlets}
		p.UAV = e.mesh.stats
	}
	return p, nil
}

// Run renders frames until win reports a Quit event.
// Mouse motion moves cam.
func (e *Engine) Run(win wsi.Window, cam *camera.Camera) error {
	last := time.Now()
	for {
		for _, ev := range win.Poll() {
			switch ev.Kind {
			case wsi.Quit:
				return nil
			case wsi.MouseMotion:
				cam.Move(float32(ev.DX), float32(ev.DY))
			}
		}
		now := time.Now()
		cam.Update(float32(now.Sub(last).Seconds()), win.Width(), win.Height())
		last = now
		vp := cam.ViewProjection()
		if err := e.Frame(&vp); err != nil {
			return err
		}
	}
}

// GPU returns the GPU used by e.
func (e *Engine) GPU() driver.GPU { return e.gpu }

// Close waits for the GPU to finish, destroys every
// object in reverse order of creation and closes the
// driver.
// Objects are destroyed even if the wait fails, in which
// case its error is returned.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.stk.Unwind()
	logger.Logger().Info("engine stopped")
	return errors.Wrap(e.waitErr, "engine: Close")
}
