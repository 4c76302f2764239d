// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/driver/soft"
	"github.com/gviegas/meshdraw/engine/camera"
	"github.com/gviegas/meshdraw/engine/desc"
	"github.com/gviegas/meshdraw/gltf"
	"github.com/gviegas/meshdraw/linear"
	"github.com/gviegas/meshdraw/wsi"
)

// newEngine creates an Engine that presents to a headless
// window.
// When the test ends, the engine is closed and the soft
// driver must report no violations and no live objects.
func newEngine(t *testing.T, cfg *Config) (*Engine, *soft.GPU) {
	t.Helper()
	e, err := New(cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	require.NoError(t, err)
	g := e.GPU().(*soft.GPU)
	t.Cleanup(func() {
		assert.NoError(t, e.Close())
		assert.Empty(t, g.Violations())
		assert.Zero(t, g.Live())
	})
	return e, g
}

// writeQuad writes a GLB file holding a single quad.
func writeQuad(t *testing.T) string {
	t.Helper()
	var bin []byte
	for _, x := range [...]float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0} {
		bin = binary.LittleEndian.AppendUint32(bin, math.Float32bits(x))
	}
	for _, i := range [...]uint16{0, 2, 1, 1, 2, 3} {
		bin = binary.LittleEndian.AppendUint16(bin, i)
	}
	pv, iv := int64(0), int64(1)
	g := &gltf.GLTF{
		Accessors: []gltf.Accessor{
			{BufferView: &pv, ComponentType: gltf.FLOAT, Count: 4, Type: gltf.VEC3},
			{BufferView: &iv, ComponentType: gltf.UNSIGNED_SHORT, Count: 6, Type: gltf.SCALAR},
		},
		Buffers: []gltf.Buffer{{ByteLength: int64(len(bin))}},
		BufferViews: []gltf.BufferView{
			{ByteLength: 48},
			{ByteOffset: 48, ByteLength: 12},
		},
		Meshes: []gltf.Mesh{{Primitives: []gltf.Primitive{{
			Attributes: map[string]int64{"POSITION": 0},
			Indices:    &iv,
		}}}},
	}
	g.Asset.Version = "2.0"
	var buf bytes.Buffer
	require.NoError(t, gltf.WriteGLB(&buf, g, bin))
	path := filepath.Join(t.TempDir(), "quad.glb")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func identity() *linear.M4 {
	var m linear.M4
	m.I()
	return &m
}

// checkPresented checks the state that every frame must
// leave behind.
func checkPresented(t *testing.T, e *Engine) {
	t.Helper()
	assert.Equal(t, FrameIdle, e.frame.State())
	assert.Equal(t, uint64(1), e.frame.Completed())
	for i, img := range e.tgts.images {
		assert.Equal(t, driver.StatePresent, img.(*soft.Resource).State(), "image %d", i)
	}
}

func TestFrame(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClearColor = [4]float32{1, 0, 0, 1}
	e, g := newEngine(t, &cfg)
	sc := e.tgts.sc.(*soft.Swapchain)

	for i := 0; i < 3; i++ {
		cur := e.tgts.current()
		require.NoError(t, e.Frame(identity()))
		checkPresented(t, e)
		assert.Equal(t, i+1, sc.Presented())
		assert.Equal(t, (cur+1)%cfg.ImageCount, e.tgts.current())
	}
	st := g.Stats()
	assert.Equal(t, 3, st.Dispatches)
	assert.Equal(t, 3, st.Presents)
	assert.Equal(t, 3, st.Clears)
	assert.Nil(t, g.Lost())

	// BGRA.
	px := e.tgts.images[0].(*soft.Resource).Bytes()
	require.Len(t, px, cfg.Width*cfg.Height*4)
	assert.Equal(t, []byte{0, 0, 255, 255}, px[:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, px[len(px)-4:])
}

func TestFrameConstants(t *testing.T) {
	cfg := testConfig(t)
	e, _ := newEngine(t, &cfg)
	vp := linear.M4{{1}, {1: 1}, {2: 1}, {1, 2, 3, 1}}
	require.NoError(t, e.Frame(&vp))
	b := e.cb.(*soft.Resource).Bytes()
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(b[48:])))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(b[56:])))
	assert.Zero(t, binary.LittleEndian.Uint32(b[64:]))
}

func TestFrameDepth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Depth = true
	e, _ := newEngine(t, &cfg)
	require.NotNil(t, e.depth)
	pd := e.pipe.State.(*soft.Pipeline).Desc()
	assert.True(t, pd.DepthStencil.DepthEnable)
	assert.Equal(t, driver.CmpLess, pd.DepthStencil.Func)
	assert.Equal(t, driver.D32f, pd.DSFormat)

	require.NoError(t, e.Frame(identity()))
	checkPresented(t, e)
	assert.Equal(t, driver.StateDepthWrite, e.depth.(*soft.Resource).State())
	d := e.depth.(*soft.Resource).Bytes()
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(d)))
}

func TestFrameMesh(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mesh = writeQuad(t)
	e, g := newEngine(t, &cfg)
	require.NotNil(t, e.mesh)
	assert.Equal(t, 1, e.mesh.count)
	assert.Equal(t, 3, e.mesh.dataOff)
	assert.Len(t, e.pipe.RootSig.(*soft.RootSig).Params(), 4)

	require.NoError(t, e.Frame(identity()))
	checkPresented(t, e)
	assert.Equal(t, 1, g.Stats().Dispatches)

	b := e.cb.(*soft.Resource).Bytes()
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[64:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[68:]))

	vb, err := Readback(e.gpu, e.alloc, e.mesh.vertices, driver.StateAllShaderRead, 4*32)
	require.NoError(t, err)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(vb[32:])))
	// The frame is still presentable afterwards.
	require.NoError(t, e.Frame(identity()))
	checkPresented(t, e)
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	e, g := newEngine(t, &cfg)
	win := wsi.NewHeadless(cfg.Width, cfg.Height, 4)
	win.Push(wsi.Event{Kind: wsi.MouseMotion, DX: 10, DY: 5})
	cam := camera.New(cfg.CameraPosition, cfg.CameraRotation)
	require.NoError(t, e.Run(win, cam))
	assert.Equal(t, 4, g.Stats().Presents)
	assert.Equal(t, 5, win.Polls())
	assert.NotZero(t, cam.Rotation()[1])
	checkPresented(t, e)
}

func TestNewError(t *testing.T) {
	cfg := testConfig(t)
	cfg.MeshShader = "missing.dxil"
	e, err := New(&cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	assert.Nil(t, e)
	assert.ErrorContains(t, err, "missing.dxil")

	cfg = testConfig(t)
	cfg.Driver = "no such driver"
	_, err = New(&cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.ImageCount = 1
	_, err = New(&cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Mesh = filepath.Join(t.TempDir(), "missing.glb")
	_, err = New(&cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	assert.Error(t, err)
}

func TestNewUnwinds(t *testing.T) {
	// The engine shares the GPU opened here, so its
	// tracker outlives the failed New.
	g := openGPU(t)
	// The mesh needs three views and a CBV heap of one
	// slot only fits the constant buffer.
	cfg := testConfig(t)
	cfg.Mesh = writeQuad(t)
	cfg.CBVCapacity = 1
	e, err := New(&cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	assert.Nil(t, e)
	require.ErrorIs(t, err, desc.ErrFull)
	assert.Empty(t, g.Violations())
	assert.Zero(t, g.Live())
}

func TestClose(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(&cfg, wsi.NewHeadless(cfg.Width, cfg.Height, 0))
	require.NoError(t, err)
	g := e.GPU().(*soft.GPU)
	require.NoError(t, e.Frame(identity()))
	require.NoError(t, e.Close())
	assert.NoError(t, e.Close())
	assert.Empty(t, g.Violations())
	assert.Zero(t, g.Live())
	assert.Error(t, e.Frame(identity()))
}
