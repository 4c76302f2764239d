// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/driver/soft"
)

var testNames = ShaderNames{AS: dflAS, MS: dflMS, PS: dflPS}

func TestLoadShaders(t *testing.T) {
	dir := writeShaders(t)
	s, err := LoadShaders(dir, testNames)
	require.NoError(t, err)
	assert.Len(t, s.AS, 128)
	assert.Len(t, s.MS, 512)
	assert.Len(t, s.PS, 256)
}

func TestLoadShadersError(t *testing.T) {
	dir := writeShaders(t)
	_, err := LoadShaders(dir, ShaderNames{AS: dflAS, MS: "missing.dxil", PS: dflPS})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "missing.dxil")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.dxil"), nil, 0o644))
	_, err = LoadShaders(dir, ShaderNames{AS: dflAS, MS: dflMS, PS: "empty.dxil"})
	assert.ErrorContains(t, err, "empty")

	_, err = LoadShaders(dir, ShaderNames{AS: dflAS, PS: dflPS})
	assert.ErrorContains(t, err, "mesh shader")

	// The amplification stage is not optional.
	s, err := LoadShaders(dir, ShaderNames{MS: dflMS, PS: dflPS})
	assert.ErrorContains(t, err, "amplification shader")
	assert.Nil(t, s.AS)
	_, err = LoadShaders(dir, ShaderNames{AS: "missing_as.dxil", MS: dflMS, PS: dflPS})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "missing_as.dxil")
}

func testPipelineConfig(t *testing.T) *PipelineConfig {
	t.Helper()
	sh, err := LoadShaders(writeShaders(t), testNames)
	require.NoError(t, err)
	return &PipelineConfig{
		Params:    []driver.RootParam{{Kind: driver.RootCBV}},
		Shaders:   sh,
		RTFormats: []driver.Format{driver.BGRA8un},
	}
}

func TestBuildPipeline(t *testing.T) {
	g := openGPU(t)
	cfg := testPipelineConfig(t)

	p1, err := BuildPipeline(g, cfg)
	require.NoError(t, err)
	defer p1.Destroy()
	p2, err := BuildPipeline(g, cfg)
	require.NoError(t, err)
	defer p2.Destroy()

	// Independent objects with equal descriptions.
	assert.NotSame(t, p1.State, p2.State)
	assert.NotSame(t, p1.RootSig, p2.RootSig)
	d1 := p1.State.(*soft.Pipeline).Desc()
	d2 := p2.State.(*soft.Pipeline).Desc()
	assert.Equal(t, p1.RootSig, d1.RootSig)
	assert.Equal(t, p2.RootSig, d2.RootSig)
	d1.RootSig, d2.RootSig = nil, nil
	assert.Equal(t, d1, d2)

	assert.Equal(t, 1, d1.NumRenderTargets)
	assert.Equal(t, driver.BGRA8un, d1.RTFormats[0])
	for _, f := range d1.RTFormats[1:] {
		assert.Equal(t, driver.FmtUnknown, f)
	}
	assert.Equal(t, cfg.Shaders.AS, d1.AS)
	assert.Equal(t, cfg.Shaders.MS, d1.MS)
	assert.Equal(t, cfg.Shaders.PS, d1.PS)
	assert.False(t, d1.DepthStencil.DepthEnable)
	assert.Equal(t, p1.State.(*soft.Pipeline).Stream(), p2.State.(*soft.Pipeline).Stream())
}

func TestPipelineChain(t *testing.T) {
	g := openGPU(t)
	cfg := testPipelineConfig(t)
	cfg.DepthStencil = driver.DepthStencilDesc{DepthEnable: true, DepthWrite: true, Func: driver.CmpLess}
	cfg.DSFormat = driver.D32f
	p, err := BuildPipeline(g, cfg)
	require.NoError(t, err)
	defer p.Destroy()

	require.Len(t, p.Chain, 7)
	assert.IsType(t, driver.RootSigSubobject{}, p.Chain[0])
	for i, st := range [...]driver.SubobjectType{driver.SubAS, driver.SubMS, driver.SubPS} {
		assert.Equal(t, st, p.Chain[1+i].(driver.ShaderSubobject).Stage)
	}
	assert.Equal(t, 1, p.Chain[4].(driver.RTFormatsSubobject).Count)
	assert.Equal(t, cfg.DepthStencil, p.Chain[5].(driver.DepthStencilSubobject).Desc)
	assert.Equal(t, driver.D32f, p.Chain[6].(driver.DSFormatSubobject).Format)

	cfg.Shaders.AS = nil
	_, err = BuildPipeline(g, cfg)
	assert.ErrorContains(t, err, "missing amplification shader")
}

func TestBuildPipelineError(t *testing.T) {
	g := openGPU(t)
	cfg := testPipelineConfig(t)
	cfg.Params = append(cfg.Params, driver.RootParam{Kind: driver.RootCBV})
	_, err := BuildPipeline(g, cfg)
	assert.ErrorContains(t, err, "both bind register b0")

	cfg = testPipelineConfig(t)
	cfg.RTFormats = make([]driver.Format, driver.MaxRenderTargets+1)
	_, err = BuildPipeline(g, cfg)
	assert.Error(t, err)

	cfg = testPipelineConfig(t)
	cfg.RTFormats = []driver.Format{driver.D32f}
	_, err = BuildPipeline(g, cfg)
	assert.Error(t, err)

	cfg = testPipelineConfig(t)
	cfg.Shaders.PS = nil
	_, err = BuildPipeline(g, cfg)
	assert.ErrorContains(t, err, "missing pixel shader")
	assert.Zero(t, g.Live())
}
