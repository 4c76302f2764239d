// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// Shaders holds the bytecode of the amplification, mesh
// and pixel shaders.
type Shaders struct {
	AS, MS, PS []byte
}

// ShaderNames are the file names of shader binaries.
type ShaderNames struct {
	AS, MS, PS string
}

// LoadShaders reads the shader binaries named by names
// from dir.
// Every stage is required. Missing, empty and truncated
// files are errors.
func LoadShaders(dir string, names ShaderNames) (Shaders, error) {
	var (
		s   Shaders
		err error
	)
	for _, x := range [...]struct {
		stage string
		name  string
		dst   *[]byte
	}{
		{"amplification", names.AS, &s.AS},
		{"mesh", names.MS, &s.MS},
		{"pixel", names.PS, &s.PS},
	} {
		if x.name == "" {
			return Shaders{}, errors.Errorf("engine: missing %s shader file name", x.stage)
		}
		if *x.dst, err = readShader(filepath.Join(dir, x.name)); err != nil {
			return Shaders{}, err
		}
	}
	return s, nil
}

func readShader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "engine: shader")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "engine: shader %s", path)
	}
	if info.Size() == 0 {
		return nil, errors.Errorf("engine: shader %s is empty", path)
	}
	b := make([]byte, info.Size())
	if n, err := io.ReadFull(f, b); err != nil {
		return nil, errors.Wrapf(err, "engine: shader %s: read %d of %d bytes", path, n, len(b))
	}
	return b, nil
}

// PipelineConfig describes a mesh shading pipeline.
type PipelineConfig struct {
	// Root parameters.
	Params []driver.RootParam

	Shaders Shaders

	// Render target formats. At most
	// driver.MaxRenderTargets.
	RTFormats []driver.Format

	// Depth test. The zero value disables it and
	// DSFormat is ignored.
	DepthStencil driver.DepthStencilDesc
	DSFormat     driver.Format
}

// Pipeline is a root signature and the pipeline state
// created with it.
type Pipeline struct {
	RootSig driver.RootSig
	State   driver.PipelineState
	// The subobject chain from which State was created.
	Chain []driver.Subobject
}

// BuildPipeline creates a root signature and a pipeline
// state object from cfg.
// The amplification, mesh and pixel shaders are required.
// Serialization errors carry the serializer diagnostic.
func BuildPipeline(gpu driver.GPU, cfg *PipelineConfig) (*Pipeline, error) {
	if len(cfg.RTFormats) > driver.MaxRenderTargets {
		return nil, errors.Errorf("engine: %d render targets exceed %d", len(cfg.RTFormats), driver.MaxRenderTargets)
	}
	for _, x := range [...]struct {
		stage string
		code  []byte
	}{
		{"amplification", cfg.Shaders.AS},
		{"mesh", cfg.Shaders.MS},
		{"pixel", cfg.Shaders.PS},
	} {
		if len(x.code) == 0 {
			return nil, errors.Errorf("engine: pipeline missing %s shader", x.stage)
		}
	}
	blob, err := gpu.SerializeRootSig(cfg.Params)
	if err != nil {
		return nil, errors.Wrap(err, "engine: root signature")
	}
	rs, err := gpu.NewRootSig(blob)
	if err != nil {
		return nil, errors.Wrap(err, "engine: root signature")
	}
	chain := pipelineChain(rs, cfg)
	ps, err := gpu.NewPipelineState(chain)
	if err != nil {
		rs.Destroy()
		return nil, errors.Wrap(err, "engine: pipeline state")
	}
	return &Pipeline{RootSig: rs, State: ps, Chain: chain}, nil
}

// pipelineChain orders subobjects as root signature,
// shaders, render target formats and then the optional
// depth state.
func pipelineChain(rs driver.RootSig, cfg *PipelineConfig) []driver.Subobject {
	var rt driver.RTFormatsSubobject
	rt.Count = copy(rt.Formats[:], cfg.RTFormats)
	chain := []driver.Subobject{
		driver.RootSigSubobject{Sig: rs},
		driver.ShaderSubobject{Stage: driver.SubAS, Code: cfg.Shaders.AS},
		driver.ShaderSubobject{Stage: driver.SubMS, Code: cfg.Shaders.MS},
		driver.ShaderSubobject{Stage: driver.SubPS, Code: cfg.Shaders.PS},
		rt,
	}
	if cfg.DepthStencil.DepthEnable {
		chain = append(chain,
			driver.DepthStencilSubobject{Desc: cfg.DepthStencil},
			driver.DSFormatSubobject{Format: cfg.DSFormat},
		)
	}
	return chain
}

// Destroy destroys the pipeline state and then its root
// signature.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.State != nil {
		p.State.Destroy()
	}
	if p.RootSig != nil {
		p.RootSig.Destroy()
	}
	*p = Pipeline{}
}
