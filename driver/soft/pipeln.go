// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// Root signature blob layout:
//
//	magic   [4]byte
//	nparam  uint32
//	params  [nparam]{kind, register, space, vis uint32}
var rsMagic = [4]byte{'R', 'T', 'S', '1'}

// Root descriptors cost two DWORDs each out of 64.
const maxRootParams = 32

func regClass(k driver.RootParamKind) string {
	switch k {
	case driver.RootCBV:
		return "b"
	case driver.RootSRV:
		return "t"
	case driver.RootUAV:
		return "u"
	}
	return "?"
}

// SerializeRootSig serializes a root signature.
// The error carries the serializer's diagnostic text.
func (g *GPU) SerializeRootSig(params []driver.RootParam) ([]byte, error) {
	var diag []string
	if len(params) > maxRootParams {
		diag = append(diag, fmt.Sprintf("root signature uses %d DWORDs, the limit is 64", 2*len(params)))
	}
	seen := make(map[string]int)
	for i, p := range params {
		switch p.Kind {
		case driver.RootCBV, driver.RootSRV, driver.RootUAV:
		default:
			diag = append(diag, fmt.Sprintf("root parameter %d: invalid parameter type %d", i, p.Kind))
			continue
		}
		switch p.Vis {
		case driver.VisAll, driver.VisPixel, driver.VisAmp, driver.VisMesh:
		default:
			diag = append(diag, fmt.Sprintf("root parameter %d: invalid shader visibility %d", i, p.Vis))
		}
		reg := fmt.Sprintf("%s%d space%d", regClass(p.Kind), p.Register, p.Space)
		if j, ok := seen[reg]; ok {
			diag = append(diag, fmt.Sprintf("root parameters %d and %d both bind register %s", j, i, reg))
		}
		seen[reg] = i
	}
	if len(diag) > 0 {
		return nil, errors.Errorf("SerializeRootSig failed: %s", strings.Join(diag, "; "))
	}
	b := make([]byte, 8+16*len(params))
	copy(b, rsMagic[:])
	binary.LittleEndian.PutUint32(b[4:], uint32(len(params)))
	for i, p := range params {
		q := b[8+16*i:]
		binary.LittleEndian.PutUint32(q[0:], uint32(p.Kind))
		binary.LittleEndian.PutUint32(q[4:], p.Register)
		binary.LittleEndian.PutUint32(q[8:], p.Space)
		binary.LittleEndian.PutUint32(q[12:], uint32(p.Vis))
	}
	return b, nil
}

// RootSig implements driver.RootSig.
type RootSig struct {
	gpu    *GPU
	node   *node
	params []driver.RootParam
}

// NewRootSig creates a root signature from a serialized
// blob.
func (g *GPU) NewRootSig(blob []byte) (driver.RootSig, error) {
	if len(blob) < 8 || [4]byte(blob[:4]) != rsMagic {
		return nil, errors.New("soft: NewRootSig: not a root signature blob")
	}
	n := int(binary.LittleEndian.Uint32(blob[4:]))
	if len(blob) != 8+16*n {
		return nil, errors.New("soft: NewRootSig: truncated blob")
	}
	params := make([]driver.RootParam, n)
	for i := range params {
		q := blob[8+16*i:]
		params[i] = driver.RootParam{
			Kind:     driver.RootParamKind(binary.LittleEndian.Uint32(q[0:])),
			Register: binary.LittleEndian.Uint32(q[4:]),
			Space:    binary.LittleEndian.Uint32(q[8:]),
			Vis:      driver.ShaderVis(binary.LittleEndian.Uint32(q[12:])),
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return &RootSig{gpu: g, node: g.track.add("RootSig"), params: params}, nil
}

// Params returns the root signature's parameters.
func (s *RootSig) Params() []driver.RootParam {
	return append([]driver.RootParam(nil), s.params...)
}

// Destroy destroys the root signature.
func (s *RootSig) Destroy() {
	if s == nil || s.gpu == nil {
		return
	}
	g := s.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	g.track.remove(s.node)
}

// refs resolves pointers of a pipeline stream.
// Values are small integers rather than addresses.
type refs struct {
	gpu   *GPU
	sigs  []*RootSig
	codes [][]byte
}

func (r *refs) PinRootSig(rs driver.RootSig) (uintptr, error) {
	s, ok := rs.(*RootSig)
	if !ok || s.gpu != r.gpu {
		return 0, errors.New("foreign root signature")
	}
	r.sigs = append(r.sigs, s)
	return uintptr(len(r.sigs)), nil
}

func (r *refs) PinCode(code []byte) uintptr {
	r.codes = append(r.codes, code)
	return uintptr(len(r.codes))
}

func (r *refs) RootSigAt(p uintptr) (driver.RootSig, error) {
	if p == 0 || int(p) > len(r.sigs) {
		return nil, errors.Errorf("invalid root signature reference %#x", p)
	}
	return r.sigs[p-1], nil
}

func (r *refs) CodeAt(p uintptr, n int) ([]byte, error) {
	if p == 0 || int(p) > len(r.codes) || n != len(r.codes[p-1]) {
		return nil, errors.Errorf("invalid bytecode reference %#x", p)
	}
	return append([]byte(nil), r.codes[p-1]...), nil
}

// Pipeline implements driver.PipelineState.
type Pipeline struct {
	gpu    *GPU
	node   *node
	desc   driver.PipelineDesc
	stream []byte
}

// NewPipelineState creates a pipeline from the serialized
// form of chain, walking it by tag the same way a native
// implementation would.
func (g *GPU) NewPipelineState(chain []driver.Subobject) (driver.PipelineState, error) {
	r := refs{gpu: g}
	b, err := driver.EncodeStream(chain, &r)
	if err != nil {
		return nil, errors.Wrap(err, "soft: NewPipelineState")
	}
	dec, err := driver.DecodeStream(b, &r)
	if err != nil {
		return nil, errors.Wrap(err, "soft: NewPipelineState")
	}
	pd, err := driver.Describe(dec)
	if err != nil {
		return nil, errors.Wrap(err, "soft: NewPipelineState")
	}
	if pd.NumRenderTargets == 0 && !pd.DepthStencil.DepthEnable {
		return nil, errors.New("soft: NewPipelineState: pipeline has no outputs")
	}
	for i := range pd.NumRenderTargets {
		switch pd.RTFormats[i] {
		case driver.FmtUnknown, driver.D32f, driver.D24unS8ui:
			return nil, errors.Errorf("soft: NewPipelineState: invalid render target format %v", pd.RTFormats[i])
		}
	}
	s := pd.RootSig.(*RootSig)
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.node.dead {
		return nil, errors.New("soft: NewPipelineState: root signature destroyed")
	}
	return &Pipeline{
		gpu:    g,
		node:   g.track.add("Pipeline", s.node),
		desc:   pd,
		stream: b,
	}, nil
}

// Desc returns the pipeline's decoded description.
func (p *Pipeline) Desc() driver.PipelineDesc { return p.desc }

// Stream returns the serialized subobject stream that
// created the pipeline.
func (p *Pipeline) Stream() []byte { return append([]byte(nil), p.stream...) }

// Destroy destroys the pipeline.
func (p *Pipeline) Destroy() {
	if p == nil || p.gpu == nil {
		return
	}
	g := p.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	g.track.remove(p.node)
}
