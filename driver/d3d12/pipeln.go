// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"runtime"
	"strings"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// rootParameter1 matches D3D12_ROOT_PARAMETER1 holding a
// root descriptor.
type rootParameter1 struct {
	ParameterType  uint32
	_              uint32
	ShaderRegister uint32
	RegisterSpace  uint32
	Flags          uint32
	_              uint32
	Visibility     uint32
	_              uint32
}

// versionedRootSignatureDesc matches
// D3D12_VERSIONED_ROOT_SIGNATURE_DESC with a 1.1 body.
type versionedRootSignatureDesc struct {
	Version           uint32
	_                 uint32
	NumParameters     uint32
	Parameters        uintptr
	NumStaticSamplers uint32
	StaticSamplers    uintptr
	Flags             uint32
}

// pipelineStreamDesc matches
// D3D12_PIPELINE_STATE_STREAM_DESC.
type pipelineStreamDesc struct {
	SizeInBytes uintptr
	Stream      uintptr
}

const rootSignatureVersion1_1 = 2

// SerializeRootSig serializes a root signature.
// The error carries the serializer's diagnostic text.
func (g *GPU) SerializeRootSig(params []driver.RootParam) ([]byte, error) {
	rp := make([]rootParameter1, len(params))
	for i, p := range params {
		rp[i] = rootParameter1{
			ParameterType:  uint32(p.Kind),
			ShaderRegister: p.Register,
			RegisterSpace:  p.Space,
			Visibility:     uint32(p.Vis),
		}
	}
	desc := versionedRootSignatureDesc{Version: rootSignatureVersion1_1, NumParameters: uint32(len(rp))}
	var pinner runtime.Pinner
	defer pinner.Unpin()
	if len(rp) > 0 {
		pinner.Pin(&rp[0])
		desc.Parameters = uintptr(unsafe.Pointer(&rp[0]))
	}
	var blob, errBlob uintptr
	hr, _, _ := procD3D12SerializeVersionedRS.Call(
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&blob)),
		uintptr(unsafe.Pointer(&errBlob)))
	defer release(blob)
	defer release(errBlob)
	if int32(hr) < 0 {
		msg := "unknown error"
		if errBlob != 0 {
			msg = strings.TrimRight(string(blobBytes(errBlob)), "\x00\r\n")
		}
		return nil, errors.Errorf("SerializeRootSig failed: %s", msg)
	}
	return blobBytes(blob), nil
}

// RootSig implements driver.RootSig.
type RootSig struct {
	rs uintptr // ID3D12RootSignature
}

// NewRootSig creates a root signature from a serialized
// blob.
func (g *GPU) NewRootSig(blob []byte) (driver.RootSig, error) {
	if len(blob) == 0 {
		return nil, errors.New("d3d12: NewRootSig: empty blob")
	}
	s := &RootSig{}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCreateRootSignature), g.dev, 0, uintptr(unsafe.Pointer(&blob[0])), uintptr(len(blob)), uintptr(unsafe.Pointer(&iidID3D12RootSignature)), uintptr(unsafe.Pointer(&s.rs)))
	if err := check(hr, "CreateRootSignature"); err != nil {
		return nil, err
	}
	return s, nil
}

// Destroy destroys the root signature.
func (s *RootSig) Destroy() {
	if s == nil {
		return
	}
	release(s.rs)
	*s = RootSig{}
}

// refs stores native pointers in a pipeline stream.
// Bytecode is pinned until the stream is consumed.
type refs struct {
	pinner runtime.Pinner
}

func (r *refs) PinRootSig(rs driver.RootSig) (uintptr, error) {
	s, ok := rs.(*RootSig)
	if !ok || s.rs == 0 {
		return 0, errors.New("invalid root signature")
	}
	return s.rs, nil
}

func (r *refs) PinCode(code []byte) uintptr {
	r.pinner.Pin(&code[0])
	return uintptr(unsafe.Pointer(&code[0]))
}

// Pipeline implements driver.PipelineState.
type Pipeline struct {
	pso uintptr // ID3D12PipelineState
}

// NewPipelineState creates a pipeline from a chain of
// subobjects.
func (g *GPU) NewPipelineState(chain []driver.Subobject) (driver.PipelineState, error) {
	if _, err := driver.Describe(chain); err != nil {
		return nil, errors.Wrap(err, "d3d12: NewPipelineState")
	}
	var r refs
	defer r.pinner.Unpin()
	b, err := driver.EncodeStream(chain, &r)
	if err != nil {
		return nil, errors.Wrap(err, "d3d12: NewPipelineState")
	}
	r.pinner.Pin(&b[0])
	desc := pipelineStreamDesc{SizeInBytes: uintptr(len(b)), Stream: uintptr(unsafe.Pointer(&b[0]))}
	p := &Pipeline{}
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, device2CreatePipelineState), g.dev, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&iidID3D12PipelineState)), uintptr(unsafe.Pointer(&p.pso)))
	if err := check(hr, "CreatePipelineState"); err != nil {
		return nil, err
	}
	return p, nil
}

// Destroy destroys the pipeline.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	release(p.pso)
	*p = Pipeline{}
}
