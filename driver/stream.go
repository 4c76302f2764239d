// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
)

// SubobjectType is the tag of a pipeline subobject.
type SubobjectType uint32

// Subobject types.
const (
	SubRootSig      SubobjectType = 0
	SubPS           SubobjectType = 2
	SubDepthStencil SubobjectType = 11
	SubRTFormats    SubobjectType = 15
	SubDSFormat     SubobjectType = 16
	SubAS           SubobjectType = 24
	SubMS           SubobjectType = 25
)

func (t SubobjectType) String() string {
	switch t {
	case SubRootSig:
		return "root signature"
	case SubPS:
		return "pixel shader"
	case SubDepthStencil:
		return "depth/stencil"
	case SubRTFormats:
		return "render target formats"
	case SubDSFormat:
		return "depth/stencil format"
	case SubAS:
		return "amplification shader"
	case SubMS:
		return "mesh shader"
	}
	return "SubobjectType(?)"
}

// Subobject is the interface that tagged pipeline
// subobjects implement.
// A pipeline state is created from an ordered chain
// of subobjects, each type appearing at most once.
type Subobject interface {
	Type() SubobjectType
}

// RootSigSubobject references the pipeline's root
// signature.
type RootSigSubobject struct{ Sig RootSig }

// ShaderSubobject holds the bytecode of a shader stage.
// Stage must be SubAS, SubMS or SubPS.
type ShaderSubobject struct {
	Stage SubobjectType
	Code  []byte
}

// MaxRenderTargets is the length of render target format
// arrays.
const MaxRenderTargets = 8

// RTFormatsSubobject holds the render target formats.
// Formats past Count must be FmtUnknown.
type RTFormatsSubobject struct {
	Formats [MaxRenderTargets]Format
	Count   int
}

// CmpFunc is the type of comparison functions.
type CmpFunc uint32

// Comparison functions.
const (
	CmpNever CmpFunc = iota + 1
	CmpLess
	CmpEqual
	CmpLessEqual
	CmpGreater
	CmpNotEqual
	CmpGreaterEqual
	CmpAlways
)

// DepthStencilDesc describes the depth test.
// Stencil testing is always disabled.
type DepthStencilDesc struct {
	DepthEnable bool
	DepthWrite  bool
	Func        CmpFunc
}

// DepthStencilSubobject holds the depth/stencil state.
type DepthStencilSubobject struct{ Desc DepthStencilDesc }

// DSFormatSubobject holds the depth/stencil format.
type DSFormatSubobject struct{ Format Format }

func (RootSigSubobject) Type() SubobjectType      { return SubRootSig }
func (s ShaderSubobject) Type() SubobjectType     { return s.Stage }
func (RTFormatsSubobject) Type() SubobjectType    { return SubRTFormats }
func (DepthStencilSubobject) Type() SubobjectType { return SubDepthStencil }
func (DSFormatSubobject) Type() SubobjectType     { return SubDSFormat }

// Referencer maps objects referenced by a subobject stream
// to pointer-sized values.
// Values returned by PinCode must remain valid until the
// stream is consumed.
type Referencer interface {
	PinRootSig(rs RootSig) (uintptr, error)
	PinCode(code []byte) uintptr
}

// Dereferencer is the inverse of Referencer.
type Dereferencer interface {
	RootSigAt(p uintptr) (RootSig, error)
	CodeAt(p uintptr, n int) ([]byte, error)
}

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// Size of the native depth/stencil descriptor.
const dsDescSize = 52

func alignUp(n, a int) int { return (n + a - 1) &^ (a - 1) }

var le = binary.LittleEndian

func putPtr(b []byte, p uintptr) {
	if ptrSize == 8 {
		le.PutUint64(b, uint64(p))
	} else {
		le.PutUint32(b, uint32(p))
	}
}

func getPtr(b []byte) uintptr {
	if ptrSize == 8 {
		return uintptr(le.Uint64(b))
	}
	return uintptr(le.Uint32(b))
}

// payload returns the offset and size of the payload of a
// subobject whose tag is at off.
func payload(t SubobjectType, off int) (at, n int, ok bool) {
	switch t {
	case SubRootSig:
		return alignUp(off+4, ptrSize), ptrSize, true
	case SubAS, SubMS, SubPS:
		return alignUp(off+4, ptrSize), 2 * ptrSize, true
	case SubRTFormats:
		return off + 4, 4*MaxRenderTargets + 4, true
	case SubDepthStencil:
		return off + 4, dsDescSize, true
	case SubDSFormat:
		return off + 4, 4, true
	}
	return
}

// EncodeStream serializes chain into the native pipeline
// state stream layout.
// Every subobject starts at a pointer-aligned offset with
// its uint32 tag, followed by its payload at the payload's
// natural alignment. Each subobject is padded to a
// multiple of the pointer size. Declaration order is
// preserved.
func EncodeStream(chain []Subobject, r Referencer) ([]byte, error) {
	var b []byte
	var seen [32]bool
	for i, so := range chain {
		t := so.Type()
		at, n, ok := payload(t, alignUp(len(b), ptrSize))
		if !ok {
			return nil, errors.Errorf("driver: subobject %d: unknown type %d", i, t)
		}
		if seen[t] {
			return nil, errors.Errorf("driver: subobject %d: duplicate %v", i, t)
		}
		seen[t] = true
		off := alignUp(len(b), ptrSize)
		end := alignUp(at+n, ptrSize)
		b = append(b, make([]byte, end-len(b))...)
		le.PutUint32(b[off:], uint32(t))
		p := b[at:]

		switch so := so.(type) {
		case RootSigSubobject:
			if so.Sig == nil {
				return nil, errors.Errorf("driver: subobject %d: nil root signature", i)
			}
			ptr, err := r.PinRootSig(so.Sig)
			if err != nil {
				return nil, errors.Wrapf(err, "driver: subobject %d", i)
			}
			putPtr(p, ptr)
		case ShaderSubobject:
			if len(so.Code) == 0 {
				return nil, errors.Errorf("driver: subobject %d: empty %v", i, t)
			}
			putPtr(p, r.PinCode(so.Code))
			putPtr(p[ptrSize:], uintptr(len(so.Code)))
		case RTFormatsSubobject:
			if so.Count < 0 || so.Count > MaxRenderTargets {
				return nil, errors.Errorf("driver: subobject %d: invalid render target count %d", i, so.Count)
			}
			for j, f := range so.Formats {
				if j >= so.Count && f != FmtUnknown {
					return nil, errors.Errorf("driver: subobject %d: format %d past count is %v", i, j, f)
				}
				le.PutUint32(p[4*j:], uint32(f))
			}
			le.PutUint32(p[4*MaxRenderTargets:], uint32(so.Count))
		case DepthStencilSubobject:
			encodeDS(p, &so.Desc)
		case DSFormatSubobject:
			le.PutUint32(p, uint32(so.Format))
		default:
			return nil, errors.Errorf("driver: subobject %d: unexpected %T", i, so)
		}
	}
	return b, nil
}

// Stencil operation values of the native descriptor.
const (
	stencilOpKeep = 1
	stencilMask   = 0xff
)

func encodeDS(p []byte, d *DepthStencilDesc) {
	b2u := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	le.PutUint32(p[0:], b2u(d.DepthEnable))
	le.PutUint32(p[4:], b2u(d.DepthWrite))
	le.PutUint32(p[8:], uint32(d.Func))
	le.PutUint32(p[12:], 0)
	p[16] = stencilMask
	p[17] = stencilMask
	// Front and back faces.
	for _, off := range [2]int{20, 36} {
		le.PutUint32(p[off:], stencilOpKeep)
		le.PutUint32(p[off+4:], stencilOpKeep)
		le.PutUint32(p[off+8:], stencilOpKeep)
		le.PutUint32(p[off+12:], uint32(CmpAlways))
	}
}

func decodeDS(p []byte) DepthStencilDesc {
	return DepthStencilDesc{
		DepthEnable: le.Uint32(p[0:]) != 0,
		DepthWrite:  le.Uint32(p[4:]) != 0,
		Func:        CmpFunc(le.Uint32(p[8:])),
	}
}

// DecodeStream walks a stream produced by EncodeStream
// by tag, and returns its subobjects in stream order.
func DecodeStream(b []byte, d Dereferencer) ([]Subobject, error) {
	var chain []Subobject
	var seen [32]bool
	for off := 0; off < len(b); {
		if off+4 > len(b) {
			return nil, errors.Errorf("driver: truncated stream at %d", off)
		}
		t := SubobjectType(le.Uint32(b[off:]))
		at, n, ok := payload(t, off)
		if !ok {
			return nil, errors.Errorf("driver: unknown subobject type %d at %d", t, off)
		}
		if seen[t] {
			return nil, errors.Errorf("driver: duplicate %v at %d", t, off)
		}
		seen[t] = true
		end := alignUp(at+n, ptrSize)
		if end > len(b) {
			return nil, errors.Errorf("driver: truncated %v at %d", t, off)
		}
		p := b[at:]

		switch t {
		case SubRootSig:
			rs, err := d.RootSigAt(getPtr(p))
			if err != nil {
				return nil, err
			}
			chain = append(chain, RootSigSubobject{rs})
		case SubAS, SubMS, SubPS:
			code, err := d.CodeAt(getPtr(p), int(getPtr(p[ptrSize:])))
			if err != nil {
				return nil, err
			}
			chain = append(chain, ShaderSubobject{Stage: t, Code: code})
		case SubRTFormats:
			var so RTFormatsSubobject
			for j := range so.Formats {
				so.Formats[j] = Format(le.Uint32(p[4*j:]))
			}
			so.Count = int(le.Uint32(p[4*MaxRenderTargets:]))
			chain = append(chain, so)
		case SubDepthStencil:
			chain = append(chain, DepthStencilSubobject{decodeDS(p)})
		case SubDSFormat:
			chain = append(chain, DSFormatSubobject{Format(le.Uint32(p))})
		}
		off = end
	}
	return chain, nil
}

// PipelineDesc is the flattened description of a mesh
// shading pipeline.
type PipelineDesc struct {
	RootSig          RootSig
	AS, MS, PS       []byte
	RTFormats        [MaxRenderTargets]Format
	NumRenderTargets int
	DepthStencil     DepthStencilDesc
	DSFormat         Format
}

// Describe flattens chain into a PipelineDesc.
// A root signature and the amplification, mesh and pixel
// shaders are required.
func Describe(chain []Subobject) (PipelineDesc, error) {
	var pd PipelineDesc
	for _, so := range chain {
		switch so := so.(type) {
		case RootSigSubobject:
			pd.RootSig = so.Sig
		case ShaderSubobject:
			switch so.Stage {
			case SubAS:
				pd.AS = so.Code
			case SubMS:
				pd.MS = so.Code
			case SubPS:
				pd.PS = so.Code
			}
		case RTFormatsSubobject:
			pd.RTFormats = so.Formats
			pd.NumRenderTargets = so.Count
		case DepthStencilSubobject:
			pd.DepthStencil = so.Desc
		case DSFormatSubobject:
			pd.DSFormat = so.Format
		}
	}
	switch {
	case pd.RootSig == nil:
		return pd, errors.New("driver: pipeline missing root signature")
	case pd.AS == nil:
		return pd, errors.New("driver: pipeline missing amplification shader")
	case pd.MS == nil:
		return pd, errors.New("driver: pipeline missing mesh shader")
	case pd.PS == nil:
		return pd, errors.New("driver: pipeline missing pixel shader")
	case pd.DepthStencil.DepthEnable && pd.DSFormat == FmtUnknown:
		return pd, errors.New("driver: depth test enabled without depth/stencil format")
	}
	return pd, nil
}
