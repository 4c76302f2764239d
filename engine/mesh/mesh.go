// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package mesh implements the meshlet representation of
// triangle meshes used by the engine's mesh shaders.
package mesh

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/gltf"
	"github.com/gviegas/meshdraw/internal/logger"
)

const prefix = "mesh: "

// Meshlet limits.
// Local vertex indices must fit in 8 bits.
const (
	MaxVertices  = 64
	MaxTriangles = 124
)

// Sizes in bytes of Vertex and Meshlet as stored in
// GPU buffers.
const (
	VertexSize  = 32
	MeshletSize = 12
)

// Vertex is the vertex layout read by the mesh shader.
type Vertex struct {
	Position [3]float32
	TexCoord [2]float32
	Normal   [3]float32
}

// Meshlet describes a range of Mesh.MeshletData.
// The range starts with VertexCount indices into
// Mesh.Vertices, followed by TriangleCount triangles.
// Each triangle packs three local vertex indices in bits
// 0-7, 8-15 and 16-23.
type Meshlet struct {
	DataOffset    uint32
	VertexCount   uint32
	TriangleCount uint32
}

// Mesh is a triangle mesh split into meshlets.
type Mesh struct {
	Vertices    []Vertex
	Meshlets    []Meshlet
	MeshletData []uint32
}

// Semantic specifies the intended use of a vertex
// attribute.
type Semantic int

// Semantics.
const (
	Position Semantic = 1 << iota
	Normal
	TexCoord0
)

// String implements fmt.Stringer.
func (s Semantic) String() string {
	switch s {
	case Position:
		return "Position"
	case Normal:
		return "Normal"
	case TexCoord0:
		return "TexCoord0"
	default:
		return "[!] invalid Semantic value"
	}
}

// attribute returns the glTF attribute name and
// accessor type of s.
func (s Semantic) attribute() (name, typ string) {
	switch s {
	case Position:
		return "POSITION", gltf.VEC3
	case Normal:
		return "NORMAL", gltf.VEC3
	case TexCoord0:
		return "TEXCOORD_0", gltf.VEC2
	}
	panic("invalid Semantic value")
}

// Load reads every triangle primitive of a glTF file and
// builds a single mesh from them.
// Position is required. Missing normals and texture
// coordinates are zero.
func Load(path string) (*Mesh, error) {
	f, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, prefix+"load")
	}
	var (
		verts []Vertex
		idx   []uint32
		semas Semantic
	)
	for i := range f.Meshes {
		for j, p := range f.Meshes[i].Primitives {
			if p.Mode != nil && *p.Mode != gltf.TRIANGLES {
				return nil, errors.Errorf(prefix+"%s: mesh %d primitive %d is not a triangle list", path, i, j)
			}
			v, s, err := primVertices(f, &p)
			if err != nil {
				return nil, errors.Wrapf(err, prefix+"%s: mesh %d primitive %d", path, i, j)
			}
			base := uint32(len(verts))
			if p.Indices == nil {
				for k := range v {
					idx = append(idx, base+uint32(k))
				}
			} else {
				pi, err := f.Indices(*p.Indices)
				if err != nil {
					return nil, errors.Wrapf(err, prefix+"%s: mesh %d primitive %d", path, i, j)
				}
				for _, k := range pi {
					idx = append(idx, base+k)
				}
			}
			verts = append(verts, v...)
			semas |= s
		}
	}
	if len(verts) == 0 {
		return nil, errors.Errorf(prefix+"%s: no triangle primitives", path)
	}
	if semas&Normal == 0 {
		logger.Logger().Debug("mesh has no normals", "path", path)
	}
	return Build(verts, idx)
}

func primVertices(f *gltf.File, p *gltf.Primitive) ([]Vertex, Semantic, error) {
	var (
		v     []Vertex
		semas Semantic
	)
	for _, s := range [...]Semantic{Position, TexCoord0, Normal} {
		name, typ := s.attribute()
		acc, ok := p.Attributes[name]
		if !ok {
			if s == Position {
				return nil, 0, errors.New("missing POSITION attribute")
			}
			continue
		}
		data, err := f.Floats(acc, typ)
		if err != nil {
			return nil, 0, err
		}
		n := len(data) / len(s.field(&Vertex{}))
		if v == nil {
			v = make([]Vertex, n)
		} else if n != len(v) {
			return nil, 0, errors.Errorf("%s count is %d, want %d", s, n, len(v))
		}
		for i := range v {
			dst := s.field(&v[i])
			copy(dst, data[i*len(dst):])
		}
		semas |= s
	}
	return v, semas, nil
}

// field returns the slice of v that holds s.
func (s Semantic) field(v *Vertex) []float32 {
	switch s {
	case Position:
		return v.Position[:]
	case Normal:
		return v.Normal[:]
	default:
		return v.TexCoord[:]
	}
}

// Build splits a triangle list into meshlets.
// Triangles are added to the current meshlet in order
// until it would exceed MaxVertices or MaxTriangles.
func Build(vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(indices)%3 != 0 {
		return nil, errors.Errorf(prefix+"index count %d is not a multiple of 3", len(indices))
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return nil, errors.Errorf(prefix+"index %d out of range [0, %d)", i, len(vertices))
		}
	}
	m := &Mesh{Vertices: vertices}
	local := make(map[uint32]uint32, MaxVertices)
	var verts, tris []uint32
	flush := func() {
		if len(tris) == 0 {
			return
		}
		m.Meshlets = append(m.Meshlets, Meshlet{
			DataOffset:    uint32(len(m.MeshletData)),
			VertexCount:   uint32(len(verts)),
			TriangleCount: uint32(len(tris)),
		})
		m.MeshletData = append(m.MeshletData, verts...)
		m.MeshletData = append(m.MeshletData, tris...)
		clear(local)
		verts = verts[:0]
		tris = tris[:0]
	}
	for t := 0; t < len(indices); t += 3 {
		tri := indices[t : t+3]
		n := 0
		for _, i := range tri {
			if _, ok := local[i]; !ok {
				n++
			}
		}
		if len(verts)+n > MaxVertices || len(tris) == MaxTriangles {
			flush()
		}
		var p uint32
		for k, i := range tri {
			l, ok := local[i]
			if !ok {
				l = uint32(len(verts))
				local[i] = l
				verts = append(verts, i)
			}
			p |= l << (8 * k)
		}
		tris = append(tris, p)
	}
	flush()
	return m, nil
}

// DataOffset returns the offset, in 32-bit words, of
// MeshletData within MeshletBytes.
func (m *Mesh) DataOffset() int { return len(m.Meshlets) * MeshletSize / 4 }

// VertexBytes returns the vertices in GPU layout.
func (m *Mesh) VertexBytes() []byte {
	b := make([]byte, 0, len(m.Vertices)*VertexSize)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		for _, s := range [...][]float32{v.Position[:], v.TexCoord[:], v.Normal[:]} {
			for _, x := range s {
				b = binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
			}
		}
	}
	return b
}

// MeshletBytes returns the meshlet records followed by
// the meshlet data, in GPU layout.
func (m *Mesh) MeshletBytes() []byte {
	b := make([]byte, 0, len(m.Meshlets)*MeshletSize+len(m.MeshletData)*4)
	for _, ml := range m.Meshlets {
		b = binary.LittleEndian.AppendUint32(b, ml.DataOffset)
		b = binary.LittleEndian.AppendUint32(b, ml.VertexCount)
		b = binary.LittleEndian.AppendUint32(b, ml.TriangleCount)
	}
	for _, x := range m.MeshletData {
		b = binary.LittleEndian.AppendUint32(b, x)
	}
	return b
}

// Triangle returns the vertex indices of triangle t of
// meshlet ml.
func (m *Mesh) Triangle(ml Meshlet, t int) [3]uint32 {
	p := m.MeshletData[int(ml.DataOffset)+int(ml.VertexCount)+t]
	vs := m.MeshletData[ml.DataOffset:]
	return [3]uint32{vs[p&0xff], vs[p>>8&0xff], vs[p>>16&0xff]}
}
