// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// File is a checked glTF document whose buffers were
// loaded.
type File struct {
	*GLTF
	// Data[i] holds the contents of Buffers[i].
	Data [][]byte
}

// Open reads a .gltf or .glb file.
// Buffer URIs are resolved relative to the file's
// directory.
func Open(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "gltf")
	}
	f, err := Load(b, filepath.Dir(path))
	return f, errors.Wrap(err, path)
}

// Load decodes a glTF document or GLB blob from b and
// loads its buffers.
// A buffer is read from the GLB BIN chunk when it has
// no URI, from a base64 data URI, or from a file in dir.
func Load(b []byte, dir string) (*File, error) {
	var (
		gltf *GLTF
		bin  []byte
		err  error
	)
	if IsGLB(bytes.NewReader(b)) {
		gltf, bin, err = ReadGLB(bytes.NewReader(b))
	} else {
		gltf, err = Decode(bytes.NewReader(b))
	}
	if err != nil {
		return nil, err
	}
	if err = gltf.Check(); err != nil {
		return nil, err
	}
	f := &File{GLTF: gltf, Data: make([][]byte, len(gltf.Buffers))}
	for i := range gltf.Buffers {
		if f.Data[i], err = loadBuffer(&gltf.Buffers[i], bin, dir); err != nil {
			return nil, errors.Wrapf(err, "gltf: buffer %d", i)
		}
	}
	return f, nil
}

func loadBuffer(buf *Buffer, bin []byte, dir string) (d []byte, err error) {
	switch {
	case buf.URI == "":
		if bin == nil {
			return nil, errors.New("no URI and no BIN chunk")
		}
		d = bin
	case strings.HasPrefix(buf.URI, "data:"):
		i := strings.Index(buf.URI, ";base64,")
		if i < 0 {
			return nil, errors.New("data URI is not base64")
		}
		if d, err = base64.StdEncoding.DecodeString(buf.URI[i+8:]); err != nil {
			return nil, err
		}
	default:
		uri, err := url.PathUnescape(buf.URI)
		if err != nil {
			return nil, err
		}
		if d, err = os.ReadFile(filepath.Join(dir, filepath.FromSlash(uri))); err != nil {
			return nil, err
		}
	}
	if int64(len(d)) < buf.ByteLength {
		return nil, errors.Errorf("have %d bytes, want %d", len(d), buf.ByteLength)
	}
	return d[:buf.ByteLength], nil
}

// view returns the bytes of accessor i's buffer view
// starting at the accessor's offset, and the distance
// between elements.
// The slice is nil for accessors without a buffer view.
func (f *File) view(i int64) (data []byte, stride int64, err error) {
	if i < 0 || i >= int64(len(f.Accessors)) {
		return nil, 0, errors.Errorf("gltf: invalid accessor index %d", i)
	}
	a := &f.Accessors[i]
	stride = a.ElemSize()
	if a.BufferView == nil {
		return nil, stride, nil
	}
	v := &f.BufferViews[*a.BufferView]
	if v.ByteStride != 0 {
		stride = v.ByteStride
	}
	data = f.Data[v.Buffer][v.ByteOffset : v.ByteOffset+v.ByteLength]
	return data[a.ByteOffset:], stride, nil
}

// Floats reads accessor i, which must have type typ and
// FLOAT components.
// Components are returned tightly packed.
func (f *File) Floats(i int64, typ string) ([]float32, error) {
	data, stride, err := f.view(i)
	if err != nil {
		return nil, err
	}
	a := &f.Accessors[i]
	if a.Type != typ || a.ComponentType != FLOAT {
		return nil, errors.Errorf("gltf: accessor %d is %s/%d, want %s/FLOAT", i, a.Type, a.ComponentType, typ)
	}
	nc := componentCount(typ)
	s := make([]float32, a.Count*nc)
	if data == nil {
		return s, nil
	}
	for j := int64(0); j < a.Count; j++ {
		e := data[j*stride:]
		for k := int64(0); k < nc; k++ {
			s[j*nc+k] = math.Float32frombits(binary.LittleEndian.Uint32(e[k*4:]))
		}
	}
	return s, nil
}

// Indices reads accessor i, which must be a SCALAR of
// unsigned integers.
func (f *File) Indices(i int64) ([]uint32, error) {
	data, stride, err := f.view(i)
	if err != nil {
		return nil, err
	}
	a := &f.Accessors[i]
	if a.Type != SCALAR {
		return nil, errors.Errorf("gltf: accessor %d is %s, want SCALAR", i, a.Type)
	}
	s := make([]uint32, a.Count)
	if data == nil {
		return s, nil
	}
	for j := range s {
		e := data[int64(j)*stride:]
		switch a.ComponentType {
		case UNSIGNED_BYTE:
			s[j] = uint32(e[0])
		case UNSIGNED_SHORT:
			s[j] = uint32(binary.LittleEndian.Uint16(e))
		case UNSIGNED_INT:
			s[j] = binary.LittleEndian.Uint32(e)
		default:
			return nil, errors.Errorf("gltf: accessor %d has invalid index type %d", i, a.ComponentType)
		}
	}
	return s, nil
}
