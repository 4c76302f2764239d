// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// GLB header.
type glbHeader [3]uint32

// Indices in glbHeader.
const (
	headerMagic   = 0
	headerVersion = 1
	headerLength  = 2
)

// GLB chunk.
type (
	glbChunk     [2]uint32
	glbChunkData []byte
)

// Indices in glbChunk.
const (
	chunkLength = 0
	chunkType   = 1
	// Then payload (glbChunkData).
)

const (
	// glbHeader[headerMagic].
	magic = 0x46546c67

	// glbChunk[chunkType].
	typeJSON = 0x4e4f534a
	typeBIN  = 0x004e4942
)

// IsGLB returns whether r refers to a binary glTF (version 2).
// It assumes that r was positioned accordingly.
func IsGLB(r io.Reader) bool {
	var h glbHeader
	err := binary.Read(r, binary.LittleEndian, h[:])
	switch {
	case err != nil, h[headerMagic] != magic, h[headerVersion] != 2:
		return false
	default:
		return true
	}
}

// SeekJSON seeks into r until it finds the beginning
// of the JSON string.
// If successful, it returns the length of the chunk.
// r must refer to an unread GLB blob.
func SeekJSON(r io.Reader) (n int, err error) {
	if !IsGLB(r) {
		err = errors.New("gltf: not a GLB blob")
		return
	}
	var c glbChunk
	err = binary.Read(r, binary.LittleEndian, c[:])
	switch {
	case err != nil:
	case c[chunkLength] == 0 || c[chunkType] != typeJSON:
		err = errors.New("gltf: invalid GLB chunk")
	default:
		n = int(c[chunkLength])
	}
	return
}

// ReadGLB reads a GLB blob from r.
// It returns the decoded JSON chunk and the BIN chunk,
// which is nil if the blob has none.
func ReadGLB(r io.Reader) (*GLTF, []byte, error) {
	n, err := SeekJSON(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "gltf: GLB header")
	}
	js := make([]byte, n)
	if _, err := io.ReadFull(r, js); err != nil {
		return nil, nil, errors.Wrap(err, "gltf: GLB JSON chunk")
	}
	gltf, err := Decode(bytes.NewReader(js))
	if err != nil {
		return nil, nil, err
	}
	var c glbChunk
	switch err := binary.Read(r, binary.LittleEndian, c[:]); {
	case err == io.EOF:
		return gltf, nil, nil
	case err != nil:
		return nil, nil, errors.Wrap(err, "gltf: GLB BIN chunk")
	case c[chunkType] != typeBIN:
		return nil, nil, errors.New("gltf: invalid GLB chunk")
	}
	bin := make(glbChunkData, c[chunkLength])
	if _, err := io.ReadFull(r, bin); err != nil {
		return nil, nil, errors.Wrap(err, "gltf: GLB BIN chunk")
	}
	return gltf, bin, nil
}

// WriteGLB writes gltf and bin to w as a GLB blob.
// Chunks are padded to 4-byte alignment as required.
func WriteGLB(w io.Writer, gltf *GLTF, bin []byte) error {
	var js bytes.Buffer
	if err := Encode(&js, gltf); err != nil {
		return err
	}
	for js.Len()%4 != 0 {
		js.WriteByte(' ')
	}
	bin = append([]byte(nil), bin...)
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}
	n := 12 + 8 + js.Len()
	if len(bin) > 0 {
		n += 8 + len(bin)
	}
	h := glbHeader{magic, 2, uint32(n)}
	if err := binary.Write(w, binary.LittleEndian, h[:]); err != nil {
		return errors.Wrap(err, "gltf: GLB header")
	}
	c := glbChunk{uint32(js.Len()), typeJSON}
	if err := binary.Write(w, binary.LittleEndian, c[:]); err != nil {
		return errors.Wrap(err, "gltf: GLB JSON chunk")
	}
	if _, err := w.Write(js.Bytes()); err != nil {
		return errors.Wrap(err, "gltf: GLB JSON chunk")
	}
	if len(bin) == 0 {
		return nil
	}
	c = glbChunk{uint32(len(bin)), typeBIN}
	if err := binary.Write(w, binary.LittleEndian, c[:]); err != nil {
		return errors.Wrap(err, "gltf: GLB BIN chunk")
	}
	_, err := w.Write(bin)
	return errors.Wrap(err, "gltf: GLB BIN chunk")
}
