// Package bmesh parses the viewer's compact binary mesh format: a 12-byte
// header followed by interleaved little-endian vertex data and an index
// block.
package bmesh

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

type VertexType uint8

const (
	VertexP VertexType = iota
	VertexPN
	VertexPT
	VertexPNT
)

type IndexType uint8

const (
	IndexU16 IndexType = iota
	IndexU32
)

type PrimitiveType uint8

const (
	PrimitiveTriangles PrimitiveType = iota
	PrimitiveLines
)

const headerSize = 12

// vertexStride is the byte size of one vertex for each vertex type.
var vertexStride = map[VertexType]int{
	VertexP:   12,
	VertexPN:  24,
	VertexPT:  20,
	VertexPNT: 32,
}

// Mesh is the parsed form: attribute streams deinterleaved into typed
// slices, indices widened to u32.
type Mesh struct {
	VertexType    VertexType
	IndexType     IndexType
	PrimitiveType PrimitiveType

	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][2]float32
	Indices   []uint32
}

func (vt VertexType) hasNormal() bool {
	return vt == VertexPN || vt == VertexPNT
}

func (vt VertexType) hasTexCoord() bool {
	return vt == VertexPT || vt == VertexPNT
}

// NewFromData parses a binary mesh blob, validating the header against the
// payload size.
func NewFromData(b []byte) (*Mesh, error) {
	if len(b) < headerSize {
		return nil, errors.Errorf("mesh header truncated: %d bytes", len(b))
	}

	m := &Mesh{
		VertexType:    VertexType(b[0]),
		IndexType:     IndexType(b[1]),
		PrimitiveType: PrimitiveType(b[2]),
	}
	stride, ok := vertexStride[m.VertexType]
	if !ok {
		return nil, errors.Errorf("unknown vertex type %d", b[0])
	}
	if m.IndexType > IndexU32 {
		return nil, errors.Errorf("unknown index type %d", b[1])
	}
	if m.PrimitiveType > PrimitiveLines {
		return nil, errors.Errorf("unknown primitive type %d", b[2])
	}
	if b[3] != 0 {
		return nil, errors.Errorf("nonzero pad byte %d", b[3])
	}

	vertexCount := int(binary.LittleEndian.Uint32(b[4:]))
	indexCount := int(binary.LittleEndian.Uint32(b[8:]))

	indexSize := 2
	if m.IndexType == IndexU32 {
		indexSize = 4
	}
	need := headerSize + vertexCount*stride + indexCount*indexSize
	if len(b) < need {
		return nil, errors.Errorf("mesh truncated: have %d bytes, header needs %d", len(b), need)
	}

	vdata := b[headerSize : headerSize+vertexCount*stride]
	m.Positions = make([][3]float32, vertexCount)
	if m.VertexType.hasNormal() {
		m.Normals = make([][3]float32, vertexCount)
	}
	if m.VertexType.hasTexCoord() {
		m.TexCoords = make([][2]float32, vertexCount)
	}
	for i := 0; i < vertexCount; i++ {
		v := vdata[i*stride:]
		m.Positions[i] = [3]float32{f32(v, 0), f32(v, 4), f32(v, 8)}
		off := 12
		if m.VertexType.hasNormal() {
			m.Normals[i] = [3]float32{f32(v, off), f32(v, off+4), f32(v, off+8)}
			off += 12
		}
		if m.VertexType.hasTexCoord() {
			m.TexCoords[i] = [2]float32{f32(v, off), f32(v, off+4)}
		}
	}

	idata := b[headerSize+vertexCount*stride:]
	m.Indices = make([]uint32, indexCount)
	for i := 0; i < indexCount; i++ {
		if m.IndexType == IndexU16 {
			m.Indices[i] = uint32(binary.LittleEndian.Uint16(idata[i*2:]))
		} else {
			m.Indices[i] = binary.LittleEndian.Uint32(idata[i*4:])
		}
	}

	for i, index := range m.Indices {
		if int(index) >= vertexCount {
			return nil, errors.Errorf("index %d at %d exceeds vertex count %d", index, i, vertexCount)
		}
	}

	return m, nil
}

func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}
