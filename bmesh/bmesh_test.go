package bmesh

import (
	"encoding/binary"
	"math"
	"testing"
)

func buildMesh(vtype VertexType, itype IndexType, ptype PrimitiveType,
	vertices []float32, indices []uint32) []byte {
	stride := vertexStride[vtype]
	vertexCount := len(vertices) * 4 / stride

	b := make([]byte, 12)
	b[0] = byte(vtype)
	b[1] = byte(itype)
	b[2] = byte(ptype)
	binary.LittleEndian.PutUint32(b[4:], uint32(vertexCount))
	binary.LittleEndian.PutUint32(b[8:], uint32(len(indices)))
	for _, f := range vertices {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
		b = append(b, tmp[:]...)
	}
	for _, index := range indices {
		if itype == IndexU16 {
			var tmp [2]byte
			binary.LittleEndian.PutUint16(tmp[:], uint16(index))
			b = append(b, tmp[:]...)
		} else {
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], index)
			b = append(b, tmp[:]...)
		}
	}
	return b
}

func TestNewFromDataPNT(t *testing.T) {
	vertices := []float32{
		// x, y, z, nx, ny, nz, u, v
		0, 0, 0, 0, 0, 1, 0, 0,
		1, 0, 0, 0, 0, 1, 1, 0,
		0, 1, 0, 0, 0, 1, 0, 1,
	}
	data := buildMesh(VertexPNT, IndexU16, PrimitiveTriangles, vertices, []uint32{0, 1, 2})

	m, err := NewFromData(data)
	if err != nil {
		t.Fatalf("NewFromData: %v", err)
	}
	if len(m.Positions) != 3 || len(m.Normals) != 3 || len(m.TexCoords) != 3 {
		t.Fatalf("stream lengths %d/%d/%d; expected 3/3/3",
			len(m.Positions), len(m.Normals), len(m.TexCoords))
	}
	if m.Positions[1] != [3]float32{1, 0, 0} {
		t.Errorf("Positions[1]=%v", m.Positions[1])
	}
	if m.Normals[2] != [3]float32{0, 0, 1} {
		t.Errorf("Normals[2]=%v", m.Normals[2])
	}
	if m.TexCoords[2] != [2]float32{0, 1} {
		t.Errorf("TexCoords[2]=%v", m.TexCoords[2])
	}
	if len(m.Indices) != 3 || m.Indices[2] != 2 {
		t.Errorf("Indices=%v", m.Indices)
	}
}

func TestNewFromDataPositionsOnly(t *testing.T) {
	vertices := []float32{0, 0, 0, 1, 1, 1}
	data := buildMesh(VertexP, IndexU32, PrimitiveLines, vertices, []uint32{0, 1})

	m, err := NewFromData(data)
	if err != nil {
		t.Fatalf("NewFromData: %v", err)
	}
	if m.Normals != nil || m.TexCoords != nil {
		t.Errorf("unexpected attribute streams for vertex type P")
	}
	if m.PrimitiveType != PrimitiveLines {
		t.Errorf("PrimitiveType=%d", m.PrimitiveType)
	}
}

func TestNewFromDataErrors(t *testing.T) {
	good := buildMesh(VertexP, IndexU16, PrimitiveTriangles,
		[]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []uint32{0, 1, 2})

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated header", func(b []byte) []byte { return b[:8] }},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-2] }},
		{"bad vertex type", func(b []byte) []byte { b[0] = 9; return b }},
		{"bad index type", func(b []byte) []byte { b[1] = 7; return b }},
		{"bad primitive type", func(b []byte) []byte { b[2] = 5; return b }},
		{"nonzero pad", func(b []byte) []byte { b[3] = 1; return b }},
		{"index out of range", func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[len(b)-2:], 99)
			return b
		}},
	}
	for _, test := range tests {
		data := make([]byte, len(good))
		copy(data, good)
		if _, err := NewFromData(test.mutate(data)); err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}
