package asset

import (
	"bytes"
	"testing"

	"github.com/qmuntal/gltf"
)

func TestSplitSingleAccessor(t *testing.T) {
	data := leFloats(1, 2, 3, 4, 5, 6, 7, 8, 9)
	buf := testBuffer(data)
	acc := testAccessor(buf, 0, 0, 0, 3, gltf.ComponentFloat, gltf.AccessorVec3)

	out, err := splitAccessors(data, []*Accessor{acc})
	if err != nil {
		t.Fatal(err)
	}
	if out.ByteLength != 36 || !bytes.Equal(out.Data, data) {
		t.Errorf("output buffer %d bytes; expected identical 36", out.ByteLength)
	}
	if acc.View.Buffer != out || acc.View.ByteOffset != 0 || acc.ByteOffset != 0 {
		t.Errorf("accessor not rebuilt onto output: view=%+v offset=%d", acc.View, acc.ByteOffset)
	}
}

// Interleaved position/normal accessors coalesce into one run that keeps
// the stride layout.
func TestSplitInterleaved(t *testing.T) {
	vals := make([]float32, 36) // 6 vertices * 6 floats
	for i := range vals {
		vals[i] = float32(i)
	}
	data := leFloats(vals...)
	buf := testBuffer(data)
	pos := testAccessor(buf, 0, 0, 24, 6, gltf.ComponentFloat, gltf.AccessorVec3)
	pos.OriginalIndex = 0
	norm := testAccessor(buf, 0, 12, 24, 6, gltf.ComponentFloat, gltf.AccessorVec3)
	norm.OriginalIndex = 1

	out, err := splitAccessors(data, []*Accessor{pos, norm})
	if err != nil {
		t.Fatal(err)
	}
	if out.ByteLength != 144 {
		t.Fatalf("output %d bytes; expected 144", out.ByteLength)
	}
	if !bytes.Equal(out.Data, data) {
		t.Errorf("coalesced run should be a verbatim copy")
	}
	if pos.View.Buffer != out || norm.View.Buffer != out {
		t.Errorf("accessors rebuilt onto different buffers")
	}
	if pos.View.ByteOffset != 0 || norm.View.ByteOffset != 12 {
		t.Errorf("offsets %d/%d; expected 0/12", pos.View.ByteOffset, norm.View.ByteOffset)
	}
	if pos.View.ByteStride != 24 || norm.View.ByteStride != 24 {
		t.Errorf("strides %d/%d; expected 24/24", pos.View.ByteStride, norm.View.ByteStride)
	}
	if pos.ByteOffset != 0 || norm.ByteOffset != 0 {
		t.Errorf("accessor-level offsets %d/%d not folded", pos.ByteOffset, norm.ByteOffset)
	}
}

// Distant extents pack tightly, dropping the gap between them.
func TestSplitDropsGap(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	buf := testBuffer(data)
	a := testAccessor(buf, 0, 0, 0, 3, gltf.ComponentFloat, gltf.AccessorScalar) // [0,12)
	a.OriginalIndex = 0
	b := testAccessor(buf, 80, 0, 0, 5, gltf.ComponentFloat, gltf.AccessorScalar) // [80,100)
	b.OriginalIndex = 1

	out, err := splitAccessors(data, []*Accessor{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if out.ByteLength != 32 {
		t.Fatalf("output %d bytes; expected 32", out.ByteLength)
	}
	if !bytes.Equal(out.Data[0:12], data[0:12]) || !bytes.Equal(out.Data[12:32], data[80:100]) {
		t.Errorf("runs not copied in source order")
	}
	if a.View.ByteOffset != 0 || b.View.ByteOffset != 12 {
		t.Errorf("offsets %d/%d; expected 0/12", a.View.ByteOffset, b.View.ByteOffset)
	}
	if sum := a.View.ByteLength + b.View.ByteLength; sum > len(data) {
		t.Errorf("packing inflated: %d > %d", sum, len(data))
	}
}

// Identical source extents land on the identical destination range.
func TestSplitIdenticalExtents(t *testing.T) {
	data := leFloats(1, 2, 3, 4, 5, 6)
	buf := testBuffer(data)
	a := testAccessor(buf, 0, 0, 0, 6, gltf.ComponentFloat, gltf.AccessorScalar)
	a.OriginalIndex = 0
	b := testAccessor(buf, 0, 0, 0, 2, gltf.ComponentFloat, gltf.AccessorVec3)
	b.OriginalIndex = 1

	out, err := splitAccessors(data, []*Accessor{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if out.ByteLength != 24 {
		t.Fatalf("output %d bytes; expected 24", out.ByteLength)
	}
	aStart, aEnd := a.ByteExtent()
	bStart, bEnd := b.ByteExtent()
	if aStart != bStart || aEnd != bEnd {
		t.Errorf("identical source extents diverged: [%d,%d) vs [%d,%d)", aStart, aEnd, bStart, bEnd)
	}
}

// Runs are aligned to the widest component they contain.
func TestSplitAlignment(t *testing.T) {
	data := make([]byte, 50)
	buf := testBuffer(data)
	// 3 bytes of u8, then a gap, then floats at a source offset that is
	// not 4-aligned relative to the first run's end
	a := testAccessor(buf, 0, 0, 0, 3, gltf.ComponentUbyte, gltf.AccessorScalar) // [0,3)
	a.OriginalIndex = 0
	b := testAccessor(buf, 10, 0, 0, 5, gltf.ComponentFloat, gltf.AccessorScalar) // [10,30)
	b.OriginalIndex = 1

	out, err := splitAccessors(data, []*Accessor{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if b.View.ByteOffset%4 != 0 {
		t.Errorf("float run at offset %d not 4-aligned", b.View.ByteOffset)
	}
	if b.View.ByteOffset != 4 {
		t.Errorf("float run at offset %d; expected 4", b.View.ByteOffset)
	}
	if out.ByteLength != 24 {
		t.Errorf("output %d bytes; expected 24", out.ByteLength)
	}
}

func TestSplitOverrange(t *testing.T) {
	data := make([]byte, 8)
	buf := testBuffer(data)
	buf.ByteLength = 16
	acc := testAccessor(buf, 0, 0, 0, 4, gltf.ComponentFloat, gltf.AccessorScalar)

	_, err := splitAccessors(data, []*Accessor{acc})
	if err == nil {
		t.Fatal("expected error")
	}
	if Kind(err) != ErrMalformedAsset {
		t.Errorf("Kind(err)=%v; expected ErrMalformedAsset", Kind(err))
	}
}

func TestSplitEmpty(t *testing.T) {
	out, err := splitAccessors(nil, nil)
	if err != nil || out != nil {
		t.Errorf("splitAccessors(nil,nil)=%v,%v; expected nil,nil", out, err)
	}
}
