package asset

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/geoscene_viewer/utils"
)

func leFloats(vals ...float32) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
		buf.Write(tmp[:])
	}
	return buf.Bytes()
}

func testBuffer(data []byte) *Buffer {
	return &Buffer{Index: 0, ByteLength: len(data), Data: data}
}

func testAccessor(buf *Buffer, viewOffset, accOffset, stride, count int,
	comp gltf.ComponentType, typ gltf.AccessorType) *Accessor {
	return &Accessor{
		View: &BufferView{
			Buffer:     buf,
			ByteOffset: viewOffset,
			ByteLength: buf.ByteLength - viewOffset,
			ByteStride: stride,
		},
		ByteOffset:    accOffset,
		ComponentType: comp,
		Type:          typ,
		Count:         count,
	}
}

func TestSwapAccessorBytes32(t *testing.T) {
	data := leFloats(1, 2, 3)
	buf := testBuffer(data)
	acc := testAccessor(buf, 0, 0, 0, 3, gltf.ComponentFloat, gltf.AccessorScalar)

	marked := utils.NewBitVector((len(data) + 1) / 2)
	if err := swapAccessorBytes(data, []*Accessor{acc}, marked); err != nil {
		t.Fatal(err)
	}

	for i, expect := range []float32{1, 2, 3} {
		got := math.Float32frombits(binary.BigEndian.Uint32(data[i*4:]))
		if got != expect {
			t.Errorf("component %d: big-endian read %v; expected %v", i, got, expect)
		}
	}
}

func TestSwapAccessorBytes16(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	buf := testBuffer(data)
	acc := testAccessor(buf, 0, 0, 0, 2, gltf.ComponentUshort, gltf.AccessorScalar)

	marked := utils.NewBitVector(2)
	if err := swapAccessorBytes(data, []*Accessor{acc}, marked); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x02, 0x01, 0x04, 0x03}) {
		t.Errorf("data=%v", data)
	}
}

func TestSwapAccessorBytesOneByteComponentsUntouched(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	buf := testBuffer(data)
	acc := testAccessor(buf, 0, 0, 0, 4, gltf.ComponentUbyte, gltf.AccessorScalar)

	marked := utils.NewBitVector(2)
	if err := swapAccessorBytes(data, []*Accessor{acc}, marked); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Errorf("data=%v", data)
	}
}

// Two accessors over the same bytes must swap each group exactly once.
func TestSwapAccessorBytesAliased(t *testing.T) {
	data := leFloats(1, 2, 3)
	buf := testBuffer(data)
	a := testAccessor(buf, 0, 0, 0, 3, gltf.ComponentFloat, gltf.AccessorScalar)
	b := testAccessor(buf, 0, 0, 0, 1, gltf.ComponentFloat, gltf.AccessorVec3)

	marked := utils.NewBitVector((len(data) + 1) / 2)
	if err := swapAccessorBytes(data, []*Accessor{a, b}, marked); err != nil {
		t.Fatal(err)
	}
	for i, expect := range []float32{1, 2, 3} {
		got := math.Float32frombits(binary.BigEndian.Uint32(data[i*4:]))
		if got != expect {
			t.Errorf("component %d: big-endian read %v; expected %v", i, got, expect)
		}
	}
}

// A second invocation with the same mark vector must be a no-op.
func TestSwapAccessorBytesIdempotent(t *testing.T) {
	data := leFloats(1, 2, 3, 4)
	buf := testBuffer(data)
	acc := testAccessor(buf, 0, 0, 0, 4, gltf.ComponentFloat, gltf.AccessorScalar)

	marked := utils.NewBitVector((len(data) + 1) / 2)
	if err := swapAccessorBytes(data, []*Accessor{acc}, marked); err != nil {
		t.Fatal(err)
	}
	snapshot := make([]byte, len(data))
	copy(snapshot, data)

	if err := swapAccessorBytes(data, []*Accessor{acc}, marked); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, snapshot) {
		t.Errorf("second invocation changed bytes:\nfirst  %v\nsecond %v", snapshot, data)
	}
}

// Interleaved accessors swap only the bytes they address.
func TestSwapAccessorBytesStride(t *testing.T) {
	// two vertices of [pos u16, pad u16]
	data := []byte{0x01, 0x02, 0xAA, 0xBB, 0x03, 0x04, 0xCC, 0xDD}
	buf := testBuffer(data)
	acc := testAccessor(buf, 0, 0, 4, 2, gltf.ComponentUshort, gltf.AccessorScalar)

	marked := utils.NewBitVector(4)
	if err := swapAccessorBytes(data, []*Accessor{acc}, marked); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x02, 0x01, 0xAA, 0xBB, 0x04, 0x03, 0xCC, 0xDD}) {
		t.Errorf("data=%v", data)
	}
}

func TestSwapAccessorBytesOverrange(t *testing.T) {
	data := []byte{0, 0}
	buf := testBuffer(data)
	buf.ByteLength = 8 // declared longer than fetched
	acc := testAccessor(buf, 0, 0, 0, 2, gltf.ComponentFloat, gltf.AccessorScalar)

	marked := utils.NewBitVector(4)
	err := swapAccessorBytes(data, []*Accessor{acc}, marked)
	if err == nil {
		t.Fatal("expected error")
	}
	if Kind(err) != ErrMalformedAsset {
		t.Errorf("Kind(err)=%v; expected ErrMalformedAsset", Kind(err))
	}
}
