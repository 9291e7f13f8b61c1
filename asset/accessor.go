package asset

import (
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Usage tells how an accessor addresses its buffer: as vertex attribute
// data or as index data. The two classes are split into separate packed
// sub-buffers so each can be uploaded to the matching GPU buffer target.
type Usage int

const (
	UsageAttribute Usage = iota
	UsageIndex
)

func (u Usage) String() string {
	if u == UsageIndex {
		return "INDEX"
	}
	return "ATTRIBUTE"
}

// Buffer owns one raw byte blob. Data is nil until the fetch completes. The
// splitter packs accessors into new Buffers and then sets the source
// Buffer's Data back to nil.
type Buffer struct {
	Index      int
	ByteLength int
	Data       []byte
}

// BufferView is a contiguous slice descriptor over a Buffer. It owns no
// bytes.
type BufferView struct {
	Buffer     *Buffer
	ByteOffset int
	ByteLength int
	ByteStride int // 0 means tightly packed
}

// Accessor is a typed view over a BufferView region. After the pipeline
// runs, View points at a packed sub-buffer and ByteOffset is folded into
// the view.
type Accessor struct {
	OriginalIndex int
	View          *BufferView
	ByteOffset    int
	ComponentType gltf.ComponentType
	Type          gltf.AccessorType
	Count         int
	Normalized    bool
	Min           []float32
	Max           []float32
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4
	}
	return 0
}

func typeComponents(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

// ComponentCount is the number of components per element (3 for VEC3,
// 16 for MAT4, ...).
func (a *Accessor) ComponentCount() int {
	return typeComponents(a.Type)
}

// ElementSize is the packed size of one element (component size times
// component count).
func (a *Accessor) ElementSize() int {
	return componentSize(a.ComponentType) * typeComponents(a.Type)
}

// EffectiveStride is the distance between consecutive elements: the view
// stride when interleaved, the packed element size otherwise.
func (a *Accessor) EffectiveStride() int {
	if a.View != nil && a.View.ByteStride > 0 {
		return a.View.ByteStride
	}
	return a.ElementSize()
}

// ByteExtent is the addressed half-open range [start, end) within the
// underlying Buffer.
func (a *Accessor) ByteExtent() (start, end int) {
	start = a.View.ByteOffset + a.ByteOffset
	if a.Count == 0 {
		return start, start
	}
	end = start + (a.Count-1)*a.EffectiveStride() + a.ElementSize()
	return start, end
}

// validate checks component/type codes and buffer bounds against the
// declared byte length.
func (a *Accessor) validate() error {
	if componentSize(a.ComponentType) == 0 {
		return errors.Wrapf(ErrMalformedAsset, "accessor %d: unknown component type %v", a.OriginalIndex, a.ComponentType)
	}
	if typeComponents(a.Type) == 0 {
		return errors.Wrapf(ErrMalformedAsset, "accessor %d: unknown type %v", a.OriginalIndex, a.Type)
	}
	if a.Count < 0 || a.ByteOffset < 0 {
		return errors.Wrapf(ErrMalformedAsset, "accessor %d: negative count or offset", a.OriginalIndex)
	}
	if a.View == nil || a.View.Buffer == nil {
		return errors.Wrapf(ErrMalformedAsset, "accessor %d: no buffer view", a.OriginalIndex)
	}
	if a.View.ByteStride != 0 && a.View.ByteStride < a.ElementSize() {
		return errors.Wrapf(ErrMalformedAsset, "accessor %d: stride %d below element size %d",
			a.OriginalIndex, a.View.ByteStride, a.ElementSize())
	}
	_, end := a.ByteExtent()
	if end > a.View.Buffer.ByteLength {
		return errors.Wrapf(ErrMalformedAsset, "accessor %d: extent %d exceeds buffer length %d",
			a.OriginalIndex, end, a.View.Buffer.ByteLength)
	}
	if viewEnd := a.View.ByteOffset + a.View.ByteLength; viewEnd > a.View.Buffer.ByteLength {
		return errors.Wrapf(ErrMalformedAsset, "buffer view ends at %d beyond buffer length %d",
			viewEnd, a.View.Buffer.ByteLength)
	}
	return nil
}
