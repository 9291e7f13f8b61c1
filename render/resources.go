package render

import (
	"image"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/geoscene_viewer/asset"
)

// BufferTarget tells which GPU buffer slot a mesh buffer uploads to.
type BufferTarget int

const (
	TargetAttribute BufferTarget = iota
	TargetIndex
)

func (t BufferTarget) String() string {
	if t == TargetIndex {
		return "INDEX"
	}
	return "ATTRIBUTE"
}

// MeshBuffer wraps one packed sub-buffer ready for upload. The viewer
// references it by the id assigned at first sight.
type MeshBuffer struct {
	ID     int
	Target BufferTarget
	Data   []byte
}

// WebGL enum values, used verbatim by the browser viewer.
const (
	FilterNearest              = 9728
	FilterLinear               = 9729
	FilterNearestMipmapNearest = 9984
	FilterLinearMipmapNearest  = 9985
	FilterNearestMipmapLinear  = 9986
	FilterLinearMipmapLinear   = 9987

	WrapClampToEdge    = 33071
	WrapMirroredRepeat = 33648
	WrapRepeat         = 10497

	ComponentGLByte   = 5120
	ComponentGLUbyte  = 5121
	ComponentGLShort  = 5122
	ComponentGLUshort = 5123
	ComponentGLUint   = 5125
	ComponentGLFloat  = 5126
)

// Texture wraps one decoded image with its sampling state. Filters default
// to linear / linear-mipmap-linear when the sampler leaves them unset.
type Texture struct {
	ID        int
	Image     image.Image
	MagFilter int
	MinFilter int
	WrapS     int
	WrapT     int
	FlipY     bool
}

func newTexture(id int, img *asset.Image, sampler *asset.Sampler) *Texture {
	t := &Texture{
		ID:        id,
		Image:     img.Decoded,
		MagFilter: FilterLinear,
		MinFilter: FilterLinearMipmapLinear,
		WrapS:     WrapRepeat,
		WrapT:     WrapRepeat,
		FlipY:     false,
	}
	if sampler == nil {
		return t
	}
	switch sampler.MagFilter {
	case gltf.MagNearest:
		t.MagFilter = FilterNearest
	case gltf.MagLinear:
		t.MagFilter = FilterLinear
	}
	switch sampler.MinFilter {
	case gltf.MinNearest:
		t.MinFilter = FilterNearest
	case gltf.MinLinear:
		t.MinFilter = FilterLinear
	case gltf.MinNearestMipMapNearest:
		t.MinFilter = FilterNearestMipmapNearest
	case gltf.MinLinearMipMapNearest:
		t.MinFilter = FilterLinearMipmapNearest
	case gltf.MinNearestMipMapLinear:
		t.MinFilter = FilterNearestMipmapLinear
	case gltf.MinLinearMipMapLinear:
		t.MinFilter = FilterLinearMipmapLinear
	}
	t.WrapS = wrapValue(sampler.WrapS)
	t.WrapT = wrapValue(sampler.WrapT)
	return t
}

func wrapValue(w gltf.WrappingMode) int {
	switch w {
	case gltf.WrapClampToEdge:
		return WrapClampToEdge
	case gltf.WrapMirroredRepeat:
		return WrapMirroredRepeat
	}
	return WrapRepeat
}

func componentGL(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte:
		return ComponentGLByte
	case gltf.ComponentUbyte:
		return ComponentGLUbyte
	case gltf.ComponentShort:
		return ComponentGLShort
	case gltf.ComponentUshort:
		return ComponentGLUshort
	case gltf.ComponentUint:
		return ComponentGLUint
	}
	return ComponentGLFloat
}
