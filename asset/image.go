package asset

import (
	"bytes"
	"image"

	// Register decoders for the image formats glTF 2.0 allows.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Image is one source picture, fetched from a URI or carved out of a
// buffer view. Decoded is set once the pipeline settles.
type Image struct {
	Index    int
	URI      string
	MimeType string
	View     *BufferView
	Decoded  image.Image

	viewBytes []byte
}

// Sampler carries the glTF filter and wrap constants through to the
// renderer untouched.
type Sampler struct {
	MagFilter gltf.MagFilter
	MinFilter gltf.MinFilter
	WrapS     gltf.WrappingMode
	WrapT     gltf.WrappingMode
}

// Texture binds a sampler to a source image.
type Texture struct {
	Index   int
	Sampler *Sampler
	Source  *Image
}

// TextureInfoKind distinguishes the material slots that carry an extra
// scalar next to the texture reference.
type TextureInfoKind int

const (
	TextureInfoBase TextureInfoKind = iota
	TextureInfoNormal
	TextureInfoOcclusion
)

// TextureInfo is a reference from a material slot to a Texture. Scale is
// meaningful for normal slots, Strength for occlusion slots.
type TextureInfo struct {
	Kind     TextureInfoKind
	Texture  *Texture
	TexCoord int
	Scale    float32
	Strength float32
}

// imageEntry tracks every texture-info referencing one shared image and
// collapses their textures after the pipeline settles.
type imageEntry struct {
	image *Image
	infos []*TextureInfo
}

func newImageEntry(img *Image) *imageEntry {
	return &imageEntry{image: img}
}

func (e *imageEntry) addTextureInfo(info *TextureInfo) {
	e.infos = append(e.infos, info)
}

// dedupeTextures points every registered texture-info at the first texture
// seen for this image. Sampler variants collapse onto the first texture's
// sampler.
func (e *imageEntry) dedupeTextures() {
	if len(e.infos) < 2 {
		return
	}
	tex0 := e.infos[0].Texture
	for _, info := range e.infos[1:] {
		info.Texture = tex0
	}
}

// snapshotViewBytes copies the image's buffer-view region out of the source
// buffer before the splitter releases it.
func (e *imageEntry) snapshotViewBytes() error {
	v := e.image.View
	if v == nil {
		return nil
	}
	if v.Buffer.Data == nil {
		return errors.Wrapf(ErrMalformedAsset, "image %d: source buffer has no data", e.image.Index)
	}
	end := v.ByteOffset + v.ByteLength
	if end > len(v.Buffer.Data) {
		return errors.Wrapf(ErrMalformedAsset, "image %d: view ends at %d beyond buffer size %d",
			e.image.Index, end, len(v.Buffer.Data))
	}
	e.image.viewBytes = make([]byte, v.ByteLength)
	copy(e.image.viewBytes, v.Buffer.Data[v.ByteOffset:end])
	return nil
}

// decodeViewImage decodes a buffer-view sourced image from its snapshot.
// URI images are decoded by the fetch path instead.
func (e *imageEntry) decodeViewImage() error {
	if e.image.View == nil || e.image.Decoded != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(e.image.viewBytes))
	if err != nil {
		return errors.Wrapf(ErrDecodeFailed, "image %d: %v", e.image.Index, err)
	}
	e.image.Decoded = img
	e.image.viewBytes = nil
	return nil
}
