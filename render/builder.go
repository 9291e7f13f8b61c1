package render

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/geoscene_viewer/asset"
)

// DrawMode carries the WebGL draw mode enum, which matches the glTF wire
// values 0..6.
type DrawMode int

const (
	DrawPoints DrawMode = iota
	DrawLines
	DrawLineLoop
	DrawLineStrip
	DrawTriangles
	DrawTriangleStrip
	DrawTriangleFan
)

// AttributeBinding describes how a primitive reads one mesh buffer.
type AttributeBinding struct {
	Buffer        *MeshBuffer
	ByteOffset    int
	ByteStride    int
	ComponentType int
	Components    int
	Count         int
	Normalized    bool
}

// TextureBinding is a material slot's view of a gpu texture.
type TextureBinding struct {
	Texture  *Texture
	TexCoord int
	Scale    float32
	Strength float32
}

// MaterialProps is the fixed material record the viewer consumes.
type MaterialProps struct {
	BaseColorFactor          [4]float32
	BaseColorTexture         *TextureBinding
	MetallicFactor           float32
	RoughnessFactor          float32
	MetallicRoughnessTexture *TextureBinding
	NormalTexture            *TextureBinding
	OcclusionTexture         *TextureBinding
	EmissiveTexture          *TextureBinding
	EmissiveFactor           [3]float32
	AlphaMode                string
	AlphaCutoff              float32
	DoubleSided              bool
}

// Primitive is one renderer-ready draw call: bindings into packed mesh
// buffers, material state and the node-to-scene transform.
type Primitive struct {
	Mode        DrawMode
	Transform   mgl64.Mat4
	Attributes  map[string]*AttributeBinding
	Indices     *AttributeBinding
	Material    *MaterialProps
	VertexCount int
	BBoxMin     *mgl64.Vec3
	BBoxMax     *mgl64.Vec3
	Pivot       *mgl64.Vec3
}

// Builder walks a resolved Content and emits primitives, constructing each
// mesh buffer and gpu texture exactly once per underlying object.
type Builder struct {
	meshBuffers map[*asset.Buffer]*MeshBuffer
	textures    map[*asset.Texture]*Texture
	bufferList  []*MeshBuffer
	textureList []*Texture
}

func NewBuilder() *Builder {
	return &Builder{
		meshBuffers: make(map[*asset.Buffer]*MeshBuffer),
		textures:    make(map[*asset.Texture]*Texture),
	}
}

// MeshBuffers lists every mesh buffer created so far, in creation order.
func (b *Builder) MeshBuffers() []*MeshBuffer {
	return b.bufferList
}

// Textures lists every gpu texture created so far, in creation order.
func (b *Builder) Textures() []*Texture {
	return b.textureList
}

// BuildScene emits the primitives of one scene. index -1 selects the
// content's default scene, falling back to scene 0.
func (b *Builder) BuildScene(content *asset.Content, index int) ([]*Primitive, error) {
	if index < 0 {
		index = content.DefaultSceneIndex
		if index < 0 {
			index = 0
		}
	}
	if index >= len(content.Scenes) {
		return nil, errors.Wrapf(asset.ErrSceneIndexOutOfRange, "index %d, %d scenes", index, len(content.Scenes))
	}
	var prims []*Primitive
	for _, root := range content.Scenes[index].Nodes {
		if err := b.walkNode(root, mgl64.Ident4(), &prims); err != nil {
			return nil, err
		}
	}
	return prims, nil
}

func (b *Builder) walkNode(n *asset.Node, parentToScene mgl64.Mat4, out *[]*Primitive) error {
	nodeToScene := parentToScene.Mul4(n.Matrix)
	if n.Mesh != nil {
		for _, p := range n.Mesh.Primitives {
			prim, err := b.buildPrimitive(p, nodeToScene)
			if err != nil {
				return err
			}
			*out = append(*out, prim)
		}
	}
	for _, c := range n.Children {
		if err := b.walkNode(c, nodeToScene, out); err != nil {
			return err
		}
	}
	return nil
}

// attributeNames maps glTF attribute semantics to the shader ids the
// viewer binds; unknown semantics pass through unchanged.
var attributeNames = map[string]string{
	"POSITION":   "a_position",
	"NORMAL":     "a_normal",
	"TANGENT":    "a_tangent",
	"TEXCOORD_0": "a_texcoord",
	"TEXCOORD_1": "a_texcoord1",
	"COLOR_0":    "a_color",
}

func attributeName(semantic string) string {
	if name, ok := attributeNames[semantic]; ok {
		return name
	}
	return semantic
}

func (b *Builder) buildPrimitive(p *asset.Primitive, transform mgl64.Mat4) (*Primitive, error) {
	prim := &Primitive{
		Mode:       drawMode(p.Mode),
		Transform:  transform,
		Attributes: make(map[string]*AttributeBinding, len(p.Attributes)),
	}

	vertexCount := -1
	for semantic, acc := range p.Attributes {
		prim.Attributes[attributeName(semantic)] = b.bindAccessor(acc, TargetAttribute)
		if vertexCount < 0 || acc.Count < vertexCount {
			vertexCount = acc.Count
		}
		if semantic == "POSITION" {
			prim.BBoxMin, prim.BBoxMax, prim.Pivot = boundingBox(acc)
		}
	}
	if vertexCount < 0 {
		vertexCount = 0
	}
	prim.VertexCount = vertexCount

	if p.Indices != nil {
		prim.Indices = b.bindAccessor(p.Indices, TargetIndex)
	}

	props, err := b.materialProps(p.Material)
	if err != nil {
		return nil, err
	}
	prim.Material = props
	return prim, nil
}

func (b *Builder) bindAccessor(a *asset.Accessor, target BufferTarget) *AttributeBinding {
	buf := a.View.Buffer
	mb, ok := b.meshBuffers[buf]
	if !ok {
		mb = &MeshBuffer{ID: len(b.bufferList), Target: target, Data: buf.Data}
		b.meshBuffers[buf] = mb
		b.bufferList = append(b.bufferList, mb)
	}
	return &AttributeBinding{
		Buffer:        mb,
		ByteOffset:    a.View.ByteOffset + a.ByteOffset,
		ByteStride:    a.View.ByteStride,
		ComponentType: componentGL(a.ComponentType),
		Components:    a.ComponentCount(),
		Count:         a.Count,
		Normalized:    a.Normalized,
	}
}

func boundingBox(position *asset.Accessor) (min, max, pivot *mgl64.Vec3) {
	if len(position.Min) < 3 || len(position.Max) < 3 {
		return nil, nil, nil
	}
	lo := mgl64.Vec3{float64(position.Min[0]), float64(position.Min[1]), float64(position.Min[2])}
	hi := mgl64.Vec3{float64(position.Max[0]), float64(position.Max[1]), float64(position.Max[2])}
	mid := lo.Add(hi).Mul(0.5)
	return &lo, &hi, &mid
}

func (b *Builder) materialProps(m *asset.Material) (*MaterialProps, error) {
	if m == nil {
		m = asset.DefaultMaterial()
	}
	props := &MaterialProps{
		BaseColorFactor: m.BaseColorFactor,
		MetallicFactor:  m.MetallicFactor,
		RoughnessFactor: m.RoughnessFactor,
		EmissiveFactor:  m.EmissiveFactor,
		AlphaMode:       alphaMode(m.AlphaMode),
		AlphaCutoff:     m.AlphaCutoff,
		DoubleSided:     m.DoubleSided,
	}
	var err error
	if props.BaseColorTexture, err = b.bindTexture(m.BaseColorTexture); err != nil {
		return nil, err
	}
	if props.MetallicRoughnessTexture, err = b.bindTexture(m.MetallicRoughnessTexture); err != nil {
		return nil, err
	}
	if props.NormalTexture, err = b.bindTexture(m.NormalTexture); err != nil {
		return nil, err
	}
	if props.OcclusionTexture, err = b.bindTexture(m.OcclusionTexture); err != nil {
		return nil, err
	}
	if props.EmissiveTexture, err = b.bindTexture(m.EmissiveTexture); err != nil {
		return nil, err
	}
	return props, nil
}

func (b *Builder) bindTexture(info *asset.TextureInfo) (*TextureBinding, error) {
	if info == nil {
		return nil, nil
	}
	tex, ok := b.textures[info.Texture]
	if !ok {
		if info.Texture.Source.Decoded == nil {
			return nil, errors.Errorf("texture %d: source image %d was never decoded",
				info.Texture.Index, info.Texture.Source.Index)
		}
		tex = newTexture(len(b.textureList), info.Texture.Source, info.Texture.Sampler)
		b.textures[info.Texture] = tex
		b.textureList = append(b.textureList, tex)
	}
	return &TextureBinding{
		Texture:  tex,
		TexCoord: info.TexCoord,
		Scale:    info.Scale,
		Strength: info.Strength,
	}, nil
}

func drawMode(m gltf.PrimitiveMode) DrawMode {
	switch m {
	case gltf.PrimitivePoints:
		return DrawPoints
	case gltf.PrimitiveLines:
		return DrawLines
	case gltf.PrimitiveLineLoop:
		return DrawLineLoop
	case gltf.PrimitiveLineStrip:
		return DrawLineStrip
	case gltf.PrimitiveTriangleStrip:
		return DrawTriangleStrip
	case gltf.PrimitiveTriangleFan:
		return DrawTriangleFan
	}
	return DrawTriangles
}

func alphaMode(m gltf.AlphaMode) string {
	switch m {
	case gltf.AlphaMask:
		return "MASK"
	case gltf.AlphaBlend:
		return "BLEND"
	}
	return "OPAQUE"
}
