package asset

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Content is the resolved result of a load: every scene of the document
// with all buffers fetched, rewritten, split and deduplicated.
// DefaultSceneIndex is -1 when the document names no default scene.
type Content struct {
	Scenes            []*Scene
	DefaultSceneIndex int
}

type Scene struct {
	Name  string
	Nodes []*Node
}

type Node struct {
	Name     string
	Mesh     *Mesh
	Children []*Node
	Matrix   mgl64.Mat4 // local transform
}

type Mesh struct {
	Name       string
	Primitives []*Primitive
}

type Primitive struct {
	Attributes map[string]*Accessor
	Indices    *Accessor
	Material   *Material
	Mode       gltf.PrimitiveMode
}

// Material carries the glTF 2.0 metallic-roughness surface description
// with every default already applied.
type Material struct {
	Name                     string
	BaseColorFactor          [4]float32
	BaseColorTexture         *TextureInfo
	MetallicFactor           float32
	RoughnessFactor          float32
	MetallicRoughnessTexture *TextureInfo
	NormalTexture            *TextureInfo
	OcclusionTexture         *TextureInfo
	EmissiveTexture          *TextureInfo
	EmissiveFactor           [3]float32
	AlphaMode                gltf.AlphaMode
	AlphaCutoff              float32
	DoubleSided              bool
}

// DefaultMaterial is what a primitive without a material renders with,
// per the glTF 2.0 defaults.
func DefaultMaterial() *Material {
	return &Material{
		BaseColorFactor: [4]float32{1, 1, 1, 1},
		MetallicFactor:  1,
		RoughnessFactor: 1,
		AlphaMode:       gltf.AlphaOpaque,
		AlphaCutoff:     0.5,
	}
}

const (
	nodeUnvisited = iota
	nodeBuilding
	nodeDone
)

func (lc *loadContext) buildScenes() error {
	for i, js := range lc.doc.Scenes {
		s := &Scene{Name: js.Name}
		for _, ni := range js.Nodes {
			n, err := lc.nodeFor(int(ni))
			if err != nil {
				return errors.Wrapf(err, "scene %d", i)
			}
			s.Nodes = append(s.Nodes, n)
		}
		lc.scenes = append(lc.scenes, s)
	}
	return nil
}

func (lc *loadContext) nodeFor(i int) (*Node, error) {
	if i < 0 || i >= len(lc.doc.Nodes) {
		return nil, errors.Wrapf(ErrMalformedAsset, "node index %d out of range", i)
	}
	switch lc.nodeState[i] {
	case nodeDone:
		return lc.nodes[i], nil
	case nodeBuilding:
		return nil, errors.Wrapf(ErrMalformedAsset, "node %d is part of a cycle", i)
	}
	lc.nodeState[i] = nodeBuilding

	jn := lc.doc.Nodes[i]
	n := &Node{
		Name:   jn.Name,
		Matrix: nodeLocalMatrix(jn),
	}
	lc.nodes[i] = n

	if jn.Mesh != nil {
		m, err := lc.meshFor(int(*jn.Mesh))
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", i)
		}
		n.Mesh = m
	}
	for _, ci := range jn.Children {
		c, err := lc.nodeFor(int(ci))
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", i)
		}
		n.Children = append(n.Children, c)
	}

	lc.nodeState[i] = nodeDone
	return n, nil
}

// nodeLocalMatrix composes the node's local transform: the explicit
// column-major matrix when present, translation*rotation*scale otherwise.
// The decoder fills an absent matrix with the identity, so an identity (or
// zero) matrix counts as absent.
func nodeLocalMatrix(jn *gltf.Node) mgl64.Mat4 {
	if jn.Matrix != [16]float32{} && jn.Matrix != gltf.DefaultMatrix {
		mf := jn.Matrix
		var md [16]float64
		for i, v := range mf {
			md[i] = float64(v)
		}
		return mgl64.Mat4(md)
	}
	t := jn.TranslationOrDefault()
	r := jn.RotationOrDefault()
	s := jn.ScaleOrDefault()
	quat := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}
	m := mgl64.Translate3D(float64(t[0]), float64(t[1]), float64(t[2]))
	m = m.Mul4(quat.Normalize().Mat4())
	m = m.Mul4(mgl64.Scale3D(float64(s[0]), float64(s[1]), float64(s[2])))
	return m
}

func (lc *loadContext) meshFor(i int) (*Mesh, error) {
	if i < 0 || i >= len(lc.doc.Meshes) {
		return nil, errors.Wrapf(ErrMalformedAsset, "mesh index %d out of range", i)
	}
	if m, ok := lc.meshes[i]; ok {
		return m, nil
	}
	jm := lc.doc.Meshes[i]
	m := &Mesh{Name: jm.Name}
	for pi, jp := range jm.Primitives {
		p, err := lc.primitiveFor(jp)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %d primitive %d", i, pi)
		}
		m.Primitives = append(m.Primitives, p)
	}
	lc.meshes[i] = m
	return m, nil
}

func (lc *loadContext) primitiveFor(jp *gltf.Primitive) (*Primitive, error) {
	p := &Primitive{
		Attributes: make(map[string]*Accessor, len(jp.Attributes)),
		Mode:       jp.Mode,
	}
	for semantic, ai := range jp.Attributes {
		a, err := lc.accessorFor(int(ai), UsageAttribute)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %q", semantic)
		}
		p.Attributes[semantic] = a
	}
	if jp.Indices != nil {
		a, err := lc.accessorFor(int(*jp.Indices), UsageIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "indices")
		}
		p.Indices = a
	}
	if jp.Material != nil {
		m, err := lc.materialFor(int(*jp.Material))
		if err != nil {
			return nil, err
		}
		p.Material = m
	}
	return p, nil
}

func (lc *loadContext) materialFor(i int) (*Material, error) {
	if i < 0 || i >= len(lc.doc.Materials) {
		return nil, errors.Wrapf(ErrMalformedAsset, "material index %d out of range", i)
	}
	if m, ok := lc.materials[i]; ok {
		return m, nil
	}
	jm := lc.doc.Materials[i]
	m := DefaultMaterial()
	m.Name = jm.Name
	m.AlphaMode = jm.AlphaMode
	m.DoubleSided = jm.DoubleSided
	m.EmissiveFactor = [3]float32{
		float32(jm.EmissiveFactor[0]),
		float32(jm.EmissiveFactor[1]),
		float32(jm.EmissiveFactor[2]),
	}
	if jm.AlphaCutoff != nil {
		m.AlphaCutoff = float32(*jm.AlphaCutoff)
	}

	if pbr := jm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			bcf := *pbr.BaseColorFactor
			m.BaseColorFactor = [4]float32{
				float32(bcf[0]), float32(bcf[1]), float32(bcf[2]), float32(bcf[3]),
			}
		}
		if pbr.MetallicFactor != nil {
			m.MetallicFactor = float32(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			m.RoughnessFactor = float32(*pbr.RoughnessFactor)
		}
		if pbr.BaseColorTexture != nil {
			info, err := lc.textureInfoFor(TextureInfoBase, int(pbr.BaseColorTexture.Index), int(pbr.BaseColorTexture.TexCoord), 1, 1)
			if err != nil {
				return nil, errors.Wrapf(err, "material %d base color", i)
			}
			m.BaseColorTexture = info
		}
		if pbr.MetallicRoughnessTexture != nil {
			info, err := lc.textureInfoFor(TextureInfoBase, int(pbr.MetallicRoughnessTexture.Index), int(pbr.MetallicRoughnessTexture.TexCoord), 1, 1)
			if err != nil {
				return nil, errors.Wrapf(err, "material %d metallic roughness", i)
			}
			m.MetallicRoughnessTexture = info
		}
	}

	if jm.NormalTexture != nil && jm.NormalTexture.Index != nil {
		scale := float32(1)
		if jm.NormalTexture.Scale != nil {
			scale = float32(*jm.NormalTexture.Scale)
		}
		info, err := lc.textureInfoFor(TextureInfoNormal, int(*jm.NormalTexture.Index), int(jm.NormalTexture.TexCoord), scale, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "material %d normal", i)
		}
		m.NormalTexture = info
	}
	if jm.OcclusionTexture != nil && jm.OcclusionTexture.Index != nil {
		strength := float32(1)
		if jm.OcclusionTexture.Strength != nil {
			strength = float32(*jm.OcclusionTexture.Strength)
		}
		info, err := lc.textureInfoFor(TextureInfoOcclusion, int(*jm.OcclusionTexture.Index), int(jm.OcclusionTexture.TexCoord), 1, strength)
		if err != nil {
			return nil, errors.Wrapf(err, "material %d occlusion", i)
		}
		m.OcclusionTexture = info
	}
	if jm.EmissiveTexture != nil {
		info, err := lc.textureInfoFor(TextureInfoBase, int(jm.EmissiveTexture.Index), int(jm.EmissiveTexture.TexCoord), 1, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "material %d emissive", i)
		}
		m.EmissiveTexture = info
	}

	lc.materials[i] = m
	return m, nil
}

func (lc *loadContext) textureInfoFor(kind TextureInfoKind, texIndex, texCoord int, scale, strength float32) (*TextureInfo, error) {
	tex, err := lc.textureFor(texIndex)
	if err != nil {
		return nil, err
	}
	info := &TextureInfo{
		Kind:     kind,
		Texture:  tex,
		TexCoord: texCoord,
		Scale:    scale,
		Strength: strength,
	}
	lc.addTextureInfo(info)
	return info, nil
}

func (lc *loadContext) textureFor(i int) (*Texture, error) {
	if i < 0 || i >= len(lc.doc.Textures) {
		return nil, errors.Wrapf(ErrMalformedAsset, "texture index %d out of range", i)
	}
	if t, ok := lc.textures[i]; ok {
		return t, nil
	}
	jt := lc.doc.Textures[i]
	if jt.Source == nil {
		return nil, errors.Wrapf(ErrMalformedAsset, "texture %d has no source image", i)
	}
	img, err := lc.imageFor(int(*jt.Source))
	if err != nil {
		return nil, err
	}
	t := &Texture{Index: i, Source: img}
	if jt.Sampler != nil {
		s, err := lc.samplerFor(int(*jt.Sampler))
		if err != nil {
			return nil, err
		}
		t.Sampler = s
	}
	lc.textures[i] = t
	return t, nil
}

func (lc *loadContext) samplerFor(i int) (*Sampler, error) {
	if i < 0 || i >= len(lc.doc.Samplers) {
		return nil, errors.Wrapf(ErrMalformedAsset, "sampler index %d out of range", i)
	}
	if s, ok := lc.samplers[i]; ok {
		return s, nil
	}
	js := lc.doc.Samplers[i]
	s := &Sampler{
		MagFilter: js.MagFilter,
		MinFilter: js.MinFilter,
		WrapS:     js.WrapS,
		WrapT:     js.WrapT,
	}
	lc.samplers[i] = s
	return s, nil
}

func (lc *loadContext) accessorFor(i int, usage Usage) (*Accessor, error) {
	if i < 0 || i >= len(lc.doc.Accessors) {
		return nil, errors.Wrapf(ErrMalformedAsset, "accessor index %d out of range", i)
	}
	key := accessorKey{index: i, usage: usage}
	if a, ok := lc.accessors[key]; ok {
		return a, nil
	}
	ja := lc.doc.Accessors[i]
	if ja.Sparse != nil {
		return nil, errors.Wrapf(ErrMalformedAsset, "accessor %d: sparse accessors are not supported", i)
	}
	if ja.BufferView == nil {
		return nil, errors.Wrapf(ErrMalformedAsset, "accessor %d has no buffer view", i)
	}
	view, err := lc.viewFor(int(*ja.BufferView))
	if err != nil {
		return nil, errors.Wrapf(err, "accessor %d", i)
	}
	a := &Accessor{
		OriginalIndex: i,
		View:          view,
		ByteOffset:    int(ja.ByteOffset),
		ComponentType: ja.ComponentType,
		Type:          ja.Type,
		Count:         int(ja.Count),
		Normalized:    ja.Normalized,
		Min:           ja.Min,
		Max:           ja.Max,
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	lc.accessors[key] = a
	lc.bufferEntries[view.Buffer.Index].addAccessor(a, usage)
	return a, nil
}

func (lc *loadContext) viewFor(i int) (*BufferView, error) {
	if i < 0 || i >= len(lc.doc.BufferViews) {
		return nil, errors.Wrapf(ErrMalformedAsset, "buffer view index %d out of range", i)
	}
	if v, ok := lc.views[i]; ok {
		return v, nil
	}
	jv := lc.doc.BufferViews[i]
	buf, err := lc.bufferFor(int(jv.Buffer))
	if err != nil {
		return nil, err
	}
	v := &BufferView{
		Buffer:     buf,
		ByteOffset: int(jv.ByteOffset),
		ByteLength: int(jv.ByteLength),
		ByteStride: int(jv.ByteStride),
	}
	lc.views[i] = v
	return v, nil
}

// bufferFor lazily creates the Buffer and its entry; creation starts the
// fetch of the buffer's bytes.
func (lc *loadContext) bufferFor(i int) (*Buffer, error) {
	if i < 0 || i >= len(lc.doc.Buffers) {
		return nil, errors.Wrapf(ErrMalformedAsset, "buffer index %d out of range", i)
	}
	if b, ok := lc.buffers[i]; ok {
		return b, nil
	}
	jb := lc.doc.Buffers[i]
	if jb.URI == "" {
		return nil, errors.Wrapf(ErrMalformedAsset, "buffer %d has no uri", i)
	}
	b := &Buffer{Index: i, ByteLength: int(jb.ByteLength)}
	lc.buffers[i] = b
	lc.bufferEntries[i] = newBufferEntry(b)
	lc.fetchBuffer(b, jb.URI)
	return b, nil
}

// imageFor lazily creates the Image and its entry; URI-sourced images start
// their fetch here, buffer-view images wait for the pipeline.
func (lc *loadContext) imageFor(i int) (*Image, error) {
	if i < 0 || i >= len(lc.doc.Images) {
		return nil, errors.Wrapf(ErrMalformedAsset, "image index %d out of range", i)
	}
	if img, ok := lc.images[i]; ok {
		return img, nil
	}
	ji := lc.doc.Images[i]
	img := &Image{Index: i, URI: ji.URI, MimeType: ji.MimeType}
	if ji.BufferView != nil {
		if ji.URI != "" {
			return nil, errors.Wrapf(ErrMalformedAsset, "image %d has both uri and buffer view", i)
		}
		view, err := lc.viewFor(int(*ji.BufferView))
		if err != nil {
			return nil, errors.Wrapf(err, "image %d", i)
		}
		img.View = view
	} else if ji.URI == "" {
		return nil, errors.Wrapf(ErrMalformedAsset, "image %d has neither uri nor buffer view", i)
	}
	lc.images[i] = img
	lc.imageEntries[i] = newImageEntry(img)
	if img.URI != "" {
		lc.fetchImage(img, img.URI)
	}
	return img, nil
}

func (lc *loadContext) addTextureInfo(info *TextureInfo) {
	lc.imageEntries[info.Texture.Source.Index].addTextureInfo(info)
}
