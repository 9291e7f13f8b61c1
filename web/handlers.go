package web

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mogaika/geoscene_viewer/asset"
	"github.com/mogaika/geoscene_viewer/bmesh"
	"github.com/mogaika/geoscene_viewer/render"
	"github.com/mogaika/geoscene_viewer/scene"
	"github.com/mogaika/geoscene_viewer/status"
	"github.com/mogaika/geoscene_viewer/utils"
	"github.com/mogaika/geoscene_viewer/webutils"
)

type loadedModel struct {
	Content    *asset.Content
	Primitives []*render.Primitive
	Buffers    []*render.MeshBuffer
	Textures   []*render.Texture
	SceneNames []string
}

var (
	modelLock  sync.Mutex
	modelCache = make(map[string]*loadedModel)
	nameGen    utils.RandomNameGenerator
)

// getModel loads and assembles a glTF model below the scene directory,
// caching the result per file.
func getModel(file string) (*loadedModel, error) {
	modelLock.Lock()
	defer modelLock.Unlock()
	if m, ok := modelCache[file]; ok {
		return m, nil
	}

	full := filepath.Join(serverConfig.SceneDir, filepath.FromSlash(file))
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(serverConfig.SceneDir)) {
		return nil, errors.Errorf("path %q escapes scene directory", file)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "read model %q", file)
	}

	status.Info("loading model %s", file)
	baseURI := serverConfig.BaseURI
	if baseURI == "" {
		baseURI = file
	}
	content, err := asset.Load(context.Background(), data, &asset.Options{
		BaseURI: baseURI,
		Fetcher: &asset.DirFetcher{Root: serverConfig.SceneDir},
		OnProgress: func(done, total int) {
			status.Progress(float32(done)/float32(total), "model %s: %d/%d resources", file, done, total)
		},
	})
	if err != nil {
		status.Error("model %s failed: %v", file, err)
		return nil, err
	}

	builder := render.NewBuilder()
	prims, err := builder.BuildScene(content, -1)
	if err != nil {
		return nil, err
	}

	m := &loadedModel{
		Content:    content,
		Primitives: prims,
		Buffers:    builder.MeshBuffers(),
		Textures:   builder.Textures(),
	}
	for _, s := range content.Scenes {
		name := s.Name
		if name == "" {
			name = nameGen.RandomName()
		}
		m.SceneNames = append(m.SceneNames, name)
	}
	modelCache[file] = m
	status.Info("model %s ready: %d primitives", file, len(prims))
	return m, nil
}

func HandlerAjaxSceneList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(serverConfig.SceneDir)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	files := make([]string, 0)
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	webutils.WriteJson(w, files)
}

type ajaxEntity struct {
	Type   string       `json:"type"`
	Entity scene.Entity `json:"entity"`
}

type ajaxScene struct {
	Meshes   map[string]*scene.MeshRef    `json:"meshes"`
	Textures map[string]*scene.TextureRef `json:"textures"`
	Entities []ajaxEntity                 `json:"entities"`
	Labels   []ajaxLabel                  `json:"labels,omitempty"`
}

type ajaxLabel struct {
	Text     string            `json:"text"`
	Position mgl64.Vec3        `json:"position"`
	Width    float64           `json:"width"`
	Quads    []scene.GlyphQuad `json:"quads"`
}

func HandlerAjaxScene(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	s, err := scene.LoadFile(filepath.Join(serverConfig.SceneDir, filepath.Base(file)))
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	resp := &ajaxScene{
		Meshes:   s.Meshes,
		Textures: s.Textures,
	}
	for _, e := range s.Entities {
		resp.Entities = append(resp.Entities, ajaxEntity{Type: e.EntityType(), Entity: e})
	}
	resp.Labels = layoutLabels(s)
	webutils.WriteJson(w, resp)
}

// layoutLabels pre-lays-out text entities when a server-side font is
// configured; without one the viewer lays text out with canvas fonts.
func layoutLabels(s *scene.Scene) []ajaxLabel {
	if serverConfig.FontPath == "" {
		return nil
	}
	font, err := scene.LoadFont(serverConfig.FontPath)
	if err != nil {
		status.Error("font %s: %v", serverConfig.FontPath, err)
		return nil
	}
	var labels []ajaxLabel
	for _, e := range s.Entities {
		te, ok := e.(*scene.TextEntity)
		if !ok {
			continue
		}
		for _, entry := range te.Entries {
			size := entry.FontSize
			if size == 0 {
				size = te.FontSize
			}
			quads, width, err := scene.LayoutText(font, entry.Text, size)
			if err != nil {
				status.Error("layout %q: %v", entry.Text, err)
				continue
			}
			labels = append(labels, ajaxLabel{
				Text:     entry.Text,
				Position: entry.Position,
				Width:    width,
				Quads:    quads,
			})
		}
	}
	return labels
}

type ajaxBinding struct {
	Buffer        int  `json:"buffer"`
	ByteOffset    int  `json:"byte_offset"`
	ByteStride    int  `json:"byte_stride"`
	ComponentType int  `json:"component_type"`
	Components    int  `json:"components"`
	Count         int  `json:"count"`
	Normalized    bool `json:"normalized"`
}

type ajaxTexture struct {
	Texture  int     `json:"texture"`
	TexCoord int     `json:"tex_coord"`
	Scale    float32 `json:"scale"`
	Strength float32 `json:"strength"`
}

type ajaxMaterial struct {
	BaseColorFactor          [4]float32   `json:"base_color_factor"`
	BaseColorTexture         *ajaxTexture `json:"base_color_texture,omitempty"`
	MetallicFactor           float32      `json:"metallic_factor"`
	RoughnessFactor          float32      `json:"roughness_factor"`
	MetallicRoughnessTexture *ajaxTexture `json:"metallic_roughness_texture,omitempty"`
	NormalTexture            *ajaxTexture `json:"normal_texture,omitempty"`
	OcclusionTexture         *ajaxTexture `json:"occlusion_texture,omitempty"`
	EmissiveTexture          *ajaxTexture `json:"emissive_texture,omitempty"`
	EmissiveFactor           [3]float32   `json:"emissive_factor"`
	AlphaMode                string       `json:"alpha_mode"`
	AlphaCutoff              float32      `json:"alpha_cutoff"`
	DoubleSided              bool         `json:"double_sided"`
}

type ajaxPrimitive struct {
	Mode        int                    `json:"mode"`
	Transform   [16]float64            `json:"transform"`
	Attributes  map[string]ajaxBinding `json:"attributes"`
	Indices     *ajaxBinding           `json:"indices,omitempty"`
	Material    ajaxMaterial           `json:"material"`
	VertexCount int                    `json:"vertex_count"`
	BBoxMin     *mgl64.Vec3            `json:"bbox_min,omitempty"`
	BBoxMax     *mgl64.Vec3            `json:"bbox_max,omitempty"`
	Pivot       *mgl64.Vec3            `json:"pivot,omitempty"`
}

type ajaxBufferMeta struct {
	Target     string `json:"target"`
	ByteLength int    `json:"byte_length"`
}

type ajaxTextureMeta struct {
	Width     int  `json:"width"`
	Height    int  `json:"height"`
	MagFilter int  `json:"mag_filter"`
	MinFilter int  `json:"min_filter"`
	WrapS     int  `json:"wrap_s"`
	WrapT     int  `json:"wrap_t"`
	FlipY     bool `json:"flip_y"`
}

type ajaxModel struct {
	SceneNames   []string          `json:"scene_names"`
	DefaultScene int               `json:"default_scene"`
	Primitives   []ajaxPrimitive   `json:"primitives"`
	Buffers      []ajaxBufferMeta  `json:"buffers"`
	Textures     []ajaxTextureMeta `json:"textures"`
}

func HandlerAjaxModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	m, err := getModel(file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	resp := &ajaxModel{
		SceneNames:   m.SceneNames,
		DefaultScene: m.Content.DefaultSceneIndex,
	}
	for _, p := range m.Primitives {
		ap := ajaxPrimitive{
			Mode:        int(p.Mode),
			Transform:   [16]float64(p.Transform),
			Attributes:  make(map[string]ajaxBinding, len(p.Attributes)),
			Material:    ajaxMaterialView(p.Material),
			VertexCount: p.VertexCount,
			BBoxMin:     p.BBoxMin,
			BBoxMax:     p.BBoxMax,
			Pivot:       p.Pivot,
		}
		for name, b := range p.Attributes {
			ap.Attributes[name] = ajaxBindingView(b)
		}
		if p.Indices != nil {
			ab := ajaxBindingView(p.Indices)
			ap.Indices = &ab
		}
		resp.Primitives = append(resp.Primitives, ap)
	}
	for _, b := range m.Buffers {
		resp.Buffers = append(resp.Buffers, ajaxBufferMeta{
			Target:     b.Target.String(),
			ByteLength: len(b.Data),
		})
	}
	for _, t := range m.Textures {
		bounds := t.Image.Bounds()
		resp.Textures = append(resp.Textures, ajaxTextureMeta{
			Width:     bounds.Dx(),
			Height:    bounds.Dy(),
			MagFilter: t.MagFilter,
			MinFilter: t.MinFilter,
			WrapS:     t.WrapS,
			WrapT:     t.WrapT,
			FlipY:     t.FlipY,
		})
	}
	webutils.WriteJson(w, resp)
}

func ajaxBindingView(b *render.AttributeBinding) ajaxBinding {
	return ajaxBinding{
		Buffer:        b.Buffer.ID,
		ByteOffset:    b.ByteOffset,
		ByteStride:    b.ByteStride,
		ComponentType: b.ComponentType,
		Components:    b.Components,
		Count:         b.Count,
		Normalized:    b.Normalized,
	}
}

func ajaxTextureView(b *render.TextureBinding) *ajaxTexture {
	if b == nil {
		return nil
	}
	return &ajaxTexture{
		Texture:  b.Texture.ID,
		TexCoord: b.TexCoord,
		Scale:    b.Scale,
		Strength: b.Strength,
	}
}

func ajaxMaterialView(m *render.MaterialProps) ajaxMaterial {
	return ajaxMaterial{
		BaseColorFactor:          m.BaseColorFactor,
		BaseColorTexture:         ajaxTextureView(m.BaseColorTexture),
		MetallicFactor:           m.MetallicFactor,
		RoughnessFactor:          m.RoughnessFactor,
		MetallicRoughnessTexture: ajaxTextureView(m.MetallicRoughnessTexture),
		NormalTexture:            ajaxTextureView(m.NormalTexture),
		OcclusionTexture:         ajaxTextureView(m.OcclusionTexture),
		EmissiveTexture:          ajaxTextureView(m.EmissiveTexture),
		EmissiveFactor:           m.EmissiveFactor,
		AlphaMode:                m.AlphaMode,
		AlphaCutoff:              m.AlphaCutoff,
		DoubleSided:              m.DoubleSided,
	}
}

func HandlerModelBuffer(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	index, err := strconv.Atoi(mux.Vars(r)["buffer"])
	if err != nil {
		webutils.WriteError(w, errors.Errorf("buffer %q is not an integer", mux.Vars(r)["buffer"]))
		return
	}
	m, err := getModel(file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if index < 0 || index >= len(m.Buffers) {
		webutils.WriteError(w, errors.Errorf("buffer %d out of range, model has %d", index, len(m.Buffers)))
		return
	}
	webutils.WriteFile(w, bytes.NewReader(m.Buffers[index].Data), filepath.Base(file)+"."+strconv.Itoa(index)+".bin")
}

func HandlerDumpModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	m, err := getModel(file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	webutils.WriteResult(w, []byte(utils.SDump(m.Content)))
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func HandlerStatusWs(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	status.NewClient(conn)
}

type ajaxBinaryMesh struct {
	VertexCount   int          `json:"vertex_count"`
	IndexCount    int          `json:"index_count"`
	PrimitiveType int          `json:"primitive_type"`
	HasNormals    bool         `json:"has_normals"`
	HasTexCoords  bool         `json:"has_tex_coords"`
	Positions     [][3]float32 `json:"positions"`
	Normals       [][3]float32 `json:"normals,omitempty"`
	TexCoords     [][2]float32 `json:"tex_coords,omitempty"`
	Indices       []uint32     `json:"indices"`
}

// HandlerAjaxBinaryMesh serves a scene's binary-format mesh (the
// mesh_register "binary" entries) parsed into attribute streams.
func HandlerAjaxBinaryMesh(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	full := filepath.Join(serverConfig.SceneDir, filepath.FromSlash(file))
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(serverConfig.SceneDir)) {
		webutils.WriteError(w, errors.Errorf("path %q escapes scene directory", file))
		return
	}
	data, err := os.ReadFile(full)
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "read mesh %q", file))
		return
	}
	m, err := bmesh.NewFromData(data)
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "parse mesh %q", file))
		return
	}
	webutils.WriteJson(w, &ajaxBinaryMesh{
		VertexCount:   len(m.Positions),
		IndexCount:    len(m.Indices),
		PrimitiveType: int(m.PrimitiveType),
		HasNormals:    m.Normals != nil,
		HasTexCoords:  m.TexCoords != nil,
		Positions:     m.Positions,
		Normals:       m.Normals,
		TexCoords:     m.TexCoords,
		Indices:       m.Indices,
	})
}
