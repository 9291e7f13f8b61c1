// Package scene parses the viewer's scene-description JSON: registers of
// model and texture assets plus a list of entities placing them in the
// geocentric frame.
package scene

import (
	"encoding/json"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/geoscene_viewer/geo"
)

type MeshFormat string

const (
	FormatGLTF   MeshFormat = "gltf"
	FormatBinary MeshFormat = "binary"
)

// MeshRef names one model asset of the scene.
type MeshRef struct {
	ID     string
	URI    string
	Format MeshFormat
}

// TextureRef names one standalone texture asset, referenced by tex-2d
// entity parameters.
type TextureRef struct {
	ID  string
	URI string
}

type Scene struct {
	Meshes   map[string]*MeshRef
	Textures map[string]*TextureRef
	Entities []Entity
}

type Entity interface {
	EntityType() string
}

// GenericEntity instantiates a registered mesh with a placement transform
// and shader parameters.
type GenericEntity struct {
	Transform  mgl64.Mat4
	MeshID     string
	Properties map[string]*Param
}

func (*GenericEntity) EntityType() string { return "generic" }

type ParamKind int

const (
	ParamFloat ParamKind = iota
	ParamVec3
	ParamTex2D
)

type Param struct {
	Kind      ParamKind
	Float     float64
	Vec3      mgl64.Vec3
	TextureID string
}

// MarkerlineEntity is a polyline in GOCS coordinates.
type MarkerlineEntity struct {
	Points    []mgl64.Vec3
	LineWidth float64
	Color     [3]float64
	Opacity   float64
}

func (*MarkerlineEntity) EntityType() string { return "markerline" }

// TextEntity is a group of labels sharing font defaults.
type TextEntity struct {
	Entries    []TextEntry
	FontStyle  string
	FontWeight string
	FontSize   float64
	FontFamily string
	Color      [3]float64
}

func (*TextEntity) EntityType() string { return "text" }

type TextEntry struct {
	Text     string
	Position mgl64.Vec3
	FontSize float64 // 0 inherits the entity size
	Color    *[3]float64
}

type jsonDocument struct {
	MeshRegister    map[string]jsonMeshDef `json:"mesh_register"`
	TextureRegister map[string]jsonTexture `json:"texture_register"`
	EntityList      []json.RawMessage      `json:"entity_list"`
}

type jsonMeshDef struct {
	GLTF   string `json:"gltf"`
	Binary string `json:"binary"`
}

type jsonTexture struct {
	URI string `json:"uri"`
}

type jsonTransform struct {
	Matrix       []float64 `json:"matrix"`
	Cartographic []float64 `json:"cartographic"`
}

type jsonEntityHead struct {
	Type string `json:"type"`
}

type jsonGeneric struct {
	Transform  *jsonTransform             `json:"transform"`
	RefMesh    string                     `json:"ref_mesh"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type jsonPoints struct {
	Cartesian    []float64 `json:"cartesian"`
	Cartographic []float64 `json:"cartographic"`
}

type jsonMarkerline struct {
	Points    jsonPoints `json:"points"`
	LineWidth float64    `json:"line_width"`
	Color     []float64  `json:"color"`
	Opacity   *float64   `json:"opacity"`
}

type jsonTextEntry struct {
	Text     string    `json:"text"`
	Position []float64 `json:"position"`
	FontSize float64   `json:"font_size"`
	Color    []float64 `json:"color"`
}

type jsonText struct {
	Entries    []jsonTextEntry `json:"entries"`
	FontStyle  string          `json:"font_style"`
	FontWeight string          `json:"font_weight"`
	FontSize   float64         `json:"font_size"`
	FontFamily string          `json:"font_family"`
	Color      []float64       `json:"color"`
}

func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scene %q", path)
	}
	return Load(data)
}

func Load(data []byte) (*Scene, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse scene document")
	}

	s := &Scene{
		Meshes:   make(map[string]*MeshRef, len(doc.MeshRegister)),
		Textures: make(map[string]*TextureRef, len(doc.TextureRegister)),
	}
	for id, def := range doc.MeshRegister {
		ref := &MeshRef{ID: id}
		switch {
		case def.GLTF != "" && def.Binary != "":
			return nil, errors.Errorf("mesh %q declares both gltf and binary sources", id)
		case def.GLTF != "":
			ref.URI, ref.Format = def.GLTF, FormatGLTF
		case def.Binary != "":
			ref.URI, ref.Format = def.Binary, FormatBinary
		default:
			return nil, errors.Errorf("mesh %q declares no source", id)
		}
		s.Meshes[id] = ref
	}
	for id, def := range doc.TextureRegister {
		if def.URI == "" {
			return nil, errors.Errorf("texture %q declares no uri", id)
		}
		s.Textures[id] = &TextureRef{ID: id, URI: def.URI}
	}

	for i, raw := range doc.EntityList {
		var head jsonEntityHead
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, errors.Wrapf(err, "entity %d", i)
		}
		var (
			e   Entity
			err error
		)
		switch head.Type {
		case "", "generic":
			e, err = s.parseGeneric(raw)
		case "markerline":
			e, err = parseMarkerline(raw)
		case "text":
			e, err = parseText(raw)
		default:
			err = errors.Errorf("unknown entity type %q", head.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "entity %d", i)
		}
		s.Entities = append(s.Entities, e)
	}

	return s, nil
}

func (s *Scene) parseGeneric(raw json.RawMessage) (*GenericEntity, error) {
	var j jsonGeneric
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	if _, ok := s.Meshes[j.RefMesh]; !ok {
		return nil, errors.Errorf("ref_mesh %q is not registered", j.RefMesh)
	}
	transform, err := parseTransform(j.Transform)
	if err != nil {
		return nil, err
	}
	e := &GenericEntity{
		Transform:  transform,
		MeshID:     j.RefMesh,
		Properties: make(map[string]*Param, len(j.Properties)),
	}
	for id, rawParam := range j.Properties {
		p, err := s.parseParam(rawParam)
		if err != nil {
			return nil, errors.Wrapf(err, "property %q", id)
		}
		e.Properties[id] = p
	}
	return e, nil
}

// parseParam accepts a bare number, a 3-vector, or a tex-2d reference
// object.
func (s *Scene) parseParam(raw json.RawMessage) (*Param, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &Param{Kind: ParamFloat, Float: f}, nil
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err == nil {
		if len(v) != 3 {
			return nil, errors.Errorf("vector parameter has %d components, expected 3", len(v))
		}
		return &Param{Kind: ParamVec3, Vec3: mgl64.Vec3{v[0], v[1], v[2]}}, nil
	}
	var obj struct {
		Type       string `json:"type"`
		RefTexture string `json:"ref_texture"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrapf(err, "unrecognized parameter")
	}
	if obj.Type != "tex-2d" {
		return nil, errors.Errorf("unknown parameter type %q", obj.Type)
	}
	if _, ok := s.Textures[obj.RefTexture]; !ok {
		return nil, errors.Errorf("ref_texture %q is not registered", obj.RefTexture)
	}
	return &Param{Kind: ParamTex2D, TextureID: obj.RefTexture}, nil
}

// parseTransform accepts a 16-element column-major matrix or a cartographic
// triple placed through the east-north-up frame. A missing transform is the
// identity.
func parseTransform(j *jsonTransform) (mgl64.Mat4, error) {
	if j == nil {
		return mgl64.Ident4(), nil
	}
	switch {
	case j.Matrix != nil && j.Cartographic != nil:
		return mgl64.Mat4{}, errors.Errorf("transform declares both matrix and cartographic")
	case j.Matrix != nil:
		if len(j.Matrix) != 16 {
			return mgl64.Mat4{}, errors.Errorf("matrix has %d elements, expected 16", len(j.Matrix))
		}
		var m mgl64.Mat4
		copy(m[:], j.Matrix)
		return m, nil
	case j.Cartographic != nil:
		if len(j.Cartographic) != 3 {
			return mgl64.Mat4{}, errors.Errorf("cartographic has %d elements, expected 3", len(j.Cartographic))
		}
		return geo.IscsToGocs(j.Cartographic[0], j.Cartographic[1], j.Cartographic[2]), nil
	}
	return mgl64.Ident4(), nil
}

func parseMarkerline(raw json.RawMessage) (*MarkerlineEntity, error) {
	var j jsonMarkerline
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	e := &MarkerlineEntity{
		LineWidth: j.LineWidth,
		Opacity:   1,
		Color:     [3]float64{1, 1, 1},
	}
	if e.LineWidth <= 0 {
		e.LineWidth = 1
	}
	if j.Opacity != nil {
		e.Opacity = *j.Opacity
	}
	if j.Color != nil {
		if len(j.Color) != 3 {
			return nil, errors.Errorf("color has %d components, expected 3", len(j.Color))
		}
		copy(e.Color[:], j.Color)
	}

	switch {
	case j.Points.Cartesian != nil && j.Points.Cartographic != nil:
		return nil, errors.Errorf("points declare both cartesian and cartographic")
	case j.Points.Cartesian != nil:
		pts, err := groupTriples(j.Points.Cartesian)
		if err != nil {
			return nil, err
		}
		e.Points = pts
	case j.Points.Cartographic != nil:
		triples, err := groupTriples(j.Points.Cartographic)
		if err != nil {
			return nil, err
		}
		e.Points = make([]mgl64.Vec3, len(triples))
		for i, t := range triples {
			e.Points[i] = geo.CartographicToGocs(t[0], t[1], t[2])
		}
	default:
		return nil, errors.Errorf("markerline has no points")
	}
	if len(e.Points) < 2 {
		return nil, errors.Errorf("markerline has %d points, expected at least 2", len(e.Points))
	}
	return e, nil
}

func groupTriples(flat []float64) ([]mgl64.Vec3, error) {
	if len(flat)%3 != 0 {
		return nil, errors.Errorf("point array length %d is not a multiple of 3", len(flat))
	}
	out := make([]mgl64.Vec3, len(flat)/3)
	for i := range out {
		out[i] = mgl64.Vec3{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out, nil
}

func parseText(raw json.RawMessage) (*TextEntity, error) {
	var j jsonText
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	e := &TextEntity{
		FontStyle:  j.FontStyle,
		FontWeight: j.FontWeight,
		FontSize:   j.FontSize,
		FontFamily: j.FontFamily,
		Color:      [3]float64{1, 1, 1},
	}
	if e.FontSize == 0 {
		e.FontSize = 16
	}
	if e.FontFamily == "" {
		e.FontFamily = "sans-serif"
	}
	if j.Color != nil {
		if len(j.Color) != 3 {
			return nil, errors.Errorf("color has %d components, expected 3", len(j.Color))
		}
		copy(e.Color[:], j.Color)
	}
	for i, je := range j.Entries {
		if len(je.Position) != 3 {
			return nil, errors.Errorf("entry %d position has %d components, expected 3", i, len(je.Position))
		}
		entry := TextEntry{
			Text:     je.Text,
			Position: geo.CartographicToGocs(je.Position[0], je.Position[1], je.Position[2]),
			FontSize: je.FontSize,
		}
		if je.Color != nil {
			if len(je.Color) != 3 {
				return nil, errors.Errorf("entry %d color has %d components, expected 3", i, len(je.Color))
			}
			var c [3]float64
			copy(c[:], je.Color)
			entry.Color = &c
		}
		e.Entries = append(e.Entries, entry)
	}
	return e, nil
}
