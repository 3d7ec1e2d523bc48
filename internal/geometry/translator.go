package geometry

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine"
)

// Options configures a Translator.
type Options struct {
	// Mapping overrides DefaultMapping when non-nil.
	Mapping Mapping
	// Scale multiplies positions. Zero means 1.
	Scale float64
	// SwapYZ converts the engine's Y-up space to a Z-up host. Triangle
	// winding is reversed to keep faces pointing outwards.
	SwapYZ bool
}

// Translator converts engine geometry into host meshes. It is safe for
// concurrent use.
type Translator struct {
	mapping Mapping
	scale   float32
	swapYZ  bool
}

// NewTranslator creates a translator.
func NewTranslator(opts Options) *Translator {
	mapping := opts.Mapping
	if mapping == nil {
		mapping = DefaultMapping()
	}
	scale := float32(opts.Scale)
	if scale == 0 {
		scale = 1
	}
	return &Translator{mapping: mapping, scale: scale, swapYZ: opts.SwapYZ}
}

// ownerPreference is the lookup order for per-corner values.
var ownerPreference = []engine.Owner{
	engine.OwnerVertex,
	engine.OwnerPoint,
	engine.OwnerPrimitive,
	engine.OwnerDetail,
}

// Translate converts geo. Geometry with no primitives yields an empty mesh
// and no error.
func (t *Translator) Translate(ctx context.Context, geo engine.Geometry) (*Mesh, error) {
	logger := ctxlog.FromContext(ctx)
	mesh := &Mesh{Metadata: make(map[string]engine.Attribute)}

	if geo.PrimitiveCount() == 0 {
		logger.Debug("Geometry has no primitives, producing empty mesh.", "parts", len(geo.Parts))
		return mesh, nil
	}

	b := &builder{t: t, mesh: mesh, slots: make(map[string]int), tris: make(map[int][]uint32)}
	for i := range geo.Parts {
		part := &geo.Parts[i]
		name := part.Name
		if name == "" {
			name = "part" + strconv.Itoa(i)
		}
		if err := t.validate(name, part); err != nil {
			return nil, err
		}
		if err := b.addPart(name, part); err != nil {
			return nil, err
		}
	}
	b.finish()

	logger.Debug("Geometry translated.", "parts", len(geo.Parts), "vertices", len(mesh.Vertices), "triangles", mesh.TriangleCount(), "materials", len(mesh.Materials))
	return mesh, nil
}

func translationError(part, format string, args ...any) error {
	return bridgeerr.New(bridgeerr.KindTranslation).Op("translate").Detail("part %q: %s", part, fmt.Sprintf(format, args...)).Build()
}

// validate checks the part's buffers for internal consistency.
func (t *Translator) validate(name string, part *engine.Part) error {
	if part.PointCount < 0 {
		return translationError(name, "negative point count %d", part.PointCount)
	}
	total := 0
	for f, n := range part.FaceCounts {
		if n < 0 {
			return translationError(name, "face %d has negative vertex count %d", f, n)
		}
		total += n
	}
	if total != len(part.VertexList) {
		return translationError(name, "face counts sum to %d but vertex list has %d entries", total, len(part.VertexList))
	}
	for i, p := range part.VertexList {
		if p < 0 || p >= part.PointCount {
			return translationError(name, "vertex %d references point %d, part has %d points", i, p, part.PointCount)
		}
	}
	for i := range part.Attributes {
		a := &part.Attributes[i]
		switch a.Owner {
		case engine.OwnerPoint, engine.OwnerVertex, engine.OwnerPrimitive, engine.OwnerDetail:
		default:
			return translationError(name, "attribute %q has unknown owner %q", a.Name, a.Owner)
		}
		if a.TupleSize < 1 {
			return translationError(name, "attribute %q has tuple size %d", a.Name, a.TupleSize)
		}
		if want := part.ElementCount(a.Owner) * a.TupleSize; a.Len() != want {
			return translationError(name, "%s attribute %q has %d values, want %d", a.Owner, a.Name, a.Len(), want)
		}
	}
	if len(part.FaceCounts) > 0 {
		pos := t.resolve(part, ChannelPosition)
		if pos == nil {
			return translationError(name, "no position attribute")
		}
		if pos.Storage == engine.StorageString || pos.TupleSize < 3 {
			return translationError(name, "position attribute %q must be numeric with 3 components", pos.Name)
		}
	}
	return nil
}

// resolve finds the attribute feeding ch, preferring the most specific owner.
func (t *Translator) resolve(part *engine.Part, ch Channel) *engine.Attribute {
	for _, name := range t.mapping.namesFor(ch) {
		for _, owner := range ownerPreference {
			if a, ok := part.Attribute(owner, name); ok {
				return a
			}
		}
	}
	return nil
}

// builder accumulates translated parts into one mesh.
type builder struct {
	t     *Translator
	mesh  *Mesh
	slots map[string]int
	tris  map[int][]uint32
}

// corner locates one polygon corner in every owner class.
type corner struct {
	vertex, point, prim int
}

func element(a *engine.Attribute, c corner) int {
	switch a.Owner {
	case engine.OwnerVertex:
		return c.vertex
	case engine.OwnerPoint:
		return c.point
	case engine.OwnerPrimitive:
		return c.prim
	}
	return 0
}

// read copies up to len(dst) components of a's element for c into dst.
func read(a *engine.Attribute, c corner, dst []float32) {
	if a == nil {
		return
	}
	base := element(a, c) * a.TupleSize
	n := min(len(dst), a.TupleSize)
	for i := 0; i < n; i++ {
		switch a.Storage {
		case engine.StorageFloat:
			dst[i] = float32(a.Floats[base+i])
		case engine.StorageInt:
			dst[i] = float32(a.Ints[base+i])
		}
	}
}

func readString(a *engine.Attribute, c corner) string {
	if a == nil {
		return ""
	}
	base := element(a, c) * a.TupleSize
	switch a.Storage {
	case engine.StorageString:
		return a.Strings[base]
	case engine.StorageInt:
		return strconv.Itoa(a.Ints[base])
	case engine.StorageFloat:
		return strconv.FormatFloat(a.Floats[base], 'g', -1, 64)
	}
	return ""
}

func (b *builder) slot(material string) int {
	if s, ok := b.slots[material]; ok {
		return s
	}
	s := len(b.mesh.Materials)
	b.slots[material] = s
	b.mesh.Materials = append(b.mesh.Materials, material)
	return s
}

func (b *builder) addPart(name string, part *engine.Part) error {
	t := b.t
	pos := t.resolve(part, ChannelPosition)
	nrm := t.resolve(part, ChannelNormal)
	uv := t.resolve(part, ChannelTexCoord)
	col := t.resolve(part, ChannelColor)
	alpha := t.resolve(part, ChannelAlpha)
	mat := t.resolve(part, ChannelMaterial)

	claimed := map[*engine.Attribute]bool{pos: true, nrm: true, uv: true, col: true, alpha: true, mat: true}
	for i := range part.Attributes {
		a := &part.Attributes[i]
		if !claimed[a] {
			b.mesh.Metadata[name+"/"+string(a.Owner)+"/"+a.Name] = *a
		}
	}

	offset := 0
	for f, n := range part.FaceCounts {
		start := offset
		offset += n
		if n < 3 {
			continue
		}

		first := uint32(len(b.mesh.Vertices))
		var material string
		for k := 0; k < n; k++ {
			c := corner{vertex: start + k, point: part.VertexList[start+k], prim: f}
			if k == 0 {
				material = readString(mat, c)
			}
			b.mesh.Vertices = append(b.mesh.Vertices, t.vertex(c, pos, nrm, uv, col, alpha))
		}

		s := b.slot(material)
		for k := uint32(1); k+1 < uint32(n); k++ {
			if t.swapYZ {
				b.tris[s] = append(b.tris[s], first, first+k+1, first+k)
			} else {
				b.tris[s] = append(b.tris[s], first, first+k, first+k+1)
			}
		}
	}
	return nil
}

func (t *Translator) vertex(c corner, pos, nrm, uv, col, alpha *engine.Attribute) Vertex {
	v := Vertex{Color: [4]float32{1, 1, 1, 1}}
	read(pos, c, v.Position[:])
	read(nrm, c, v.Normal[:])
	read(uv, c, v.TexCoord[:])
	read(col, c, v.Color[:])
	if alpha != nil {
		read(alpha, c, v.Color[3:])
	}

	for i := range v.Position {
		v.Position[i] *= t.scale
	}
	if t.swapYZ {
		v.Position[1], v.Position[2] = v.Position[2], v.Position[1]
		v.Normal[1], v.Normal[2] = v.Normal[2], v.Normal[1]
	}
	return v
}

// finish lays out triangles in slot order and computes bounds.
func (b *builder) finish() {
	m := b.mesh
	for s := range m.Materials {
		tris := b.tris[s]
		if len(tris) == 0 {
			continue
		}
		m.Sections = append(m.Sections, Section{MaterialSlot: s, FirstIndex: len(m.Indices), IndexCount: len(tris)})
		m.Indices = append(m.Indices, tris...)
	}

	if len(m.Vertices) == 0 {
		return
	}
	lo := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], v.Position[i])
			hi[i] = max(hi[i], v.Position[i])
		}
	}
	m.BoundsMin, m.BoundsMax = lo, hi
}
