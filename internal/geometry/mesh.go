package geometry

import "github.com/specialistvlad/cookbridge/internal/engine"

// Vertex is one host mesh vertex.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Color    [4]float32
}

// Section is a contiguous index range drawn with one material.
type Section struct {
	MaterialSlot int
	FirstIndex   int
	IndexCount   int
}

// Mesh is the host-side result of a translation.
type Mesh struct {
	Vertices []Vertex
	// Indices are triangle corners into Vertices, three per triangle.
	Indices []uint32
	// Sections partition Indices by material slot.
	Sections []Section
	// Materials holds the material path of each slot. An empty path is the
	// host's default material.
	Materials []string
	// Metadata holds attributes no channel claimed, keyed by
	// "<part>/<owner>/<name>".
	Metadata map[string]engine.Attribute

	BoundsMin [3]float32
	BoundsMax [3]float32
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Indices) == 0
}

// TriangleCount is the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}
