package engine

// Owner is the element class an attribute is attached to.
type Owner string

const (
	OwnerPoint     Owner = "point"
	OwnerVertex    Owner = "vertex"
	OwnerPrimitive Owner = "primitive"
	OwnerDetail    Owner = "detail"
)

// Storage is the value type of an attribute.
type Storage string

const (
	StorageInt    Storage = "int"
	StorageFloat  Storage = "float"
	StorageString Storage = "string"
)

// Attribute is a named buffer of TupleSize-wide elements, one element per
// owner element (one for detail attributes).
type Attribute struct {
	Name      string    `json:"name"`
	Owner     Owner     `json:"owner"`
	Storage   Storage   `json:"storage"`
	TupleSize int       `json:"tuple_size"`
	Ints      []int     `json:"ints,omitempty"`
	Floats    []float64 `json:"floats,omitempty"`
	Strings   []string  `json:"strings,omitempty"`
}

// Len is the number of scalar values stored.
func (a *Attribute) Len() int {
	switch a.Storage {
	case StorageInt:
		return len(a.Ints)
	case StorageFloat:
		return len(a.Floats)
	case StorageString:
		return len(a.Strings)
	}
	return 0
}

// Part is one geometry part: a point cloud plus polygons described by face
// counts and a flat vertex list of point indices.
type Part struct {
	Name       string      `json:"name"`
	PointCount int         `json:"point_count"`
	FaceCounts []int       `json:"face_counts"`
	VertexList []int       `json:"vertex_list"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute returns the attribute with the given owner and name.
func (p *Part) Attribute(owner Owner, name string) (*Attribute, bool) {
	for i := range p.Attributes {
		if p.Attributes[i].Owner == owner && p.Attributes[i].Name == name {
			return &p.Attributes[i], true
		}
	}
	return nil, false
}

// ElementCount is the number of elements of the given owner class.
func (p *Part) ElementCount(owner Owner) int {
	switch owner {
	case OwnerPoint:
		return p.PointCount
	case OwnerVertex:
		return len(p.VertexList)
	case OwnerPrimitive:
		return len(p.FaceCounts)
	case OwnerDetail:
		return 1
	}
	return 0
}

// Geometry is the full output of a cook.
type Geometry struct {
	Parts []Part `json:"parts"`
}

// PrimitiveCount is the number of primitives across all parts.
func (g Geometry) PrimitiveCount() int {
	n := 0
	for _, p := range g.Parts {
		n += len(p.FaceCounts)
	}
	return n
}
