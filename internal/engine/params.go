package engine

import "slices"

// ParmStorage is the engine-side storage class of a parameter.
type ParmStorage string

const (
	ParmInt    ParmStorage = "int"
	ParmFloat  ParmStorage = "float"
	ParmString ParmStorage = "string"
)

// Parm is one engine parameter value. Exactly one of the value slices is
// populated, matching Storage. Multi-component parameters (vectors, colors,
// ramps) are flattened.
type Parm struct {
	Storage ParmStorage `json:"storage"`
	Ints    []int       `json:"ints,omitempty"`
	Floats  []float64   `json:"floats,omitempty"`
	Strings []string    `json:"strings,omitempty"`
}

// IntParm builds an int parameter.
func IntParm(v ...int) Parm { return Parm{Storage: ParmInt, Ints: v} }

// FloatParm builds a float parameter.
func FloatParm(v ...float64) Parm { return Parm{Storage: ParmFloat, Floats: v} }

// StringParm builds a string parameter.
func StringParm(v ...string) Parm { return Parm{Storage: ParmString, Strings: v} }

// Len is the number of components of the parameter.
func (p Parm) Len() int {
	switch p.Storage {
	case ParmInt:
		return len(p.Ints)
	case ParmFloat:
		return len(p.Floats)
	case ParmString:
		return len(p.Strings)
	}
	return 0
}

// Clone returns a deep copy.
func (p Parm) Clone() Parm {
	return Parm{
		Storage: p.Storage,
		Ints:    slices.Clone(p.Ints),
		Floats:  slices.Clone(p.Floats),
		Strings: slices.Clone(p.Strings),
	}
}

// ParamSet maps parameter names to values.
type ParamSet map[string]Parm

// Clone returns a deep copy of the set.
func (s ParamSet) Clone() ParamSet {
	if s == nil {
		return nil
	}
	out := make(ParamSet, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}
