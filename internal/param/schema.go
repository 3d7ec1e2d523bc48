package param

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Spec declares one parameter of an asset.
type Spec struct {
	Name  string
	Label string
	Kind  Kind
	// Size is the component count of vectors. Colors are always 4.
	Size    int
	Min     *float64
	Max     *float64
	Choices []string
	Default cty.Value
}

// components is the number of engine values the parameter occupies, or -1
// for variable-length kinds.
func (s Spec) components() int {
	switch s.Kind {
	case KindVector:
		return s.Size
	case KindColor:
		return 4
	case KindRamp:
		return -1
	}
	return 1
}

// clamp restricts f to the declared bounds.
func (s Spec) clamp(f float64) float64 {
	if s.Min != nil && f < *s.Min {
		f = *s.Min
	}
	if s.Max != nil && f > *s.Max {
		f = *s.Max
	}
	return f
}

// Schema is the ordered, typed parameter list of one asset definition.
type Schema struct {
	specs []Spec
	index map[string]int
}

// NewSchema validates the specs and builds a schema. Vectors without a size
// default to 3 components.
func NewSchema(specs ...Spec) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("parameter with empty name")
		}
		if _, dup := s.index[spec.Name]; dup {
			return nil, fmt.Errorf("parameter %q declared more than once", spec.Name)
		}
		if _, ok := ParseKind(string(spec.Kind)); !ok {
			return nil, fmt.Errorf("parameter %q: unknown kind %q", spec.Name, spec.Kind)
		}
		switch spec.Kind {
		case KindVector:
			if spec.Size == 0 {
				spec.Size = 3
			}
			if spec.Size < 1 {
				return nil, fmt.Errorf("parameter %q: size must be positive", spec.Name)
			}
		case KindChoice:
			if len(spec.Choices) == 0 {
				return nil, fmt.Errorf("parameter %q: choice requires at least one choice", spec.Name)
			}
		}
		if (spec.Min != nil || spec.Max != nil) && !spec.Kind.numeric() {
			return nil, fmt.Errorf("parameter %q: bounds are only valid on numeric kinds", spec.Name)
		}
		if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
			return nil, fmt.Errorf("parameter %q: min %v is greater than max %v", spec.Name, *spec.Min, *spec.Max)
		}
		if spec.Default.IsNull() {
			spec.Default = cty.NullVal(cty.DynamicPseudoType)
		} else {
			if _, _, err := encode(spec, spec.Default); err != nil {
				return nil, fmt.Errorf("parameter %q: invalid default: %w", spec.Name, err)
			}
		}
		s.index[spec.Name] = len(s.specs)
		s.specs = append(s.specs, spec)
	}
	return s, nil
}

// Lookup returns the spec for name.
func (s *Schema) Lookup(name string) (Spec, bool) {
	i, ok := s.index[name]
	if !ok {
		return Spec{}, false
	}
	return s.specs[i], true
}

// Specs returns the declared parameters in declaration order.
func (s *Schema) Specs() []Spec {
	out := make([]Spec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Len is the number of parameters.
func (s *Schema) Len() int { return len(s.specs) }

// Defaults returns a snapshot holding every non-null default.
func (s *Schema) Defaults() Snapshot {
	values := make(map[string]cty.Value)
	for _, spec := range s.specs {
		if !spec.Default.IsNull() {
			values[spec.Name] = spec.Default
		}
	}
	return Snapshot{values: values}
}

// Names returns the parameter names sorted alphabetically.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}
