package param

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Snapshot is an immutable mapping from parameter name to value. The zero
// value is an empty snapshot.
type Snapshot struct {
	values map[string]cty.Value
}

// NewSnapshot copies values into a new snapshot.
func NewSnapshot(values map[string]cty.Value) Snapshot {
	cp := make(map[string]cty.Value, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{values: cp}
}

// SnapshotFromObject builds a snapshot from an object or map value, such as
// the `parameters = {...}` attribute of a scene file.
func SnapshotFromObject(v cty.Value) (Snapshot, error) {
	if v.IsNull() {
		return Snapshot{}, nil
	}
	if !v.IsWhollyKnown() {
		return Snapshot{}, fmt.Errorf("parameters must be known values")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return Snapshot{}, fmt.Errorf("parameters must be an object, got %s", ty.FriendlyName())
	}
	return Snapshot{values: v.AsValueMap()}, nil
}

// Get returns the value for name.
func (s Snapshot) Get(name string) (cty.Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// With returns a new snapshot with name set to v.
func (s Snapshot) With(name string, v cty.Value) Snapshot {
	cp := make(map[string]cty.Value, len(s.values)+1)
	for k, old := range s.values {
		cp[k] = old
	}
	cp[name] = v
	return Snapshot{values: cp}
}

// Without returns a new snapshot with name removed.
func (s Snapshot) Without(name string) Snapshot {
	if _, ok := s.values[name]; !ok {
		return s
	}
	cp := make(map[string]cty.Value, len(s.values))
	for k, v := range s.values {
		if k != name {
			cp[k] = v
		}
	}
	return Snapshot{values: cp}
}

// Merge returns a new snapshot with every value of other laid over s.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	cp := make(map[string]cty.Value, len(s.values)+len(other.values))
	for k, v := range s.values {
		cp[k] = v
	}
	for k, v := range other.values {
		cp[k] = v
	}
	return Snapshot{values: cp}
}

// Holds reports whether name is set to a value equal to v.
func (s Snapshot) Holds(name string, v cty.Value) bool {
	old, ok := s.values[name]
	return ok && valuesEqual(old, v)
}

// Len is the number of values.
func (s Snapshot) Len() int { return len(s.values) }

// Names returns the names sorted alphabetically.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Object returns the snapshot as a cty object value.
func (s Snapshot) Object() cty.Value {
	if len(s.values) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(s.values)
}

// Equal reports whether both snapshots hold the same names with equal
// values. Values of different but convertible types (a tuple and a list of
// the same numbers) compare equal.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for k, a := range s.values {
		b, ok := other.values[k]
		if !ok || !valuesEqual(a, b) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b cty.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if !a.Type().Equals(b.Type()) {
		conv, err := convert.Convert(b, a.Type())
		if err != nil {
			return false
		}
		b = conv
	}
	eq := a.Equals(b)
	return eq.IsKnown() && eq.True()
}
