package param

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Interpolation is the curve basis between two ramp keys. The numeric values
// are the engine's enumeration.
type Interpolation int

const (
	InterpConstant Interpolation = iota
	InterpLinear
	InterpCatmullRom
	InterpMonotoneCubic
	InterpBezier
	InterpBSpline
	InterpHermite
)

var interpNames = []string{
	InterpConstant:      "constant",
	InterpLinear:        "linear",
	InterpCatmullRom:    "catmull-rom",
	InterpMonotoneCubic: "monotone-cubic",
	InterpBezier:        "bezier",
	InterpBSpline:       "b-spline",
	InterpHermite:       "hermite",
}

// DefaultInterpolation is used for keys that do not name one.
const DefaultInterpolation = InterpMonotoneCubic

func (i Interpolation) String() string {
	if i < 0 || int(i) >= len(interpNames) {
		return interpNames[InterpLinear]
	}
	return interpNames[i]
}

// ParseInterpolation maps a name to an interpolation. Unknown names fall back
// to linear and report false.
func ParseInterpolation(s string) (Interpolation, bool) {
	for i, name := range interpNames {
		if name == s {
			return Interpolation(i), true
		}
	}
	return InterpLinear, false
}

// interpolationFromEngine maps the engine's enumeration value, falling back
// to linear for values outside it.
func interpolationFromEngine(f float64) Interpolation {
	i := Interpolation(int(f))
	if float64(i) != f || i < InterpConstant || i > InterpHermite {
		return InterpLinear
	}
	return i
}

// RampKey is one control point of a float ramp.
type RampKey struct {
	Pos    float64
	Value  float64
	Interp Interpolation
}

// rampKeyType is the object shape of a ramp key on the host side.
var rampKeyType = cty.Object(map[string]cty.Type{
	"pos":    cty.Number,
	"value":  cty.Number,
	"interp": cty.String,
})

// decodeRamp reads a list or tuple of key objects. Keys may omit interp.
func decodeRamp(v cty.Value) ([]RampKey, error) {
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return nil, fmt.Errorf("ramp must be a list of keys, got %s", ty.FriendlyName())
	}
	var keys []RampKey
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() || !(elem.Type().IsObjectType() || elem.Type().IsMapType()) {
			return nil, fmt.Errorf("ramp key %d must be an object", len(keys))
		}
		attrs := elem.AsValueMap()
		pos, err := numberAttr(attrs, "pos")
		if err != nil {
			return nil, fmt.Errorf("ramp key %d: %w", len(keys), err)
		}
		val, err := numberAttr(attrs, "value")
		if err != nil {
			return nil, fmt.Errorf("ramp key %d: %w", len(keys), err)
		}
		interp := DefaultInterpolation
		if raw, ok := attrs["interp"]; ok && !raw.IsNull() {
			s, err := convert.Convert(raw, cty.String)
			if err != nil {
				return nil, fmt.Errorf("ramp key %d: interp: %w", len(keys), err)
			}
			interp, _ = ParseInterpolation(s.AsString())
		}
		keys = append(keys, RampKey{Pos: pos, Value: val, Interp: interp})
	}
	return keys, nil
}

func numberAttr(attrs map[string]cty.Value, name string) (float64, error) {
	raw, ok := attrs[name]
	if !ok || raw.IsNull() {
		return 0, fmt.Errorf("missing %q", name)
	}
	return toFloat(raw)
}

// encodeRamp produces the host-side list value for keys.
func encodeRamp(keys []RampKey) cty.Value {
	if len(keys) == 0 {
		return cty.ListValEmpty(rampKeyType)
	}
	elems := make([]cty.Value, len(keys))
	for i, k := range keys {
		elems[i] = cty.ObjectVal(map[string]cty.Value{
			"pos":    cty.NumberFloatVal(k.Pos),
			"value":  cty.NumberFloatVal(k.Value),
			"interp": cty.StringVal(k.Interp.String()),
		})
	}
	return cty.ListVal(elems)
}
