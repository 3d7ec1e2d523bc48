package param

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Report lists what a conversion dropped or adjusted.
type Report struct {
	// Dropped holds one MarshalError per parameter that was left out.
	Dropped []error
	// Clamped names parameters whose value was moved into bounds.
	Clamped []string
}

// OK reports whether nothing was dropped.
func (r Report) OK() bool { return len(r.Dropped) == 0 }

// Marshaller converts parameter values for one schema.
type Marshaller struct {
	schema *Schema
}

// NewMarshaller binds a marshaller to schema.
func NewMarshaller(schema *Schema) *Marshaller {
	return &Marshaller{schema: schema}
}

// Schema returns the bound schema.
func (m *Marshaller) Schema() *Schema { return m.schema }

// ToEngine converts a snapshot into the engine's typed parameter set.
func (m *Marshaller) ToEngine(ctx context.Context, snap Snapshot) (engine.ParamSet, Report) {
	logger := ctxlog.FromContext(ctx)
	out := make(engine.ParamSet, snap.Len())
	var report Report

	for _, name := range snap.Names() {
		v, _ := snap.Get(name)
		spec, ok := m.schema.Lookup(name)
		if !ok {
			report.Dropped = append(report.Dropped, dropped("to_engine", name, "unknown parameter", nil))
			logger.Warn("Dropping unknown parameter.", "param", name)
			continue
		}
		parm, clamped, err := encode(spec, v)
		if err != nil {
			report.Dropped = append(report.Dropped, dropped("to_engine", name, "cannot convert value", err))
			logger.Warn("Dropping unconvertible parameter.", "param", name, "kind", spec.Kind, "error", err)
			continue
		}
		if clamped {
			report.Clamped = append(report.Clamped, name)
			logger.Debug("Parameter clamped to bounds.", "param", name)
		}
		out[name] = parm
	}
	return out, report
}

// FromEngine converts an engine parameter set into a snapshot.
func (m *Marshaller) FromEngine(ctx context.Context, set engine.ParamSet) (Snapshot, Report) {
	logger := ctxlog.FromContext(ctx)
	values := make(map[string]cty.Value, len(set))
	var report Report

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		spec, ok := m.schema.Lookup(name)
		if !ok {
			report.Dropped = append(report.Dropped, dropped("from_engine", name, "unknown parameter", nil))
			logger.Debug("Ignoring engine parameter not in schema.", "param", name)
			continue
		}
		v, err := decode(spec, set[name])
		if err != nil {
			report.Dropped = append(report.Dropped, dropped("from_engine", name, "cannot convert value", err))
			logger.Warn("Dropping unconvertible engine parameter.", "param", name, "error", err)
			continue
		}
		values[name] = v
	}
	return Snapshot{values: values}, report
}

func dropped(op, name, detail string, cause error) error {
	return bridgeerr.New(bridgeerr.KindMarshal).Op(op).Param(name).Detail("%s", detail).Cause(cause).Build()
}

// encode converts one host value. The bool result reports clamping.
func encode(spec Spec, v cty.Value) (engine.Parm, bool, error) {
	if v.IsNull() {
		return engine.Parm{}, false, fmt.Errorf("value is null")
	}
	if !v.IsWhollyKnown() {
		return engine.Parm{}, false, fmt.Errorf("value is unknown")
	}

	switch spec.Kind {
	case KindInt:
		f, err := toFloat(v)
		if err != nil {
			return engine.Parm{}, false, err
		}
		r := math.Round(spec.clamp(f))
		if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
			return engine.Parm{}, false, fmt.Errorf("%v is outside the engine's 32-bit int range", f)
		}
		return engine.IntParm(int(r)), spec.clamp(f) != f, nil

	case KindFloat:
		f, err := toFloat(v)
		if err != nil {
			return engine.Parm{}, false, err
		}
		c := spec.clamp(f)
		return engine.FloatParm(c), c != f, nil

	case KindString:
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return engine.Parm{}, false, err
		}
		return engine.StringParm(s.AsString()), false, nil

	case KindToggle:
		b, err := convert.Convert(v, cty.Bool)
		if err != nil {
			return engine.Parm{}, false, err
		}
		if b.True() {
			return engine.IntParm(1), false, nil
		}
		return engine.IntParm(0), false, nil

	case KindVector, KindColor:
		fs, err := toFloats(v)
		if err != nil {
			return engine.Parm{}, false, err
		}
		want := spec.components()
		if spec.Kind == KindColor && len(fs) == 3 {
			fs = append(fs, 1)
		}
		if len(fs) != want {
			return engine.Parm{}, false, fmt.Errorf("expected %d components, got %d", want, len(fs))
		}
		clamped := false
		for i, f := range fs {
			if c := spec.clamp(f); c != f {
				fs[i] = c
				clamped = true
			}
		}
		return engine.FloatParm(fs...), clamped, nil

	case KindChoice:
		idx, err := choiceIndex(spec, v)
		if err != nil {
			return engine.Parm{}, false, err
		}
		return engine.IntParm(idx), false, nil

	case KindRamp:
		keys, err := decodeRamp(v)
		if err != nil {
			return engine.Parm{}, false, err
		}
		clamped := false
		flat := make([]float64, 0, len(keys)*3)
		for _, k := range keys {
			pos := math.Min(1, math.Max(0, k.Pos))
			val := spec.clamp(k.Value)
			if pos != k.Pos || val != k.Value {
				clamped = true
			}
			flat = append(flat, pos, val, float64(k.Interp))
		}
		return engine.FloatParm(flat...), clamped, nil
	}
	return engine.Parm{}, false, fmt.Errorf("unsupported kind %q", spec.Kind)
}

// decode converts one engine value into the host representation.
func decode(spec Spec, p engine.Parm) (cty.Value, error) {
	switch spec.Kind {
	case KindInt, KindToggle, KindChoice:
		if p.Storage != engine.ParmInt || len(p.Ints) != 1 {
			return cty.NilVal, fmt.Errorf("expected 1 int, got %d %s values", p.Len(), p.Storage)
		}
		n := p.Ints[0]
		switch spec.Kind {
		case KindToggle:
			return cty.BoolVal(n != 0), nil
		case KindChoice:
			if n < 0 || n >= len(spec.Choices) {
				return cty.NilVal, fmt.Errorf("choice index %d out of range", n)
			}
			return cty.StringVal(spec.Choices[n]), nil
		}
		return cty.NumberIntVal(int64(n)), nil

	case KindFloat:
		if p.Storage != engine.ParmFloat || len(p.Floats) != 1 {
			return cty.NilVal, fmt.Errorf("expected 1 float, got %d %s values", p.Len(), p.Storage)
		}
		return cty.NumberFloatVal(p.Floats[0]), nil

	case KindString:
		if p.Storage != engine.ParmString || len(p.Strings) != 1 {
			return cty.NilVal, fmt.Errorf("expected 1 string, got %d %s values", p.Len(), p.Storage)
		}
		return cty.StringVal(p.Strings[0]), nil

	case KindVector, KindColor:
		want := spec.components()
		if p.Storage != engine.ParmFloat || len(p.Floats) != want {
			return cty.NilVal, fmt.Errorf("expected %d floats, got %d %s values", want, p.Len(), p.Storage)
		}
		elems := make([]cty.Value, want)
		for i, f := range p.Floats {
			elems[i] = cty.NumberFloatVal(f)
		}
		return cty.ListVal(elems), nil

	case KindRamp:
		if p.Storage != engine.ParmFloat || len(p.Floats)%3 != 0 {
			return cty.NilVal, fmt.Errorf("ramp expects float triples, got %d %s values", p.Len(), p.Storage)
		}
		keys := make([]RampKey, 0, len(p.Floats)/3)
		for i := 0; i < len(p.Floats); i += 3 {
			keys = append(keys, RampKey{
				Pos:    p.Floats[i],
				Value:  p.Floats[i+1],
				Interp: interpolationFromEngine(p.Floats[i+2]),
			})
		}
		return encodeRamp(keys), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported kind %q", spec.Kind)
}

func choiceIndex(spec Spec, v cty.Value) (int, error) {
	if v.Type().Equals(cty.Number) {
		f, _ := v.AsBigFloat().Float64()
		idx := int(f)
		if float64(idx) != f || idx < 0 || idx >= len(spec.Choices) {
			return 0, fmt.Errorf("choice index %v out of range", f)
		}
		return idx, nil
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return 0, err
	}
	token := s.AsString()
	idx := slices.Index(spec.Choices, token)
	if idx < 0 {
		return 0, fmt.Errorf("unknown choice %q", token)
	}
	return idx, nil
}

func toFloat(v cty.Value) (float64, error) {
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, err
	}
	if n.IsNull() {
		return 0, fmt.Errorf("value is null")
	}
	f, _ := n.AsBigFloat().Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value is not a finite number")
	}
	return f, nil
}

func toFloats(v cty.Value) ([]float64, error) {
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return nil, fmt.Errorf("expected a list of numbers, got %s", ty.FriendlyName())
	}
	out := make([]float64, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			return nil, fmt.Errorf("list element %d is null", len(out))
		}
		f, err := toFloat(elem)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", len(out), err)
		}
		out = append(out, f)
	}
	return out, nil
}
