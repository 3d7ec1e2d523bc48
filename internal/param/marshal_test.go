package param

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Spec{Name: "rad", Kind: KindFloat, Min: ptr(0), Max: ptr(10)},
		Spec{Name: "divs", Kind: KindInt, Min: ptr(1), Max: ptr(64)},
		Spec{Name: "name", Kind: KindString},
		Spec{Name: "smooth", Kind: KindToggle},
		Spec{Name: "offset", Kind: KindVector, Size: 3, Min: ptr(-1), Max: ptr(1)},
		Spec{Name: "tint", Kind: KindColor},
		Spec{Name: "shape", Kind: KindChoice, Choices: []string{"round", "square", "star"}},
		Spec{Name: "profile", Kind: KindRamp},
	)
	require.NoError(t, err)
	return s
}

func numbers(fs ...float64) cty.Value {
	vals := make([]cty.Value, len(fs))
	for i, f := range fs {
		vals[i] = cty.NumberFloatVal(f)
	}
	return cty.ListVal(vals)
}

func rampVal(keys ...RampKey) cty.Value { return encodeRamp(keys) }

func TestMarshaller_RoundTripInBounds(t *testing.T) {
	ctx := context.Background()
	m := NewMarshaller(testSchema(t))

	snap := NewSnapshot(map[string]cty.Value{
		"rad":    cty.NumberFloatVal(2.5),
		"divs":   cty.NumberIntVal(12),
		"name":   cty.StringVal("boulder"),
		"smooth": cty.True,
		"offset": numbers(0.25, -0.5, 1),
		"tint":   numbers(1, 0.5, 0.25, 1),
		"shape":  cty.StringVal("star"),
		"profile": rampVal(
			RampKey{Pos: 0, Value: 0, Interp: InterpLinear},
			RampKey{Pos: 1, Value: 1, Interp: InterpBezier},
		),
	})

	set, report := m.ToEngine(ctx, snap)
	require.True(t, report.OK())
	assert.Empty(t, report.Clamped)

	assert.Equal(t, engine.IntParm(1), set["smooth"])
	assert.Equal(t, engine.IntParm(2), set["shape"])
	assert.Equal(t, engine.FloatParm(0, 0, 1, 1, 1, 4), set["profile"])

	back, report := m.FromEngine(ctx, set)
	require.True(t, report.OK())
	assert.True(t, snap.Equal(back), "round trip must preserve in-bound values")
}

func TestMarshaller_ClampsOutOfRange(t *testing.T) {
	ctx := context.Background()
	m := NewMarshaller(testSchema(t))

	snap := NewSnapshot(map[string]cty.Value{
		"rad":     cty.NumberFloatVal(12),
		"divs":    cty.NumberFloatVal(0.2),
		"offset":  numbers(2, 0, -3),
		"profile": rampVal(RampKey{Pos: -0.5, Value: 1, Interp: InterpConstant}),
	})

	set, report := m.ToEngine(ctx, snap)
	require.True(t, report.OK(), "clamping never drops a value")
	assert.ElementsMatch(t, []string{"rad", "divs", "offset", "profile"}, report.Clamped)

	assert.Equal(t, engine.FloatParm(10), set["rad"])
	assert.Equal(t, engine.IntParm(1), set["divs"])
	assert.Equal(t, engine.FloatParm(1, 0, -1), set["offset"])
	assert.Equal(t, engine.FloatParm(0, 1, 0), set["profile"])

	back, _ := m.FromEngine(ctx, set)
	rad, _ := back.Get("rad")
	assert.True(t, rad.RawEquals(cty.NumberFloatVal(10)))
}

func TestMarshaller_IntRoundsToNearest(t *testing.T) {
	m := NewMarshaller(testSchema(t))
	set, _ := m.ToEngine(context.Background(), NewSnapshot(map[string]cty.Value{
		"divs": cty.NumberFloatVal(6.6),
	}))
	assert.Equal(t, engine.IntParm(7), set["divs"])
}

func TestMarshaller_DropsIntOutsideEngineRange(t *testing.T) {
	s, err := NewSchema(Spec{Name: "seed", Kind: KindInt})
	require.NoError(t, err)
	m := NewMarshaller(s)

	for _, v := range []float64{1e20, -1e20, 2147483648} {
		set, report := m.ToEngine(context.Background(), NewSnapshot(map[string]cty.Value{
			"seed": cty.NumberFloatVal(v),
		}))
		assert.Empty(t, set, "%v", v)
		require.Len(t, report.Dropped, 1, "%v", v)
		assert.ErrorIs(t, report.Dropped[0], bridgeerr.ErrMarshal)
	}

	set, report := m.ToEngine(context.Background(), NewSnapshot(map[string]cty.Value{
		"seed": cty.NumberIntVal(2147483647),
	}))
	require.True(t, report.OK())
	assert.Equal(t, engine.IntParm(2147483647), set["seed"])
}

func TestDropped_KeepsDetailVerbatim(t *testing.T) {
	var e *bridgeerr.Error
	require.True(t, errors.As(dropped("to_engine", "pct", "100% off %d", nil), &e))
	assert.Equal(t, "100% off %d", e.Detail)
}

func TestMarshaller_DropsUnknownAndUnconvertible(t *testing.T) {
	ctx := context.Background()
	m := NewMarshaller(testSchema(t))

	snap := NewSnapshot(map[string]cty.Value{
		"rad":    cty.NumberIntVal(5),
		"foo":    cty.NumberIntVal(1),
		"shape":  cty.StringVal("hexagon"),
		"offset": numbers(1, 2),
		"smooth": cty.StringVal("perhaps"),
		"name":   cty.NullVal(cty.String),
	})

	set, report := m.ToEngine(ctx, snap)
	assert.Len(t, set, 1)
	assert.Equal(t, engine.FloatParm(5), set["rad"])
	require.Len(t, report.Dropped, 5)
	for _, err := range report.Dropped {
		assert.True(t, errors.Is(err, bridgeerr.ErrMarshal), "dropped values are marshal diagnostics: %v", err)
	}
	var first *bridgeerr.Error
	require.True(t, errors.As(report.Dropped[0], &first))
	assert.Equal(t, "foo", first.Param, "diagnostics come in name order")
}

func TestMarshaller_ColorAcceptsRGB(t *testing.T) {
	m := NewMarshaller(testSchema(t))
	set, report := m.ToEngine(context.Background(), NewSnapshot(map[string]cty.Value{
		"tint": cty.TupleVal([]cty.Value{cty.NumberFloatVal(0.1), cty.NumberFloatVal(0.2), cty.NumberFloatVal(0.3)}),
	}))
	require.True(t, report.OK())
	assert.Equal(t, engine.FloatParm(0.1, 0.2, 0.3, 1), set["tint"])
}

func TestMarshaller_ChoiceByIndexAndRampDefaults(t *testing.T) {
	m := NewMarshaller(testSchema(t))
	ramp := cty.TupleVal([]cty.Value{
		cty.ObjectVal(map[string]cty.Value{"pos": cty.NumberFloatVal(0.5), "value": cty.NumberIntVal(2)}),
		cty.ObjectVal(map[string]cty.Value{"pos": cty.NumberIntVal(1), "value": cty.NumberIntVal(3), "interp": cty.StringVal("wobble")}),
	})
	set, report := m.ToEngine(context.Background(), NewSnapshot(map[string]cty.Value{
		"shape":   cty.NumberIntVal(1),
		"profile": ramp,
	}))
	require.True(t, report.OK())
	assert.Equal(t, engine.IntParm(1), set["shape"])
	assert.Equal(t, engine.FloatParm(
		0.5, 2, float64(InterpMonotoneCubic),
		1, 3, float64(InterpLinear),
	), set["profile"])
}

func TestMarshaller_FromEngineDropsMismatches(t *testing.T) {
	m := NewMarshaller(testSchema(t))
	snap, report := m.FromEngine(context.Background(), engine.ParamSet{
		"rad":     engine.IntParm(3),
		"shape":   engine.IntParm(9),
		"profile": engine.FloatParm(0, 1),
		"extra":   engine.FloatParm(1),
		"name":    engine.StringParm("ok"),
	})
	assert.Len(t, report.Dropped, 4)
	assert.Equal(t, []string{"name"}, snap.Names())
}
