package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func ptr(f float64) *float64 { return &f }

func TestNewSchema_Validation(t *testing.T) {
	tests := []struct {
		name    string
		specs   []Spec
		wantErr string
	}{
		{
			name:    "duplicate name",
			specs:   []Spec{{Name: "a", Kind: KindInt}, {Name: "a", Kind: KindFloat}},
			wantErr: "declared more than once",
		},
		{
			name:    "unknown kind",
			specs:   []Spec{{Name: "a", Kind: "matrix"}},
			wantErr: "unknown kind",
		},
		{
			name:    "choice without choices",
			specs:   []Spec{{Name: "a", Kind: KindChoice}},
			wantErr: "at least one choice",
		},
		{
			name:    "bounds on string",
			specs:   []Spec{{Name: "a", Kind: KindString, Min: ptr(0)}},
			wantErr: "only valid on numeric kinds",
		},
		{
			name:    "inverted bounds",
			specs:   []Spec{{Name: "a", Kind: KindFloat, Min: ptr(2), Max: ptr(1)}},
			wantErr: "greater than max",
		},
		{
			name:    "bad default",
			specs:   []Spec{{Name: "a", Kind: KindFloat, Default: cty.StringVal("wide")}},
			wantErr: "invalid default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.specs...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_DefaultsAndLookup(t *testing.T) {
	s, err := NewSchema(
		Spec{Name: "rad", Kind: KindFloat, Default: cty.NumberIntVal(1)},
		Spec{Name: "offset", Kind: KindVector},
		Spec{Name: "label", Kind: KindString},
	)
	require.NoError(t, err)

	offset, ok := s.Lookup("offset")
	require.True(t, ok)
	assert.Equal(t, 3, offset.Size, "vectors default to three components")

	defaults := s.Defaults()
	assert.Equal(t, []string{"rad"}, defaults.Names())
	assert.Equal(t, []string{"label", "offset", "rad"}, s.Names())
	assert.Equal(t, "rad", s.Specs()[0].Name, "declaration order is kept")
	assert.Equal(t, 3, s.Len())
}

func TestParseKindAndInterpolation(t *testing.T) {
	k, ok := ParseKind("ramp")
	assert.True(t, ok)
	assert.Equal(t, KindRamp, k)
	_, ok = ParseKind("number")
	assert.False(t, ok)

	i, ok := ParseInterpolation("b-spline")
	assert.True(t, ok)
	assert.Equal(t, InterpBSpline, i)

	i, ok = ParseInterpolation("smoothstep")
	assert.False(t, ok)
	assert.Equal(t, InterpLinear, i)
	assert.Equal(t, "linear", Interpolation(42).String())
}
