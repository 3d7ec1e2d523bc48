package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamSet_CloneIsDeep(t *testing.T) {
	orig := ParamSet{"rad": FloatParm(5), "name": StringParm("rock")}
	clone := orig.Clone()
	clone["rad"].Floats[0] = 7

	assert.Equal(t, 5.0, orig["rad"].Floats[0])
	assert.Equal(t, 1, clone["name"].Len())
	assert.Nil(t, ParamSet(nil).Clone())
}

func TestPart_AttributeLookup(t *testing.T) {
	p := Part{
		PointCount: 3,
		FaceCounts: []int{3},
		VertexList: []int{0, 1, 2},
		Attributes: []Attribute{
			{Name: "P", Owner: OwnerPoint, Storage: StorageFloat, TupleSize: 3, Floats: make([]float64, 9)},
			{Name: "uv", Owner: OwnerVertex, Storage: StorageFloat, TupleSize: 2, Floats: make([]float64, 6)},
		},
	}

	a, ok := p.Attribute(OwnerPoint, "P")
	require.True(t, ok)
	assert.Equal(t, 9, a.Len())

	_, ok = p.Attribute(OwnerPoint, "uv")
	assert.False(t, ok)

	assert.Equal(t, 3, p.ElementCount(OwnerVertex))
	assert.Equal(t, 1, p.ElementCount(OwnerPrimitive))
	assert.Equal(t, 1, p.ElementCount(OwnerDetail))
	assert.Equal(t, 1, Geometry{Parts: []Part{p, {}}}.PrimitiveCount())
}

func TestConnectorFunc(t *testing.T) {
	called := false
	c := ConnectorFunc(func(ctx context.Context) (Engine, error) {
		called = true
		return nil, ErrSessionLost
	})
	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrSessionLost)
	assert.True(t, called)
	assert.True(t, CookFailure.Done())
	assert.False(t, CookPending.Done())
}
