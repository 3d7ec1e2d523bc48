package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/param"
	"github.com/specialistvlad/cookbridge/internal/resultstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newTestRegistry(opts ...Option) *Registry {
	return New(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func rock(id string) AssetInstance {
	return AssetInstance{
		ID:         id,
		Definition: "rock",
		Params:     param.NewSnapshot(map[string]cty.Value{"rad": cty.NumberIntVal(5)}),
	}
}

func mesh(n int) *geometry.Mesh {
	m := &geometry.Mesh{}
	for i := 0; i < n; i++ {
		m.Indices = append(m.Indices, 0, 1, 2)
	}
	return m
}

func TestRegistry_RegisterGetList(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	got, err := r.Register(ctx, rock("b"))
	require.NoError(t, err)
	assert.True(t, got.Dirty)
	assert.Equal(t, fixedNow, got.PlacedAt)
	assert.Nil(t, got.Mesh())

	_, err = r.Register(ctx, rock("a"))
	require.NoError(t, err)

	_, err = r.Register(ctx, rock("a"))
	assert.ErrorIs(t, err, ErrDuplicateInstance)

	_, err = r.Register(ctx, AssetInstance{})
	assert.Error(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, []string{"a", "b"}, r.ByDefinition("rock"))
	assert.Empty(t, r.ByDefinition("tree"))
}

func TestRegistry_UpdateResultKeepsLastSuccessOnFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)

	require.NoError(t, r.UpdateResult(ctx, "rock-1", Success(1, mesh(4), param.Snapshot{})))
	require.NoError(t, r.UpdateResult(ctx, "rock-1", Failure(2, errors.New("cook exploded"))))

	a, ok := r.Get("rock-1")
	require.True(t, ok)
	require.NotNil(t, a.LastSuccess)
	assert.Equal(t, uint64(1), a.LastSuccess.Seq)
	assert.Equal(t, 4, a.Mesh().TriangleCount())
	require.NotNil(t, a.LastFailure)
	assert.Equal(t, "cook exploded", a.LastFailure.Diagnostic())
	assert.Equal(t, uint64(2), a.AppliedSeq)

	require.NoError(t, r.UpdateResult(ctx, "rock-1", Success(3, mesh(1), param.Snapshot{})))
	a, _ = r.Get("rock-1")
	assert.Nil(t, a.LastFailure, "a success clears the failure")
	assert.Equal(t, 1, a.Mesh().TriangleCount())
}

func TestRegistry_StaleResultRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)

	require.NoError(t, r.UpdateResult(ctx, "rock-1", Success(5, mesh(2), param.Snapshot{})))
	err = r.UpdateResult(ctx, "rock-1", Success(4, mesh(9), param.Snapshot{}))
	assert.ErrorIs(t, err, ErrStale)

	a, _ := r.Get("rock-1")
	assert.Equal(t, 2, a.Mesh().TriangleCount())
	assert.Equal(t, uint64(5), a.AppliedSeq)
}

func TestRegistry_CancelledIsDiscarded(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)
	require.NoError(t, r.UpdateResult(ctx, "rock-1", Success(1, mesh(2), param.Snapshot{})))

	require.NoError(t, r.UpdateResult(ctx, "rock-1", Cancelled(2)))
	a, _ := r.Get("rock-1")
	assert.Equal(t, uint64(1), a.AppliedSeq)
	assert.Nil(t, a.LastFailure)
	assert.Equal(t, 2, a.Mesh().TriangleCount())
}

func TestRegistry_UnknownInstance(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	assert.ErrorIs(t, r.UpdateResult(ctx, "ghost", Success(1, nil, param.Snapshot{})), ErrUnknownInstance)
	assert.ErrorIs(t, r.SetParameters("ghost", param.Snapshot{}), ErrUnknownInstance)
	assert.ErrorIs(t, r.MarkDirty("ghost", true), ErrUnknownInstance)
	assert.False(t, r.Unregister(ctx, "ghost"))
	_, ok := r.Get("ghost")
	assert.False(t, ok)
}

func TestRegistry_UnregisterThenLateResult(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)

	assert.True(t, r.Unregister(ctx, "rock-1"))
	assert.ErrorIs(t, r.UpdateResult(ctx, "rock-1", Success(1, mesh(1), param.Snapshot{})), ErrUnknownInstance)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SetParametersAndDirty(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)

	next := param.NewSnapshot(map[string]cty.Value{"rad": cty.NumberIntVal(7)})
	require.NoError(t, r.SetParameters("rock-1", next))
	require.NoError(t, r.MarkDirty("rock-1", false))

	a, _ := r.Get("rock-1")
	assert.True(t, a.Params.Equal(next))
	assert.False(t, a.Dirty)
}

func TestRegistry_StoreSeedsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := resultstore.NewMemory()
	r := newTestRegistry(WithStore(store))

	_, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)
	out := param.NewSnapshot(map[string]cty.Value{"rad": cty.NumberIntVal(5)})
	require.NoError(t, r.UpdateResult(ctx, "rock-1", Success(1, mesh(3), out)))
	require.NoError(t, r.UpdateResult(ctx, "rock-1", Failure(2, errors.New("boom"))))

	rec, ok, err := store.Load(ctx, "rock-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), rec.Seq, "failures are never persisted")
	assert.Equal(t, "rock", rec.Definition)
	assert.Equal(t, fixedNow, rec.StoredAt)

	// A fresh registry, as after a restart, seeds from the store.
	r2 := newTestRegistry(WithStore(store))
	a, err := r2.Register(ctx, rock("rock-1"))
	require.NoError(t, err)
	assert.True(t, a.Restored)
	assert.Equal(t, 3, a.Mesh().TriangleCount())
	assert.Equal(t, uint64(0), a.AppliedSeq, "restored results never block the new session's sequence")

	require.NoError(t, r2.UpdateResult(ctx, "rock-1", Success(1, mesh(1), out)))
	a, _ = r2.Get("rock-1")
	assert.False(t, a.Restored)

	assert.True(t, r2.Unregister(ctx, "rock-1"))
	_, ok, err = store.Load(ctx, "rock-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_StoreIgnoresOtherDefinition(t *testing.T) {
	ctx := context.Background()
	store := resultstore.NewMemory()
	require.NoError(t, store.Save(ctx, resultstore.Record{InstanceID: "rock-1", Definition: "tree", Mesh: mesh(1)}))

	r := newTestRegistry(WithStore(store))
	a, err := r.Register(ctx, rock("rock-1"))
	require.NoError(t, err)
	assert.False(t, a.Restored)
	assert.Nil(t, a.Mesh())
}

func TestResultKind_String(t *testing.T) {
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "failure", ResultFailure.String())
	assert.Equal(t, "cancelled", ResultCancelled.String())
}
