package resultstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func sampleRecord(id string) Record {
	return Record{
		InstanceID: id,
		Definition: "rock",
		Seq:        3,
		Params: param.NewSnapshot(map[string]cty.Value{
			"rad":   cty.NumberFloatVal(7.5),
			"shape": cty.StringVal("faceted"),
			"color": cty.ListVal([]cty.Value{cty.NumberIntVal(1), cty.NumberFloatVal(0.5), cty.Zero, cty.NumberIntVal(1)}),
		}),
		Mesh: &geometry.Mesh{
			Vertices: []geometry.Vertex{
				{Position: [3]float32{0, 0, 0}, Color: [4]float32{1, 1, 1, 1}},
				{Position: [3]float32{1, 0, 0}, Color: [4]float32{1, 1, 1, 1}},
				{Position: [3]float32{0, 1, 0}, Color: [4]float32{1, 1, 1, 1}},
			},
			Indices:   []uint32{0, 1, 2},
			Sections:  []geometry.Section{{MaterialSlot: 0, FirstIndex: 0, IndexCount: 3}},
			Materials: []string{""},
			Metadata: map[string]engine.Attribute{
				"tri/primitive/id": {Name: "id", Owner: engine.OwnerPrimitive, Storage: engine.StorageInt, TupleSize: 1, Ints: []int{42}},
			},
			BoundsMax: [3]float32{1, 1, 0},
		},
		StoredAt: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func assertSameRecord(t *testing.T, want, got Record) {
	t.Helper()
	assert.Equal(t, want.InstanceID, got.InstanceID)
	assert.Equal(t, want.Definition, got.Definition)
	assert.Equal(t, want.Seq, got.Seq)
	assert.True(t, want.StoredAt.Equal(got.StoredAt))
	assert.True(t, want.Params.Equal(got.Params), "params differ: %v vs %v", want.Params.Names(), got.Params.Names())
	if diff := cmp.Diff(want.Mesh, got.Mesh); diff != "" {
		t.Errorf("mesh mismatch (-want +got):\n%s", diff)
	}
}

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"badger": func(t *testing.T) Store {
			s, err := OpenBadger(BadgerConfig{InMemory: true})
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			_, ok, err := s.Load(ctx, "rock-1")
			require.NoError(t, err)
			assert.False(t, ok)

			want := sampleRecord("rock-1")
			require.NoError(t, s.Save(ctx, want))
			require.NoError(t, s.Save(ctx, sampleRecord("rock-2")))

			got, ok, err := s.Load(ctx, "rock-1")
			require.NoError(t, err)
			require.True(t, ok)
			assertSameRecord(t, want, got)

			ids, err := s.IDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"rock-1", "rock-2"}, ids)

			require.NoError(t, s.Delete(ctx, "rock-1"))
			require.NoError(t, s.Delete(ctx, "rock-1"), "deleting twice is fine")
			_, ok, err = s.Load(ctx, "rock-1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadger(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	want := sampleRecord("rock-1")
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Close())

	s, err = OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Load(ctx, "rock-1")
	require.NoError(t, err)
	require.True(t, ok)
	assertSameRecord(t, want, got)
}

func TestBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestCodec_EmptyParams(t *testing.T) {
	r := Record{InstanceID: "empty"}
	b, err := encode(r)
	require.NoError(t, err)

	got, err := decode(b)
	require.NoError(t, err)
	assert.Equal(t, "empty", got.InstanceID)
	assert.Equal(t, 0, got.Params.Len())
	assert.Nil(t, got.Mesh)
}

func TestCodec_Garbage(t *testing.T) {
	_, err := decode([]byte("{not json"))
	assert.Error(t, err)
}
