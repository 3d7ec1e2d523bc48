package resultstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/param"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

type wireRecord struct {
	InstanceID string          `json:"instance_id"`
	Definition string          `json:"definition"`
	Seq        uint64          `json:"seq"`
	ParamsType json.RawMessage `json:"params_type"`
	Params     json.RawMessage `json:"params"`
	Mesh       *geometry.Mesh  `json:"mesh"`
	StoredAt   time.Time       `json:"stored_at"`
}

func encode(r Record) ([]byte, error) {
	obj := r.Params.Object()
	ty, err := ctyjson.MarshalType(obj.Type())
	if err != nil {
		return nil, fmt.Errorf("encode parameter types: %w", err)
	}
	vals, err := ctyjson.Marshal(obj, obj.Type())
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return json.Marshal(wireRecord{
		InstanceID: r.InstanceID,
		Definition: r.Definition,
		Seq:        r.Seq,
		ParamsType: ty,
		Params:     vals,
		Mesh:       r.Mesh,
		StoredAt:   r.StoredAt,
	})
}

func decode(b []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	ty, err := ctyjson.UnmarshalType(w.ParamsType)
	if err != nil {
		return Record{}, fmt.Errorf("decode parameter types: %w", err)
	}
	obj, err := ctyjson.Unmarshal(w.Params, ty)
	if err != nil {
		return Record{}, fmt.Errorf("decode parameters: %w", err)
	}
	snap, err := param.SnapshotFromObject(obj)
	if err != nil {
		return Record{}, fmt.Errorf("decode parameters: %w", err)
	}
	return Record{
		InstanceID: w.InstanceID,
		Definition: w.Definition,
		Seq:        w.Seq,
		Params:     snap,
		Mesh:       w.Mesh,
		StoredAt:   w.StoredAt,
	}, nil
}
