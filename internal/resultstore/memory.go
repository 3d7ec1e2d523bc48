package resultstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an ephemeral Store.
type Memory struct {
	records sync.Map // Key: instance id, Value: Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, r Record) error {
	m.records.Store(r.InstanceID, r)
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (Record, bool, error) {
	v, ok := m.records.Load(id)
	if !ok {
		return Record{}, false, nil
	}
	return v.(Record), true, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.records.Delete(id)
	return nil
}

func (m *Memory) IDs(_ context.Context) ([]string, error) {
	var ids []string
	m.records.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
