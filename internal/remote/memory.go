package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process stand-in for the remote database. It keeps the same
// JSON round-trip semantics and is used for local runs and tests.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]json.RawMessage
	seq  int

	// Fail, when set, is consulted before every operation; a non-nil result is returned as-is.
	Fail func(op, resource string) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]json.RawMessage{}}
}

func (m *Memory) fail(op, resource string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, resource)
}

// List implements the collection read.
func (m *Memory) List(_ context.Context, resource string, out any) error {
	if err := m.fail("list", resource); err != nil {
		return err
	}
	m.mu.Lock()
	coll := m.data[resource]
	if len(coll) == 0 {
		m.mu.Unlock()
		return nil
	}
	raw, err := json.Marshal(coll)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Create stores body under a generated id.
func (m *Memory) Create(_ context.Context, resource string, body any) (string, error) {
	if err := m.fail("create", resource); err != nil {
		return "", err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("-M%07d", m.seq)
	if m.data[resource] == nil {
		m.data[resource] = map[string]json.RawMessage{}
	}
	m.data[resource][id] = raw
	return id, nil
}

// Get decodes the record into out or returns ErrNotFound.
func (m *Memory) Get(_ context.Context, resource, id string, out any) error {
	if err := m.fail("get", resource); err != nil {
		return err
	}
	m.mu.Lock()
	raw, ok := m.data[resource][id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

// Put replaces the record.
func (m *Memory) Put(_ context.Context, resource, id string, body any) error {
	if err := m.fail("put", resource); err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[resource] == nil {
		m.data[resource] = map[string]json.RawMessage{}
	}
	m.data[resource][id] = raw
	return nil
}

// Delete removes the record.
func (m *Memory) Delete(_ context.Context, resource, id string) error {
	if err := m.fail("delete", resource); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[resource], id)
	return nil
}

// Ping reports the injected failure, if any.
func (m *Memory) Ping(_ context.Context, resource string) error {
	return m.fail("ping", resource)
}

// Len reports how many records a resource holds.
func (m *Memory) Len(resource string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data[resource])
}
