package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Repository stores start forms produced by the webhook pipeline.
type Repository interface {
	Save(ctx context.Context, form *StartForm) (string, error)
	Get(ctx context.Context, id string) (*StartForm, error)
}

// InMemoryRepository keeps forms in process memory. Forms are copied on the
// way in and out so callers cannot mutate stored state.
type InMemoryRepository struct {
	mu    sync.RWMutex
	forms map[string][]byte
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{forms: make(map[string][]byte)}
}

// Save stores form under its id, replacing any earlier version.
func (r *InMemoryRepository) Save(ctx context.Context, form *StartForm) (string, error) {
	id, data, err := encodeForm(form)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.forms[id] = data
	r.mu.Unlock()
	return id, nil
}

// Get returns a copy of the stored form.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*StartForm, error) {
	r.mu.RLock()
	data, ok := r.forms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrFormNotFound
	}
	return decodeForm(data)
}

func encodeForm(form *StartForm) (string, []byte, error) {
	if form == nil || strings.TrimSpace(form.ID) == "" {
		return "", nil, ErrMissingFormID
	}
	data, err := json.Marshal(form)
	if err != nil {
		return "", nil, fmt.Errorf("intake: marshal form: %w", err)
	}
	return form.ID, data, nil
}

func decodeForm(data []byte) (*StartForm, error) {
	var form StartForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("intake: unmarshal form: %w", err)
	}
	return &form, nil
}
