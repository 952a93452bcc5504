// Package runs persists optimization runs as opaque input/output documents.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/factory"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

// ErrNotFound is returned by Get when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// ErrInvalidDocument is returned by Save when input or output is not JSON.
var ErrInvalidDocument = errors.New("run document must be valid JSON")

// Saved identifies a freshly stored run.
type Saved struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is a stored run as read back from a backend.
type Record struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
}

// Store persists runs. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, input, output json.RawMessage) (Saved, error)
	Get(ctx context.Context, id int64) (Record, error)
	Close() error
}

// CheckDocuments validates a pair of documents before a backend stores them.
func CheckDocuments(input, output json.RawMessage) error {
	if len(input) == 0 || !json.Valid(input) {
		return fmt.Errorf("%w: input", ErrInvalidDocument)
	}
	if len(output) == 0 || !json.Valid(output) {
		return fmt.Errorf("%w: output", ErrInvalidDocument)
	}
	return nil
}

// Persist stores the request of a run-and-dispatch call together with its
// schedule and outcomes.
func Persist(ctx context.Context, s Store, req model.OptimizationRequest, out model.RunOutput) (Saved, error) {
	in, err := json.Marshal(req)
	if err != nil {
		return Saved{}, fmt.Errorf("encode run input: %w", err)
	}
	o, err := json.Marshal(out)
	if err != nil {
		return Saved{}, fmt.Errorf("encode run output: %w", err)
	}
	return s.Save(ctx, in, o)
}

var backends = factory.NewRegistry[Store]()

// RegisterBackend makes a store backend available to Open.
func RegisterBackend(name string, f factory.Factory[Store]) error {
	return backends.Register(name, f)
}

// Backends lists the registered backend names.
func Backends() []string { return backends.Names() }

// Open creates the store selected by cfg.Type.
func Open(cfg factory.ModuleConfig) (Store, error) {
	s, err := backends.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Type, err)
	}
	return s, nil
}

func init() {
	_ = RegisterBackend("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
}
