package core

import (
	"context"
	"errors"

	"github.com/agenthands/intake/internal/core/model"
	"github.com/agenthands/intake/internal/driver"
	"github.com/agenthands/intake/internal/notify"
)

// flakyRepo wraps a MemoryRepository and fails chosen calls.
type flakyRepo struct {
	*driver.MemoryRepository
	FetchErr  error
	FailIDs   map[string]bool
	FailKey   string // only fail updates touching this key; "" fails all
	UpdateErr error
}

func newFlakyRepo() *flakyRepo {
	return &flakyRepo{
		MemoryRepository: driver.NewMemoryRepository(),
		FailIDs:          map[string]bool{},
		UpdateErr:        errors.New("write timeout"),
	}
}

func (r *flakyRepo) FetchAll(ctx context.Context, f driver.Filter) ([]driver.Document, error) {
	if r.FetchErr != nil {
		return nil, r.FetchErr
	}
	return r.MemoryRepository.FetchAll(ctx, f)
}

func (r *flakyRepo) UpdatePartial(ctx context.Context, id string, set map[string]any) error {
	if r.FailIDs[id] {
		if _, ok := set[r.FailKey]; r.FailKey == "" || ok {
			return r.UpdateErr
		}
	}
	return r.MemoryRepository.UpdatePartial(ctx, id, set)
}

type recordingNotifier struct {
	Events []notify.Event
	Err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, e notify.Event) error {
	n.Events = append(n.Events, e)
	return n.Err
}

type stubClassifier struct {
	Label      model.Label
	Confidence float64
	Err        error
	Texts      []string
}

func (c *stubClassifier) Classify(ctx context.Context, text string) (model.Label, float64, error) {
	c.Texts = append(c.Texts, text)
	if c.Err != nil {
		return "", 0, c.Err
	}
	return c.Label, c.Confidence, nil
}
