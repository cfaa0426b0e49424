package driver

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when an update targets an unknown record id.
var ErrNotFound = eris.New("record not found")

// Document is a stored record as the backend sees it. The key "_id" holds
// the record id; every other key is owned by whoever writes it.
type Document map[string]any

// ID returns the document's record id, or "".
func (d Document) ID() string {
	id, _ := d[KeyID].(string)
	return id
}

const (
	KeyID              = "_id"
	KeyClassification  = "classification"
	KeyExtractedFields = "extractedKeyfields"
	KeyIsDuplicate     = "isDuplicate"
)

// Filter selects documents. Zero values do not restrict.
type Filter struct {
	HasExtractedFields bool
	ExcludeDuplicates  bool
	Classification     string
}

// Match applies the filter to one document.
func (f Filter) Match(d Document) bool {
	if f.HasExtractedFields && d[KeyExtractedFields] == nil {
		return false
	}
	if f.ExcludeDuplicates {
		if dup, _ := d[KeyIsDuplicate].(bool); dup {
			return false
		}
	}
	if f.Classification != "" {
		if c, _ := d[KeyClassification].(string); c != f.Classification {
			return false
		}
	}
	return true
}

// Repository persists records. Implementations return documents from
// FetchAll in ingestion order, which is the order the pipeline relies on.
type Repository interface {
	FetchAll(ctx context.Context, f Filter) ([]Document, error)
	// UpdatePartial merges set into the stored document; a nil value removes
	// the key. Other keys are left alone.
	UpdatePartial(ctx context.Context, id string, set map[string]any) error
	// Upsert inserts the document or merges its keys into an existing one.
	Upsert(ctx context.Context, d Document) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

func merge(dst Document, set map[string]any) {
	for k, v := range set {
		if k == KeyID {
			continue
		}
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}
