package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repositories(t *testing.T) map[string]Repository {
	sqliteRepo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close(context.Background()) })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func seed(t *testing.T, repo Repository) {
	ctx := context.Background()
	docs := []Document{
		{KeyID: "r1", "from": "a@x", KeyClassification: "request"},
		{KeyID: "r2", "from": "b@x", KeyClassification: "update"},
		{KeyID: "r3", "from": "c@x", KeyClassification: "request"},
	}
	for _, d := range docs {
		require.NoError(t, repo.Upsert(ctx, d))
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

func TestRepository_FetchInIngestionOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, repo)

			all, err := repo.FetchAll(context.Background(), Filter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"r1", "r2", "r3"}, ids(all))

			requests, err := repo.FetchAll(context.Background(), Filter{Classification: "request"})
			require.NoError(t, err)
			assert.Equal(t, []string{"r1", "r3"}, ids(requests))
		})
	}
}

func TestRepository_UpdatePartialKeepsOtherFields(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, repo)

			err := repo.UpdatePartial(ctx, "r1", map[string]any{
				KeyExtractedFields: map[string]any{"RequestType": "Billing Issue"},
				KeyIsDuplicate:     true,
			})
			require.NoError(t, err)

			docs, err := repo.FetchAll(ctx, Filter{HasExtractedFields: true})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "r1", docs[0].ID())
			assert.Equal(t, "a@x", docs[0]["from"])
			assert.Equal(t, "request", docs[0][KeyClassification])

			docs, err = repo.FetchAll(ctx, Filter{ExcludeDuplicates: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"r2", "r3"}, ids(docs))
		})
	}
}

func TestRepository_NilRemovesKey(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, repo)

			require.NoError(t, repo.UpdatePartial(ctx, "r3", map[string]any{"AssignedUser": map[string]any{"Name": "Bob"}}))
			require.NoError(t, repo.UpdatePartial(ctx, "r3", map[string]any{"AssignedUser": nil}))

			docs, err := repo.FetchAll(ctx, Filter{})
			require.NoError(t, err)
			assert.NotContains(t, docs[2], "AssignedUser")
		})
	}
}

func TestRepository_UpdateUnknownID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.UpdatePartial(context.Background(), "missing", map[string]any{"x": 1})
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrNotFound))
		})
	}
}

func TestRepository_UpsertMergesAndKeepsOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, repo)

			require.NoError(t, repo.UpdatePartial(ctx, "r1", map[string]any{KeyIsDuplicate: false}))
			require.NoError(t, repo.Upsert(ctx, Document{KeyID: "r1", "subject": "again"}))

			docs, err := repo.FetchAll(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"r1", "r2", "r3"}, ids(docs))
			assert.Equal(t, "again", docs[0]["subject"])
			assert.Equal(t, false, docs[0][KeyIsDuplicate])
		})
	}
}

func TestRepository_UpsertWithoutID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, repo.Upsert(context.Background(), Document{"subject": "x"}))
		})
	}
}

func TestFilter_Match(t *testing.T) {
	d := Document{KeyID: "x", KeyClassification: "request", KeyIsDuplicate: true}

	assert.True(t, Filter{}.Match(d))
	assert.True(t, Filter{Classification: "request"}.Match(d))
	assert.False(t, Filter{Classification: "update"}.Match(d))
	assert.False(t, Filter{ExcludeDuplicates: true}.Match(d))
	assert.False(t, Filter{HasExtractedFields: true}.Match(d))
}
