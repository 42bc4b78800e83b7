package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/slate/iox"
	"github.com/justapithecus/slate/notebook"
	"github.com/justapithecus/slate/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(iox.CloseFunc(s))
	return s
}

func sampleNotebook(path string) *notebook.Notebook {
	return &notebook.Notebook{
		Path: path,
		Name: "demo",
		Cells: []types.Cell{
			{ID: "c1", Kind: types.CellKindMarkdown, Source: "# Title"},
			{
				ID:     "c2",
				Kind:   types.CellKindCode,
				Source: "console.log(1)",
				Output: &types.CellOutput{Stream: types.StreamStdout, Data: "1"},
			},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleNotebook("nb/demo.json")))

	rec, err := s.Get(ctx, "nb/demo.json")
	require.NoError(t, err)
	assert.Equal(t, "demo", rec.Name)
	require.Len(t, rec.Cells, 2)
	require.NotNil(t, rec.Cells[1].Output)
	assert.Equal(t, "1", rec.Cells[1].Output.Data)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestSave_UpsertsByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nb := sampleNotebook("nb/demo.json")
	require.NoError(t, s.Save(ctx, nb))

	nb.Name = "renamed"
	nb.Cells[1].Output = &types.CellOutput{Stream: types.StreamStdout, Data: "2"}
	require.NoError(t, s.Save(ctx, nb))

	rec, err := s.Get(ctx, "nb/demo.json")
	require.NoError(t, err)
	assert.Equal(t, "renamed", rec.Name)
	assert.Equal(t, "2", rec.Cells[1].Output.Data)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSave_RequiresPath(t *testing.T) {
	s := newTestStore(t)

	nb := sampleNotebook("")
	err := s.Save(context.Background(), nb)
	assert.ErrorContains(t, err, "no path")
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAll_Empty(t *testing.T) {
	s := newTestStore(t)

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleNotebook("nb/demo.json")))
	require.NoError(t, s.Delete(ctx, "nb/demo.json"))

	_, err := s.Get(ctx, "nb/demo.json")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Delete(ctx, "nb/demo.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExistsUnder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleNotebook("projects/alpha/demo.json")))
	require.NoError(t, s.Save(ctx, sampleNotebook("projects/beta/demo.json")))

	ok, err := s.ExistsUnder(ctx, "projects/alpha/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExistsUnder(ctx, "projects/gamma/")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsUnder_WildcardsAreLiteral(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleNotebook("projects/alpha/demo.json")))
	require.NoError(t, s.Save(ctx, sampleNotebook("pro_jects/100%/demo.json")))

	// A wildcard prefix must not match everything.
	ok, err := s.ExistsUnder(ctx, "%")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ExistsUnder(ctx, "pro_ects/")
	require.NoError(t, err)
	assert.False(t, ok)

	// Literal % and _ in stored paths still match themselves.
	ok, err = s.ExistsUnder(ctx, "pro_jects/100%/")
	require.NoError(t, err)
	assert.True(t, ok)
}
