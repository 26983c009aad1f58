package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z8n24/codexmonitor-go/internal/gitcore"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "workspaces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mkdir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Mkdir(dir, 0755))
	return dir
}

func TestAddAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dir := mkdir(t, "app")

	entry, err := s.Add(ctx, dir, "")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "app", entry.Name)
	assert.Equal(t, dir, entry.Path)

	got, err := s.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Name, got.Name)
	assert.Equal(t, entry.Path, got.Path)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))

	path, err := s.Path(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, dir, path)
}

func TestAddRejects(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dir := mkdir(t, "app")

	first, err := s.Add(ctx, dir, "App")
	require.NoError(t, err)
	_, err = s.Add(ctx, dir, "Again")
	assert.ErrorContains(t, err, "already registered as "+first.ID)

	_, err = s.Add(ctx, filepath.Join(dir, "missing"), "")
	assert.Error(t, err)

	file := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0644))
	_, err = s.Add(ctx, file, "")
	assert.ErrorContains(t, err, "not a directory")
}

func TestListOrderedByName(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	_, err = s.Add(ctx, mkdir(t, "b"), "beta")
	require.NoError(t, err)
	_, err = s.Add(ctx, mkdir(t, "a"), "alpha")
	require.NoError(t, err)

	entries, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "beta", entries[1].Name)
}

func TestRemove(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entry, err := s.Add(ctx, mkdir(t, "app"), "")
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, entry.ID))

	_, err = s.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, entry.ID), ErrNotFound)
}

func TestNotFoundMatchesGitcore(t *testing.T) {
	s := openStore(t)
	_, err := s.Path(context.Background(), "nope")
	assert.True(t, errors.Is(err, gitcore.ErrWorkspaceNotFound))
	assert.Contains(t, err.Error(), "nope")
}

func TestReopenKeepsEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "workspaces.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	entry, err := s.Add(context.Background(), mkdir(t, "app"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dbPath)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Path, got.Path)
}
