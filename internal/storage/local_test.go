package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalProviderSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := NewLocalProvider(dir)
	require.NoError(t, err)

	err = p.Save(context.Background(), "snapshots/amazon/1.html", []byte("<html/>"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "snapshots", "amazon", "1.html"))
	require.NoError(t, err)
	require.Equal(t, []byte("<html/>"), got)
}

func TestLocalProviderRejectsTraversal(t *testing.T) {
	t.Parallel()

	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	err = p.Save(context.Background(), "../escape.html", []byte("x"))
	require.Error(t, err)
}

func TestLocalProviderCreatesBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "snapshots")
	_, err := NewLocalProvider(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestMemoryProvider(t *testing.T) {
	t.Parallel()

	p := NewMemoryProvider()
	require.NoError(t, p.Save(context.Background(), "a", []byte("one")))
	b, ok := p.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("one"), b)
	require.Equal(t, 1, p.Len())
}
