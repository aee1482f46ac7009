package resource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessorCopiesReferencedFiles(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(in, "textures"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "textures", "roof.jpg"), []byte("jpeg-bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "textures", "roof.jgw"), []byte("world-file"), 0644))

	p := New(context.Background(), in, out, 2, 4, nil)
	p.Submit(Texture, "textures/roof.jpg")
	require.NoError(t, p.Close())

	got, err := os.ReadFile(filepath.Join(out, "textures", "roof.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(got))

	world, err := os.ReadFile(filepath.Join(out, "textures", "roof.jgw"))
	require.NoError(t, err)
	require.Equal(t, "world-file", string(world))

	require.Equal(t, 2, p.Copied())
}

func TestProcessorSkipsSuppressedType(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "tex.png"), []byte("x"), 0644))

	p := New(context.Background(), in, out, 1, 1, nil)
	p.Skip(Texture)
	p.Submit(Texture, "tex.png")
	require.NoError(t, p.Close())

	_, err := os.Stat(filepath.Join(out, "tex.png"))
	require.True(t, os.IsNotExist(err))
}

func TestProcessorSurfacesCopyFailure(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	p := New(context.Background(), in, out, 2, 2, nil)
	p.Submit(LibraryObject, "missing/does-not-exist.obj")
	require.Error(t, p.Close())
}

func TestWorldFileCandidates(t *testing.T) {
	got := worldFileCandidates("/a/b/tex.jpg")
	require.Contains(t, got, "/a/b/tex.jpgw")
	require.Contains(t, got, "/a/b/tex.jgw")
}
