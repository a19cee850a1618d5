package symbols

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGlobs = []string{"src/**/*.{ts,tsx}"}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestBuild_CollectsExportedSymbols(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"src/cart/CartItem.tsx":     "export interface CartItemProps { id: string; }\n",
		"src/cart/cart.service.ts":  "export class CartService { addItem() {} }\n",
		"src/internal/helpers.ts":   "interface Hidden { x: number; }\n",
		"src/types.d.ts":            "export interface Ambient { y: string; }\n",
		"node_modules/pkg/index.ts": "export interface Vendor { z: string; }\n",
		"README.md":                 "# not source\n",
	})

	idx, err := Build(context.Background(), root, Options{
		Globs:  testGlobs,
		Ignore: []string{"**/node_modules/**", "**/*.d.ts"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Files)
	require.Len(t, idx.Interfaces, 1)
	assert.Equal(t, "CartItemProps", idx.Interfaces[0].Name)
	assert.Equal(t, filepath.Join(root, "src", "cart", "CartItem.tsx"), idx.Interfaces[0].FilePath)
	require.Len(t, idx.Classes, 1)
	assert.Equal(t, "CartService", idx.Classes[0].Name)
	assert.Equal(t, 2, idx.Len())
	assert.NotEmpty(t, idx.Fingerprint)
}

func TestBuild_OverlappingGlobsDeduplicate(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"src/a.ts": "export interface A { a: string; }\n",
	})

	idx, err := Build(context.Background(), root, Options{
		Globs: []string{"src/**/*.ts", "**/*.ts"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Files)
	assert.Len(t, idx.Interfaces, 1)
}

func TestBuild_FingerprintTracksContent(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"src/a.ts": "export interface A { a: string; }\n",
		"src/b.ts": "export class B {}\n",
	})
	opts := Options{Globs: testGlobs}

	first, err := Build(context.Background(), root, opts)
	require.NoError(t, err)
	second, err := Build(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.ts"), []byte("export class B { run() {} }\n"), 0o644))
	third, err := Build(context.Background(), root, opts)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestBuild_EmptyWorkspace(t *testing.T) {
	t.Parallel()
	idx, err := Build(context.Background(), t.TempDir(), Options{Globs: testGlobs})
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Zero(t, idx.Files)
}

func TestBuild_InvalidRoot(t *testing.T) {
	t.Parallel()
	_, err := Build(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{Globs: testGlobs})
	assert.ErrorIs(t, err, ErrWorkspace)

	file := filepath.Join(t.TempDir(), "file.ts")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Build(context.Background(), file, Options{Globs: testGlobs})
	assert.ErrorIs(t, err, ErrWorkspace)
}

func TestBuild_BadGlob(t *testing.T) {
	t.Parallel()
	_, err := Build(context.Background(), t.TempDir(), Options{Globs: []string{"src/[.ts"}})
	assert.Error(t, err)
}

func TestBuilder_SkipsUnparsableFiles(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"src/bad.ts":  "x",
		"src/good.ts": "x",
	})

	b := NewBuilder(Options{Globs: testGlobs, Concurrency: 1})
	b.extract = func(_ context.Context, path string, _ []byte) ([]Descriptor, error) {
		if filepath.Base(path) == "bad.ts" {
			return nil, errors.New("syntax")
		}
		return []Descriptor{{Kind: KindClass, Name: "Good", FilePath: path, IsNamedExport: true}}, nil
	}

	idx, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Files)
	require.Len(t, idx.Classes, 1)
	assert.Equal(t, "Good", idx.Classes[0].Name)
}

func TestBuilder_CancelledContext(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"src/a.ts": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	b := NewBuilder(Options{Globs: testGlobs})
	b.extract = func(context.Context, string, []byte) ([]Descriptor, error) {
		cancel()
		return nil, context.Canceled
	}

	_, err := b.Build(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
