// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package staticfiles

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
}

func TestCollect_PlainCopy(t *testing.T) {
	srcDir, root := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "js/app.js", "console.log(1)")

	res, err := Collect(context.Background(), config.StorageConfig{
		StaticRoot: root,
		StaticDirs: []string{srcDir, filepath.Join(srcDir, "missing")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied, "project asset plus the embedded stylesheet")
	assert.Nil(t, res.Manifest)

	assert.FileExists(t, filepath.Join(root, "js", "app.js"))
	assert.FileExists(t, filepath.Join(root, "css", "site.css"))
	assert.NoFileExists(t, filepath.Join(root, ManifestName))
}

func TestCollect_ManifestStorage(t *testing.T) {
	srcDir, root := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "css/site.css", "body{}")

	res, err := Collect(context.Background(), config.StorageConfig{
		StaticRoot:      root,
		StaticDirs:      []string{srcDir},
		ManifestStorage: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Manifest)

	hashed := HashedName("css/site.css", []byte("body{}"))
	assert.Equal(t, hashed, res.Manifest.Paths["css/site.css"], "project dir overrides the embedded asset")

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(hashed)))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	loaded, err := LoadManifest(root)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.Paths, loaded.Paths)
	assert.Equal(t, "/static/"+hashed, loaded.URL("/static/", "css/site.css"))
	assert.Equal(t, "/static/img/logo.png", loaded.URL("/static/", "img/logo.png"))
}

func TestCollect_RequiresStaticRoot(t *testing.T) {
	_, err := Collect(context.Background(), config.StorageConfig{})
	assert.Error(t, err)
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, config.StorageConfig{StaticRoot: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashedName(t *testing.T) {
	a := HashedName("css/site.css", []byte("a"))
	b := HashedName("css/site.css", []byte("b"))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^css/site\.[0-9a-f]{12}\.css$`, a)
	assert.Regexp(t, `^LICENSE\.[0-9a-f]{12}$`, HashedName("LICENSE", []byte("x")))
}

func TestManifest_NilURL(t *testing.T) {
	var m *Manifest
	assert.Equal(t, "/static/css/site.css", m.URL("/static/", "css/site.css"))
}

func TestHandler_ServesSourceLayers(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "js/app.js", "console.log(1)")

	h := Handler(config.StorageConfig{StaticURL: "/static/", StaticDirs: []string{srcDir}})

	for path, want := range map[string]string{
		"/static/js/app.js":    "console.log(1)",
		"/static/css/site.css": "max-width",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		body, _ := io.ReadAll(rec.Body)
		assert.Contains(t, string(body), want)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/nope.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
