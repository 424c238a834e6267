// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package staticfiles gathers static assets into STATIC_ROOT and serves
// them from their source directories in debug mode.
package staticfiles

import (
	"context"
	"crypto/md5" // #nosec G501 -- content fingerprint, not a security boundary
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/fsutil"
	"github.com/ManuGH/sitekit/internal/log"
	"github.com/google/renameio/v2"
)

//go:embed assets
var assetsFS embed.FS

// ManifestName is the file written next to the collected assets.
const ManifestName = "staticfiles.json"

// Manifest maps logical asset paths to their hashed names.
type Manifest struct {
	Version string            `json:"version"`
	Paths   map[string]string `json:"paths"`
}

// Result summarizes a collect run.
type Result struct {
	Copied   int
	Manifest *Manifest
}

// Sources layers the configured static dirs over the embedded assets.
// Earlier dirs win when two layers carry the same path.
func Sources(dirs []string) fs.FS {
	return sources(dirs)
}

func sources(dirs []string) layered {
	layers := make([]fs.FS, 0, len(dirs)+1)
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			layers = append(layers, os.DirFS(dir))
		}
	}
	sub, err := fs.Sub(assetsFS, "assets")
	if err == nil {
		layers = append(layers, sub)
	}
	return layered(layers)
}

type layered []fs.FS

func (l layered) Open(name string) (fs.File, error) {
	for _, layer := range l {
		f, err := layer.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// files lists every asset path once, honoring layer precedence.
func (l layered) files() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, layer := range l {
		err := fs.WalkDir(layer, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

// Collect copies every asset into cfg.StaticRoot. With manifest storage a
// hashed copy of each file and the manifest are written as well.
func Collect(ctx context.Context, cfg config.StorageConfig) (Result, error) {
	logger := log.WithComponent("staticfiles")
	if cfg.StaticRoot == "" {
		return Result{}, errors.New("staticfiles: STATIC_ROOT is not set")
	}

	src := sources(cfg.StaticDirs)
	names, err := src.files()
	if err != nil {
		return Result{}, fmt.Errorf("staticfiles: listing sources: %w", err)
	}

	var manifest *Manifest
	if cfg.ManifestStorage {
		manifest = &Manifest{Version: "1.1", Paths: make(map[string]string, len(names))}
	}

	res := Result{Manifest: manifest}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		body, err := fs.ReadFile(src, name)
		if err != nil {
			return res, fmt.Errorf("staticfiles: reading %s: %w", name, err)
		}
		if err := writeAsset(cfg.StaticRoot, name, body); err != nil {
			return res, err
		}
		res.Copied++

		if manifest != nil {
			hashed := HashedName(name, body)
			if err := writeAsset(cfg.StaticRoot, hashed, body); err != nil {
				return res, err
			}
			manifest.Paths[name] = hashed
		}
	}

	if manifest != nil {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return res, fmt.Errorf("staticfiles: encoding manifest: %w", err)
		}
		if err := renameio.WriteFile(filepath.Join(cfg.StaticRoot, ManifestName), data, 0o644); err != nil {
			return res, fmt.Errorf("staticfiles: writing manifest: %w", err)
		}
	}

	logger.Info().
		Int("copied", res.Copied).
		Bool("manifest", manifest != nil).
		Str("static_root", cfg.StaticRoot).
		Msg("static files collected")
	return res, nil
}

func writeAsset(root, name string, body []byte) error {
	dst, err := fsutil.Confine(root, name)
	if err != nil {
		return fmt.Errorf("staticfiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("staticfiles: creating %s: %w", filepath.Dir(dst), err)
	}
	if err := renameio.WriteFile(dst, body, 0o644); err != nil {
		return fmt.Errorf("staticfiles: writing %s: %w", name, err)
	}
	return nil
}

// HashedName inserts a 12 hex digit content hash before the extension:
// css/site.css becomes css/site.<hash>.css.
func HashedName(name string, body []byte) string {
	sum := md5.Sum(body) // #nosec G401
	digest := hex.EncodeToString(sum[:])[:12]
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + digest + ext
}

// LoadManifest reads the manifest written by Collect.
func LoadManifest(staticRoot string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(staticRoot, ManifestName)) // #nosec G304 -- STATIC_ROOT is operator config
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(f, 16<<20)).Decode(&m); err != nil {
		return nil, fmt.Errorf("staticfiles: decoding manifest: %w", err)
	}
	return &m, nil
}

// URL resolves an asset to its public URL, using the hashed name when a
// manifest is present.
func (m *Manifest) URL(staticURL, name string) string {
	if m != nil {
		if hashed, ok := m.Paths[name]; ok {
			name = hashed
		}
	}
	return staticURL + name
}

// Handler serves assets straight from their source layers. Debug only.
func Handler(cfg config.StorageConfig) http.Handler {
	return http.StripPrefix(cfg.StaticURL, http.FileServerFS(Sources(cfg.StaticDirs)))
}
