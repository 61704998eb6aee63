package packageio

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// ErrSlugExists is returned by Import when the archive's slug is already
// installed and overwrite was not requested.
var ErrSlugExists = errors.New("packageio: agent slug already exists")

// ErrPathTraversal is returned when an archive entry's name contains ".."
// or starts with "/".
var ErrPathTraversal = errors.New("packageio: archive entry escapes package root")

const exportInfoName = "_export_info.json"

// PackageWriter writes files into an agent's unpacked source package.
// storage.Platform satisfies this structurally.
type PackageWriter interface {
	PutPackageFile(ctx context.Context, slug, relPath string, data []byte, contentType string) error
}

// PackageStore is the full read/write surface Import needs: PackageReader
// to detect an existing slug, PackageWriter to install the new one.
type PackageStore interface {
	PackageReader
	PackageWriter
}

// Importer installs agent package archives, refusing path traversal and
// (unless overwrite is requested) collisions with an already-installed
// slug, then re-validates what it installed.
type Importer struct {
	store     PackageStore
	validator *Validator
}

// NewImporter builds an Importer over store, gated by validator.
func NewImporter(store PackageStore, validator *Validator) *Importer {
	return &Importer{store: store, validator: validator}
}

// Import extracts archive, installs its files under the manifest's slug,
// and returns the installed slug plus the validator's report on the
// installed package. Extraction proceeds even if the report carries
// errors — callers MUST check result.Valid before treating the agent as
// deployable, mirroring the validator's role as the sole admission gate.
func (im *Importer) Import(ctx context.Context, archive []byte, overwrite bool) (string, *ValidationResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", nil, fmt.Errorf("packageio: opening archive: %w", err)
	}

	files := make(Files, len(zr.File))
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := checkSafePath(entry.Name); err != nil {
			return "", nil, fmt.Errorf("packageio: %q: %w", entry.Name, err)
		}
		if entry.Name == exportInfoName {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return "", nil, fmt.Errorf("packageio: opening %q: %w", entry.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", nil, fmt.Errorf("packageio: reading %q: %w", entry.Name, err)
		}
		files[entry.Name] = data
	}

	manifest, manifestErr := readManifest(files)
	if manifestErr != nil {
		return "", nil, fmt.Errorf("packageio: %w", manifestErr)
	}
	slug := manifest.Slug

	if !overwrite {
		existing, err := im.store.ListPackageFiles(ctx, slug)
		if err != nil {
			return "", nil, fmt.Errorf("packageio: checking for existing slug: %w", err)
		}
		if len(existing) > 0 {
			return "", nil, fmt.Errorf("%w: %q", ErrSlugExists, slug)
		}
	}

	for path, data := range files {
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := im.store.PutPackageFile(ctx, slug, path, data, contentType); err != nil {
			return "", nil, fmt.Errorf("packageio: installing %q: %w", path, err)
		}
	}

	result := im.validator.Validate(manifest, nil, files)
	return slug, result, nil
}

func checkSafePath(name string) error {
	if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return ErrPathTraversal
	}
	return nil
}
