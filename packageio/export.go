package packageio

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/agentplatform/core/apitypes"
)

// ErrValidationFailed is returned by Export when the package does not pass
// the validator; the caller can inspect the accompanying *ValidationResult
// for the reasons.
var ErrValidationFailed = errors.New("packageio: agent package failed validation")

// ErrEmptyPackage is returned by Export when the slug has no package files
// to export.
var ErrEmptyPackage = errors.New("packageio: no package files for agent")

// PackageReader reads an agent's unpacked source package (manifest, backend
// entry point, prompt and frontend assets). storage.Platform satisfies this
// structurally.
type PackageReader interface {
	ListPackageFiles(ctx context.Context, slug string) ([]string, error)
	GetPackageFile(ctx context.Context, slug, relPath string) ([]byte, error)
}

// exportInfo is the `_export_info.json` envelope written into every
// archive: the manifest at the moment of export, plus the export
// timestamp.
type exportInfo struct {
	Manifest   apitypes.AgentManifest `json:"manifest"`
	ExportedAt time.Time              `json:"exported_at"`
}

// Exporter assembles agent package archives (spec §6's "Agent package
// archive format"), refusing to export anything that fails the validator.
type Exporter struct {
	reader    PackageReader
	validator *Validator
	now       func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithExportClock overrides the export timestamp source (tests only).
func WithExportClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) { e.now = now }
}

// NewExporter builds an Exporter over reader, gated by validator.
func NewExporter(reader PackageReader, validator *Validator, opts ...ExporterOption) *Exporter {
	e := &Exporter{reader: reader, validator: validator, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export reads slug's package files, validates them, and on success returns
// the zip archive bytes. On validation failure it returns ErrValidationFailed
// along with the ValidationResult describing what failed; no archive is
// produced.
func (e *Exporter) Export(ctx context.Context, slug string) ([]byte, *ValidationResult, error) {
	paths, err := e.reader.ListPackageFiles(ctx, slug)
	if err != nil {
		return nil, nil, fmt.Errorf("packageio: listing package files: %w", err)
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrEmptyPackage, slug)
	}

	files := make(Files, len(paths))
	for _, path := range paths {
		data, err := e.reader.GetPackageFile(ctx, slug, path)
		if err != nil {
			return nil, nil, fmt.Errorf("packageio: reading %q: %w", path, err)
		}
		files[path] = data
	}

	manifest, manifestErr := readManifest(files)
	result := e.validator.Validate(manifest, manifestErr, files)
	if !result.Valid {
		return nil, result, ErrValidationFailed
	}

	archive, err := buildArchive(files, manifest, e.now())
	if err != nil {
		return nil, result, err
	}
	return archive, result, nil
}

func buildArchive(files Files, manifest apitypes.AgentManifest, exportedAt time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for path, data := range files {
		if err := writeZipEntry(zw, path, data); err != nil {
			return nil, err
		}
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("packageio: marshaling manifest: %w", err)
	}
	if err := writeZipEntry(zw, "manifest.json", manifestData); err != nil {
		return nil, err
	}

	infoData, err := json.MarshalIndent(exportInfo{Manifest: manifest, ExportedAt: exportedAt}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("packageio: marshaling export info: %w", err)
	}
	if err := writeZipEntry(zw, "_export_info.json", infoData); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("packageio: closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("packageio: creating archive entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("packageio: writing archive entry %q: %w", name, err)
	}
	return nil
}

func readManifest(files Files) (apitypes.AgentManifest, error) {
	data, ok := files["manifest.json"]
	if !ok {
		data, ok = files["backend/manifest.json"]
	}
	if !ok {
		return apitypes.AgentManifest{}, errors.New("manifest.json missing (checked root and backend/)")
	}
	var manifest apitypes.AgentManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return apitypes.AgentManifest{}, fmt.Errorf("invalid manifest.json: %w", err)
	}
	return manifest, nil
}
