package packageio_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/packageio"
	"github.com/agentplatform/core/storage"
	storagemem "github.com/agentplatform/core/storage/memory"
)

func buildTestArchive(t *testing.T, slug string) []byte {
	t.Helper()
	store := storagemem.New()
	platform := storage.NewPlatform(store, "agents")
	manifest := apitypes.AgentManifest{Slug: slug, Name: "Greeter"}
	seedPackage(t, platform, slug, manifest, validFiles())

	exporter := packageio.NewExporter(platform, packageio.NewValidator(nil, nil), packageio.WithExportClock(func() time.Time { return time.Unix(0, 0) }))
	archive, result, err := exporter.Export(context.Background(), slug)
	require.NoError(t, err)
	require.True(t, result.Valid)
	return archive
}

func TestImportInstallsPackageFiles(t *testing.T) {
	archive := buildTestArchive(t, "greeter")

	store := storagemem.New()
	platform := storage.NewPlatform(store, "agents")
	importer := packageio.NewImporter(platform, packageio.NewValidator(nil, nil))

	slug, result, err := importer.Import(context.Background(), archive, false)
	require.NoError(t, err)
	assert.Equal(t, "greeter", slug)
	require.True(t, result.Valid)

	installed, err := platform.ListPackageFiles(context.Background(), "greeter")
	require.NoError(t, err)
	assert.Contains(t, installed, "backend/agent.go")
	assert.Contains(t, installed, "backend/prompts/system.md")
	assert.Contains(t, installed, "frontend/index.tsx")
	assert.Contains(t, installed, "manifest.json")
	assert.NotContains(t, installed, "_export_info.json")
}

func TestImportRefusesSlugCollisionWithoutOverwrite(t *testing.T) {
	archive := buildTestArchive(t, "greeter")

	store := storagemem.New()
	platform := storage.NewPlatform(store, "agents")
	importer := packageio.NewImporter(platform, packageio.NewValidator(nil, nil))

	_, _, err := importer.Import(context.Background(), archive, false)
	require.NoError(t, err)

	_, _, err = importer.Import(context.Background(), archive, false)
	require.ErrorIs(t, err, packageio.ErrSlugExists)
}

func TestImportAllowsOverwrite(t *testing.T) {
	archive := buildTestArchive(t, "greeter")

	store := storagemem.New()
	platform := storage.NewPlatform(store, "agents")
	importer := packageio.NewImporter(platform, packageio.NewValidator(nil, nil))

	_, _, err := importer.Import(context.Background(), archive, false)
	require.NoError(t, err)

	_, result, err := importer.Import(context.Background(), archive, true)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestImportRejectsPathTraversal(t *testing.T) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	w, err := zw.Create("../evil.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	store := storagemem.New()
	platform := storage.NewPlatform(store, "agents")
	importer := packageio.NewImporter(platform, packageio.NewValidator(nil, nil))

	_, _, err = importer.Import(context.Background(), buf.Bytes(), false)
	require.ErrorIs(t, err, packageio.ErrPathTraversal)
}
