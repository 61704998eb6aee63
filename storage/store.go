// Package storage implements the scoped object-storage façade (spec C2): a
// prefix-enforced view over a shared, bucket-oriented object store. Agents
// never see real keys; every operation is resolved to
// {prefix}{cleaned_key} and a key that would escape the prefix is rejected.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrPathTraversal is returned when a key contains ".." or starts with "/".
var ErrPathTraversal = errors.New("storage: key escapes scope prefix")

// ErrNotFound is returned by ObjectStore.Get when the key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is the collaborator interface backing scoped storage (spec
// §6). The core never implements this itself; it assumes an adapter (MinIO,
// S3, GCS, etc.) satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Scoped is a prefix-restricted view over an ObjectStore. Every operation
// resolves its key argument to {prefix}{cleaned_key}; a key that would
// escape prefix is rejected before the underlying store is touched.
type Scoped struct {
	store  ObjectStore
	bucket string
	prefix string
}

// NewScoped returns a Scoped view rooted at prefix. prefix should end in
// "/"; callers typically obtain one of these via NewUserScope or
// NewWorkspaceScope rather than calling this directly.
func NewScoped(store ObjectStore, bucket, prefix string) *Scoped {
	return &Scoped{store: store, bucket: bucket, prefix: prefix}
}

// NewUserScope returns the scope for a (user, agent) pair:
// users/{userID}/agents/{agentSlug}/.
func NewUserScope(store ObjectStore, bucket, userID, agentSlug string) *Scoped {
	return NewScoped(store, bucket, "users/"+userID+"/agents/"+agentSlug+"/")
}

// NewWorkspaceScope returns the scope for a (workspace, agent) pair:
// workspaces/{workspaceID}/agents/{agentSlug}/. Used when a workspace is
// bound to the turn instead of an individual user.
func NewWorkspaceScope(store ObjectStore, bucket, workspaceID, agentSlug string) *Scoped {
	return NewScoped(store, bucket, "workspaces/"+workspaceID+"/agents/"+agentSlug+"/")
}

func (s *Scoped) resolve(key string) (string, error) {
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", ErrPathTraversal
	}
	return s.prefix + key, nil
}

// Put stores data under key, scoped to this view's prefix.
func (s *Scoped) Put(ctx context.Context, key string, data []byte, contentType string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, s.bucket, full, data, contentType)
}

// Get retrieves the data stored under key, scoped to this view's prefix.
func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, s.bucket, full)
}

// Delete removes key, scoped to this view's prefix.
func (s *Scoped) Delete(ctx context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, s.bucket, full)
}

// Exists reports whether key exists, scoped to this view's prefix.
func (s *Scoped) Exists(ctx context.Context, key string) (bool, error) {
	full, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	return s.store.Exists(ctx, s.bucket, full)
}

// List returns keys under subPrefix (relative to this view's prefix), with
// the view's prefix stripped back off so callers never see the real path.
func (s *Scoped) List(ctx context.Context, subPrefix string) ([]string, error) {
	full, err := s.resolve(subPrefix)
	if err != nil {
		return nil, err
	}
	keys, err := s.store.List(ctx, s.bucket, full)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix))
	}
	return out, nil
}

// Platform is the system-wide view used for exports and shared resources
// (platform/...). It is never handed to agents.
type Platform struct {
	scoped *Scoped
}

// NewPlatform returns the platform-wide storage view.
func NewPlatform(store ObjectStore, bucket string) *Platform {
	return &Platform{scoped: NewScoped(store, bucket, "platform/")}
}

// PutExport stores an agent export archive under platform/agents/exports/.
func (p *Platform) PutExport(ctx context.Context, filename string, data []byte) (string, error) {
	key := "agents/exports/" + filename
	if err := p.scoped.Put(ctx, key, data, "application/zip"); err != nil {
		return "", err
	}
	return p.scoped.prefix + key, nil
}

// GetExport retrieves a previously stored export archive.
func (p *Platform) GetExport(ctx context.Context, filename string) ([]byte, error) {
	return p.scoped.Get(ctx, "agents/exports/"+filename)
}

// ListExports lists available export archive filenames.
func (p *Platform) ListExports(ctx context.Context) ([]string, error) {
	keys, err := p.scoped.List(ctx, "agents/exports/")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, "agents/exports/"))
	}
	return out, nil
}

func packagePrefix(slug string) string { return "agents/packages/" + slug + "/" }

// PutPackageFile stores a single file of an agent's unpacked source package
// (manifest, backend entry point, prompt and frontend assets) under
// platform/agents/packages/{slug}/{relPath}.
func (p *Platform) PutPackageFile(ctx context.Context, slug, relPath string, data []byte, contentType string) error {
	return p.scoped.Put(ctx, packagePrefix(slug)+relPath, data, contentType)
}

// GetPackageFile retrieves a single file of an agent's unpacked source
// package.
func (p *Platform) GetPackageFile(ctx context.Context, slug, relPath string) ([]byte, error) {
	return p.scoped.Get(ctx, packagePrefix(slug)+relPath)
}

// ListPackageFiles lists the relative paths of every file stored for an
// agent's unpacked source package.
func (p *Platform) ListPackageFiles(ctx context.Context, slug string) ([]string, error) {
	keys, err := p.scoped.List(ctx, packagePrefix(slug))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, packagePrefix(slug)))
	}
	return out, nil
}

// DeletePackageFile removes a single file from an agent's unpacked source
// package.
func (p *Platform) DeletePackageFile(ctx context.Context, slug, relPath string) error {
	return p.scoped.Delete(ctx, packagePrefix(slug)+relPath)
}
