// Package watchlist loads reference faces and serves immutable snapshots of
// the watchlist to the matchers.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/storage"
	"gopkg.in/yaml.v3"
)

// ErrNoFace is the skip reason for reference images without a detectable face.
var ErrNoFace = errors.New("no face found in reference image")

// Reference names one reference image of a watchlisted person.
type Reference struct {
	Name   string
	Handle string // opaque key passed back to Load
}

// ReferenceProvider lists reference images and loads their bytes.
type ReferenceProvider interface {
	List(ctx context.Context) ([]Reference, error)
	Load(ctx context.Context, handle string) ([]byte, error)
}

// Manifest is the YAML watchlist file format.
type Manifest struct {
	Identities []ManifestIdentity `yaml:"identities"`
}

// ManifestIdentity is one person in the manifest with one or more images.
type ManifestIdentity struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Images      []string `yaml:"images"`
}

// ParseManifest decodes a manifest and validates that every identity has a name.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse watchlist manifest: %w", err)
	}
	for i, id := range m.Identities {
		if id.Name == "" {
			return nil, fmt.Errorf("watchlist manifest: identity %d has no name", i)
		}
	}
	return &m, nil
}

// ManifestProvider reads identities from a YAML manifest on disk and their
// images from a FileStore. The manifest is re-read on every List so edits
// take effect on the next reload.
type ManifestProvider struct {
	path  string
	files storage.FileStore
}

// NewManifestProvider creates a provider for the manifest at path.
func NewManifestProvider(path string, files storage.FileStore) *ManifestProvider {
	return &ManifestProvider{path: path, files: files}
}

// List returns one reference per manifest image, in file order.
func (p *ManifestProvider) List(_ context.Context) ([]Reference, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	var refs []Reference
	for _, id := range m.Identities {
		for _, img := range id.Images {
			refs = append(refs, Reference{Name: id.Name, Handle: img})
		}
	}
	return refs, nil
}

// Load reads the reference image from the file store.
func (p *ManifestProvider) Load(ctx context.Context, handle string) ([]byte, error) {
	return storage.ReadFile(ctx, p.files, handle)
}

// RepositoryProvider reads identities from the database and their images
// from a FileStore.
type RepositoryProvider struct {
	identities database.IdentityReader
	files      storage.FileStore
}

// NewRepositoryProvider creates a database-backed provider.
func NewRepositoryProvider(identities database.IdentityReader, files storage.FileStore) *RepositoryProvider {
	return &RepositoryProvider{identities: identities, files: files}
}

// List returns one reference per identity record.
func (p *RepositoryProvider) List(ctx context.Context) ([]Reference, error) {
	identities, err := p.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	refs := make([]Reference, 0, len(identities))
	for _, id := range identities {
		refs = append(refs, Reference{Name: id.Name, Handle: id.ImageKey})
	}
	return refs, nil
}

// Load reads the reference image from the file store.
func (p *RepositoryProvider) Load(ctx context.Context, handle string) ([]byte, error) {
	return storage.ReadFile(ctx, p.files, handle)
}

var (
	_ ReferenceProvider = (*ManifestProvider)(nil)
	_ ReferenceProvider = (*RepositoryProvider)(nil)
)
