package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// FileBackend stores artifacts on the local file system, one directory
// per artifact kind.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file archive backend rooted at baseDir. The
// per-kind subdirectories are created up front.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	for _, kind := range []interfaces.ArtifactKind{interfaces.AuditArtifact, interfaces.BackupArtifact} {
		if err := os.MkdirAll(filepath.Join(baseDir, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", kind, err)
		}
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Store writes the artifact under its content hash.
func (b *FileBackend) Store(ctx context.Context, data []byte, kind interfaces.ArtifactKind) (interfaces.ArchiveID, error) {
	id := interfaces.ArchiveID(sha256.Sum256(data))

	path := b.artifactPath(id, kind)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return id, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return id, fmt.Errorf("write artifact: %w", err)
	}

	b.log.Debug("Stored artifact in file backend",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return id, nil
}

// Fetch reads the artifact by its content hash.
func (b *FileBackend) Fetch(ctx context.Context, id interfaces.ArchiveID, kind interfaces.ArtifactKind) ([]byte, error) {
	path := b.artifactPath(id, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Available reports whether the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) artifactPath(id interfaces.ArchiveID, kind interfaces.ArtifactKind) string {
	return filepath.Join(b.baseDir, string(kind), fmt.Sprintf("%x", id))
}
