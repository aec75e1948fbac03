package interfaces

import (
	"context"
	"errors"
)

// ArchiveID is a SHA-256 content identifier for an archived artifact.
type ArchiveID [32]byte

// ArtifactKind partitions the archive namespace.
type ArtifactKind string

const (
	// AuditArtifact is an exported provisioning audit trail.
	AuditArtifact ArtifactKind = "audit"

	// BackupArtifact is a snapshot of a signup request taken before an
	// administrative purge.
	BackupArtifact ArtifactKind = "backup"
)

// ArchiveLocation is a backend URI, for example file:///var/lib/panel
// or s3://bucket/prefix?region=eu-west-1.
type ArchiveLocation string

// ErrArtifactNotFound is returned when no backend holds the artifact.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrInvalidArchiveLocation is returned for unparseable location URIs.
var ErrInvalidArchiveLocation = errors.New("invalid archive location URI")

// ArchiveBackend stores immutable artifacts addressed by content hash.
// Storing the same bytes twice yields the same identifier, so replays
// and retries are harmless.
type ArchiveBackend interface {
	// Store saves data and returns its content identifier.
	Store(ctx context.Context, data []byte, kind ArtifactKind) (ArchiveID, error)

	// Fetch retrieves data by identifier. Returns ErrArtifactNotFound if
	// this backend does not hold it.
	Fetch(ctx context.Context, id ArchiveID, kind ArtifactKind) ([]byte, error)

	// Available reports whether the backend is currently reachable.
	Available(ctx context.Context) bool

	// Name is a short unique identifier for logging.
	Name() string

	// LocationURI identifies the backend configuration.
	LocationURI() string
}
