package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// Factory creates archive backends from location URIs.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a backend factory.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// BackendFor creates an archive backend from a location URI.
//
// Supported schemes:
//   - file:// - local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
func (f *Factory) BackendFor(location interfaces.ArchiveLocation) (interfaces.ArchiveBackend, error) {
	u, err := url.Parse(string(location))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidArchiveLocation, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileBackend(u)
	case "s3":
		return f.createS3Backend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidArchiveLocation, u.Scheme)
	}
}

// MultiBackendFor creates a multi-backend from a list of location URIs.
// Locations that fail to construct are skipped with a warning; at least
// one must succeed.
func (f *Factory) MultiBackendFor(locations []interfaces.ArchiveLocation) (interfaces.ArchiveBackend, error) {
	backends := make([]interfaces.ArchiveBackend, 0, len(locations))
	for _, location := range locations {
		backend, err := f.BackendFor(location)
		if err != nil {
			f.log.Warn("Failed to create archive backend",
				"err", err,
				slog.String("location", string(location)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid archive backends created")
	}
	return NewMultiBackend(backends, f.log), nil
}

// createFileBackend handles file:///absolute/path locations.
func (f *Factory) createFileBackend(u *url.URL) (interfaces.ArchiveBackend, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in %s", interfaces.ErrInvalidArchiveLocation, u.String())
	}
	return NewFileBackend(path, f.log)
}

// createS3Backend handles s3://[KEY:SECRET@]bucket/prefix?region=...&endpoint=...
// locations. Without embedded credentials the SDK's default chain
// applies.
func (f *Factory) createS3Backend(u *url.URL) (interfaces.ArchiveBackend, error) {
	bucketName := u.Host
	if bucketName == "" {
		return nil, fmt.Errorf("%w: missing bucket in %s", interfaces.ErrInvalidArchiveLocation, u.String())
	}
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey, f.log)
}
