package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// MultiBackend aggregates several archive backends. Writes go to every
// reachable backend; reads return from the first backend that holds the
// artifact.
type MultiBackend struct {
	backends []interfaces.ArchiveBackend
	log      *slog.Logger
}

// NewMultiBackend creates a multi-backend over the given backends.
func NewMultiBackend(backends []interfaces.ArchiveBackend, log *slog.Logger) *MultiBackend {
	if log == nil {
		log = slog.Default()
	}
	return &MultiBackend{backends: backends, log: log}
}

// Store writes to every available backend. It succeeds if at least one
// backend accepted the artifact.
func (m *MultiBackend) Store(ctx context.Context, data []byte, kind interfaces.ArtifactKind) (interfaces.ArchiveID, error) {
	start := time.Now()
	var result interfaces.ArchiveID
	var success bool
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Archive backend unavailable", slog.String("backend", backend.Name()))
			continue
		}

		id, err := backend.Store(ctx, data, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store artifact",
				slog.String("backend", backend.Name()),
				"err", err)
			continue
		}
		if !success {
			result = id
			success = true
		}
	}

	if !success {
		m.log.Error("All archive backends failed to store artifact",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return result, fmt.Errorf("all archive backends failed: %v", errs)
	}
	return result, nil
}

// Fetch returns the artifact from the first backend that holds it.
func (m *MultiBackend) Fetch(ctx context.Context, id interfaces.ArchiveID, kind interfaces.ArtifactKind) ([]byte, error) {
	var errs []error
	idStr := fmt.Sprintf("%x", id[:8])

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		data, err := backend.Fetch(ctx, id, kind)
		if err == nil {
			return data, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	m.log.Error("All archive backends failed to fetch artifact",
		slog.String("artifact_id", idStr),
		slog.Int("failed_backends", len(errs)))
	return nil, fmt.Errorf("all archive backends failed to fetch %s: %v", idStr, errs)
}

// Available reports whether any backend is reachable.
func (m *MultiBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend.
func (m *MultiBackend) Name() string {
	return "multi-archive"
}

// LocationURI returns the combined URI of all backends.
func (m *MultiBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
