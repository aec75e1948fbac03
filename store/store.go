// Package store implements persistence for the control panel on top of
// GORM: signup requests and their approval state machine, provisioned
// resource records, and the per-request provisioning audit trail.
//
// The relational engine is treated as an opaque transactional store with
// unique-constraint enforcement; unique violations surface as
// interfaces.ConflictError before any external side effect.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// Store wraps the database handle and the credential vault used to
// encrypt secrets before they reach a table.
type Store struct {
	db    *gorm.DB
	vault interfaces.CredentialVault
	log   *slog.Logger
}

// Open creates the database (and its parent directory) if needed, runs
// migrations, and returns a ready store. The path may be a file path or
// a sqlite DSN such as "file::memory:?cache=shared".
func Open(path string, cv interfaces.CredentialVault, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" && !isDSN(path) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&User{},
		&SignupRequest{},
		&EmailFeature{},
		&DatabaseFeature{},
		&VirtualHost{},
		&EmailDomain{},
		&EmailAccount{},
		&SSLCertificate{},
		&SSLCertificateLog{},
		&ProvisionLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, vault: cv, log: log}, nil
}

func isDSN(path string) bool {
	return len(path) > 5 && path[:5] == "file:"
}

// Vault exposes the credential vault for components that must decrypt
// stored tokens (the orchestrator).
func (s *Store) Vault() interfaces.CredentialVault {
	return s.vault
}

// translateErr maps persistence errors onto the shared error taxonomy.
func translateErr(err error, resource, value string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &interfaces.ConflictError{Resource: resource, Value: value}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return interfaces.ErrNotFound
	default:
		return err
	}
}
