package store

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/webserver"
)

// VhostAdapter is the external webserver configuration surface needed by
// the virtual host transaction.
type VhostAdapter interface {
	WriteVhost(ctx context.Context, cfg webserver.VhostConfig) error
	RemoveVhost(ctx context.Context, domain interfaces.Domain, slot int) error
}

// NewVirtualHost is the creation payload for a virtual host.
type NewVirtualHost struct {
	Domain        interfaces.Domain
	DocumentRoot  string
	Slot          int
	UserID        uint
	LinuxUsername interfaces.Username
}

// CreateVirtualHost creates the external webserver configuration and the
// persisted record as one logical operation.
//
// The external side effect runs first; the database record is only
// written if it succeeds. If persistence then fails (for example a
// duplicate domain), the external configuration is removed again before
// the error is surfaced, so no orphaned configuration remains.
func (s *Store) CreateVirtualHost(ctx context.Context, adapter VhostAdapter, req NewVirtualHost) (*VirtualHost, error) {
	if err := req.Domain.Validate(); err != nil {
		return nil, err
	}
	if req.DocumentRoot == "" {
		return nil, &interfaces.ValidationError{Field: "document_root", Reason: "must not be empty"}
	}

	// Reject an obvious duplicate before touching the web server. The
	// unique constraint below remains the authority under concurrency.
	var count int64
	if err := s.db.Model(&VirtualHost{}).Where("domain = ?", req.Domain.String()).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &interfaces.ConflictError{Resource: "virtual host", Value: req.Domain.String()}
	}

	cfg := webserver.VhostConfig{
		Domain:       req.Domain,
		DocumentRoot: req.DocumentRoot,
		Slot:         req.Slot,
		Username:     req.LinuxUsername,
	}
	if err := adapter.WriteVhost(ctx, cfg); err != nil {
		return nil, err
	}

	record := &VirtualHost{
		Domain:        req.Domain.String(),
		DocumentRoot:  req.DocumentRoot,
		Slot:          req.Slot,
		UserID:        req.UserID,
		LinuxUsername: req.LinuxUsername.String(),
	}
	if err := s.db.Create(record).Error; err != nil {
		// Compensating delete: the configuration was written but the
		// record cannot exist, so undo the external side effect.
		if rmErr := adapter.RemoveVhost(ctx, req.Domain, req.Slot); rmErr != nil {
			s.log.Error("Failed to remove webserver config after persistence failure; manual cleanup required",
				"err", rmErr,
				slog.String("domain", req.Domain.String()))
		}
		return nil, translateErr(err, "virtual host", req.Domain.String())
	}

	return record, nil
}

// GetVirtualHost loads a virtual host by domain.
func (s *Store) GetVirtualHost(domain interfaces.Domain) (*VirtualHost, error) {
	var record VirtualHost
	err := s.db.Where("domain = ?", domain.String()).First(&record).Error
	if err != nil {
		return nil, translateErr(err, "virtual host", domain.String())
	}
	return &record, nil
}

// DeleteVirtualHost removes the external configuration first, then the
// database row. If external removal fails the row is kept and the error
// surfaced: the record must never disappear while its configuration
// still exists.
func (s *Store) DeleteVirtualHost(ctx context.Context, adapter VhostAdapter, domain interfaces.Domain) error {
	record, err := s.GetVirtualHost(domain)
	if err != nil {
		return err
	}

	if err := adapter.RemoveVhost(ctx, domain, record.Slot); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// Mail domains owned by this vhost go with it; the external mail
		// system cascade is the mail provisioner's deprovision concern.
		var mailDomains []EmailDomain
		if err := tx.Where("virtual_host_id = ?", record.ID).Find(&mailDomains).Error; err != nil {
			return err
		}
		for _, md := range mailDomains {
			if err := tx.Where("email_domain_id = ?", md.ID).Delete(&EmailAccount{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("virtual_host_id = ?", record.ID).Delete(&EmailDomain{}).Error; err != nil {
			return err
		}
		return tx.Delete(&VirtualHost{}, record.ID).Error
	})
}
