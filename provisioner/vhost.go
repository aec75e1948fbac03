package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/store"
)

// VirtualHost provisions the web server configuration for the account's
// domain together with its persisted record, through the store's
// compensating transaction.
type VirtualHost struct {
	store   *store.Store
	adapter store.VhostAdapter
	account *LinuxAccount
	log     *slog.Logger
}

// NewVirtualHost builds the vhost provisioner. The account provisioner
// supplies the home directory convention for document roots.
func NewVirtualHost(s *store.Store, adapter store.VhostAdapter, account *LinuxAccount, log *slog.Logger) *VirtualHost {
	return &VirtualHost{store: s, adapter: adapter, account: account, log: log}
}

func (p *VirtualHost) Kind() interfaces.StepKind        { return interfaces.StepVirtualHost }
func (p *VirtualHost) Policy() interfaces.FailurePolicy { return interfaces.PolicyFatal }

// DocumentRoot returns the conventional docroot for a username.
func (p *VirtualHost) DocumentRoot(u interfaces.Username) string {
	return filepath.Join(p.account.Home(u), "public_html")
}

// Provision creates the vhost record and webserver configuration. A
// vhost already belonging to the same account is treated as success so
// retries converge; one owned by a different user is a hard conflict.
func (p *VirtualHost) Provision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	existing, err := p.store.GetVirtualHost(req.Domain)
	if err == nil {
		if existing.UserID == req.UserID {
			return fmt.Sprintf("virtual host for %s already present", req.Domain), nil
		}
		return "", &interfaces.ConflictError{Resource: "virtual host", Value: req.Domain.String()}
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return "", err
	}

	_, err = p.store.CreateVirtualHost(ctx, p.adapter, store.NewVirtualHost{
		Domain:        req.Domain,
		DocumentRoot:  p.DocumentRoot(req.Username),
		UserID:        req.UserID,
		LinuxUsername: req.Username,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("virtual host for %s created", req.Domain), nil
}

// Deprovision removes the webserver configuration and the record.
func (p *VirtualHost) Deprovision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	err := p.store.DeleteVirtualHost(ctx, p.adapter, req.Domain)
	if errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Sprintf("virtual host for %s already absent", req.Domain), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("virtual host for %s removed", req.Domain), nil
}
