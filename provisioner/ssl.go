package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/store"
	"github.com/kingG4e/web-control-panel/sysexec"
)

// SSLConfig controls the ACME client invocation.
type SSLConfig struct {
	// CertbotCmd is the ACME client binary. Defaults to certbot.
	CertbotCmd string

	// ContactEmail is registered with the ACME account.
	ContactEmail string

	// Staging switches to the ACME staging environment.
	Staging bool
}

// letsEncryptLifetime is how long an issued certificate is valid.
const letsEncryptLifetime = 90 * 24 * time.Hour

// SSLCertificate obtains a TLS certificate for the account's domain via
// the ACME client and records every issuance attempt in the certificate
// log.
type SSLCertificate struct {
	cfg    SSLConfig
	store  *store.Store
	runner sysexec.Runner
	log    *slog.Logger
}

// NewSSLCertificate builds the certificate provisioner.
func NewSSLCertificate(cfg SSLConfig, s *store.Store, runner sysexec.Runner, log *slog.Logger) *SSLCertificate {
	if cfg.CertbotCmd == "" {
		cfg.CertbotCmd = "certbot"
	}
	return &SSLCertificate{cfg: cfg, store: s, runner: runner, log: log}
}

func (p *SSLCertificate) Kind() interfaces.StepKind        { return interfaces.StepSSLCertificate }
func (p *SSLCertificate) Policy() interfaces.FailurePolicy { return interfaces.PolicyFatal }

// Provision requests a certificate for the domain and its www alias.
// Both the attempt and its outcome land in the certificate log, so an
// operator can reconstruct issuance history per domain.
func (p *SSLCertificate) Provision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	vhost, err := p.store.GetVirtualHost(req.Domain)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", &interfaces.ValidationError{Field: "domain", Reason: "virtual host must exist before certificate issuance"}
		}
		return "", err
	}

	cert, err := p.store.EnsureCertificate(req.Domain)
	if err != nil {
		return "", err
	}

	if cert.Status == store.CertActive {
		return fmt.Sprintf("certificate for %s already active", req.Domain), nil
	}

	if !p.runner.LookPath(p.cfg.CertbotCmd) {
		issueErr := &interfaces.ExternalToolError{
			Tool: p.cfg.CertbotCmd,
			Err:  errors.New("tool not installed"),
		}
		p.appendLog(cert.ID, "issue", "failed", issueErr.Error())
		return "", issueErr
	}

	args := []string{
		"certonly",
		"--non-interactive",
		"--agree-tos",
		"--webroot", "-w", vhost.DocumentRoot,
		"-d", req.Domain.String(),
		"-d", "www." + req.Domain.String(),
	}
	if p.cfg.ContactEmail != "" {
		args = append(args, "-m", p.cfg.ContactEmail)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}
	if p.cfg.Staging {
		args = append(args, "--staging")
	}

	out, err := p.runner.Run(ctx, p.cfg.CertbotCmd, args...)
	if err != nil {
		issueErr := &interfaces.ExternalToolError{Tool: p.cfg.CertbotCmd, Err: fmt.Errorf("%w: %s", err, out)}
		p.appendLog(cert.ID, "issue", "failed", issueErr.Error())
		return "", issueErr
	}

	now := time.Now()
	expires := now.Add(letsEncryptLifetime)
	if err := p.store.SetCertificateStatus(cert.ID, store.CertActive, &now, &expires); err != nil {
		return "", err
	}
	p.appendLog(cert.ID, "issue", "success", "certificate issued")

	return fmt.Sprintf("certificate for %s issued", req.Domain), nil
}

// Deprovision revokes and deletes the certificate material. A domain
// without a certificate record is already done.
func (p *SSLCertificate) Deprovision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	cert, err := p.store.EnsureCertificate(req.Domain)
	if err != nil {
		return "", err
	}
	if cert.Status != store.CertActive {
		return fmt.Sprintf("no active certificate for %s", req.Domain), nil
	}

	if p.runner.LookPath(p.cfg.CertbotCmd) {
		out, err := p.runner.Run(ctx, p.cfg.CertbotCmd,
			"delete", "--non-interactive", "--cert-name", req.Domain.String())
		if err != nil {
			removeErr := &interfaces.ExternalToolError{Tool: p.cfg.CertbotCmd, Err: fmt.Errorf("%w: %s", err, out)}
			p.appendLog(cert.ID, "remove", "failed", removeErr.Error())
			return "", removeErr
		}
	}

	if err := p.store.SetCertificateStatus(cert.ID, store.CertRevoked, nil, nil); err != nil {
		return "", err
	}
	p.appendLog(cert.ID, "remove", "success", "certificate removed")

	return fmt.Sprintf("certificate for %s removed", req.Domain), nil
}

// appendLog records a certificate event. The log is advisory next to the
// step result, so append failures are logged rather than surfaced.
func (p *SSLCertificate) appendLog(certID uint, action, outcome, message string) {
	if err := p.store.AppendCertificateLog(certID, action, outcome, message); err != nil {
		p.log.Error("Failed to append certificate log entry", "err", err,
			slog.String("action", action))
	}
}
