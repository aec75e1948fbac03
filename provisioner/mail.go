package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/store"
	"github.com/kingG4e/web-control-panel/sysexec"
)

// MailConfig locates the virtual map files consumed by the mail stack.
type MailConfig struct {
	// ConfigDir holds the virtual_domains, virtual_mailboxes and
	// virtual_passwd map files. Defaults to /etc/postfix/virtual.
	ConfigDir string

	// PostmapCmd is the command run after map changes so the MTA picks
	// them up. Empty disables it.
	PostmapCmd string
}

// MailDomain provisions the virtual mail domain and its mailboxes: map
// file entries for the mail stack plus the persisted account records.
type MailDomain struct {
	cfg    MailConfig
	store  *store.Store
	runner sysexec.Runner
	log    *slog.Logger
}

// NewMailDomain builds the mail provisioner.
func NewMailDomain(cfg MailConfig, s *store.Store, runner sysexec.Runner, log *slog.Logger) *MailDomain {
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = "/etc/postfix/virtual"
	}
	return &MailDomain{cfg: cfg, store: s, runner: runner, log: log}
}

func (p *MailDomain) Kind() interfaces.StepKind        { return interfaces.StepMailDomain }
func (p *MailDomain) Policy() interfaces.FailurePolicy { return interfaces.PolicyFatal }

func (p *MailDomain) domainsFile() string   { return filepath.Join(p.cfg.ConfigDir, "virtual_domains") }
func (p *MailDomain) mailboxesFile() string { return filepath.Join(p.cfg.ConfigDir, "virtual_mailboxes") }
func (p *MailDomain) passwdFile() string    { return filepath.Join(p.cfg.ConfigDir, "virtual_passwd") }

// Provision registers the mail domain and requested mailbox in the
// virtual map files and persists the account records. Entries already
// present are replaced in place, so retries converge.
func (p *MailDomain) Provision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	if req.Email == nil {
		return "", &interfaces.ValidationError{Field: "email", Reason: "no mailbox requested"}
	}
	if req.Email.Username == "" {
		return "", &interfaces.ValidationError{Field: "email.username", Reason: "must not be empty"}
	}
	if req.Email.Password == "" {
		return "", &interfaces.ValidationError{Field: "email.password", Reason: "decrypted password required"}
	}

	vhost, err := p.store.GetVirtualHost(req.Domain)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", &interfaces.ValidationError{Field: "domain", Reason: "virtual host must exist before mail"}
		}
		return "", err
	}

	if err := os.MkdirAll(p.cfg.ConfigDir, 0755); err != nil {
		return "", &interfaces.ExternalToolError{Tool: "mail", Err: fmt.Errorf("create config dir: %w", err)}
	}

	domain := req.Domain.String()
	address := req.Email.Username + "@" + domain

	// Dovecot verifies the BLF-CRYPT scheme natively, so the panel never
	// has to hand the mail stack a plaintext password.
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Email.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	if err := upsertMapLine(p.domainsFile(), domain, domain+"\tOK"); err != nil {
		return "", err
	}
	if err := upsertMapLine(p.mailboxesFile(), address, fmt.Sprintf("%s\t%s/%s/", address, domain, req.Email.Username)); err != nil {
		return "", err
	}
	if err := upsertMapLine(p.passwdFile(), address, fmt.Sprintf("%s:{BLF-CRYPT}%s", address, hash)); err != nil {
		return "", err
	}
	if err := p.postmap(ctx); err != nil {
		return "", err
	}

	mailDomain, err := p.store.EnsureEmailDomain(vhost.ID, req.Domain)
	if err != nil {
		return "", err
	}
	token, err := p.store.Vault().Encrypt([]byte(req.Email.Password))
	if err != nil {
		return "", err
	}
	if _, err := p.store.UpsertEmailAccount(mailDomain.ID, req.Email.Username, req.Email.QuotaMB, string(token)); err != nil {
		return "", err
	}

	return fmt.Sprintf("mail domain %s with mailbox %s configured", domain, address), nil
}

// Deprovision drops every map entry belonging to the domain, then the
// persisted records. Absent entries are fine.
func (p *MailDomain) Deprovision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	domain := req.Domain.String()
	suffix := "@" + domain

	if err := dropMapLines(p.domainsFile(), func(key string) bool { return key == domain }); err != nil {
		return "", err
	}
	matchAddr := func(key string) bool { return strings.HasSuffix(key, suffix) }
	if err := dropMapLines(p.mailboxesFile(), matchAddr); err != nil {
		return "", err
	}
	if err := dropMapLines(p.passwdFile(), matchAddr); err != nil {
		return "", err
	}
	if err := p.postmap(ctx); err != nil {
		return "", err
	}

	vhost, err := p.store.GetVirtualHost(req.Domain)
	if err == nil {
		mailDomain, err := p.store.EnsureEmailDomain(vhost.ID, req.Domain)
		if err != nil {
			return "", err
		}
		if err := p.store.DeleteEmailDomain(mailDomain.ID); err != nil {
			return "", err
		}
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return "", err
	}

	return fmt.Sprintf("mail domain %s removed", domain), nil
}

func (p *MailDomain) postmap(ctx context.Context) error {
	if p.cfg.PostmapCmd == "" {
		return nil
	}
	for _, file := range []string{p.domainsFile(), p.mailboxesFile()} {
		if out, err := p.runner.Run(ctx, p.cfg.PostmapCmd, file); err != nil {
			return &interfaces.ExternalToolError{Tool: p.cfg.PostmapCmd, Err: fmt.Errorf("%w: %s", err, out)}
		}
	}
	return nil
}

// upsertMapLine rewrites a map file so exactly one line carries the key.
// Map lines are keyed by their first whitespace- or colon-separated
// field.
func upsertMapLine(path, key, line string) error {
	lines, err := readMapLines(path)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range lines {
		if mapLineKey(existing) == key {
			lines[i] = line
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, line)
	}
	return writeMapLines(path, lines)
}

// dropMapLines removes every line whose key matches.
func dropMapLines(path string, match func(key string) bool) error {
	lines, err := readMapLines(path)
	if err != nil {
		return err
	}

	kept := lines[:0]
	for _, line := range lines {
		if !match(mapLineKey(line)) {
			kept = append(kept, line)
		}
	}
	return writeMapLines(path, kept)
}

func mapLineKey(line string) string {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return ""
	}
	key, _, _ := strings.Cut(fields[0], ":")
	return key
}

func readMapLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &interfaces.ExternalToolError{Tool: "mail", Err: err}
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func writeMapLines(path string, lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return &interfaces.ExternalToolError{Tool: "mail", Err: err}
	}
	return nil
}
