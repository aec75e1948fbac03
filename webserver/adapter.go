// Package webserver manages per-domain virtual host configuration files
// for the system web server. It owns only the external configuration
// side; pairing it with the persisted VirtualHost record is the store's
// transactional concern.
package webserver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/sysexec"
)

// defaultVhostTemplate renders an Apache-style virtual host. Operators
// can replace it with a template file via Options.TemplatePath.
const defaultVhostTemplate = `<VirtualHost *:80>
    ServerName {{.Domain}}
    DocumentRoot {{.DocumentRoot}}
    SuexecUserGroup {{.Username}} {{.Username}}
    <Directory {{.DocumentRoot}}>
        AllowOverride All
        Require all granted
    </Directory>
    ErrorLog ${APACHE_LOG_DIR}/{{.Domain}}-error.log
    CustomLog ${APACHE_LOG_DIR}/{{.Domain}}-access.log combined
</VirtualHost>
`

// Options controls filesystem locations used by the adapter.
type Options struct {
	// ConfDir is where vhost files are written (for example
	// /etc/apache2/sites-enabled).
	ConfDir string

	// TemplatePath optionally points to an operator-provided vhost
	// template file.
	TemplatePath string

	// ReloadCmd is the command run after configuration changes, for
	// example "apachectl graceful". Empty disables reloads.
	ReloadCmd []string
}

// VhostConfig is the data rendered into one vhost file.
type VhostConfig struct {
	Domain       interfaces.Domain
	DocumentRoot string
	Slot         int
	Username     interfaces.Username
}

// Adapter writes, removes and inspects vhost configuration files.
type Adapter struct {
	opts   Options
	runner sysexec.Runner
	log    *slog.Logger
	tmpl   *template.Template
}

// NewAdapter creates a vhost adapter. The configuration directory is
// created on first write if missing.
func NewAdapter(opts Options, runner sysexec.Runner, log *slog.Logger) (*Adapter, error) {
	if opts.ConfDir == "" {
		opts.ConfDir = "/etc/apache2/sites-enabled"
	}

	text := defaultVhostTemplate
	if opts.TemplatePath != "" {
		data, err := os.ReadFile(opts.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read vhost template: %w", err)
		}
		text = string(data)
	}

	tmpl, err := template.New("vhost").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse vhost template: %w", err)
	}

	return &Adapter{opts: opts, runner: runner, log: log, tmpl: tmpl}, nil
}

// confPath returns the configuration file path for a domain and slot.
// Slot zero is the primary document root and keeps the bare file name.
func (a *Adapter) confPath(domain interfaces.Domain, slot int) string {
	name := domain.String()
	if slot > 0 {
		name = fmt.Sprintf("%s-%d", name, slot)
	}
	return filepath.Join(a.opts.ConfDir, name+".conf")
}

// Exists reports whether a configuration file exists for the domain/slot.
func (a *Adapter) Exists(domain interfaces.Domain, slot int) bool {
	_, err := os.Stat(a.confPath(domain, slot))
	return err == nil
}

// WriteVhost renders and writes the vhost configuration file, then
// reloads the web server. Rewriting an existing file is harmless, so the
// operation is idempotent.
func (a *Adapter) WriteVhost(ctx context.Context, cfg VhostConfig) error {
	if err := cfg.Domain.Validate(); err != nil {
		return err
	}
	if cfg.DocumentRoot == "" {
		return &interfaces.ValidationError{Field: "document_root", Reason: "must not be empty"}
	}

	if err := os.MkdirAll(a.opts.ConfDir, 0755); err != nil {
		return &interfaces.ExternalToolError{Tool: "webserver", Err: fmt.Errorf("create conf dir: %w", err)}
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, cfg); err != nil {
		return fmt.Errorf("render vhost template: %w", err)
	}

	path := a.confPath(cfg.Domain, cfg.Slot)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &interfaces.ExternalToolError{Tool: "webserver", Err: fmt.Errorf("write vhost config: %w", err)}
	}

	a.log.Info("Virtual host configuration written",
		slog.String("domain", cfg.Domain.String()),
		slog.String("path", path))

	return a.reload(ctx)
}

// RemoveVhost deletes the vhost configuration file and reloads the web
// server. A missing file is not an error.
func (a *Adapter) RemoveVhost(ctx context.Context, domain interfaces.Domain, slot int) error {
	path := a.confPath(domain, slot)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &interfaces.ExternalToolError{Tool: "webserver", Err: fmt.Errorf("remove vhost config: %w", err)}
	}

	a.log.Info("Virtual host configuration removed",
		slog.String("domain", domain.String()),
		slog.String("path", path))

	return a.reload(ctx)
}

func (a *Adapter) reload(ctx context.Context) error {
	if len(a.opts.ReloadCmd) == 0 {
		return nil
	}
	if _, err := a.runner.Run(ctx, a.opts.ReloadCmd[0], a.opts.ReloadCmd[1:]...); err != nil {
		return &interfaces.ExternalToolError{Tool: a.opts.ReloadCmd[0], Err: err}
	}
	return nil
}
