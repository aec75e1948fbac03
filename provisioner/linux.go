package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/sysexec"
)

// LinuxAccount creates the system user owning a hosting account. Every
// later resource (docroot, quota, suexec) hangs off this user, so its
// failure is fatal.
type LinuxAccount struct {
	runner  sysexec.Runner
	log     *slog.Logger
	homeDir string
	shell   string
}

// NewLinuxAccount builds the account provisioner. homeDir defaults to
// /home and shell to /bin/bash.
func NewLinuxAccount(runner sysexec.Runner, log *slog.Logger, homeDir, shell string) *LinuxAccount {
	if homeDir == "" {
		homeDir = "/home"
	}
	if shell == "" {
		shell = "/bin/bash"
	}
	return &LinuxAccount{runner: runner, log: log, homeDir: homeDir, shell: shell}
}

func (p *LinuxAccount) Kind() interfaces.StepKind        { return interfaces.StepLinuxAccount }
func (p *LinuxAccount) Policy() interfaces.FailurePolicy { return interfaces.PolicyFatal }

// Home returns the home directory path the account is created with.
func (p *LinuxAccount) Home(u interfaces.Username) string {
	return filepath.Join(p.homeDir, u.String())
}

// Provision creates the system user if it does not already exist and
// sets its password. An existing user is reused, which makes retried
// runs converge.
func (p *LinuxAccount) Provision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	if err := req.Username.Validate(); err != nil {
		return "", err
	}
	if req.ServerPassword == "" {
		return "", &interfaces.ValidationError{Field: "server_password", Reason: "decrypted password required"}
	}

	exists, err := p.userExists(ctx, req.Username)
	if err != nil {
		return "", err
	}

	if !exists {
		home := p.Home(req.Username)
		out, err := p.runner.Run(ctx, "useradd",
			"--create-home",
			"--home-dir", home,
			"--shell", p.shell,
			req.Username.String())
		if err != nil {
			return "", &interfaces.ExternalToolError{Tool: "useradd", Err: fmt.Errorf("%w: %s", err, out)}
		}
		p.log.Info("System user created",
			slog.String("username", req.Username.String()),
			slog.String("home", home))
	}

	// chpasswd reads user:password pairs from stdin, keeping the secret
	// out of argv and the process table.
	if _, err := p.runner.RunWithStdin(ctx,
		fmt.Sprintf("%s:%s\n", req.Username, req.ServerPassword),
		"chpasswd"); err != nil {
		return "", &interfaces.ExternalToolError{Tool: "chpasswd", Err: err}
	}

	if exists {
		return fmt.Sprintf("system user %s already present, password refreshed", req.Username), nil
	}
	return fmt.Sprintf("system user %s created", req.Username), nil
}

// Deprovision removes the system user and its home directory. A missing
// user is not an error.
func (p *LinuxAccount) Deprovision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	exists, err := p.userExists(ctx, req.Username)
	if err != nil {
		return "", err
	}
	if !exists {
		return fmt.Sprintf("system user %s already absent", req.Username), nil
	}

	out, err := p.runner.Run(ctx, "userdel", "--remove", req.Username.String())
	if err != nil {
		return "", &interfaces.ExternalToolError{Tool: "userdel", Err: fmt.Errorf("%w: %s", err, out)}
	}
	return fmt.Sprintf("system user %s removed", req.Username), nil
}

// userExists probes the user database through id(1). A non-zero exit is
// treated as "absent"; there is no reliable way to distinguish a lookup
// failure from a missing user across platforms.
func (p *LinuxAccount) userExists(ctx context.Context, u interfaces.Username) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	_, err := p.runner.Run(ctx, "id", "-u", u.String())
	return err == nil, nil
}
