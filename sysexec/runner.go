// Package sysexec provides the exec wrappers used by provisioners and the
// quota controller to drive external system tooling.
package sysexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts external command execution so provisioners can be
// tested without touching the host system.
type Runner interface {
	// Run executes a command and returns its combined output. The context
	// bounds the invocation; expired contexts yield an error, never an
	// unknown outcome.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// RunWithStdin executes a command feeding stdin, for tools that read
	// secrets from standard input rather than argv.
	RunWithStdin(ctx context.Context, stdin, name string, args ...string) (string, error)

	// LookPath reports whether a tool is present on the host.
	LookPath(name string) bool
}

// DefaultTimeout bounds a single external tool invocation when the caller
// provides no deadline of its own.
const DefaultTimeout = 60 * time.Second

// ExecRunner executes commands using os/exec.
type ExecRunner struct{}

// Run executes a command and returns combined output.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.RunWithStdin(ctx, "", name, args...)
}

// RunWithStdin executes a command with the given stdin and returns
// combined output. Stdin content never appears in the returned error.
func (r ExecRunner) RunWithStdin(ctx context.Context, stdin, name string, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("exec %s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// LookPath reports whether the named tool is present in PATH.
func (r ExecRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
