// Package quota implements the best-effort disk quota controller for
// provisioned Linux accounts. Environmental problems (missing tooling,
// unresolvable device, non-Linux host) degrade to a "not applied" result;
// only caller bugs surface as errors.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/sysexec"
)

// setquotaTool is the external command used to apply filesystem quotas.
const setquotaTool = "setquota"

// Controller applies disk quotas via the system quota tooling.
type Controller struct {
	runner  sysexec.Runner
	log     *slog.Logger
	homeDir string

	// goos overrides runtime.GOOS in tests.
	goos string
}

// NewController creates a quota controller. homeDir is the mount point
// whose backing device receives the quota (normally "/home").
func NewController(runner sysexec.Runner, homeDir string, log *slog.Logger) *Controller {
	if homeDir == "" {
		homeDir = "/home"
	}
	return &Controller{
		runner:  runner,
		log:     log,
		homeDir: homeDir,
		goos:    runtime.GOOS,
	}
}

// SetUserQuota sets the disk quota for a provisioned Linux account.
//
// It returns (true, nil) when the quota was applied and (false, nil) for
// every environmental failure mode: non-Linux host, missing setquota
// tooling, or an unresolvable backing device. It returns an error only
// for invalid arguments, which are caller bugs: empty username or a
// non-positive quota.
//
// Soft and hard limits are set identically; there is no grace-period
// distinction. Inode limits are left unlimited.
func (c *Controller) SetUserQuota(ctx context.Context, username interfaces.Username, quotaMB int) (bool, error) {
	if username == "" {
		return false, &interfaces.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if quotaMB <= 0 {
		return false, &interfaces.ValidationError{Field: "quota_mb", Reason: "must be a positive number of megabytes"}
	}

	if c.goos != "linux" {
		c.log.Debug("Quota not applied: unsupported platform", slog.String("goos", c.goos))
		return false, nil
	}

	if !c.runner.LookPath(setquotaTool) {
		c.log.Warn("Quota not applied: setquota tool not found",
			slog.String("username", username.String()))
		return false, nil
	}

	device, ok := c.resolveDevice(ctx)
	if !ok {
		c.log.Warn("Quota not applied: could not resolve backing device",
			slog.String("homeDir", c.homeDir))
		return false, nil
	}

	// setquota takes limits in 1K blocks.
	blocks := strconv.Itoa(quotaMB * 1024)
	_, err := c.runner.Run(ctx, setquotaTool, "-u", username.String(), blocks, blocks, "0", "0", device)
	if err != nil {
		c.log.Warn("Quota not applied: setquota failed",
			"err", err,
			slog.String("username", username.String()),
			slog.String("device", device))
		return false, nil
	}

	c.log.Info("Disk quota applied",
		slog.String("username", username.String()),
		slog.Int("quotaMB", quotaMB),
		slog.String("device", device))
	return true, nil
}

// resolveDevice queries the filesystem report for the home directory
// mount point and takes the backing device of the first data row. An
// empty or malformed report means the device is unresolved.
func (c *Controller) resolveDevice(ctx context.Context) (string, bool) {
	out, err := c.runner.Run(ctx, "df", "--output=source", c.homeDir)
	if err != nil {
		return "", false
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return "", false
	}

	device := strings.TrimSpace(lines[1])
	if device == "" || !strings.HasPrefix(device, "/") {
		return "", false
	}
	return device, true
}

// String describes the controller configuration for diagnostics.
func (c *Controller) String() string {
	return fmt.Sprintf("quota.Controller(home=%s)", c.homeDir)
}
