// Package flags holds the CLI flags and setup helpers shared by the
// panel commands.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/kingG4e/web-control-panel/common"
	"github.com/kingG4e/web-control-panel/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJSONFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUIDFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var DBPathFlag = &cli.StringFlag{
	Name:  "db-path",
	Value: "/var/lib/web-control-panel/panel.db",
	Usage: "path to the SQLite database file, or a DSN",
}

var KeyFileFlag = &cli.StringFlag{
	Name:  "key-file",
	Value: "/var/lib/web-control-panel/vault.key",
	Usage: "path to the credential vault key file, created if missing",
}

var HomeDirFlag = &cli.StringFlag{
	Name:  "home-dir",
	Value: "/home",
	Usage: "base directory for hosting account home directories",
}

var VhostConfDirFlag = &cli.StringFlag{
	Name:  "vhost-conf-dir",
	Value: "/etc/apache2/sites-enabled",
	Usage: "directory virtual host configuration files are written to",
}

var VhostTemplateFlag = &cli.StringFlag{
	Name:  "vhost-template",
	Usage: "operator-provided virtual host template file",
}

var VhostReloadCmdFlag = &cli.StringSliceFlag{
	Name:  "vhost-reload-cmd",
	Value: cli.NewStringSlice("apachectl", "graceful"),
	Usage: "command run after virtual host configuration changes",
}

var DNSServerFlag = &cli.StringFlag{
	Name:  "dns-server",
	Usage: "authoritative nameserver for dynamic updates (host:port); empty disables DNS provisioning",
}

var DNSZoneFlag = &cli.StringFlag{
	Name:  "dns-zone",
	Usage: "zone dynamic updates are sent for",
}

var DNSTSIGKeyFlag = &cli.StringFlag{
	Name:  "dns-tsig-key",
	Usage: "TSIG key name for dynamic updates",
}

var DNSTSIGSecretFlag = &cli.StringFlag{
	Name:    "dns-tsig-secret",
	Usage:   "TSIG key secret for dynamic updates",
	EnvVars: []string{"PANEL_DNS_TSIG_SECRET"},
}

var WebIPFlag = &cli.StringFlag{
	Name:  "web-ip",
	Usage: "public IP address hosted domains resolve to",
}

var MailConfigDirFlag = &cli.StringFlag{
	Name:  "mail-config-dir",
	Value: "/etc/postfix/virtual",
	Usage: "directory the virtual mail map files live in",
}

var MySQLDSNFlag = &cli.StringFlag{
	Name:    "mysql-dsn",
	Usage:   "administrative MySQL DSN for customer database provisioning; empty disables it",
	EnvVars: []string{"PANEL_MYSQL_DSN"},
}

var ACMEEmailFlag = &cli.StringFlag{
	Name:  "acme-email",
	Usage: "contact email registered with the ACME account",
}

var ACMEStagingFlag = &cli.BoolFlag{
	Name:  "acme-staging",
	Usage: "use the ACME staging environment",
}

var ArchiveLocationsFlag = &cli.StringSliceFlag{
	Name:  "archive-location",
	Usage: "archive backend URI (file:// or s3://), repeatable; empty disables archiving",
}

var SMTPHostFlag = &cli.StringFlag{
	Name:  "smtp-host",
	Usage: "SMTP host for outcome mails; empty disables them",
}

var SMTPPortFlag = &cli.StringFlag{
	Name:  "smtp-port",
	Value: "587",
	Usage: "SMTP port for outcome mails",
}

var SMTPUserFlag = &cli.StringFlag{
	Name:  "smtp-user",
	Usage: "SMTP username for outcome mails",
}

var SMTPPasswordFlag = &cli.StringFlag{
	Name:    "smtp-password",
	Usage:   "SMTP password for outcome mails",
	EnvVars: []string{"PANEL_SMTP_PASSWORD"},
}

var SMTPSenderFlag = &cli.StringFlag{
	Name:  "smtp-sender",
	Value: "Web Control Panel",
	Usage: "display name outcome mails are sent as",
}

var StepTimeoutSecondsFlag = &cli.Int64Flag{
	Name:  "step-timeout-seconds",
	Value: 120,
	Usage: "timeout for a single provisioning step",
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}

var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
