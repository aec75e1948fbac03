package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kingG4e/web-control-panel/cmd/flags"
	"github.com/kingG4e/web-control-panel/httpserver"
	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/notify"
	"github.com/kingG4e/web-control-panel/orchestrator"
	"github.com/kingG4e/web-control-panel/provisioner"
	"github.com/kingG4e/web-control-panel/quota"
	"github.com/kingG4e/web-control-panel/storage"
	"github.com/kingG4e/web-control-panel/store"
	"github.com/kingG4e/web-control-panel/sysexec"
	"github.com/kingG4e/web-control-panel/vault"
	"github.com/kingG4e/web-control-panel/webserver"
)

var cliFlags = []cli.Flag{
	flags.ListenAddrFlag,
	flags.DBPathFlag,
	flags.KeyFileFlag,
	flags.HomeDirFlag,
	flags.VhostConfDirFlag,
	flags.VhostTemplateFlag,
	flags.VhostReloadCmdFlag,
	flags.DNSServerFlag,
	flags.DNSZoneFlag,
	flags.DNSTSIGKeyFlag,
	flags.DNSTSIGSecretFlag,
	flags.WebIPFlag,
	flags.MailConfigDirFlag,
	flags.MySQLDSNFlag,
	flags.ACMEEmailFlag,
	flags.ACMEStagingFlag,
	flags.ArchiveLocationsFlag,
	flags.SMTPHostFlag,
	flags.SMTPPortFlag,
	flags.SMTPUserFlag,
	flags.SMTPPasswordFlag,
	flags.SMTPSenderFlag,
	flags.StepTimeoutSecondsFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	app := &cli.App{
		Name:   "panel-server",
		Usage:  "Serve the hosting control panel API",
		Flags:  cliFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	runner := sysexec.ExecRunner{}

	cv, err := vault.NewFromEnvironment(vault.KeySourceConfig{
		KeyFile: cCtx.String(flags.KeyFileFlag.Name),
	})
	if err != nil {
		logger.Error("Failed to initialize credential vault", "err", err)
		return err
	}

	s, err := store.Open(cCtx.String(flags.DBPathFlag.Name), cv, logger)
	if err != nil {
		logger.Error("Failed to open store", "err", err)
		return err
	}

	vhostAdapter, err := webserver.NewAdapter(webserver.Options{
		ConfDir:      cCtx.String(flags.VhostConfDirFlag.Name),
		TemplatePath: cCtx.String(flags.VhostTemplateFlag.Name),
		ReloadCmd:    cCtx.StringSlice(flags.VhostReloadCmdFlag.Name),
	}, runner, logger)
	if err != nil {
		logger.Error("Failed to set up webserver adapter", "err", err)
		return err
	}

	linuxAccount := provisioner.NewLinuxAccount(runner, logger, cCtx.String(flags.HomeDirFlag.Name), "")
	provisioners := []interfaces.Provisioner{
		linuxAccount,
		provisioner.NewVirtualHost(s, vhostAdapter, linuxAccount, logger),
		provisioner.NewMailDomain(provisioner.MailConfig{
			ConfigDir:  cCtx.String(flags.MailConfigDirFlag.Name),
			PostmapCmd: "postmap",
		}, s, runner, logger),
		provisioner.NewSSLCertificate(provisioner.SSLConfig{
			ContactEmail: cCtx.String(flags.ACMEEmailFlag.Name),
			Staging:      cCtx.Bool(flags.ACMEStagingFlag.Name),
		}, s, runner, logger),
		provisioner.NewDiskQuota(quota.NewController(runner, cCtx.String(flags.HomeDirFlag.Name), logger)),
	}

	if dnsServer := cCtx.String(flags.DNSServerFlag.Name); dnsServer != "" {
		dnsZone, err := provisioner.NewDNSZone(provisioner.DNSConfig{
			Server:      dnsServer,
			Zone:        cCtx.String(flags.DNSZoneFlag.Name),
			TSIGKeyName: cCtx.String(flags.DNSTSIGKeyFlag.Name),
			TSIGSecret:  cCtx.String(flags.DNSTSIGSecretFlag.Name),
			WebIP:       cCtx.String(flags.WebIPFlag.Name),
		}, logger)
		if err != nil {
			logger.Error("Failed to set up DNS provisioner", "err", err)
			return err
		}
		provisioners = append(provisioners, dnsZone)
	} else {
		logger.Info("DNS provisioning disabled, no nameserver configured")
	}

	if dsn := cCtx.String(flags.MySQLDSNFlag.Name); dsn != "" {
		database, err := provisioner.NewDatabase(dsn, logger)
		if err != nil {
			logger.Error("Failed to set up database provisioner", "err", err)
			return err
		}
		provisioners = append(provisioners, database)
	} else {
		logger.Info("Database provisioning disabled, no MySQL DSN configured")
	}

	var archive interfaces.ArchiveBackend
	if locations := cCtx.StringSlice(flags.ArchiveLocationsFlag.Name); len(locations) > 0 {
		archiveLocations := make([]interfaces.ArchiveLocation, 0, len(locations))
		for _, location := range locations {
			archiveLocations = append(archiveLocations, interfaces.ArchiveLocation(location))
		}
		archive, err = storage.NewFactory(logger).MultiBackendFor(archiveLocations)
		if err != nil {
			logger.Error("Failed to set up archive backends", "err", err)
			return err
		}
	}

	broker := notify.NewBroker(logger)
	mailer := notify.NewMailer(notify.MailerConfig{
		Host:     cCtx.String(flags.SMTPHostFlag.Name),
		Port:     cCtx.String(flags.SMTPPortFlag.Name),
		Username: cCtx.String(flags.SMTPUserFlag.Name),
		Password: cCtx.String(flags.SMTPPasswordFlag.Name),
		Sender:   cCtx.String(flags.SMTPSenderFlag.Name),
	}, logger)

	o := orchestrator.New(s, provisioners, broker, mailer, archive, orchestrator.Config{
		StepTimeout: time.Duration(cCtx.Int64(flags.StepTimeoutSecondsFlag.Name)) * time.Second,
	}, logger)

	handler := httpserver.NewHandler(s, o, broker, archive, logger)
	srv, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
	if err != nil {
		logger.Error("Failed to create HTTP server", "err", err)
		return err
	}

	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutting down")
	srv.Shutdown()
	return nil
}
