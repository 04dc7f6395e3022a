package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"

	"ssl-expiry-checker/checker"
	"ssl-expiry-checker/config"
	"ssl-expiry-checker/log"
	"ssl-expiry-checker/mail"
	"ssl-expiry-checker/scrap"
	"ssl-expiry-checker/server"
	"ssl-expiry-checker/utils"
)

var (
	app     = kingpin.New("ssl-expiry-checker", "Checks TLS certificate expiry and emails a summary of expiring domains.")
	envFile = app.Flag("env-file", "Environment file loaded before the process environment.").Default(".env").String()

	checkCmd = app.Command("check", "Inspect every domain once and notify.").Default()
	dryRun   = checkCmd.Flag("dry-run", "Compose the notification without sending it.").Bool()
	table    = checkCmd.Flag("table", "Print the result table to stdout.").Bool()

	serveCmd = app.Command("serve", "Expose Prometheus metrics and re-check on an interval.")
)

var mainLog = log.WithPrefix("main")

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*envFile)
	if err != nil {
		mainLog.WithError(err).Fatal("cannot start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := newRunner(cfg)

	switch command {
	case checkCmd.FullCommand():
		runner.DryRun = *dryRun
		report := runner.Run(ctx, domains(cfg))
		if *table {
			utils.PrintResults(os.Stdout, report.Results, cfg.Threshold())
		}
		runner.PushMetrics()
	case serveCmd.FullCommand():
		srv := server.New(log.WithPrefix("server"))
		go srv.Scrape(ctx, cfg.ScrapeInterval, func(ctx context.Context) checker.Report {
			return runner.Run(ctx, domains(cfg))
		})
		if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.WithError(err).Fatal("exporter stopped")
		}
	}
}

func newRunner(cfg config.Config) *checker.Runner {
	inspector := utils.NewInspector(cfg.TLSVerify, cfg.InspectTimeout, log.WithPrefix("inspector"))

	dispatcher := mail.NewSMTPDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.EmailPassword)
	dispatcher.RequireTLS = cfg.SMTPRequireTLS
	dispatcher.HighPriority = cfg.MailHighPriority

	return checker.NewRunner(cfg, inspector, dispatcher, log.WithPrefix("runner"))
}

// domains returns the configured domains followed by any discovered ones.
// A discovery failure falls back to the configured list.
func domains(cfg config.Config) []string {
	if !cfg.DiscoveryEnabled() {
		return cfg.DomainNames
	}

	logger := log.WithPrefix("discovery")
	found, err := scrap.Discover(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("discovery failed, using DOMAIN_NAMES only")
		return cfg.DomainNames
	}
	all := scrap.Merge(cfg.DomainNames, found)
	logger.WithFields(logrus.Fields{"configured": len(cfg.DomainNames), "total": len(all)}).Info("domains resolved")
	return all
}
