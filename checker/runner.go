package checker

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
	"github.com/sirupsen/logrus"

	"ssl-expiry-checker/config"
	"ssl-expiry-checker/mail"
	"ssl-expiry-checker/model"
	"ssl-expiry-checker/notify"
	prom "ssl-expiry-checker/prometheus"
	"ssl-expiry-checker/utils"
)

// CertificateInspector inspects a batch of domains in order.
type CertificateInspector interface {
	CheckAllCertificates(ctx context.Context, domains []string, today time.Time) []model.DomainCheckResult
}

// Report is the outcome of one run.
type Report struct {
	CheckedAt time.Time
	Results   []model.DomainCheckResult
	Critical  []model.CriticalDomain
	Failed    []model.FailedDomain
	Message   *model.NotificationMessage
	Sent      bool
	SendErr   error
}

type Runner struct {
	Config     config.Config
	Inspector  CertificateInspector
	Dispatcher mail.Dispatcher
	Clock      clock.Clock
	Logger     *logrus.Entry

	// DryRun composes the notification but does not dispatch it.
	DryRun bool
}

func NewRunner(c config.Config, inspector CertificateInspector, dispatcher mail.Dispatcher, logger *logrus.Entry) *Runner {
	return &Runner{
		Config:     c,
		Inspector:  inspector,
		Dispatcher: dispatcher,
		Clock:      clock.New(),
		Logger:     logger,
	}
}

// Run inspects domains, evaluates them against the configured threshold and
// sends at most one notification. Inspection and dispatch failures are
// logged and reported, never returned. A run whose ctx is cancelled before
// every domain was inspected records no metrics and sends nothing.
func (r *Runner) Run(ctx context.Context, domains []string) Report {
	today := r.Clock.Now().UTC()
	threshold := r.Config.Threshold()

	results := r.Inspector.CheckAllCertificates(ctx, domains, today)

	report := Report{
		CheckedAt: today,
		Results:   results,
	}
	if err := ctx.Err(); err != nil {
		r.Logger.WithError(err).WithFields(logrus.Fields{
			"checked": len(results),
			"total":   len(domains),
		}).Warn("run cancelled, no notification composed")
		return report
	}

	report.Critical = notify.Critical(results, today, threshold)
	report.Failed = notify.Failed(results)
	prom.Record(results, report.Critical, float64(today.Unix()))

	for _, f := range report.Failed {
		r.Logger.WithFields(logrus.Fields{"domain": f.Domain, "reason": f.Reason}).Warn("certificate status unknown")
	}
	if len(report.Critical) == 0 {
		r.Logger.WithField("threshold", threshold).Info("no domains under threshold")
	} else {
		for _, c := range report.Critical {
			r.Logger.WithFields(logrus.Fields{"domain": c.Domain, "days_left": c.DaysRemaining}).Warn("critical domain")
		}
	}

	report.Message = notify.EvaluateWithOptions(results, today, threshold, notify.Options{
		AlertOnFailure: r.Config.AlertOnFailure,
	})
	if report.Message == nil {
		return report
	}

	if r.DryRun {
		r.Logger.WithField("subject", report.Message.Subject).Info("dry run, notification not sent")
		r.Logger.Info("\n" + report.Message.Body)
		return report
	}

	err := r.Dispatcher.Send(ctx, mail.Message{
		From:    r.Config.SenderEmail,
		To:      r.Config.RecipientEmails,
		Subject: report.Message.Subject,
		Body:    report.Message.Body,
	})
	if err != nil {
		report.SendErr = err
		r.Logger.WithError(err).Error("failed to send notification")
		return report
	}

	report.Sent = true
	r.Logger.WithField("recipients", len(r.Config.RecipientEmails)).Info("notification sent")
	return report
}

// PushMetrics sends the run's metrics to the configured Pushgateway. A push
// failure is logged only.
func (r *Runner) PushMetrics() {
	if r.Config.PushgatewayURL == "" {
		return
	}
	if err := prom.Push(r.Config.PushgatewayURL, r.Config.MetricsJob); err != nil {
		r.Logger.WithError(err).Warn("failed to push metrics")
		return
	}
	r.Logger.WithField("job", r.Config.MetricsJob).Debug("metrics pushed")
}

var _ CertificateInspector = (*utils.Inspector)(nil)
