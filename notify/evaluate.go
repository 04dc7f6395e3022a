package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ssl-expiry-checker/model"
	"ssl-expiry-checker/utils"
)

const (
	subjectPrefix  = "ACTION NEEDED: Automated SSL expiration msg - "
	singularHeader = "The following domain is expiring soon, please see below:\n\n"
	pluralHeader   = "The following domains are expiring soon, please see below:\n\n"
	failedHeader   = "The following domains could not be checked:\n\n"
)

// Options tune message composition. The zero value matches the default
// behaviour: failed inspections are left out of the message.
type Options struct {
	AlertOnFailure bool
}

// Critical returns the successfully inspected domains whose days remaining
// are at most threshold, most urgent first. Days are recomputed from each
// expiration against today. Ties keep input order.
func Critical(results []model.DomainCheckResult, today time.Time, threshold int) []model.CriticalDomain {
	var critical []model.CriticalDomain
	for _, r := range results {
		if !r.OK() {
			continue
		}
		days := utils.DaysUntil(*r.Expiration, today)
		if days <= threshold {
			critical = append(critical, model.CriticalDomain{Domain: r.Domain, DaysRemaining: days})
		}
	}

	sort.SliceStable(critical, func(i, j int) bool {
		return critical[i].DaysRemaining < critical[j].DaysRemaining
	})
	return critical
}

// Failed returns the domains whose inspection failed, in input order.
func Failed(results []model.DomainCheckResult) []model.FailedDomain {
	var failed []model.FailedDomain
	for _, r := range results {
		if r.OK() {
			continue
		}
		failed = append(failed, model.FailedDomain{Domain: r.Domain, Reason: utils.Reason(r.Err)})
	}
	return failed
}

// Evaluate returns the notification for results, or nil when nothing needs
// attention.
func Evaluate(results []model.DomainCheckResult, today time.Time, threshold int) *model.NotificationMessage {
	return EvaluateWithOptions(results, today, threshold, Options{})
}

func EvaluateWithOptions(results []model.DomainCheckResult, today time.Time, threshold int, opts Options) *model.NotificationMessage {
	critical := Critical(results, today, threshold)

	var failed []model.FailedDomain
	if opts.AlertOnFailure {
		failed = Failed(results)
	}

	if len(critical) == 0 && len(failed) == 0 {
		return nil
	}
	return Compose(critical, failed, today)
}

// Compose builds the message for an already filtered and sorted critical
// list and an optional list of failed domains.
func Compose(critical []model.CriticalDomain, failed []model.FailedDomain, today time.Time) *model.NotificationMessage {
	var body strings.Builder

	if len(critical) > 0 {
		if len(critical) == 1 {
			body.WriteString(singularHeader)
		} else {
			body.WriteString(pluralHeader)
		}
		for _, c := range critical {
			fmt.Fprintf(&body, "- %s: %d days left\n", c.Domain, c.DaysRemaining)
		}
	}

	if len(failed) > 0 {
		if body.Len() > 0 {
			body.WriteString("\n")
		}
		body.WriteString(failedHeader)
		for _, f := range failed {
			fmt.Fprintf(&body, "- %s: %s\n", f.Domain, f.Reason)
		}
	}

	return &model.NotificationMessage{
		Subject: subjectPrefix + today.UTC().Format(model.SubjectDate),
		Body:    body.String(),
	}
}
