package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssl-expiry-checker/config"
	"ssl-expiry-checker/mail"
	"ssl-expiry-checker/model"
	prom "ssl-expiry-checker/prometheus"
	"ssl-expiry-checker/utils"
)

var today = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

// fakeInspector returns fixed expirations, or an error for domains listed
// in errs.
type fakeInspector struct {
	days  map[string]int
	errs  map[string]error
	calls []string
}

func (f *fakeInspector) CheckAllCertificates(_ context.Context, domains []string, now time.Time) []model.DomainCheckResult {
	var out []model.DomainCheckResult
	for _, d := range domains {
		f.calls = append(f.calls, d)
		if err, ok := f.errs[d]; ok {
			out = append(out, model.DomainCheckResult{Domain: d, Err: err})
			continue
		}
		exp := now.Add(time.Duration(f.days[d]) * 24 * time.Hour)
		days := utils.DaysUntil(exp, now)
		out = append(out, model.DomainCheckResult{Domain: d, Expiration: &exp, DaysRemaining: &days})
	}
	return out
}

// cancellingInspector inspects the first domain, then cancels the run the
// way a signal would and stops.
type cancellingInspector struct {
	cancel context.CancelFunc
	days   int
}

func (c cancellingInspector) CheckAllCertificates(_ context.Context, domains []string, now time.Time) []model.DomainCheckResult {
	exp := now.Add(time.Duration(c.days) * 24 * time.Hour)
	days := utils.DaysUntil(exp, now)
	c.cancel()
	return []model.DomainCheckResult{{Domain: domains[0], Expiration: &exp, DaysRemaining: &days}}
}

type fakeDispatcher struct {
	sent []mail.Message
	err  error
}

func (f *fakeDispatcher) Send(_ context.Context, msg mail.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func newTestRunner(inspector CertificateInspector, dispatcher mail.Dispatcher) (*Runner, *logrustest.Hook) {
	threshold := 10
	c := config.Config{
		SenderEmail:     "alerts@example.com",
		EmailPassword:   "secret",
		RecipientEmails: config.List{"ops@example.com", "dev@example.com"},
		DayThreshold:    &threshold,
		MetricsJob:      "ssl_expiry_check",
	}

	logger, hook := logrustest.NewNullLogger()
	r := NewRunner(c, inspector, dispatcher, logrus.NewEntry(logger))

	fake := clock.NewFake()
	fake.Set(today)
	r.Clock = fake
	return r, hook
}

func TestRunSendsSingleCritical(t *testing.T) {
	inspector := &fakeInspector{days: map[string]int{"a.com": 5, "b.com": 40}}
	dispatcher := &fakeDispatcher{}
	r, _ := newTestRunner(inspector, dispatcher)

	report := r.Run(context.Background(), []string{"a.com", "b.com"})

	assert.Equal(t, []string{"a.com", "b.com"}, inspector.calls)
	assert.Equal(t, []model.CriticalDomain{{Domain: "a.com", DaysRemaining: 5}}, report.Critical)
	assert.True(t, report.Sent)
	require.Len(t, dispatcher.sent, 1)

	msg := dispatcher.sent[0]
	assert.Equal(t, "alerts@example.com", msg.From)
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, msg.To)
	assert.Equal(t, "ACTION NEEDED: Automated SSL expiration msg - 03/05/24", msg.Subject)
	assert.Contains(t, msg.Body, "The following domain is expiring soon")
	assert.Contains(t, msg.Body, "- a.com: 5 days left")
}

func TestRunSortsExpiredFirst(t *testing.T) {
	inspector := &fakeInspector{days: map[string]int{"a.com": 5, "b.com": -3}}
	dispatcher := &fakeDispatcher{}
	r, _ := newTestRunner(inspector, dispatcher)

	report := r.Run(context.Background(), []string{"a.com", "b.com"})

	assert.Equal(t, []model.CriticalDomain{
		{Domain: "b.com", DaysRemaining: -3},
		{Domain: "a.com", DaysRemaining: 5},
	}, report.Critical)
	require.Len(t, dispatcher.sent, 1)
	assert.Contains(t, dispatcher.sent[0].Body, "The following domains are expiring soon")
}

func TestRunNothingCritical(t *testing.T) {
	inspector := &fakeInspector{days: map[string]int{"a.com": 50}}
	dispatcher := &fakeDispatcher{}
	r, _ := newTestRunner(inspector, dispatcher)

	report := r.Run(context.Background(), []string{"a.com"})

	assert.Nil(t, report.Message)
	assert.False(t, report.Sent)
	assert.Empty(t, dispatcher.sent)
}

func TestRunResolutionFailureDoesNotAbort(t *testing.T) {
	resolveErr := &utils.InspectionError{Kind: utils.KindResolution, Domain: "gone.invalid", Err: errors.New("no such host")}
	inspector := &fakeInspector{
		days: map[string]int{"a.com": 3},
		errs: map[string]error{"gone.invalid": resolveErr},
	}
	dispatcher := &fakeDispatcher{}
	r, hook := newTestRunner(inspector, dispatcher)

	report := r.Run(context.Background(), []string{"gone.invalid", "a.com"})

	require.Len(t, report.Results, 2)
	assert.ErrorIs(t, report.Results[0].Err, utils.ErrResolution)
	assert.Equal(t, []model.FailedDomain{{Domain: "gone.invalid", Reason: "resolution error"}}, report.Failed)
	assert.Equal(t, []model.CriticalDomain{{Domain: "a.com", DaysRemaining: 3}}, report.Critical)

	require.Len(t, dispatcher.sent, 1)
	assert.NotContains(t, dispatcher.sent[0].Body, "gone.invalid")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Data["domain"] == "gone.invalid" && e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunAlertOnFailure(t *testing.T) {
	inspector := &fakeInspector{
		days: map[string]int{"a.com": 300},
		errs: map[string]error{"b.com": &utils.InspectionError{Kind: utils.KindTLS, Domain: "b.com", Err: errors.New("reset")}},
	}
	dispatcher := &fakeDispatcher{}
	r, _ := newTestRunner(inspector, dispatcher)
	r.Config.AlertOnFailure = true

	report := r.Run(context.Background(), []string{"a.com", "b.com"})

	assert.Empty(t, report.Critical)
	require.Len(t, dispatcher.sent, 1)
	assert.Contains(t, dispatcher.sent[0].Body, "- b.com: tls error")
}

func TestRunDispatchFailureIsReported(t *testing.T) {
	inspector := &fakeInspector{days: map[string]int{"a.com": 1}}
	sendErr := &mail.DispatchError{Kind: mail.KindAuth, Stage: "auth", Err: errors.New("535")}
	dispatcher := &fakeDispatcher{err: sendErr}
	r, hook := newTestRunner(inspector, dispatcher)

	report := r.Run(context.Background(), []string{"a.com"})

	assert.False(t, report.Sent)
	assert.ErrorIs(t, report.SendErr, mail.ErrAuth)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRunDryRun(t *testing.T) {
	inspector := &fakeInspector{days: map[string]int{"a.com": 1}}
	dispatcher := &fakeDispatcher{}
	r, _ := newTestRunner(inspector, dispatcher)
	r.DryRun = true

	report := r.Run(context.Background(), []string{"a.com"})

	require.NotNil(t, report.Message)
	assert.False(t, report.Sent)
	assert.Empty(t, dispatcher.sent)
}

func TestPushMetrics(t *testing.T) {
	var pushes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&pushes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, _ := newTestRunner(&fakeInspector{}, &fakeDispatcher{})
	r.PushMetrics()
	assert.Equal(t, int32(0), atomic.LoadInt32(&pushes))

	r.Config.PushgatewayURL = srv.URL
	r.PushMetrics()
	assert.Equal(t, int32(1), atomic.LoadInt32(&pushes))
}

func TestRunCancelledSendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := &fakeDispatcher{}
	r, hook := newTestRunner(cancellingInspector{cancel: cancel, days: 2}, dispatcher)

	prom.LastRun.Set(42)
	report := r.Run(ctx, []string{"a.com", "b.com", "c.com"})

	assert.Len(t, report.Results, 1)
	assert.Nil(t, report.Message)
	assert.Empty(t, report.Critical)
	assert.False(t, report.Sent)
	assert.NoError(t, report.SendErr)
	assert.Empty(t, dispatcher.sent)
	assert.Equal(t, 42.0, testutil.ToFloat64(prom.LastRun))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 1, entry.Data["checked"])
	assert.Equal(t, 3, entry.Data["total"])
}

func TestRunRecordsRunTimeFromClock(t *testing.T) {
	r, _ := newTestRunner(&fakeInspector{days: map[string]int{"a.com": 50}}, &fakeDispatcher{})

	r.Run(context.Background(), []string{"a.com"})

	assert.Equal(t, float64(today.Unix()), testutil.ToFloat64(prom.LastRun))
}
