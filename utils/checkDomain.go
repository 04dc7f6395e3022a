package utils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"ssl-expiry-checker/model"
)

// Inspector retrieves the leaf certificate expiration of a domain.
type Inspector struct {
	// Verify selects strict mode: the peer chain and hostname are checked
	// against RootCAs (system roots when nil). When false any certificate is
	// accepted.
	Verify   bool
	Timeout  time.Duration
	Port     string
	RootCAs  *x509.CertPool
	Resolver *net.Resolver
	Logger   *logrus.Entry
}

func NewInspector(verify bool, timeout time.Duration, logger *logrus.Entry) *Inspector {
	return &Inspector{
		Verify:  verify,
		Timeout: timeout,
		Port:    model.HTTPSPort,
		Logger:  logger,
	}
}

// FetchExpiration dials domain, completes a TLS handshake with domain as
// SNI and returns the leaf certificate's NotAfter in UTC. Errors are always
// *InspectionError.
func (i *Inspector) FetchExpiration(ctx context.Context, domain string) (time.Time, error) {
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = model.Timeout
	}
	port := i.Port
	if port == "" {
		port = model.HTTPSPort
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{
			Timeout:  timeout,
			Resolver: i.Resolver,
		},
		Config: &tls.Config{
			ServerName:         domain,
			RootCAs:            i.RootCAs,
			InsecureSkipVerify: !i.Verify,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, port))
	if err != nil {
		return time.Time{}, classify(domain, err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return time.Time{}, classify(domain, errNoPeerCertificates)
	}

	return certs[0].NotAfter.UTC(), nil
}

// DaysUntil is the whole number of days from today to expiration, rounded
// down. It is negative for certificates that already expired.
func DaysUntil(expiration, today time.Time) int {
	return int(math.Floor(expiration.Sub(today).Hours() / 24))
}

// GetStatus labels a days-left value for the result table.
func GetStatus(daysLeft, threshold int) string {
	if daysLeft < 0 {
		return "expired"
	} else if daysLeft <= threshold {
		return "expiring"
	}
	return "ok"
}

// CheckDomain inspects one domain and logs the outcome.
func (i *Inspector) CheckDomain(ctx context.Context, domain string, today time.Time) model.DomainCheckResult {
	logger := i.logger().WithField("domain", domain)

	expiration, err := i.FetchExpiration(ctx, domain)
	if err != nil {
		logger.WithError(err).Warn("certificate inspection failed")
		return model.DomainCheckResult{Domain: domain, Err: err}
	}

	days := DaysUntil(expiration, today)
	logger.WithFields(logrus.Fields{
		"expires":   expiration.Format(time.RFC3339),
		"days_left": days,
	}).Info("certificate inspected")

	return model.DomainCheckResult{
		Domain:        domain,
		Expiration:    &expiration,
		DaysRemaining: &days,
	}
}

// CheckAllCertificates inspects domains one at a time in the given order.
// It stops early only when ctx is cancelled.
func (i *Inspector) CheckAllCertificates(ctx context.Context, domains []string, today time.Time) []model.DomainCheckResult {
	results := make([]model.DomainCheckResult, 0, len(domains))
	for _, d := range domains {
		if ctx.Err() != nil {
			i.logger().WithError(ctx.Err()).Warn("run cancelled, skipping remaining domains")
			break
		}
		results = append(results, i.CheckDomain(ctx, d, today))
	}
	return results
}

func (i *Inspector) logger() *logrus.Entry {
	if i.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return i.Logger
}
