package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ssl-expiry-checker/model"
	"ssl-expiry-checker/utils"
)

var (
	DomainCertDaysLeft = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domain_tls_cert_days_left",
			Help: "Days until the domain's TLS leaf certificate expires.",
		},
		[]string{"domain"},
	)

	DomainCertExpiry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domain_tls_cert_expiry_timestamp_seconds",
			Help: "NotAfter of the domain's TLS leaf certificate as a unix timestamp.",
		},
		[]string{"domain"},
	)

	InspectionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_tls_inspection_failures_total",
			Help: "Certificate inspections that failed, by failure kind.",
		},
		[]string{"kind"},
	)

	CriticalDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssl_expiry_check_critical_domains",
			Help: "Domains at or under the warning threshold in the last run.",
		},
	)

	LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssl_expiry_check_last_run_timestamp_seconds",
			Help: "Completion time of the last run as a unix timestamp.",
		},
	)
)

var collectors = []prometheus.Collector{
	DomainCertDaysLeft, DomainCertExpiry, InspectionFailures, CriticalDomains, LastRun,
}

func init() {
	prometheus.MustRegister(collectors...)
}

// Record replaces the per-domain gauges with the results of one run.
func Record(results []model.DomainCheckResult, critical []model.CriticalDomain, finished float64) {
	DomainCertDaysLeft.Reset()
	DomainCertExpiry.Reset()

	for _, r := range results {
		if !r.OK() {
			InspectionFailures.WithLabelValues(utils.Reason(r.Err)).Inc()
			continue
		}
		DomainCertDaysLeft.WithLabelValues(r.Domain).Set(float64(*r.DaysRemaining))
		DomainCertExpiry.WithLabelValues(r.Domain).Set(float64(r.Expiration.Unix()))
	}

	CriticalDomains.Set(float64(len(critical)))
	LastRun.Set(finished)
}

// Push sends the collectors to a Prometheus Pushgateway under job.
func Push(url, job string) error {
	pusher := push.New(url, job)
	for _, c := range collectors {
		pusher = pusher.Collector(c)
	}
	return pusher.Push()
}
