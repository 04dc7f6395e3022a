package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// List is a comma separated environment value. Entries are trimmed and
// empty entries dropped.
type List []string

func (l *List) Decode(value string) error {
	*l = SplitList(value)
	return nil
}

// SplitList splits a comma separated string into trimmed, non-empty items.
func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type Config struct {
	SenderEmail     string `envconfig:"SENDER_EMAIL"`
	EmailPassword   string `envconfig:"EMAIL_PASSWORD"`
	RecipientEmails List   `envconfig:"RECIPIENT_EMAILS"`
	DomainNames     List   `envconfig:"DOMAIN_NAMES"`
	DayThreshold    *int   `envconfig:"DAY_THRESHOLD"`

	SMTPHost         string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort         int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPRequireTLS   bool   `envconfig:"SMTP_REQUIRE_TLS" default:"true"`
	MailHighPriority bool   `envconfig:"MAIL_HIGH_PRIORITY" default:"false"`

	// TLSVerify selects strict inspection (chain and hostname checked against
	// the system roots). When false any certificate is accepted, which is only
	// appropriate when every configured domain is trusted out of band.
	TLSVerify      bool          `envconfig:"TLS_VERIFY" default:"true"`
	InspectTimeout time.Duration `envconfig:"INSPECT_TIMEOUT" default:"10s"`
	AlertOnFailure bool          `envconfig:"ALERT_ON_FAILURE" default:"false"`

	PushgatewayURL string        `envconfig:"PUSHGATEWAY_URL"`
	MetricsJob     string        `envconfig:"METRICS_JOB" default:"ssl_expiry_check"`
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:":9100"`
	ScrapeInterval time.Duration `envconfig:"SCRAPE_INTERVAL" default:"6h"`

	DiscoverAliDNS    bool   `envconfig:"DISCOVER_ALIDNS" default:"false"`
	DiscoverAliDomain bool   `envconfig:"DISCOVER_ALIDOMAIN" default:"false"`
	AliAccessKeyID    string `envconfig:"ALIBABA_CLOUD_ACCESS_KEY_ID"`
	AliAccessSecret   string `envconfig:"ALIBABA_CLOUD_ACCESS_KEY_SECRET"`
	AliRegion         string `envconfig:"ALIBABA_CLOUD_REGION" default:"cn-shanghai"`
}

// ConfigError reports missing or invalid configuration. It is fatal: no
// domain is inspected when it is returned.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Threshold returns the day threshold. Only valid after Validate succeeded.
func (c Config) Threshold() int {
	if c.DayThreshold == nil {
		return 0
	}
	return *c.DayThreshold
}

func (c Config) DiscoveryEnabled() bool {
	return c.DiscoverAliDNS || c.DiscoverAliDomain
}

func (c Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}

// Validate checks every required key and returns all problems at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.SenderEmail == "" {
		result = multierror.Append(result, errors.New("SENDER_EMAIL is required"))
	}
	if c.EmailPassword == "" {
		result = multierror.Append(result, errors.New("EMAIL_PASSWORD is required"))
	}
	if len(c.RecipientEmails) == 0 {
		result = multierror.Append(result, errors.New("RECIPIENT_EMAILS is required"))
	}
	if len(c.DomainNames) == 0 && !c.DiscoveryEnabled() {
		result = multierror.Append(result, errors.New("DOMAIN_NAMES is required"))
	}
	switch {
	case c.DayThreshold == nil:
		result = multierror.Append(result, errors.New("DAY_THRESHOLD is required"))
	case *c.DayThreshold < 0:
		result = multierror.Append(result, fmt.Errorf("DAY_THRESHOLD must not be negative, got %d", *c.DayThreshold))
	}
	if c.InspectTimeout <= 0 {
		result = multierror.Append(result, errors.New("INSPECT_TIMEOUT must be positive"))
	}
	if c.ScrapeInterval <= 0 {
		result = multierror.Append(result, errors.New("SCRAPE_INTERVAL must be positive"))
	}
	if !c.SMTPRequireTLS && !isLocalRelay(c.SMTPHost) {
		result = multierror.Append(result, fmt.Errorf("SMTP_REQUIRE_TLS=false is only supported for localhost relays, got %q", c.SMTPHost))
	}
	if c.DiscoveryEnabled() && (c.AliAccessKeyID == "" || c.AliAccessSecret == "") {
		result = multierror.Append(result, errors.New("ALIBABA_CLOUD_ACCESS_KEY_ID and ALIBABA_CLOUD_ACCESS_KEY_SECRET are required for discovery"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// isLocalRelay matches the hosts net/smtp allows PLAIN auth to without TLS.
func isLocalRelay(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// Load reads envFile (when it exists) into the environment without
// overriding variables that are already set, then processes and validates
// the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, &ConfigError{Err: fmt.Errorf("reading %s: %w", envFile, err)}
		}
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, &ConfigError{Err: err}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
