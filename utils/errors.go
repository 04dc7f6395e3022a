package utils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindResolution
	KindTLS
)

func (k ErrorKind) String() string {
	switch k {
	case KindResolution:
		return "resolution error"
	case KindTLS:
		return "tls error"
	default:
		return "unknown error"
	}
}

var (
	ErrResolution = errors.New("resolution error")
	ErrTLS        = errors.New("tls error")
	ErrUnknown    = errors.New("unknown error")
	ErrTimeout    = errors.New("timeout")

	errNoPeerCertificates = errors.New("no peer certificates")
)

// InspectionError is the tagged failure of a single certificate inspection.
type InspectionError struct {
	Kind    ErrorKind
	Domain  string
	Timeout bool
	Err     error
}

func (e *InspectionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Domain, e.Kind)
	if e.Timeout {
		msg += " (timeout)"
	}
	return msg + ": " + e.Err.Error()
}

func (e *InspectionError) Unwrap() error {
	return e.Err
}

// Is matches the Err* sentinels by kind, and ErrTimeout by the timeout flag.
func (e *InspectionError) Is(target error) bool {
	switch target {
	case ErrResolution:
		return e.Kind == KindResolution
	case ErrTLS:
		return e.Kind == KindTLS
	case ErrUnknown:
		return e.Kind == KindUnknown
	case ErrTimeout:
		return e.Timeout
	}
	return false
}

// Reason is the short label used in logs, metrics and failure alerts.
func (e *InspectionError) Reason() string {
	if e.Timeout {
		return e.Kind.String() + " (timeout)"
	}
	return e.Kind.String()
}

// classify tags a dial or handshake error for domain.
func classify(domain string, err error) *InspectionError {
	var inspErr *InspectionError
	if errors.As(err, &inspErr) {
		return inspErr
	}

	ie := &InspectionError{Domain: domain, Err: err, Kind: KindUnknown}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		ie.Kind = KindResolution
		ie.Timeout = dnsErr.IsTimeout
		return ie
	}

	if isTimeout(err) {
		ie.Kind = KindTLS
		ie.Timeout = true
		return ie
	}

	var (
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		verifyErr  *tls.CertificateVerificationError
		hostErr    x509.HostnameError
		authErr    x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
		opErr      *net.OpError
	)
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		errors.As(err, &verifyErr),
		errors.As(err, &hostErr),
		errors.As(err, &authErr),
		errors.As(err, &invalidErr),
		errors.As(err, &opErr):
		ie.Kind = KindTLS
	}
	return ie
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
