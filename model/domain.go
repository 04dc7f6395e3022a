package model

import "time"

// DomainCheckResult is the outcome of inspecting one domain during a run.
// Expiration and DaysRemaining are nil when the inspection failed; Err then
// carries the tagged failure.
type DomainCheckResult struct {
	Domain        string
	Expiration    *time.Time // leaf NotAfter, UTC
	DaysRemaining *int
	Err           error
}

// OK reports whether the domain's certificate was retrieved.
func (r DomainCheckResult) OK() bool {
	return r.Err == nil && r.Expiration != nil
}

// CriticalDomain is a successfully inspected domain at or under the threshold.
type CriticalDomain struct {
	Domain        string
	DaysRemaining int
}

// FailedDomain is a domain whose certificate could not be checked.
type FailedDomain struct {
	Domain string
	Reason string
}

type NotificationMessage struct {
	Subject string
	Body    string
}

const (
	HTTPSPort   = "443"
	Timeout     = 10 * time.Second
	SubjectDate = "01/02/06"
)
