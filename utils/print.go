package utils

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"ssl-expiry-checker/model"
)

// PrintResults writes one row per inspected domain.
func PrintResults(w io.Writer, results []model.DomainCheckResult, threshold int) {
	fmt.Fprintf(w, "%-40s %-12s %-10s %-10s %s\n", "DOMAIN", "EXPIRES", "STATUS", "DAYS LEFT", "NOTE")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------")

	for _, r := range results {
		expires := "N/A"
		daysLeft := "N/A"
		status := "unknown"
		note := "None"
		if r.OK() {
			expires = r.Expiration.Format("2006-01-02")
			daysLeft = strconv.Itoa(*r.DaysRemaining)
			status = GetStatus(*r.DaysRemaining, threshold)
		}
		if r.Err != nil {
			note = Reason(r.Err)
		}
		fmt.Fprintf(w, "%-40s %-12s %-10s %-10s %s\n", r.Domain, expires, status, daysLeft, note)
	}
}

// Reason returns the short failure label for err.
func Reason(err error) string {
	var ie *InspectionError
	if errors.As(err, &ie) {
		return ie.Reason()
	}
	return KindUnknown.String()
}
