package scrap

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	zonePageSize   = 50
	recordPageSize = 500 // API maximum
	domainPageSize = 100
)

type dnsRecord struct {
	Type string
	RR   string
}

// dnsSource lists hosted zones and their records.
type dnsSource interface {
	zones(page int) ([]string, error)
	records(zone string) ([]dnsRecord, error)
}

// registrarSource lists registered domains.
type registrarSource interface {
	registered(page int) ([]string, error)
}

// subdomains returns host names of A, AAAA and CNAME records in every zone.
// Zone apex records are skipped. A zone whose records cannot be listed is
// logged and skipped.
func subdomains(src dnsSource, logger *logrus.Entry) ([]string, error) {
	var all []string
	for page := 1; ; page++ {
		zones, err := src.zones(page)
		if err != nil {
			return nil, fmt.Errorf("listing dns zones, page %d: %w", page, err)
		}

		for _, zone := range zones {
			records, err := src.records(zone)
			if err != nil {
				logger.WithField("zone", zone).WithError(err).Warn("skipping zone")
				continue
			}
			for _, r := range records {
				if r.Type != "A" && r.Type != "CNAME" && r.Type != "AAAA" {
					continue
				}
				if r.RR == "@" {
					continue
				}
				all = append(all, fmt.Sprintf("%s.%s", r.RR, zone))
			}
		}

		if len(zones) < zonePageSize {
			break
		}
	}
	return all, nil
}

func registeredDomains(src registrarSource) ([]string, error) {
	var all []string
	for page := 1; ; page++ {
		domains, err := src.registered(page)
		if err != nil {
			return nil, fmt.Errorf("listing registered domains, page %d: %w", page, err)
		}
		all = append(all, domains...)
		if len(domains) < domainPageSize {
			break
		}
	}
	return all, nil
}

// Merge appends discovered to configured, dropping case-insensitive
// duplicates and keeping first-seen order.
func Merge(configured []string, discovered ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(names []string) {
		for _, n := range names {
			key := strings.ToLower(strings.TrimSuffix(n, "."))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, n)
		}
	}
	add(configured)
	for _, d := range discovered {
		add(d)
	}
	return out
}
