package scrap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDNS struct {
	pages      [][]string
	byZone     map[string][]dnsRecord
	failZones  map[string]bool
	failPage   int
	pagesAsked []int
}

func (f *fakeDNS) zones(page int) ([]string, error) {
	f.pagesAsked = append(f.pagesAsked, page)
	if page == f.failPage {
		return nil, errors.New("throttled")
	}
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func (f *fakeDNS) records(zone string) ([]dnsRecord, error) {
	if f.failZones[zone] {
		return nil, errors.New("forbidden")
	}
	return f.byZone[zone], nil
}

type fakeRegistrar struct {
	pages [][]string
}

func (f fakeRegistrar) registered(page int) ([]string, error) {
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func nullEntry() (*logrus.Entry, *logrustest.Hook) {
	logger, hook := logrustest.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func TestSubdomains(t *testing.T) {
	src := &fakeDNS{
		pages: [][]string{{"example.com", "example.org"}},
		byZone: map[string][]dnsRecord{
			"example.com": {
				{Type: "A", RR: "www"},
				{Type: "A", RR: "@"},
				{Type: "MX", RR: "mail"},
				{Type: "CNAME", RR: "api"},
			},
			"example.org": {
				{Type: "AAAA", RR: "v6"},
				{Type: "TXT", RR: "_acme-challenge"},
			},
		},
	}
	logger, _ := nullEntry()

	got, err := subdomains(src, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "api.example.com", "v6.example.org"}, got)
	assert.Equal(t, []int{1}, src.pagesAsked)
}

func TestSubdomainsPaginates(t *testing.T) {
	full := make([]string, zonePageSize)
	records := map[string][]dnsRecord{}
	for i := range full {
		full[i] = fmt.Sprintf("zone%d.com", i)
	}
	records["last.com"] = []dnsRecord{{Type: "A", RR: "www"}}
	src := &fakeDNS{pages: [][]string{full, {"last.com"}}, byZone: records}
	logger, _ := nullEntry()

	got, err := subdomains(src, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.last.com"}, got)
	assert.Equal(t, []int{1, 2}, src.pagesAsked)
}

func TestSubdomainsSkipsFailingZone(t *testing.T) {
	src := &fakeDNS{
		pages: [][]string{{"bad.com", "good.com"}},
		byZone: map[string][]dnsRecord{
			"good.com": {{Type: "A", RR: "www"}},
		},
		failZones: map[string]bool{"bad.com": true},
	}
	logger, hook := nullEntry()

	got, err := subdomains(src, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.good.com"}, got)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "bad.com", hook.LastEntry().Data["zone"])
}

func TestSubdomainsZoneListFailure(t *testing.T) {
	src := &fakeDNS{failPage: 1}
	logger, _ := nullEntry()

	_, err := subdomains(src, logger)
	assert.ErrorContains(t, err, "listing dns zones, page 1")
}

func TestRegisteredDomains(t *testing.T) {
	full := make([]string, domainPageSize)
	for i := range full {
		full[i] = fmt.Sprintf("d%d.com", i)
	}
	got, err := registeredDomains(fakeRegistrar{pages: [][]string{full, {"tail.com"}}})
	require.NoError(t, err)
	assert.Len(t, got, domainPageSize+1)
	assert.Equal(t, "tail.com", got[len(got)-1])
}

func TestMerge(t *testing.T) {
	got := Merge(
		[]string{"a.com", "B.com"},
		[]string{"b.com", "c.com."},
		[]string{"c.com", "", "d.com"},
	)
	assert.Equal(t, []string{"a.com", "B.com", "c.com.", "d.com"}, got)
	assert.Nil(t, Merge(nil))
}
