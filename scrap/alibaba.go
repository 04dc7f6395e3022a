package scrap

import (
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/auth/credentials"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/alidns"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/domain"
	"github.com/sirupsen/logrus"

	"ssl-expiry-checker/config"
)

type aliDNS struct {
	client *alidns.Client
}

func (a aliDNS) zones(page int) ([]string, error) {
	req := alidns.CreateDescribeDomainsRequest()
	req.PageSize = requests.NewInteger(zonePageSize)
	req.PageNumber = requests.NewInteger(page)

	resp, err := a.client.DescribeDomains(req)
	if err != nil {
		return nil, err
	}
	zones := make([]string, 0, len(resp.Domains.Domain))
	for _, d := range resp.Domains.Domain {
		zones = append(zones, d.DomainName)
	}
	return zones, nil
}

func (a aliDNS) records(zone string) ([]dnsRecord, error) {
	req := alidns.CreateDescribeDomainRecordsRequest()
	req.DomainName = zone
	req.PageSize = requests.NewInteger(recordPageSize)

	resp, err := a.client.DescribeDomainRecords(req)
	if err != nil {
		return nil, err
	}
	records := make([]dnsRecord, 0, len(resp.DomainRecords.Record))
	for _, r := range resp.DomainRecords.Record {
		records = append(records, dnsRecord{Type: r.Type, RR: r.RR})
	}
	return records, nil
}

type aliDomain struct {
	client *domain.Client
}

func (a aliDomain) registered(page int) ([]string, error) {
	req := domain.CreateQueryDomainListRequest()
	req.PageSize = requests.NewInteger(domainPageSize)
	req.PageNum = requests.NewInteger(page)

	resp, err := a.client.QueryDomainList(req)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Data.Domain))
	for _, d := range resp.Data.Domain {
		names = append(names, d.DomainName)
	}
	return names, nil
}

// Discover lists domains from the Alibaba Cloud sources enabled in c.
func Discover(c config.Config, logger *logrus.Entry) ([]string, error) {
	sdkConfig := sdk.NewConfig()
	credential := credentials.NewAccessKeyCredential(c.AliAccessKeyID, c.AliAccessSecret)

	var found []string

	if c.DiscoverAliDomain {
		client, err := domain.NewClientWithOptions(c.AliRegion, sdkConfig, credential)
		if err != nil {
			return nil, err
		}
		names, err := registeredDomains(aliDomain{client: client})
		if err != nil {
			return nil, err
		}
		logger.WithField("count", len(names)).Info("discovered registered domains")
		found = append(found, names...)
	}

	if c.DiscoverAliDNS {
		client, err := alidns.NewClientWithOptions(c.AliRegion, sdkConfig, credential)
		if err != nil {
			return nil, err
		}
		names, err := subdomains(aliDNS{client: client}, logger)
		if err != nil {
			return nil, err
		}
		logger.WithField("count", len(names)).Info("discovered dns records")
		found = append(found, names...)
	}

	return found, nil
}
