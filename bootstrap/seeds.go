package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// SeedResolver discovers additional bootstrap endpoints from DNS seed names.
// Each seed publishes TXT records whose values are endpoint URLs.
type SeedResolver struct {
	server string
	client *dns.Client
}

// NewSeedResolver targets the supplied DNS server (host:port). An empty
// server falls back to the first resolver in /etc/resolv.conf.
func NewSeedResolver(server string) (*SeedResolver, error) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("load resolver config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no DNS servers configured")
		}
		trimmed = conf.Servers[0] + ":" + conf.Port
	}
	return &SeedResolver{server: trimmed, client: &dns.Client{}}, nil
}

// Discover queries each seed name for TXT records and returns every value
// that looks like an endpoint URL. Seeds that fail to resolve are skipped;
// discovery is best-effort and never blocks startup on a dead seed.
func (r *SeedResolver) Discover(ctx context.Context, seeds []string) []string {
	var endpoints []string
	for _, seed := range seeds {
		name := dns.Fqdn(strings.TrimSpace(seed))
		if name == "." {
			continue
		}
		msg := &dns.Msg{}
		msg.SetQuestion(name, dns.TypeTXT)
		resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
		if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, answer := range resp.Answer {
			txt, ok := answer.(*dns.TXT)
			if !ok {
				continue
			}
			for _, value := range txt.Txt {
				value = strings.TrimSpace(value)
				if strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://") {
					endpoints = append(endpoints, value)
				}
			}
		}
	}
	return endpoints
}
