package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// DNSConfig identifies the authoritative nameserver taking RFC 2136
// dynamic updates, and the address web traffic should resolve to.
type DNSConfig struct {
	// Server is the nameserver address, host:port.
	Server string

	// Zone is the zone updates are sent for. Hosted domains must live
	// under it.
	Zone string

	// TSIGKeyName and TSIGSecret authenticate updates. Both empty
	// disables TSIG signing.
	TSIGKeyName string
	TSIGSecret  string

	// WebIP is the address A records for hosted domains point at.
	WebIP string

	// TTL for created records. Zero means 3600.
	TTL uint32
}

type dnsExchanger interface {
	Exchange(m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// DNSZone publishes A records for a hosted domain (and its www alias)
// into the configured zone via dynamic update.
type DNSZone struct {
	cfg    DNSConfig
	client dnsExchanger
	log    *slog.Logger
}

// NewDNSZone builds the DNS provisioner.
func NewDNSZone(cfg DNSConfig, log *slog.Logger) (*DNSZone, error) {
	if cfg.Server == "" {
		return nil, &interfaces.ValidationError{Field: "dns.server", Reason: "nameserver address required"}
	}
	if cfg.Zone == "" {
		return nil, &interfaces.ValidationError{Field: "dns.zone", Reason: "zone required"}
	}
	if net.ParseIP(cfg.WebIP) == nil {
		return nil, &interfaces.ValidationError{Field: "dns.web_ip", Reason: "valid IP address required"}
	}
	if cfg.TTL == 0 {
		cfg.TTL = 3600
	}

	client := &dns.Client{Net: "tcp", Timeout: 10 * time.Second}
	if cfg.TSIGKeyName != "" {
		client.TsigSecret = map[string]string{dns.Fqdn(cfg.TSIGKeyName): cfg.TSIGSecret}
	}
	return &DNSZone{cfg: cfg, client: client, log: log}, nil
}

func (p *DNSZone) Kind() interfaces.StepKind        { return interfaces.StepDNSZone }
func (p *DNSZone) Policy() interfaces.FailurePolicy { return interfaces.PolicyFatal }

// names returns the record owner names published for a domain.
func (p *DNSZone) names(domain interfaces.Domain) []string {
	fqdn := dns.Fqdn(domain.String())
	return []string{fqdn, "www." + fqdn}
}

// Provision replaces the A RRset for the domain and its www alias. The
// replace-then-insert form makes a retried update land in the same
// terminal state as the first.
func (p *DNSZone) Provision(_ context.Context, req *interfaces.ProvisionRequest) (string, error) {
	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(p.cfg.Zone))
	for _, name := range p.names(req.Domain) {
		rr := &dns.A{
			Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: p.cfg.TTL},
			A:   net.ParseIP(p.cfg.WebIP),
		}
		msg.RemoveRRset([]dns.RR{rr})
		msg.Insert([]dns.RR{rr})
	}

	if err := p.exchange(msg); err != nil {
		return "", err
	}
	return fmt.Sprintf("A records for %s published, target %s", req.Domain, p.cfg.WebIP), nil
}

// Deprovision removes every record published for the domain. The server
// treats removal of absent names as success.
func (p *DNSZone) Deprovision(_ context.Context, req *interfaces.ProvisionRequest) (string, error) {
	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(p.cfg.Zone))
	for _, name := range p.names(req.Domain) {
		msg.RemoveName([]dns.RR{&dns.ANY{
			Hdr: dns.RR_Header{Name: name},
		}})
	}

	if err := p.exchange(msg); err != nil {
		return "", err
	}
	return fmt.Sprintf("records for %s withdrawn", req.Domain), nil
}

func (p *DNSZone) exchange(msg *dns.Msg) error {
	if p.cfg.TSIGKeyName != "" {
		msg.SetTsig(dns.Fqdn(p.cfg.TSIGKeyName), dns.HmacSHA256, 300, time.Now().Unix())
	}

	reply, _, err := p.client.Exchange(msg, p.cfg.Server)
	if err != nil {
		return &interfaces.ExternalToolError{Tool: "dns", Err: err}
	}
	if reply.Rcode != dns.RcodeSuccess {
		return &interfaces.ExternalToolError{
			Tool: "dns",
			Err:  fmt.Errorf("update refused: %s", dns.RcodeToString[reply.Rcode]),
		}
	}
	return nil
}
