package provisioner

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/interfaces"
)

type fakeExchanger struct {
	rcode    int
	err      error
	messages []*dns.Msg
	addrs    []string
}

func (f *fakeExchanger) Exchange(m *dns.Msg, addr string) (*dns.Msg, time.Duration, error) {
	f.messages = append(f.messages, m)
	f.addrs = append(f.addrs, addr)
	if f.err != nil {
		return nil, 0, f.err
	}
	reply := new(dns.Msg)
	reply.SetReply(m)
	reply.Rcode = f.rcode
	return reply, 0, nil
}

func testDNSZone(t *testing.T, exchanger dnsExchanger) *DNSZone {
	t.Helper()
	p, err := NewDNSZone(DNSConfig{
		Server: "ns1.example.net:53",
		Zone:   "example.com",
		WebIP:  "203.0.113.10",
	}, discardLogger())
	require.NoError(t, err)
	p.client = exchanger
	return p
}

func TestDNSZoneConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  DNSConfig
	}{
		{name: "no server", cfg: DNSConfig{Zone: "example.com", WebIP: "203.0.113.10"}},
		{name: "no zone", cfg: DNSConfig{Server: "ns1:53", WebIP: "203.0.113.10"}},
		{name: "bad ip", cfg: DNSConfig{Server: "ns1:53", Zone: "example.com", WebIP: "not-an-ip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDNSZone(tt.cfg, discardLogger())
			var validationErr *interfaces.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestDNSZonePublishesBothNames(t *testing.T) {
	exchanger := &fakeExchanger{rcode: dns.RcodeSuccess}
	p := testDNSZone(t, exchanger)

	msg, err := p.Provision(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Contains(t, msg, "203.0.113.10")

	require.Len(t, exchanger.messages, 1)
	assert.Equal(t, "ns1.example.net:53", exchanger.addrs[0])

	update := exchanger.messages[0]
	require.Len(t, update.Question, 1)
	assert.Equal(t, "example.com.", update.Question[0].Name)

	var inserted []string
	for _, rr := range update.Ns {
		if a, ok := rr.(*dns.A); ok && a.Hdr.Class == dns.ClassINET {
			inserted = append(inserted, a.Hdr.Name)
			assert.Equal(t, "203.0.113.10", a.A.String())
		}
	}
	assert.ElementsMatch(t, []string{"example.com.", "www.example.com."}, inserted)
}

func TestDNSZoneRefusedUpdate(t *testing.T) {
	exchanger := &fakeExchanger{rcode: dns.RcodeRefused}
	p := testDNSZone(t, exchanger)

	_, err := p.Provision(context.Background(), baseRequest())
	var toolErr *interfaces.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Error(), "REFUSED")
}

func TestDNSZoneTransportFailure(t *testing.T) {
	exchanger := &fakeExchanger{err: assert.AnError}
	p := testDNSZone(t, exchanger)

	_, err := p.Provision(context.Background(), baseRequest())
	var toolErr *interfaces.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
}

func TestDNSZoneDeprovisionWithdrawsNames(t *testing.T) {
	exchanger := &fakeExchanger{rcode: dns.RcodeSuccess}
	p := testDNSZone(t, exchanger)

	_, err := p.Deprovision(context.Background(), baseRequest())
	require.NoError(t, err)

	require.Len(t, exchanger.messages, 1)
	var removed []string
	for _, rr := range exchanger.messages[0].Ns {
		removed = append(removed, rr.Header().Name)
	}
	assert.ElementsMatch(t, []string{"example.com.", "www.example.com."}, removed)
}
