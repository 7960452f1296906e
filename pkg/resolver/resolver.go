// Package resolver is the network-level A/AAAA query transport the lookup
// controller drives (the "Resolver" collaborator). It never touches the OS
// resolver — every answer comes from a real DNS exchange against a
// configured set of upstream servers, which is the whole point of this
// engine over a naive os-level getaddrinfo call.
//
// The exchange itself is grounded on github.com/miekg/dns.Client, the same
// choice lc-void's internal/dnsresolver makes for the identical problem;
// round-robin server selection is the atomic-counter-over-a-slice pattern
// the teacher's upstream/udp.UpstreamPool uses to spread load over pooled
// connections.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/miekg/dns"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

// Record is one resolved address plus its record TTL, the wire-level unit
// the controller turns into cache entries.
type Record struct {
	Addr netip.Addr
	TTL  time.Duration
}

// Exchanger is the subset of *dns.Client this package depends on, so tests
// can substitute a fake without spinning up a UDP listener.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Pool round-robins A/AAAA queries across a fixed set of upstream DNS
// servers (e.g. "1.1.1.1:53").
type Pool struct {
	client  Exchanger
	servers []string
	next    uint32
}

// NewPool builds a Pool querying servers with the given per-query timeout.
// If servers is empty, NewPool panics: a resolver with nowhere to send
// queries is a configuration error, not a runtime one.
func NewPool(servers []string, timeout time.Duration) *Pool {
	if len(servers) == 0 {
		panic("resolver: at least one upstream server is required")
	}
	cp := make([]string, len(servers))
	copy(cp, servers)
	return &Pool{
		client:  &dns.Client{Timeout: timeout, Net: "udp"},
		servers: cp,
	}
}

// NewPoolWithClient is NewPool with an injected Exchanger, used by tests.
func NewPoolWithClient(client Exchanger, servers []string) *Pool {
	cp := make([]string, len(servers))
	copy(cp, servers)
	return &Pool{client: client, servers: cp}
}

func (p *Pool) pickServer() string {
	i := atomic.AddUint32(&p.next, 1)
	return p.servers[i%uint32(len(p.servers))]
}

// Resolve4 queries a single A record set for host.
func (p *Pool) Resolve4(ctx context.Context, host string) ([]Record, error) {
	return p.resolve(ctx, host, dns.TypeA)
}

// Resolve6 queries a single AAAA record set for host.
func (p *Pool) Resolve6(ctx context.Context, host string) ([]Record, error) {
	return p.resolve(ctx, host, dns.TypeAAAA)
}

func (p *Pool) resolve(ctx context.Context, host string, qtype uint16) ([]Record, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(host), qtype)
	req.RecursionDesired = true

	resp, _, err := p.client.ExchangeContext(ctx, req, p.pickServer())
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp == nil {
		return nil, lookuperr.New(lookuperr.ServFail)
	}
	if code := classifyRcode(resp.Rcode); code != "" {
		return nil, lookuperr.New(code)
	}

	records := make([]Record, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			addr, ok := netip.AddrFromSlice(v.A.To4())
			if !ok {
				continue
			}
			records = append(records, Record{Addr: addr, TTL: time.Duration(v.Hdr.Ttl) * time.Second})
		case *dns.AAAA:
			addr, ok := netip.AddrFromSlice(v.AAAA.To16())
			if !ok {
				continue
			}
			records = append(records, Record{Addr: addr, TTL: time.Duration(v.Hdr.Ttl) * time.Second})
		}
	}
	return records, nil
}

func classifyRcode(rcode int) lookuperr.Code {
	switch rcode {
	case dns.RcodeSuccess:
		return ""
	case dns.RcodeNameError:
		return lookuperr.NotFound
	case dns.RcodeServerFailure:
		return lookuperr.ServFail
	case dns.RcodeRefused:
		return lookuperr.Refused
	case dns.RcodeFormatError:
		return lookuperr.FormErr
	case dns.RcodeNotImplemented:
		return lookuperr.NotImp
	default:
		return lookuperr.ServFail
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return lookuperr.Wrap(lookuperr.Timeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return lookuperr.Wrap(lookuperr.Timeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return lookuperr.Wrap(lookuperr.Cancelled, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return lookuperr.Wrap(lookuperr.ConnRefused, err)
	}
	return lookuperr.Wrap(lookuperr.ServFail, fmt.Errorf("resolver exchange: %w", err))
}
