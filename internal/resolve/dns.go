package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const resolvConfPath = "/etc/resolv.conf"

var fallbackNameservers = []string{"1.1.1.1:53"}

// DNSResolver queries A records directly from recursive nameservers.
type DNSResolver struct {
	servers []string
	timeout time.Duration
}

// NewDNSResolver creates a resolver for the given nameservers. With no
// servers it uses those in /etc/resolv.conf, falling back to 1.1.1.1.
func NewDNSResolver(servers []string, timeout time.Duration) (*DNSResolver, error) {
	if len(servers) == 0 {
		servers = systemNameservers()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		normalized = append(normalized, withDefaultPort(s))
	}
	return &DNSResolver{servers: normalized, timeout: timeout}, nil
}

func systemNameservers() []string {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(cfg.Servers) == 0 {
		slog.Debug("no nameservers in resolv.conf, using fallback", "path", resolvConfPath, "error", err)
		return fallbackNameservers
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}

func withDefaultPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}

// Servers returns the nameservers queried, in order.
func (r *DNSResolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// Resolve asks each nameserver in turn until one answers. CNAME records in
// the answer are skipped; only A records are returned.
func (r *DNSResolver) Resolve(ctx context.Context, domain string) (AddressList, error) {
	if _, ok := dns.IsDomainName(domain); !ok || domain == "" {
		return AddressList{}, fmt.Errorf("%w: invalid domain name %q", ErrResolveFailed, domain)
	}

	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	req.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, err := r.exchange(ctx, req, server)
		if err != nil {
			slog.Debug("nameserver failed", "domain", domain, "server", server, "error", err)
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return answerAddresses(resp), nil
		case dns.RcodeNameError:
			return AddressList{}, nil
		default:
			lastErr = fmt.Errorf("server %s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nameservers configured")
	}
	return AddressList{}, fmt.Errorf("%w: %s: %w", ErrResolveFailed, domain, lastErr)
}

// exchange sends req over UDP and retries over TCP when the answer is truncated.
func (r *DNSResolver) exchange(ctx context.Context, req *dns.Msg, server string) (*dns.Msg, error) {
	resp, err := r.exchangeTransport(ctx, req, "udp", server)
	if err == nil && resp.Truncated {
		slog.Debug("response truncated, retrying with TCP", "server", server)
		return r.exchangeTransport(ctx, req, "tcp", server)
	}
	return resp, err
}

func (r *DNSResolver) exchangeTransport(ctx context.Context, req *dns.Msg, transport, server string) (*dns.Msg, error) {
	c := &dns.Client{
		Net:          transport,
		DialTimeout:  r.timeout,
		ReadTimeout:  r.timeout,
		WriteTimeout: r.timeout,
	}
	resp, _, err := c.ExchangeContext(ctx, req, server)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func answerAddresses(resp *dns.Msg) AddressList {
	candidates := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			candidates = append(candidates, a.A.String())
		}
	}
	return Filter(candidates)
}
