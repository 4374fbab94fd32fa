// Package resolve turns domain names into IPv4 address lists.
package resolve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"time"
)

// ErrResolveFailed is wrapped by errors returned when a resolution mechanism
// could not produce an answer at all.
var ErrResolveFailed = errors.New("resolution failed")

// Resolver resolves a domain name to IPv4 addresses.
//
// On error the returned list holds whatever was resolved before the failure,
// which may be nothing. Callers log the error and carry on with the list.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (AddressList, error)
}

// AddressList is an ordered list of IPv4 literals. Duplicates are kept.
type AddressList []string

// Joined returns every address followed by a single space.
func (l AddressList) Joined() string {
	var b strings.Builder
	for _, addr := range l {
		b.WriteString(addr)
		b.WriteByte(' ')
	}
	return b.String()
}

// First returns the text before the first separating space of Joined,
// which is the first address or "" for an empty list.
func (l AddressList) First() string {
	joined := l.Joined()
	if i := strings.IndexByte(joined, ' '); i >= 0 {
		return joined[:i]
	}
	return joined
}

// IsIPv4Literal reports whether s is a dotted-quad IPv4 address.
func IsIPv4Literal(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// Filter keeps the candidates that are IPv4 literals, in order.
func Filter(candidates []string) AddressList {
	list := AddressList{}
	for _, c := range candidates {
		if IsIPv4Literal(c) {
			list = append(list, c)
		}
	}
	return list
}

// ParseLines reads r line by line and keeps the lines that are IPv4 literals.
// CNAME targets, IPv6 addresses and blank lines are dropped.
func ParseLines(r io.Reader) (AddressList, error) {
	list := AddressList{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if IsIPv4Literal(line) {
			list = append(list, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return list, fmt.Errorf("failed to read resolver output: %w", err)
	}
	return list, nil
}

// Options selects and configures a Resolver.
type Options struct {
	// Backend is one of "dns", "command" or "system".
	Backend     string
	Nameservers []string
	Command     string
	Timeout     time.Duration
	CacheSize   int
	CacheTTL    time.Duration
}

// New builds the resolver described by opts, wrapped in a Cache when
// opts.CacheSize is positive.
func New(opts Options) (Resolver, error) {
	var (
		r   Resolver
		err error
	)
	switch opts.Backend {
	case "", "dns":
		r, err = NewDNSResolver(opts.Nameservers, opts.Timeout)
	case "command":
		r = NewCommandResolver(opts.Command)
	case "system":
		r = NewSystemResolver()
	default:
		return nil, fmt.Errorf("unknown resolver backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		r = NewCache(r, opts.CacheSize, opts.CacheTTL, opts.Timeout)
	}
	return r, nil
}
