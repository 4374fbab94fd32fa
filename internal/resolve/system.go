package resolve

import (
	"context"
	"fmt"
	"net"
)

// SystemResolver uses the Go resolver, which honours /etc/hosts and nsswitch.
type SystemResolver struct {
	resolver *net.Resolver
}

// NewSystemResolver creates a resolver backed by net.DefaultResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{resolver: net.DefaultResolver}
}

// Resolve looks up the IPv4 addresses of domain. A name that does not exist
// yields an empty list and no error.
func (r *SystemResolver) Resolve(ctx context.Context, domain string) (AddressList, error) {
	ips, err := r.resolver.LookupIP(ctx, "ip4", domain)
	if err != nil {
		if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
			return AddressList{}, nil
		}
		return AddressList{}, fmt.Errorf("%w: %w", ErrResolveFailed, err)
	}
	candidates := make([]string, 0, len(ips))
	for _, ip := range ips {
		candidates = append(candidates, ip.String())
	}
	return Filter(candidates), nil
}
