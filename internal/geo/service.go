package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/TomasB/whatcountry/internal/flags"
	"github.com/TomasB/whatcountry/internal/metrics"
	"github.com/TomasB/whatcountry/internal/resolve"
)

// Result is everything known about one domain.
type Result struct {
	Addresses   resolve.AddressList
	CountryCode string
	Flag        *flags.Record
}

// Body is the JSON document returned to clients. The flag fields are set
// exactly when a flag record was found, even if the record's values are empty.
type Body struct {
	IPs         string  `json:"ips"`
	FlagImg     *string `json:"flagImg,omitempty"`
	CountryName *string `json:"countryName,omitempty"`
}

// Body builds the client document for r.
func (r Result) Body() Body {
	b := Body{IPs: r.Addresses.Joined()}
	if r.Flag != nil {
		img, name := r.Flag.FlagImg, r.Flag.Name
		b.FlagImg = &img
		b.CountryName = &name
	}
	return b
}

// EncodeBody renders the client document as compact JSON without HTML escaping.
func EncodeBody(r Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Body()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Service runs the whole pipeline: resolve the domain, then locate the
// first address. It holds no per-request state and is safe for concurrent use.
type Service struct {
	resolver resolve.Resolver
	locator  *Locator
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewService creates a service. Each resolution is bounded by timeout when
// it is positive. m may be nil.
func NewService(resolver resolve.Resolver, locator *Locator, timeout time.Duration, m *metrics.Metrics) *Service {
	return &Service{resolver: resolver, locator: locator, timeout: timeout, metrics: m}
}

// Lookup resolves domain and locates its first IPv4 address. Failures
// degrade the result instead of being returned: a failed resolution leaves
// the address list empty and a failed geo lookup leaves the flag unset.
func (s *Service) Lookup(ctx context.Context, transport, domain string) Result {
	resolveCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	addrs, err := s.resolver.Resolve(resolveCtx, domain)
	if err != nil {
		slog.Warn("domain resolution failed", "domain", domain, "transport", transport, "error", err)
		s.metrics.ResolveFailed(transport)
	}
	result := Result{Addresses: resolve.Filter(addrs)}

	first := result.Addresses.First()
	if first == "" {
		slog.Debug("no IPv4 addresses resolved", "domain", domain)
		return result
	}

	loc := s.locator.Locate(first)
	s.metrics.GeoLookup(string(loc.Outcome))
	result.CountryCode = loc.CountryCode
	result.Flag = loc.Flag

	slog.Debug("lookup completed",
		"domain", domain,
		"ips", result.Addresses.Joined(),
		"country", loc.CountryCode,
		"outcome", loc.Outcome,
	)
	return result
}
