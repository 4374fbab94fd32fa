// Package geo maps an IP address to its country code and flag record.
package geo

import (
	"errors"
	"log/slog"
	"net"

	"github.com/TomasB/whatcountry/internal/data"
	"github.com/TomasB/whatcountry/internal/flags"
)

// Outcome describes how a Locate call ended.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeNoCode    Outcome = "no_code"
	OutcomeNoFlag    Outcome = "no_flag"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeInvalidIP Outcome = "invalid_ip"
	OutcomeError     Outcome = "error"
)

// Location is the geo data found for one address. Either field may be empty.
type Location struct {
	CountryCode string
	Flag        *flags.Record
	Outcome     Outcome
}

// Locator composes the database query, the iso_code scan and the flag table.
type Locator struct {
	db      data.GeoLookup
	catalog *flags.Catalog
}

// NewLocator creates a locator over db and catalog.
func NewLocator(db data.GeoLookup, catalog *flags.Catalog) *Locator {
	return &Locator{db: db, catalog: catalog}
}

// Locate returns the country code and flag for ip. A missing record, a
// missing code or an unknown code are reported in Outcome, never as errors;
// database read errors are logged and treated like a miss.
func (l *Locator) Locate(ip string) Location {
	if ip == "" {
		return Location{Outcome: OutcomeInvalidIP}
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{Outcome: OutcomeInvalidIP}
	}

	entries, err := l.db.LookupEntries(parsed)
	if errors.Is(err, data.ErrNotFound) {
		slog.Debug("address not in database", "ip", ip)
		return Location{Outcome: OutcomeNotFound}
	}
	if err != nil {
		slog.Error("geo lookup failed", "ip", ip, "error", err)
		return Location{Outcome: OutcomeError}
	}

	code, ok := data.ScanISOCode(entries)
	if !ok {
		return Location{Outcome: OutcomeNoCode}
	}

	record, ok := l.catalog.Lookup(code)
	if !ok {
		return Location{CountryCode: code, Outcome: OutcomeNoFlag}
	}
	return Location{CountryCode: code, Flag: &record, Outcome: OutcomeFound}
}
