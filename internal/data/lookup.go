package data

import (
	"errors"
	"net"
)

// ErrNotFound is returned when the database holds no record for an address.
var ErrNotFound = errors.New("address not found in database")

// GeoLookup defines the interface for raw IP record lookups.
type GeoLookup interface {
	// LookupEntries returns the flattened record stored for the given IP address.
	// Returns ErrNotFound if the database has no record for it.
	LookupEntries(ip net.IP) ([]Entry, error)
}

// CountryLookup defines the interface for IP-to-country lookups.
type CountryLookup interface {
	// LookupCountry returns the ISO-3166 country record for the given IP address.
	// Returns an error if the lookup fails or the IP cannot be resolved.
	LookupCountry(ip net.IP) (Country, error)
}

// Country is the structured country section of a database record.
type Country struct {
	IsoCode           string            `json:"iso_code"`
	Names             map[string]string `json:"names,omitempty"`
	IsInEuropeanUnion bool              `json:"is_in_european_union"`
}
