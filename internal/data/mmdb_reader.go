package data

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/multierr"
)

// MmdbReader implements GeoLookup and CountryLookup using a MaxMind MMDB file.
type MmdbReader struct {
	records   *maxminddb.Reader
	countries *geoip2.Reader
}

// NewMmdbReader opens the MMDB file at the given path and returns a reader.
func NewMmdbReader(path string) (*MmdbReader, error) {
	records, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	countries, err := geoip2.Open(path)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	return &MmdbReader{records: records, countries: countries}, nil
}

// LookupEntries decodes the record stored for ip and flattens it.
func (r *MmdbReader) LookupEntries(ip net.IP) ([]Entry, error) {
	var record any
	_, ok, err := r.records.LookupNetwork(ip, &record)
	if err != nil {
		return nil, fmt.Errorf("record lookup failed: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return Flatten(record), nil
}

// LookupCountry returns the country section of the record stored for ip.
func (r *MmdbReader) LookupCountry(ip net.IP) (Country, error) {
	record, err := r.countries.Country(ip)
	if err != nil {
		return Country{}, fmt.Errorf("country lookup failed: %w", err)
	}
	if record.Country.IsoCode == "" {
		return Country{}, ErrNotFound
	}
	return Country{
		IsoCode:           record.Country.IsoCode,
		Names:             record.Country.Names,
		IsInEuropeanUnion: record.Country.IsInEuropeanUnion,
	}, nil
}

// DatabaseType returns the database type from the file metadata.
func (r *MmdbReader) DatabaseType() string {
	return r.records.Metadata.DatabaseType
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	return multierr.Append(r.records.Close(), r.countries.Close())
}
