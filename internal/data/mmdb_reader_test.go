package data

import (
	"errors"
	"net"
	"os"
	"testing"
)

const testMMDBPath = "../../testdata/GeoLite2-City-Test.mmdb"

func skipIfNoMMDB(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testMMDBPath); os.IsNotExist(err) {
		t.Skip("test MMDB file not found; download it with: curl -L -o testdata/GeoLite2-City-Test.mmdb https://github.com/maxmind/MaxMind-DB/raw/main/test-data/GeoLite2-City-Test.mmdb")
	}
}

func TestNewMmdbReader_Success(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	if reader.DatabaseType() == "" {
		t.Error("expected database type in metadata")
	}
}

func TestNewMmdbReader_InvalidPath(t *testing.T) {
	_, err := NewMmdbReader("/nonexistent/path.mmdb")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestMmdbReader_LookupEntries(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	tests := []struct {
		name string
		ip   string
		want string
	}{
		{name: "UK IP", ip: "2.125.160.216", want: "GB"},
		{name: "US IP", ip: "216.160.83.56", want: "US"},
		{name: "SE IP", ip: "89.160.20.112", want: "SE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := reader.LookupEntries(net.ParseIP(tt.ip))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			code, ok := ScanISOCode(entries)
			if !ok {
				t.Fatal("expected an iso_code in the record")
			}
			if code != tt.want {
				t.Errorf("expected country %s, got %s", tt.want, code)
			}
		})
	}
}

func TestMmdbReader_LookupEntriesNotFound(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	_, err = reader.LookupEntries(net.ParseIP("10.0.0.1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMmdbReader_LookupCountry(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	country, err := reader.LookupCountry(net.ParseIP("2.125.160.216"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if country.IsoCode != "GB" {
		t.Errorf("expected country GB, got %s", country.IsoCode)
	}
	if country.Names["en"] != "United Kingdom" {
		t.Errorf("expected English name United Kingdom, got %q", country.Names["en"])
	}
}

func TestMmdbReader_Close(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("failed to close reader: %v", err)
	}
}
