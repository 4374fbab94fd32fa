// Package flags holds the static country code to flag table.
package flags

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed flags.yaml
var defaultTable []byte

// Record is one country entry of the flag table.
type Record struct {
	Key     string `yaml:"key" json:"key"`
	Name    string `yaml:"name" json:"name"`
	FlagImg string `yaml:"flag_img" json:"flagImg"`
}

// Catalog is an immutable, ordered flag table. It is safe for concurrent use.
type Catalog struct {
	records []Record
}

// New builds a catalog from records, keeping their order.
func New(records []Record) *Catalog {
	return &Catalog{records: append([]Record(nil), records...)}
}

// Default returns the catalog built from the embedded table.
func Default() (*Catalog, error) {
	return Parse(defaultTable)
}

// Load reads a YAML flag table from path. An empty path yields the default table.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flag table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML list of records.
func Parse(data []byte) (*Catalog, error) {
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse flag table: %w", err)
	}
	for i, r := range records {
		if r.Key == "" {
			return nil, fmt.Errorf("flag table entry %d has no key", i)
		}
	}
	return &Catalog{records: records}, nil
}

// Lookup returns the first record whose key equals code exactly.
// An empty code is never looked up.
func (c *Catalog) Lookup(code string) (Record, bool) {
	if code == "" {
		return Record{}, false
	}
	for _, r := range c.records {
		if r.Key == code {
			return r, true
		}
	}
	return Record{}, false
}

// Len returns the number of records in the table.
func (c *Catalog) Len() int {
	return len(c.records)
}
