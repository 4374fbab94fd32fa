package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	record := map[string]any{
		"registered_country": map[string]any{"iso_code": "GB"},
		"country": map[string]any{
			"geoname_id": uint64(6252001),
			"iso_code":   "US",
			"names":      map[string]any{"en": "United States"},
		},
		"subdivisions": []any{map[string]any{"iso_code": "WA"}},
	}

	want := []Entry{
		other(),
		StringEntry("country"), other(),
		StringEntry("geoname_id"), other(),
		StringEntry("iso_code"), StringEntry("US"),
		StringEntry("names"), other(), StringEntry("en"), StringEntry("United States"),
		StringEntry("registered_country"), other(),
		StringEntry("iso_code"), StringEntry("GB"),
		StringEntry("subdivisions"), other(), other(),
		StringEntry("iso_code"), StringEntry("WA"),
	}

	got := Flatten(record)
	require.Len(t, got, len(want))
	assert.Equal(t, want, got)

	code, ok := ScanISOCode(got)
	assert.True(t, ok)
	assert.Equal(t, "US", code)
}

func TestFlatten_Scalars(t *testing.T) {
	assert.Equal(t, []Entry{StringEntry("x")}, Flatten("x"))
	assert.Equal(t, []Entry{other()}, Flatten(true))
	assert.Equal(t, []Entry{other()}, Flatten(float64(1.5)))
	assert.Equal(t, []Entry{{}}, Flatten(nil))
}
