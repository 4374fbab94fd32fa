package data

import (
	"maps"
	"slices"
)

// Kind classifies a flattened entry.
type Kind int

const (
	// KindOther covers maps, arrays, numbers, booleans and bytes.
	KindOther Kind = iota
	// KindString marks a UTF-8 string, either a map key or a value.
	KindString
)

// Entry is one element of a flattened database record.
type Entry struct {
	HasData bool
	Kind    Kind
	// Value is only set when Kind is KindString.
	Value string
}

// StringEntry returns a string entry carrying s.
func StringEntry(s string) Entry {
	return Entry{HasData: true, Kind: KindString, Value: s}
}

// Flatten linearises a decoded record in pre-order. A map yields a marker
// entry followed by each key and its value, keys in ascending order; an array
// yields a marker entry followed by its elements. A nil value yields an entry
// without data.
func Flatten(record any) []Entry {
	return appendEntries(nil, record)
}

func appendEntries(entries []Entry, v any) []Entry {
	switch val := v.(type) {
	case nil:
		return append(entries, Entry{})
	case string:
		return append(entries, StringEntry(val))
	case map[string]any:
		entries = append(entries, Entry{HasData: true, Kind: KindOther})
		for _, k := range slices.Sorted(maps.Keys(val)) {
			entries = append(entries, StringEntry(k))
			entries = appendEntries(entries, val[k])
		}
		return entries
	case []any:
		entries = append(entries, Entry{HasData: true, Kind: KindOther})
		for _, elem := range val {
			entries = appendEntries(entries, elem)
		}
		return entries
	default:
		return append(entries, Entry{HasData: true, Kind: KindOther})
	}
}
