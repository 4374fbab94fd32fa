package data

const isoCodeKey = "iso_code"

// ScanISOCode walks a flattened record and returns the first string that
// follows an "iso_code" string entry. The walk is flat: it does not track
// nesting, so an iso_code key under any sub-record can match, and once armed
// the next string entry wins even if it is itself a key. An entry without
// data ends the walk with no result.
func ScanISOCode(entries []Entry) (string, bool) {
	armed := false
	for _, e := range entries {
		if !e.HasData {
			return "", false
		}
		if e.Kind != KindString {
			continue
		}
		if armed {
			return e.Value, true
		}
		if e.Value == isoCodeKey {
			armed = true
		}
	}
	return "", false
}
