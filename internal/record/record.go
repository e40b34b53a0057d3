package record

import (
	"encoding/json"
	"sort"
)

// ExtractionRecord is the decoded model output keyed by concept, then year,
// then field. A key present with a null value differs from an absent key.
type ExtractionRecord struct {
	data map[string]any
}

// Empty returns a record with no concepts.
func Empty() ExtractionRecord {
	return ExtractionRecord{data: map[string]any{}}
}

// FromPayload keeps the recognised concepts of payload and returns the
// remaining top-level keys, sorted.
func FromPayload(payload map[string]any) (ExtractionRecord, []string) {
	rec := Empty()
	var unknown []string
	for k, v := range payload {
		if IsConcept(k) {
			rec.data[k] = v
			continue
		}
		unknown = append(unknown, k)
	}
	sort.Strings(unknown)
	return rec, unknown
}

// Lookup follows path through nested objects. The second result is false when
// any segment is missing or a non-object is reached before the end.
func (r ExtractionRecord) Lookup(path ...string) (any, bool) {
	var cur any = r.data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Len returns the number of concepts present.
func (r ExtractionRecord) Len() int { return len(r.data) }

// Concepts returns the present concepts in canonical order.
func (r ExtractionRecord) Concepts() []string {
	var out []string
	for _, c := range Concepts {
		if _, ok := r.data[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Years returns the sorted year keys found under yearly concepts.
func (r ExtractionRecord) Years() []string {
	seen := make(map[string]bool)
	var years []string
	for _, c := range Concepts {
		if !IsYearly(c) {
			continue
		}
		m, ok := r.data[c].(map[string]any)
		if !ok {
			continue
		}
		for y := range m {
			if !seen[y] {
				seen[y] = true
				years = append(years, y)
			}
		}
	}
	sort.Strings(years)
	return years
}

func (r ExtractionRecord) MarshalJSON() ([]byte, error) {
	if r.data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.data)
}
