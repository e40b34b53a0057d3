package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FinancialRow is one flat output row. Values holds float64 or nil for numeric
// columns and a comma-joined string or nil for list columns.
type FinancialRow struct {
	Year    string
	Columns []string
	Values  map[string]any
}

// Get returns the value of a column.
func (r FinancialRow) Get(column string) any { return r.Values[column] }

// MarshalJSON writes the row as an object with keys in column order.
func (r FinancialRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[name])
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Normalizer projects records onto a column map.
type Normalizer struct {
	columns ColumnMap
	names   []string
}

// NewNormalizer returns a Normalizer for cm.
func NewNormalizer(cm ColumnMap) (*Normalizer, error) {
	if err := cm.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{columns: cm, names: cm.Names()}, nil
}

// DefaultNormalizer uses the built-in canonical columns.
func DefaultNormalizer() (*Normalizer, error) {
	cm, err := DefaultColumns()
	if err != nil {
		return nil, err
	}
	return NewNormalizer(cm)
}

// Columns returns the output column names in order.
func (n *Normalizer) Columns() []string { return n.names }

// Normalize flattens rec for one year. Missing paths and values that cannot
// be coerced become nil; the year column is always the requested year.
func (n *Normalizer) Normalize(rec ExtractionRecord, year string) FinancialRow {
	row := FinancialRow{Year: year, Columns: n.names, Values: make(map[string]any, len(n.names))}
	for _, c := range n.columns.Columns {
		switch c.Kind {
		case KindYear:
			row.Values[c.Name] = year
		case KindNumber:
			raw, _ := resolve(rec.data, c.Path, year)
			if f, ok := ParseNumber(raw); ok {
				row.Values[c.Name] = f
			} else {
				row.Values[c.Name] = nil
			}
		case KindList:
			raw, _ := resolve(rec.data, c.Path, year)
			row.Values[c.Name] = JoinList(raw)
		}
	}
	return row
}

// NormalizeAll returns one row per year. Without years it uses the year keys
// found in the record, or a single row with an empty year when there are none.
func (n *Normalizer) NormalizeAll(rec ExtractionRecord, years []string) []FinancialRow {
	if len(years) == 0 {
		years = rec.Years()
	}
	if len(years) == 0 {
		years = []string{""}
	}
	rows := make([]FinancialRow, 0, len(years))
	for _, y := range years {
		rows = append(rows, n.Normalize(rec, y))
	}
	return rows
}

// resolve walks path through node. A scalar reached early is accepted when the
// rest of the path is only the year placeholder and the field naming the
// concept itself, so {"Net Profit": "1,000"} and {"Net Profit": {"2023": "1,000"}}
// both resolve for column path [Net Profit, {year}, Net Profit].
func resolve(node any, path []string, year string) (any, bool) {
	cur := node
	for i, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			if i > 0 && skippable(path[0], path[i:]) {
				return cur, true
			}
			return nil, false
		}
		if seg == YearPlaceholder {
			cur, ok = matchYear(m, year)
		} else {
			cur, ok = m[seg]
		}
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func skippable(concept string, rest []string) bool {
	for _, seg := range rest {
		if seg == YearPlaceholder || seg == concept || strings.Contains(concept, "("+seg+")") {
			continue
		}
		return false
	}
	return true
}

// matchYear finds the entry for year: an exact key first, then the first key
// in sorted order that starts with year, then one that contains it.
func matchYear(m map[string]any, year string) (any, bool) {
	if year == "" {
		return nil, false
	}
	if v, ok := m[year]; ok {
		return v, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(strings.TrimSpace(k), year) {
			return m[k], true
		}
	}
	for _, k := range keys {
		if strings.Contains(k, year) {
			return m[k], true
		}
	}
	return nil, false
}

var missingValues = map[string]bool{
	"":          true,
	"-":         true,
	"--":        true,
	"n/a":       true,
	"na":        true,
	"nil":       true,
	"null":      true,
	"none":      true,
	"not found": true,
}

var currencyPrefixes = []string{"rs.", "rs", "lkr", "us$", "usd", "$"}

// ParseNumber coerces a decoded JSON value to float64. Strings may carry
// thousands separators, a currency prefix, a trailing percent sign or
// accounting parentheses for negatives. NaN and infinities are not numbers.
func ParseNumber(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		return parseNumberString(x)
	default:
		return 0, false
	}
}

func parseNumberString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if missingValues[strings.ToLower(s)] {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	lower := strings.ToLower(s)
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// JoinList renders a list value as a comma-joined string. Commas inside an item
// are removed so splitting on comma recovers the item count. Empty lists and
// missing values give nil.
func JoinList(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		if len(x) == 0 {
			return nil
		}
		items := make([]string, len(x))
		for i, item := range x {
			items[i] = strings.ReplaceAll(scalarString(item), ",", "")
		}
		return strings.Join(items, ", ")
	case string:
		s := strings.TrimSpace(x)
		if missingValues[strings.ToLower(s)] {
			return nil
		}
		return s
	default:
		s := scalarString(x)
		if s == "" {
			return nil
		}
		return s
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
