package utils

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON   = errors.New("content is not valid JSON")
	ErrNotTabular    = errors.New("content must be a JSON object or an array of JSON objects")
	ErrNonObjectRows = errors.New("every row of the content must be a JSON object")
)

var numericCell = regexp.MustCompile(`^(\-|\+)?([0-9]+(\.[0-9]+)?|Infinity)$`)

// ConvertCSVToRecords turns raw CSV text into one record per data row,
// keyed by the header row. Rows shorter than the header produce records
// with missing keys; cells past the header are dropped.
func ConvertCSVToRecords(raw string) []map[string]any {
	lines := strings.Split(raw, "\n")
	rows := make([][]string, len(lines))
	for i, line := range lines {
		cells := strings.Split(line, ",")
		for j := range cells {
			cells[j] = strings.TrimSpace(cells[j])
		}
		rows[i] = cells
	}

	header, rows := rows[0], rows[1:]
	for len(rows) > 0 && rows[len(rows)-1][0] == "" {
		rows = rows[:len(rows)-1]
	}

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			record[header[i]] = coerceCell(cell)
		}
		records = append(records, record)
	}
	return records
}

func coerceCell(cell string) any {
	if !numericCell.MatchString(cell) {
		return cell
	}
	n, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return cell
	}
	return n
}

// ConvertToFlatJSON flattens a JSON object, or every object of a JSON
// array, into dot-joined keys. Arrays and empty objects are kept as leaf
// values. Scalars yield nil.
func ConvertToFlatJSON(raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(raw)
	switch {
	case root.IsArray():
		rows := make([]any, 0)
		root.ForEach(func(_, row gjson.Result) bool {
			if row.IsObject() {
				rows = append(rows, flattenObject(row))
			} else {
				rows = append(rows, row.Value())
			}
			return true
		})
		return rows, nil
	case root.IsObject():
		return flattenObject(root), nil
	}
	return nil, nil
}

// FlattenRecords normalizes JSON content into the canonical record array.
// A single object becomes a one-record array.
func FlattenRecords(raw []byte) ([]map[string]any, error) {
	flat, err := ConvertToFlatJSON(raw)
	if err != nil {
		return nil, err
	}

	switch v := flat.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, row := range v {
			record, ok := row.(map[string]any)
			if !ok {
				return nil, ErrNonObjectRows
			}
			records = append(records, record)
		}
		return records, nil
	}
	return nil, ErrNotTabular
}

func flattenObject(obj gjson.Result) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", obj)
	return out
}

func flattenInto(out map[string]any, prefix string, obj gjson.Result) {
	obj.ForEach(func(key, value gjson.Result) bool {
		path := key.String()
		if prefix != "" {
			path = prefix + "." + path
		}
		if value.IsObject() && len(value.Map()) > 0 {
			flattenInto(out, path, value)
		} else {
			out[path] = value.Value()
		}
		return true
	})
}

// SanitizeRecords replaces non-finite numbers with nil in place so the
// records can be encoded as JSON.
func SanitizeRecords(records []map[string]any) {
	for _, record := range records {
		for k, v := range record {
			record[k] = sanitizeValue(v)
		}
	}
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return nil
		}
	case []any:
		for i := range t {
			t[i] = sanitizeValue(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = sanitizeValue(t[k])
		}
	}
	return v
}
