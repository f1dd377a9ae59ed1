package utils

type UpsertResult struct {
	AddedEntries   int `json:"addedEntries"`
	UpdatedEntries int `json:"updatedEntries"`
}

type DeleteResult struct {
	DeletedEntries    int `json:"deletedEntries"`
	EntriesNotDeleted int `json:"entriesNotDeleted"`
}

// UpsertEntries replaces records matching an entry's id (or _id when id
// is unset) in place and appends the rest. Entries with neither key are
// ignored.
func UpsertEntries(data, entries []map[string]any) ([]map[string]any, UpsertResult) {
	var result UpsertResult
	for _, entry := range entries {
		field, id, ok := entryKey(entry)
		if !ok {
			continue
		}
		if idx := indexOfEntry(data, field, id); idx != -1 {
			data[idx] = entry
			result.UpdatedEntries++
		} else {
			data = append(data, entry)
			result.AddedEntries++
		}
	}
	return data, result
}

// DeleteEntries removes the first record matching each entry's id or _id.
func DeleteEntries(data, entries []map[string]any) ([]map[string]any, DeleteResult) {
	var result DeleteResult
	for _, entry := range entries {
		field, id, ok := entryKey(entry)
		if !ok {
			continue
		}
		if idx := indexOfEntry(data, field, id); idx != -1 {
			data = append(data[:idx], data[idx+1:]...)
			result.DeletedEntries++
		} else {
			result.EntriesNotDeleted++
		}
	}
	return data, result
}

func entryKey(entry map[string]any) (string, any, bool) {
	if v := entry["id"]; truthy(v) {
		return "id", v, true
	}
	if v := entry["_id"]; truthy(v) {
		return "_id", v, true
	}
	return "", nil, false
}

func indexOfEntry(data []map[string]any, field string, id any) int {
	for i, record := range data {
		if sameID(record[field], id) {
			return i
		}
	}
	return -1
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if n, ok := toFloat(v); ok {
		return n != 0
	}
	return true
}

// sameID compares scalar ids strictly: numbers only match numbers and
// strings only match strings.
func sameID(a, b any) bool {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
