package bridge

// listMergeKeys names the stable key used to merge each known list-valued
// field. Lists not in this table are replaced wholesale by the override.
var listMergeKeys = map[string]string{
	"profiles":    "id",
	"keybindings": "id",
	"schemes":     "name",
}

// Merge layers an override payload on top of a baseline. Override fields
// take precedence; fields absent in the override keep their baseline
// values. Keyed list fields are merged entry-by-entry: an existing entry is
// updated in place, a new one is appended, and untouched entries keep their
// order. The inputs are not mutated.
func Merge(baseline, override Payload) Payload {
	if baseline == nil {
		return override.Clone()
	}
	if override == nil {
		return baseline.Clone()
	}

	merged := baseline.Clone()
	for field, overrideValue := range override {
		key, isKeyedList := listMergeKeys[field]
		if !isKeyedList {
			merged[field] = cloneValue(overrideValue)
			continue
		}

		baseList, baseOK := merged[field].([]interface{})
		overList, overOK := overrideValue.([]interface{})
		if !baseOK || !overOK {
			merged[field] = cloneValue(overrideValue)
			continue
		}
		merged[field] = mergeKeyedList(baseList, overList, key)
	}
	return merged
}

// mergeKeyedList merges override entries into the baseline list by the
// given key field. Both inputs were already cloned by the caller's
// Merge/Clone path, so in-place updates are safe.
func mergeKeyedList(base, override []interface{}, key string) []interface{} {
	index := make(map[string]int, len(base))
	for i, entry := range base {
		if id, ok := entryKey(entry, key); ok {
			index[id] = i
		}
	}

	merged := base
	for _, entry := range override {
		id, ok := entryKey(entry, key)
		if !ok {
			// Unkeyed override entries append; they cannot match anything.
			merged = append(merged, cloneValue(entry))
			continue
		}
		if i, exists := index[id]; exists {
			merged[i] = mergeEntry(merged[i], entry)
		} else {
			index[id] = len(merged)
			merged = append(merged, cloneValue(entry))
		}
	}
	return merged
}

// mergeEntry merges two list entries field-by-field when both are maps;
// otherwise the override wins.
func mergeEntry(base, override interface{}) interface{} {
	baseMap, baseOK := base.(map[string]interface{})
	overMap, overOK := override.(map[string]interface{})
	if !baseOK || !overOK {
		return cloneValue(override)
	}
	merged := map[string]interface{}(Payload(baseMap).Clone())
	for k, v := range overMap {
		merged[k] = cloneValue(v)
	}
	return merged
}

// entryKey extracts an entry's stable merge key.
func entryKey(entry interface{}, key string) (string, bool) {
	m, ok := entry.(map[string]interface{})
	if !ok {
		return "", false
	}
	id, ok := m[key].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
