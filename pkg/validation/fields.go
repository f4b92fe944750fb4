package validation

import "reflect"

// HasFields reports whether every named field is present and non-empty in record.
// A field fails when its key is absent, its value is nil, it is the empty
// string, or it is an empty slice, array or map. Values are never coerced.
func HasFields(record map[string]any, fields ...string) bool {
	for _, field := range fields {
		if isEmpty(record, field) {
			return false
		}
	}
	return true
}

// MissingFields returns the fields that fail HasFields, in the order given.
func MissingFields(record map[string]any, fields ...string) []string {
	var missing []string
	for _, field := range fields {
		if isEmpty(record, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func isEmpty(record map[string]any, field string) bool {
	value, ok := record[field]
	if !ok || value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
