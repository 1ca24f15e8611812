package validation

import (
	"reflect"
	"strings"
)

// dangerous substrings removed from free text before validation. The store
// uses parameterized queries; stripping these keeps hostile payloads out of
// logs and downstream consumers.
var dangerousSubstrings = []string{";", "--", "/*", "*/", "xp_", "sp_"}

// htmlEscaper covers the HTML-significant characters except the apostrophe,
// which is a legal character in names (O'Brien) and must survive sanitation.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// SanitizeString trims surrounding whitespace, HTML-escapes the value, and
// strips the injection blacklist. Pure.
func SanitizeString(value string) string {
	value = strings.TrimSpace(value)
	value = htmlEscaper.Replace(value)
	for _, s := range dangerousSubstrings {
		value = strings.ReplaceAll(value, s, "")
	}
	return value
}

// Sanitize walks a decoded request struct (via pointer) and rewrites every
// string field, recursing into nested structs and []string elements.
// Non-string fields and the structure shape are untouched.
func Sanitize(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return
	}
	sanitizeValue(val.Elem())
}

func sanitizeValue(val reflect.Value) {
	switch val.Kind() {
	case reflect.String:
		if val.CanSet() {
			val.SetString(SanitizeString(val.String()))
		}
	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			field := val.Field(i)
			if !field.CanSet() {
				continue
			}
			sanitizeValue(field)
		}
	case reflect.Slice:
		if val.Type().Elem().Kind() == reflect.String {
			for j := 0; j < val.Len(); j++ {
				sanitizeValue(val.Index(j))
			}
		}
	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return
		}
		for _, key := range val.MapKeys() {
			elem := val.MapIndex(key)
			if elem.Kind() == reflect.Interface {
				elem = elem.Elem()
			}
			if elem.Kind() == reflect.String {
				val.SetMapIndex(key, reflect.ValueOf(SanitizeString(elem.String())))
			}
		}
	case reflect.Ptr:
		if !val.IsNil() {
			sanitizeValue(val.Elem())
		}
	}
}

// SanitizeMap returns an equivalent nested map where every string value has
// been sanitized. Key order and structure shape are preserved; non-string
// values pass through unchanged.
func SanitizeMap(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch tv := v.(type) {
		case string:
			out[k] = SanitizeString(tv)
		case map[string]any:
			out[k] = SanitizeMap(tv)
		default:
			out[k] = v
		}
	}
	return out
}
