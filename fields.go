package auth

import (
	"fmt"
	"reflect"
	"strings"
)

// fieldValue extracts a named field from an externally owned object. The
// engine never dictates the object's shape: maps are looked up by key,
// structs by json tag and then by case-insensitive field name.
func fieldValue(principal any, name string) (any, bool) {
	if principal == nil {
		return nil, false
	}

	if m, ok := principal.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	if m, ok := principal.(map[string]string); ok {
		v, ok := m[name]
		return v, ok
	}

	value := reflect.ValueOf(principal)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, false
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, false
	}

	structType := value.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if tag == name || (tag == "" && strings.EqualFold(field.Name, name)) {
			return value.Field(i).Interface(), true
		}
	}
	return nil, false
}

// principalID returns the principal's identifier as a string, or "" when the
// configured field is absent. Guards compare identifiers as strings.
func (s *Security) principalID(principal any) string {
	v, ok := fieldValue(principal, s.fields.ID)
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// stringValue renders a field value for the string comparisons the guards
// perform. Identifiers may be strings or numbers on the wire.
func stringValue(v any) string {
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s *Security) principalRoles(principal any) []string {
	v, ok := fieldValue(principal, s.fields.Roles)
	if !ok || v == nil {
		return nil
	}

	switch roles := v.(type) {
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			out = append(out, fmt.Sprint(r))
		}
		return out
	}

	value := reflect.ValueOf(v)
	if value.Kind() == reflect.Slice || value.Kind() == reflect.Array {
		out := make([]string, 0, value.Len())
		for i := 0; i < value.Len(); i++ {
			out = append(out, fmt.Sprint(value.Index(i).Interface()))
		}
		return out
	}
	return nil
}
