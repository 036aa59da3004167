package variconf

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Result is the materialized configuration returned by Config.Get: a
// fully merged tree with all references resolved. Values are read by
// dotted path, either raw via Value, through the typed accessors, or
// decoded into a struct with Scan.
type Result struct {
	tree    map[string]any
	tagName string
}

// Value returns the raw value at the given dotted path. Reading a
// required parameter that was never supplied returns a MissingValueError
// (possible when the Result was obtained with AllowMissing).
func (r *Result) Value(path string) (any, error) {
	value, found := navigateToPath(r.tree, path)
	if !found {
		return nil, fmt.Errorf("configuration path not found: %s", path)
	}
	if _, isMissing := value.(missingValue); isMissing {
		return nil, &MissingValueError{Paths: []string{path}}
	}
	return value, nil
}

// AsMap returns the configuration as a nested map. Parameters still
// carrying the missing marker appear as the Required string.
func (r *Result) AsMap() map[string]any {
	return exportTree(r.tree).(map[string]any)
}

func exportTree(value any) any {
	switch v := value.(type) {
	case map[string]any:
		dst := make(map[string]any, len(v))
		for key, elem := range v {
			dst[key] = exportTree(elem)
		}
		return dst
	case []any:
		dst := make([]any, len(v))
		for i, elem := range v {
			dst[i] = exportTree(elem)
		}
		return dst
	case missingValue:
		return Required
	default:
		return value
	}
}

// Scan decodes the configuration under basePath (the whole tree when "")
// into target, which must be a non-nil pointer to a struct or map. Struct
// fields are matched via the schema tag name.
func (r *Result) Scan(basePath string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("target of Scan must be a non-nil pointer, got %T", target)
	}

	basePath = strings.TrimSuffix(basePath, ".")
	section := any(r.tree)
	if basePath != "" {
		value, found := navigateToPath(r.tree, basePath)
		if !found {
			value = map[string]any{}
		}
		section = value
	}

	sectionMap, ok := section.(map[string]any)
	if !ok {
		return fmt.Errorf("configuration path %q does not refer to a section (map), but to type %T", basePath, section)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          r.tagName,
		WeaklyTypedInput: true,
		DecodeHook:       decodeHooks(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(dropMissing(sectionMap)); err != nil {
		return fmt.Errorf("failed to scan section %q into %T: %w", basePath, target, err)
	}
	return nil
}

// dropMissing strips still-missing parameters so Scan leaves the
// corresponding target fields at their zero value.
func dropMissing(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		switch v := value.(type) {
		case map[string]any:
			out[key] = dropMissing(v)
		case missingValue:
			continue
		default:
			out[key] = value
		}
	}
	return out
}

// String retrieves a string value. Common scalar types are converted.
func (r *Result) String(path string) (string, error) {
	val, err := r.Value(path)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}

	if strVal, ok := val.(string); ok {
		return strVal, nil
	}

	switch v := val.(type) {
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float32, float64:
		return strconv.FormatFloat(reflect.ValueOf(val).Float(), 'f', -1, 64), nil
	case int, int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(val).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(val).Uint(), 10), nil
	default:
		return "", fmt.Errorf("cannot convert type %T to string for path %s", val, path)
	}
}

// Int64 retrieves an integer value. Numeric types, parsable strings and
// booleans are converted.
func (r *Result) Int64(path string) (int64, error) {
	val, err := r.Value(path)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, fmt.Errorf("value for path %s is nil, cannot convert to int64", path)
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > uint64(1<<63-1) {
			return 0, fmt.Errorf("cannot convert %d to int64 for path %s: overflow", u, path)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return int64(v.Float()), nil
	case reflect.String:
		s := v.String()
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), nil
		}
		return 0, fmt.Errorf("cannot convert string %q to int64 for path %s", s, path)
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("cannot convert type %T to int64 for path %s", val, path)
}

// Bool retrieves a boolean value. Parsable strings and numbers (0 is
// false, non-zero is true) are converted.
func (r *Result) Bool(path string) (bool, error) {
	val, err := r.Value(path)
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, fmt.Errorf("value for path %s is nil, cannot convert to bool", path)
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		s := v.String()
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
		return false, fmt.Errorf("cannot convert string %q to bool for path %s", s, path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return v.Float() != 0, nil
	}

	return false, fmt.Errorf("cannot convert type %T to bool for path %s", val, path)
}

// Float64 retrieves a floating-point value. Numeric types, parsable
// strings and booleans are converted.
func (r *Result) Float64(path string) (float64, error) {
	val, err := r.Value(path)
	if err != nil {
		return 0.0, err
	}
	if val == nil {
		return 0.0, fmt.Errorf("value for path %s is nil, cannot convert to float64", path)
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.String:
		s := v.String()
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return 0.0, fmt.Errorf("cannot convert string %q to float64 for path %s", s, path)
	case reflect.Bool:
		if v.Bool() {
			return 1.0, nil
		}
		return 0.0, nil
	}

	return 0.0, fmt.Errorf("cannot convert type %T to float64 for path %s", val, path)
}

// Duration retrieves a time.Duration value. Duration strings ("1m30s")
// and integer nanosecond counts are converted.
func (r *Result) Duration(path string) (time.Duration, error) {
	val, err := r.Value(path)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to duration for path %s: %w", v, path, err)
		}
		return d, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(rv.Float()), nil
	}

	return 0, fmt.Errorf("cannot convert type %T to duration for path %s", val, path)
}
