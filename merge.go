package variconf

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// mergeMap validates data against the schema, then merges it on top of
// the current state. The merge is all-or-nothing: validation and coercion
// run first, and the result is committed via a scratch copy, so a failing
// merge leaves the state untouched.
func (c *Config) mergeMap(data map[string]any) error {
	validated, err := c.validateTree(c.schema, data, "")
	if err != nil {
		return err
	}

	scratch := copyTree(c.state).(map[string]any)
	if err := mergo.Merge(&scratch, validated, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	c.state = scratch
	return nil
}

// mergeDotlist merges a list of "key.path=value" override entries.
// Values are parsed as scalar or structured literals (numbers, booleans,
// null, quoted strings); anything unparsable stays a raw string. Entries
// are applied in order, later entries overriding earlier ones.
func (c *Config) mergeDotlist(entries []string) error {
	overlay := make(map[string]any)

	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return fmt.Errorf("dotlist entry %q is not in key.path=value form", entry)
		}
		for _, segment := range strings.Split(key, ".") {
			if !isValidKeySegment(segment) {
				return fmt.Errorf("invalid key segment %q in dotlist entry %q", segment, entry)
			}
		}
		setNestedValue(overlay, key, parseScalar(value))
	}

	return c.mergeMap(overlay)
}

// validateTree walks incoming data against the schema node, enforcing the
// unknown-parameter policy and coercing values declared with a type.
// It returns a validated copy of data; the input is never mutated.
func (c *Config) validateTree(node *schemaNode, data map[string]any, prefix string) (map[string]any, error) {
	out := make(map[string]any, len(data))

	for key, value := range data {
		path := joinPath(prefix, key)
		child := node.child(key)

		if child == nil {
			if c.strict {
				return nil, &UnknownParameterError{Path: path}
			}
			out[key] = copyTree(value)
			continue
		}

		if child.section() {
			sub, isMap := value.(map[string]any)
			if !isMap {
				if value == nil {
					continue // empty section, nothing to merge
				}
				return nil, &TypeValidationError{Path: path, Value: value, Expected: "section (map)"}
			}
			validated, err := c.validateTree(child, sub, path)
			if err != nil {
				return nil, err
			}
			out[key] = validated
			continue
		}

		// Leaf node from here on.
		if value == Required {
			continue // a missing marker in the source never overrides
		}

		if sub, isMap := value.(map[string]any); isMap {
			if c.strict {
				return nil, &UnknownParameterError{Path: joinPath(path, firstKey(sub))}
			}
			out[key] = copyTree(sub)
			continue
		}

		if child.typ != nil {
			coerced, err := coerceValue(value, child.typ)
			if err != nil {
				return nil, &TypeValidationError{
					Path:     path,
					Value:    value,
					Expected: child.typ.String(),
					Cause:    err,
				}
			}
			out[key] = coerced
			continue
		}

		out[key] = copyTree(value)
	}

	return out, nil
}

// coerceValue converts value to the given type, allowing the usual weak
// conversions (numeric strings to numbers, duration strings, etc.).
func coerceValue(value any, t reflect.Type) (any, error) {
	target := reflect.New(t)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target.Interface(),
		WeaklyTypedInput: true,
		DecodeHook:       decodeHooks(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(value); err != nil {
		return nil, err
	}

	coerced := target.Elem().Interface()

	// Struct-typed values (e.g. time.Time) are kept in their raw source
	// form in the tree; Scan re-coerces them at materialization. This
	// keeps the merge state a plain value tree.
	if target.Elem().Kind() == reflect.Struct {
		return value, nil
	}
	return coerced, nil
}

// decodeHooks is the conversion chain shared by merge-time coercion and
// Result.Scan.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// parseScalar interprets a dotlist or environment value string as a YAML
// scalar/flow literal, falling back to the raw string.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// firstKey returns the lexicographically first key of m, for stable error
// reporting.
func firstKey(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
