package variconf

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Required marks a schema parameter that has no default and must be
// supplied by one of the loaded sources before Get succeeds.
const Required = "???"

// missingValue is the internal marker carried by required parameters
// until a source supplies a value.
type missingValue struct{}

var missing = missingValue{}

// schemaNode is the canonical internal schema shape. Both map schemas and
// struct schemas are normalized into a tree of these before any merge
// logic runs.
type schemaNode struct {
	// children is non-nil for section nodes.
	children map[string]*schemaNode

	// typ is the declared type for a leaf; nil for untyped (map schema)
	// leaves.
	typ reflect.Type

	def      any
	required bool
}

func (n *schemaNode) section() bool {
	return n.children != nil
}

// child resolves a direct child by name, nil if absent or n is a leaf.
func (n *schemaNode) child(name string) *schemaNode {
	if n.children == nil {
		return nil
	}
	return n.children[name]
}

// normalizeSchema converts the caller-supplied schema (nested map, struct
// or struct pointer) into the canonical node tree. The second return value
// reports whether the schema carries type information.
func normalizeSchema(schema any, tagName string) (*schemaNode, bool, error) {
	if schema == nil {
		return &schemaNode{children: map[string]*schemaNode{}}, false, nil
	}

	if m, ok := schema.(map[string]any); ok {
		node, err := schemaFromMap(m, "")
		return node, false, err
	}

	v := reflect.ValueOf(schema)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false, fmt.Errorf("schema must be a non-nil struct pointer or value, got %T", schema)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false, fmt.Errorf("schema must be a map[string]any, a struct or a struct pointer, got %T", schema)
	}

	node, err := schemaFromStruct(v, tagName, "")
	return node, true, err
}

func schemaFromMap(m map[string]any, prefix string) (*schemaNode, error) {
	node := &schemaNode{children: make(map[string]*schemaNode, len(m))}

	for key, value := range m {
		path := joinPath(prefix, key)
		if !isValidKeySegment(key) {
			return nil, fmt.Errorf("invalid schema key segment %q in path %q", key, path)
		}

		if sub, isMap := value.(map[string]any); isMap {
			child, err := schemaFromMap(sub, path)
			if err != nil {
				return nil, err
			}
			node.children[key] = child
			continue
		}

		if value == Required {
			node.children[key] = &schemaNode{required: true}
			continue
		}
		node.children[key] = &schemaNode{def: value}
	}

	return node, nil
}

func schemaFromStruct(v reflect.Value, tagName, prefix string) (*schemaNode, error) {
	t := v.Type()
	node := &schemaNode{children: make(map[string]*schemaNode, t.NumField())}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		key, required, skip := parseFieldTag(field, tagName)
		if skip {
			continue
		}
		path := joinPath(prefix, key)

		nested := fieldValue
		if nested.Kind() == reflect.Ptr && nested.Type().Elem().Kind() == reflect.Struct {
			if nested.IsNil() {
				nested = reflect.New(nested.Type().Elem()).Elem()
			} else {
				nested = nested.Elem()
			}
		}

		if nested.Kind() == reflect.Struct && !isLeafStructType(nested.Type()) {
			child, err := schemaFromStruct(nested, tagName, path)
			if err != nil {
				return nil, err
			}
			node.children[key] = child
			continue
		}

		leaf := &schemaNode{typ: field.Type, required: required}
		if !required {
			leaf.def = fieldValue.Interface()
		}
		node.children[key] = leaf
	}

	return node, nil
}

// parseFieldTag extracts the config key and options from a struct field.
// Returns skip=true for fields tagged "-".
func parseFieldTag(field reflect.StructField, tagName string) (key string, required, skip bool) {
	key = field.Name

	tag := field.Tag.Get(tagName)
	if tag == "-" {
		return "", false, true
	}
	if tag != "" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			key = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == "required" {
				required = true
			}
		}
	}
	return key, required, false
}

// isLeafStructType reports struct types that hold a single value rather
// than a config section (e.g. time.Time).
func isLeafStructType(t reflect.Type) bool {
	if t == reflect.TypeOf(time.Time{}) {
		return true
	}
	// Types with their own text representation decode as single values.
	return reflect.PointerTo(t).Implements(textUnmarshalerType)
}

var textUnmarshalerType = reflect.TypeOf((*interface {
	UnmarshalText(text []byte) error
})(nil)).Elem()

// initialState builds the live config tree from schema defaults. Required
// leaves start with the missing marker.
func initialState(node *schemaNode) map[string]any {
	state := make(map[string]any, len(node.children))
	for key, child := range node.children {
		switch {
		case child.section():
			state[key] = initialState(child)
		case child.required:
			state[key] = missing
		default:
			state[key] = normalizeDefault(child.def)
		}
	}
	return state
}

// normalizeDefault converts typed defaults from struct schemas into the
// plain tree representation used by the merge engine.
func normalizeDefault(def any) any {
	if def == nil {
		return nil
	}
	v := reflect.ValueOf(def)
	if v.Kind() == reflect.Slice && v.Type() != reflect.TypeOf([]any(nil)) {
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = v.Index(i).Interface()
		}
		return out
	}
	return def
}

// leafPaths returns the dotted paths of all leaves declared by the schema.
func (n *schemaNode) leafPaths(prefix string) []string {
	var paths []string
	for key, child := range n.children {
		path := joinPath(prefix, key)
		if child.section() {
			paths = append(paths, child.leafPaths(path)...)
		} else {
			paths = append(paths, path)
		}
	}
	return paths
}

// structToMap converts a struct value into the nested map representation,
// honoring the same tags as schema normalization. Used by LoadObject.
func structToMap(v reflect.Value, tagName string) map[string]any {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return map[string]any{}
		}
		v = v.Elem()
	}

	t := v.Type()
	out := make(map[string]any, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		key, _, skip := parseFieldTag(field, tagName)
		if skip {
			continue
		}

		nested := fieldValue
		if nested.Kind() == reflect.Ptr && nested.Type().Elem().Kind() == reflect.Struct {
			if nested.IsNil() {
				continue
			}
			nested = nested.Elem()
		}

		if nested.Kind() == reflect.Struct && !isLeafStructType(nested.Type()) {
			out[key] = structToMap(nested, tagName)
			continue
		}

		out[key] = fieldValue.Interface()
	}

	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
