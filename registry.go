package variconf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DecoderFunc parses raw file content into a plain nested map. Decoders
// are registered per file extension via AddFileLoader.
type DecoderFunc func(r io.Reader) (map[string]any, error)

// formatRegistry maps format names and file extensions to decoders.
// Later registrations for the same name or extension win.
type formatRegistry struct {
	decoders   map[string]DecoderFunc
	extensions map[string]string // ".ext" -> format name
}

func newFormatRegistry() *formatRegistry {
	r := &formatRegistry{
		decoders:   make(map[string]DecoderFunc),
		extensions: make(map[string]string),
	}

	// Built-in formats. Registration cannot fail here since the
	// extensions are well-formed.
	r.register("json", []string{".json"}, decodeJSON)
	r.register("yaml", []string{".yaml", ".yml"}, decodeYAML)
	r.register("toml", []string{".toml", ".tml"}, decodeTOML)

	return r
}

func (r *formatRegistry) register(name string, extensions []string, decoder DecoderFunc) error {
	if name == "" {
		return fmt.Errorf("format name cannot be empty")
	}
	if decoder == nil {
		return fmt.Errorf("decoder for format %q cannot be nil", name)
	}
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("file extension %q must include the leading dot", ext)
		}
	}

	r.decoders[name] = decoder
	for _, ext := range extensions {
		r.extensions[strings.ToLower(ext)] = name
	}
	return nil
}

// byName resolves a decoder by format name (e.g. "yaml").
func (r *formatRegistry) byName(name string) (DecoderFunc, error) {
	decoder, ok := r.decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return decoder, nil
}

// byExtension resolves a decoder by file extension, case-insensitively.
// The extension must include the leading dot.
func (r *formatRegistry) byExtension(ext string) (string, DecoderFunc, error) {
	name, ok := r.extensions[strings.ToLower(ext)]
	if !ok {
		return "", nil, fmt.Errorf("%w: no decoder registered for extension %q", ErrUnsupportedFormat, ext)
	}
	return name, r.decoders[name], nil
}

// names returns the registered format names, sorted.
func (r *formatRegistry) names() []string {
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeJSON(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // Preserve number precision
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}

	normalizeNumbers(m)
	return m, nil
}

func decodeYAML(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m := make(map[string]any)
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeTOML(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m := make(map[string]any)
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeNumbers rewrites json.Number values into int64 where they fit,
// float64 otherwise, so JSON input merges like the other formats.
func normalizeNumbers(m map[string]any) {
	for key, value := range m {
		m[key] = normalizedNumber(value)
	}
}

func normalizedNumber(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		normalizeNumbers(v)
		return v
	case []any:
		for i, elem := range v {
			v[i] = normalizedNumber(elem)
		}
		return v
	default:
		return value
	}
}
