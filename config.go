package variconf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
)

// Config accumulates configuration merged from layered sources on top of
// schema defaults. Load-methods mutate the instance; Get materializes the
// final result. Config is not safe for concurrent use.
type Config struct {
	schema  *schemaNode
	state   map[string]any
	formats *formatRegistry

	strict  bool
	typed   bool
	tagName string
}

// Option configures a Config at construction time.
type Option func(*Config)

// WithStrict controls whether parameters not declared in the schema are
// rejected (the default) or merged into the configuration. A struct
// schema always implies strict mode.
func WithStrict(strict bool) Option {
	return func(c *Config) {
		c.strict = strict
	}
}

// WithTagName sets the struct tag used for schema field names and Scan
// targets. The default is "config".
func WithTagName(name string) Option {
	return func(c *Config) {
		c.tagName = name
	}
}

// New creates a Config from the given schema. The schema declares the
// expected sections and parameters together with their default values: a
// nested map[string]any (use the Required marker for parameters without a
// default) or a struct/struct pointer, in which case values are
// type-checked against the field types on every merge.
func New(schema any, opts ...Option) (*Config, error) {
	c := &Config{
		strict:  true,
		tagName: "config",
		formats: newFormatRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	node, typed, err := normalizeSchema(schema, c.tagName)
	if err != nil {
		return nil, err
	}

	c.schema = node
	c.typed = typed
	if typed {
		// Typed schemas define a closed shape.
		c.strict = true
	}
	c.state = initialState(node)

	return c, nil
}

// SupportedFormats returns the names of all registered file formats.
func (c *Config) SupportedFormats() []string {
	return c.formats.names()
}

// AddFileLoader registers a custom decoder for the given file extensions,
// which must include the leading dot (e.g. ".xml"). Registering an
// already-known format name or extension replaces the previous decoder;
// the registration affects subsequent LoadFile calls only.
func (c *Config) AddFileLoader(name string, extensions []string, decoder DecoderFunc) error {
	return c.formats.register(name, extensions, decoder)
}

// LoadMap merges configuration from a nested map.
func (c *Config) LoadMap(data map[string]any) error {
	return c.mergeMap(data)
}

// Load merges configuration read from r in the named format (e.g.
// "yaml"). See SupportedFormats for the available names.
func (c *Config) Load(r io.Reader, format string) error {
	decoder, err := c.formats.byName(format)
	if err != nil {
		return err
	}

	data, err := decoder(r)
	if err != nil {
		return &DecodeError{Format: format, Cause: err}
	}
	return c.mergeMap(data)
}

// LoadDotlist merges a list of "key.path=value" overrides, e.g. from
// command-line arguments: ["server.port=9090", "debug=true"].
func (c *Config) LoadDotlist(entries []string) error {
	return c.mergeDotlist(entries)
}

// LoadObject merges configuration from a struct instance (using the same
// tags as a struct schema) or from another nested map.
func (c *Config) LoadObject(obj any) error {
	if obj == nil {
		return fmt.Errorf("cannot load nil object")
	}

	if m, ok := obj.(map[string]any); ok {
		return c.mergeMap(m)
	}

	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("cannot load nil object")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("LoadObject requires a map or struct, got %T", obj)
	}

	return c.mergeMap(structToMap(v, c.tagName))
}

// LoadFileOption adjusts how LoadFile and LoadXDGConfig locate files.
type LoadFileOption func(*loadFileOptions)

type loadFileOptions struct {
	searchPaths    []string
	failIfNotFound bool
}

// WithSearchPaths makes LoadFile treat its argument as a bare filename
// and search the given directories in order, loading the first match.
func WithSearchPaths(dirs ...string) LoadFileOption {
	return func(o *loadFileOptions) {
		o.searchPaths = dirs
	}
}

// WithoutFailIfNotFound turns a missing file into a no-op instead of an
// ErrFileNotFound error.
func WithoutFailIfNotFound() LoadFileOption {
	return func(o *loadFileOptions) {
		o.failIfNotFound = false
	}
}

// WithFailIfNotFound makes a missing file an error. This is the default
// for LoadFile; LoadXDGConfig defaults to the opposite.
func WithFailIfNotFound() LoadFileOption {
	return func(o *loadFileOptions) {
		o.failIfNotFound = true
	}
}

// LoadFile merges configuration from the given file. The decoder is
// chosen by the file's extension; see SupportedFormats and AddFileLoader.
// With WithSearchPaths, path is a filename looked up across directories.
// A missing file is an error unless WithoutFailIfNotFound is given, in
// which case the call leaves the configuration unchanged.
func (c *Config) LoadFile(path string, opts ...LoadFileOption) error {
	o := loadFileOptions{failIfNotFound: true}
	for _, opt := range opts {
		opt(&o)
	}

	var resolved string
	if o.searchPaths != nil {
		found, ok := findInPaths(path, o.searchPaths)
		if !ok {
			return c.notFound(path, o)
		}
		resolved = found
	} else {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return c.notFound(path, o)
		}
		resolved = path
	}

	return c.loadResolvedFile(resolved)
}

// LoadXDGConfig merges configuration from a file located in the XDG base
// directories ($XDG_CONFIG_HOME, then each entry of $XDG_CONFIG_DIRS).
// relpath is relative to those directories, e.g. "myapp/config.toml".
// A missing file is a no-op unless WithFailIfNotFound is given. Returns
// ErrXDGUnsupported on platforms without the XDG convention.
func (c *Config) LoadXDGConfig(relpath string, opts ...LoadFileOption) error {
	o := loadFileOptions{failIfNotFound: false}
	for _, opt := range opts {
		opt(&o)
	}

	paths, err := xdgConfigPaths()
	if err != nil {
		return err
	}

	resolved, ok := findInPaths(relpath, paths)
	if !ok {
		return c.notFound(relpath, o)
	}
	return c.loadResolvedFile(resolved)
}

func (c *Config) notFound(path string, o loadFileOptions) error {
	if o.failIfNotFound {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return nil
}

// loadResolvedFile decodes an existing file and merges its content. The
// file handle is closed before the merge runs, on every path.
func (c *Config) loadResolvedFile(path string) error {
	format, decoder, err := c.formats.byExtension(filepath.Ext(path))
	if err != nil {
		return err
	}

	data, err := func() (map[string]any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
		}
		defer f.Close()

		m, err := decoder(f)
		if err != nil {
			return nil, &DecodeError{Path: path, Format: format, Cause: err}
		}
		return m, nil
	}()
	if err != nil {
		return err
	}

	return c.mergeMap(data)
}

// GetOption adjusts materialization behavior.
type GetOption func(*getOptions)

type getOptions struct {
	allowMissing bool
}

// AllowMissing lets Get succeed while required parameters are still
// unset. Reading such a parameter from the Result fails instead.
func AllowMissing() GetOption {
	return func(o *getOptions) {
		o.allowMissing = true
	}
}

// Get materializes the final configuration: all ${...} references are
// resolved and, unless AllowMissing is given, an error is returned if any
// required parameter never received a value.
func (c *Config) Get(opts ...GetOption) (*Result, error) {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	resolved, err := resolveTree(c.state)
	if err != nil {
		return nil, err
	}

	if !o.allowMissing {
		if paths := collectMissing(resolved, ""); len(paths) > 0 {
			sort.Strings(paths)
			return nil, &MissingValueError{Paths: paths}
		}
	}

	return &Result{tree: resolved, tagName: c.tagName}, nil
}

// collectMissing gathers the dotted paths of all values still carrying
// the missing marker.
func collectMissing(tree map[string]any, prefix string) []string {
	var paths []string
	for key, value := range tree {
		path := joinPath(prefix, key)
		switch v := value.(type) {
		case map[string]any:
			paths = append(paths, collectMissing(v, path)...)
		case missingValue:
			paths = append(paths, path)
		}
	}
	return paths
}
