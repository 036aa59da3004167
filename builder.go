package variconf

import (
	"fmt"
	"io"
)

// Builder provides a fluent interface for composing a configuration from
// layered sources. Sources are applied in the order the WithX methods are
// called; later sources override earlier ones. The first error stops the
// chain and is reported by Build, Get or BuildAndScan.
//
//	res, err := variconf.NewBuilder(schema).
//	    WithFile("~/global_config.toml").
//	    WithFile("./local_config.yml", variconf.WithoutFailIfNotFound()).
//	    WithDotlist(os.Args[1:]).
//	    Get()
type Builder struct {
	schema any
	opts   []Option
	steps  []func(*Config) error
}

// NewBuilder creates a builder for the given schema.
func NewBuilder(schema any) *Builder {
	return &Builder{schema: schema}
}

// WithStrict controls the unknown-parameter policy.
func (b *Builder) WithStrict(strict bool) *Builder {
	b.opts = append(b.opts, WithStrict(strict))
	return b
}

// WithTagName sets the struct tag used for field names.
func (b *Builder) WithTagName(name string) *Builder {
	b.opts = append(b.opts, WithTagName(name))
	return b
}

// WithFileLoader registers a custom decoder before any file is loaded.
func (b *Builder) WithFileLoader(name string, extensions []string, decoder DecoderFunc) *Builder {
	return b.step(func(c *Config) error {
		return c.AddFileLoader(name, extensions, decoder)
	})
}

// WithMap merges a nested map.
func (b *Builder) WithMap(data map[string]any) *Builder {
	return b.step(func(c *Config) error {
		return c.LoadMap(data)
	})
}

// WithObject merges a struct instance or nested map.
func (b *Builder) WithObject(obj any) *Builder {
	return b.step(func(c *Config) error {
		return c.LoadObject(obj)
	})
}

// WithFile merges a configuration file.
func (b *Builder) WithFile(path string, opts ...LoadFileOption) *Builder {
	return b.step(func(c *Config) error {
		return c.LoadFile(path, opts...)
	})
}

// WithXDGFile merges a file from the XDG config directories.
func (b *Builder) WithXDGFile(relpath string, opts ...LoadFileOption) *Builder {
	return b.step(func(c *Config) error {
		return c.LoadXDGConfig(relpath, opts...)
	})
}

// WithReader merges configuration from a stream in the named format.
func (b *Builder) WithReader(r io.Reader, format string) *Builder {
	return b.step(func(c *Config) error {
		return c.Load(r, format)
	})
}

// WithDotlist merges "key.path=value" overrides.
func (b *Builder) WithDotlist(entries []string) *Builder {
	return b.step(func(c *Config) error {
		return c.LoadDotlist(entries)
	})
}

// WithEnv merges environment variables with the given prefix.
func (b *Builder) WithEnv(prefix string) *Builder {
	return b.step(func(c *Config) error {
		return c.LoadEnv(prefix)
	})
}

func (b *Builder) step(fn func(*Config) error) *Builder {
	b.steps = append(b.steps, fn)
	return b
}

// Build constructs the Config and applies all sources in call order.
func (b *Builder) Build() (*Config, error) {
	cfg, err := New(b.schema, b.opts...)
	if err != nil {
		return nil, err
	}

	for _, step := range b.steps {
		if err := step(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Get builds and materializes the configuration in one call.
func (b *Builder) Get(opts ...GetOption) (*Result, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}
	return cfg.Get(opts...)
}

// BuildAndScan builds, materializes and decodes the final configuration
// into the provided target struct pointer.
func (b *Builder) BuildAndScan(target any) error {
	res, err := b.Get()
	if err != nil {
		return err
	}
	if err := res.Scan("", target); err != nil {
		return fmt.Errorf("failed to scan final config into target: %w", err)
	}
	return nil
}
