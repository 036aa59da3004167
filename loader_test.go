package variconf

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadFile tests loading and merging of config files per format
func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("JSON", func(t *testing.T) {
		path := writeFile(t, tmpDir, "conf.json", `{
			"foobar": {"foo": 42, "nested": {"three": 3}},
			"type": "json"
		}`)

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.LoadFile(path))

		res, err := cfg.Get()
		require.NoError(t, err)

		foo, _ := res.Int64("foobar.foo")
		three, _ := res.Int64("foobar.nested.three")
		typ, _ := res.String("type")
		assert.EqualValues(t, 42, foo)
		assert.EqualValues(t, 3, three)
		assert.Equal(t, "json", typ)
	})

	t.Run("YAML", func(t *testing.T) {
		path := writeFile(t, tmpDir, "conf.yml", `
foobar:
  foo: 42
  nested:
    three: 3
type: yaml
`)

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.LoadFile(path))

		res, err := cfg.Get()
		require.NoError(t, err)

		foo, _ := res.Int64("foobar.foo")
		typ, _ := res.String("type")
		assert.EqualValues(t, 42, foo)
		assert.Equal(t, "yaml", typ)
	})

	t.Run("TOML", func(t *testing.T) {
		path := writeFile(t, tmpDir, "conf.toml", `
type = "toml"

[foobar]
foo = 42

[foobar.nested]
three = 3
`)

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.LoadFile(path))

		res, err := cfg.Get()
		require.NoError(t, err)

		foo, _ := res.Int64("foobar.foo")
		typ, _ := res.String("type")
		assert.EqualValues(t, 42, foo)
		assert.Equal(t, "toml", typ)
	})

	t.Run("ExtensionIsCaseInsensitive", func(t *testing.T) {
		path := writeFile(t, tmpDir, "conf.YAML", "type: upper\n")

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.LoadFile(path))

		res, err := cfg.Get(AllowMissing())
		require.NoError(t, err)
		typ, _ := res.String("type")
		assert.Equal(t, "upper", typ)
	})

	t.Run("UnsupportedExtension", func(t *testing.T) {
		path := writeFile(t, tmpDir, "conf.ini", "[section]\nfoo=1\n")

		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.LoadFile(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("MalformedContent", func(t *testing.T) {
		path := writeFile(t, tmpDir, "broken.json", `{"foo": `)

		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.LoadFile(path)
		require.Error(t, err)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, path, decodeErr.Path)
		assert.Equal(t, "json", decodeErr.Format)
	})

	t.Run("NotFoundFails", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.LoadFile(filepath.Join(tmpDir, "does_not_exist.yml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("NotFoundIsNoOpWhenAllowed", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.LoadFile(filepath.Join(tmpDir, "does_not_exist.yml"), WithoutFailIfNotFound())
		require.NoError(t, err)

		res, err := cfg.Get(AllowMissing())
		require.NoError(t, err)

		foo, _ := res.Int64("foobar.foo")
		assert.EqualValues(t, 1, foo, "state must be unchanged")
	})
}

// TestLoadFileSearchPaths tests filename resolution across directories
func TestLoadFileSearchPaths(t *testing.T) {
	tmpDir := t.TempDir()
	paths := []string{
		filepath.Join(tmpDir, "foo"),
		filepath.Join(tmpDir, "bar"),
		filepath.Join(tmpDir, "baz"),
	}
	for _, p := range paths {
		require.NoError(t, os.Mkdir(p, 0755))
	}

	writeFile(t, paths[1], "conf.json", `{"type": "from-bar"}`)
	writeFile(t, paths[2], "conf.json", `{"type": "from-baz"}`)

	t.Run("FirstMatchWins", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		require.NoError(t, cfg.LoadFile("conf.json", WithSearchPaths(paths...)))

		res, err := cfg.Get(AllowMissing())
		require.NoError(t, err)
		typ, _ := res.String("type")
		assert.Equal(t, "from-bar", typ)
	})

	t.Run("NotFoundFails", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.LoadFile("nothing.json", WithSearchPaths(paths...))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("NotFoundIsNoOpWhenAllowed", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.LoadFile("nothing.json", WithSearchPaths(paths...), WithoutFailIfNotFound())
		require.NoError(t, err)
	})
}

// TestLoadReader tests merging from a stream with an explicit format name
func TestLoadReader(t *testing.T) {
	t.Run("YAMLStream", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		require.NoError(t, cfg.Load(strings.NewReader("type: stream\n"), "yaml"))

		res, err := cfg.Get(AllowMissing())
		require.NoError(t, err)
		typ, _ := res.String("type")
		assert.Equal(t, "stream", typ)
	})

	t.Run("UnknownFormatName", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.Load(strings.NewReader("{}"), "bad")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("MalformedStream", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.Load(strings.NewReader("{invalid"), "json")
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "json", decodeErr.Format)
	})
}

// TestAddFileLoader tests custom decoder registration and dispatch
func TestAddFileLoader(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("CustomDecoderIsDispatched", func(t *testing.T) {
		path := writeFile(t, tmpDir, "cfg.xml", `<config><type>xml</type></config>`)

		invoked := 0
		decoder := func(r io.Reader) (map[string]any, error) {
			invoked++
			if _, err := io.ReadAll(r); err != nil {
				return nil, err
			}
			return map[string]any{"type": "xml"}, nil
		}

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.AddFileLoader("xml", []string{".xml"}, decoder))

		require.NoError(t, cfg.LoadFile(path))
		assert.Equal(t, 1, invoked)

		res, err := cfg.Get(AllowMissing())
		require.NoError(t, err)
		typ, _ := res.String("type")
		assert.Equal(t, "xml", typ)
	})

	t.Run("ReRegistrationOverrides", func(t *testing.T) {
		path := writeFile(t, tmpDir, "override.json", `{"type": "ignored"}`)

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.AddFileLoader("json", []string{".json"}, func(r io.Reader) (map[string]any, error) {
			return map[string]any{"type": "overridden"}, nil
		}))

		require.NoError(t, cfg.LoadFile(path))

		res, err := cfg.Get(AllowMissing())
		require.NoError(t, err)
		typ, _ := res.String("type")
		assert.Equal(t, "overridden", typ)
	})

	t.Run("ExtensionMustHaveLeadingDot", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		err = cfg.AddFileLoader("xml", []string{"xml"}, func(r io.Reader) (map[string]any, error) {
			return nil, nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "leading dot")
	})

	t.Run("EmptyNameOrNilDecoder", func(t *testing.T) {
		cfg, err := New(testSchema())
		require.NoError(t, err)

		assert.Error(t, cfg.AddFileLoader("", []string{".x"}, func(r io.Reader) (map[string]any, error) { return nil, nil }))
		assert.Error(t, cfg.AddFileLoader("x", []string{".x"}, nil))
	})

	t.Run("DecoderFailureIsWrapped", func(t *testing.T) {
		path := writeFile(t, tmpDir, "bad.custom", "whatever")

		cfg, err := New(testSchema())
		require.NoError(t, err)
		require.NoError(t, cfg.AddFileLoader("custom", []string{".custom"}, func(r io.Reader) (map[string]any, error) {
			return nil, io.ErrUnexpectedEOF
		}))

		err = cfg.LoadFile(path)
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}
