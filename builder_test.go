package variconf

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuilder tests the fluent construction of layered configurations
func TestBuilder(t *testing.T) {
	t.Run("SourcesApplyInCallOrder", func(t *testing.T) {
		res, err := NewBuilder(testSchema()).
			WithMap(map[string]any{"type": "first", "foobar": map[string]any{"foo": 10}}).
			WithReader(strings.NewReader(`{"type": "second"}`), "json").
			WithDotlist([]string{"foobar.foo=20"}).
			Get()
		require.NoError(t, err)

		typ, err := res.String("type")
		require.NoError(t, err)
		assert.Equal(t, "second", typ)

		foo, err := res.Int64("foobar.foo")
		require.NoError(t, err)
		assert.EqualValues(t, 20, foo)
	})

	t.Run("WithFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFile(t, tmpDir, "conf.yml", "type: file\n")

		res, err := NewBuilder(testSchema()).
			WithFile("conf.yml", WithSearchPaths(tmpDir)).
			WithFile("absent.yml", WithSearchPaths(tmpDir), WithoutFailIfNotFound()).
			Get()
		require.NoError(t, err)

		typ, err := res.String("type")
		require.NoError(t, err)
		assert.Equal(t, "file", typ)
	})

	t.Run("WithEnv", func(t *testing.T) {
		t.Setenv("BUILDERTEST_TYPE", "env")

		res, err := NewBuilder(testSchema()).
			WithEnv("BUILDERTEST_").
			Get()
		require.NoError(t, err)

		typ, err := res.String("type")
		require.NoError(t, err)
		assert.Equal(t, "env", typ)
	})

	t.Run("WithFileLoaderAppliesBeforeFiles", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := writeFile(t, tmpDir, "conf.props", "ignored")

		res, err := NewBuilder(testSchema()).
			WithFileLoader("props", []string{".props"}, func(r io.Reader) (map[string]any, error) {
				return map[string]any{"type": "props"}, nil
			}).
			WithFile(path).
			Get()
		require.NoError(t, err)

		typ, err := res.String("type")
		require.NoError(t, err)
		assert.Equal(t, "props", typ)
	})

	t.Run("WithStrictOption", func(t *testing.T) {
		res, err := NewBuilder(testSchema()).
			WithStrict(false).
			WithMap(map[string]any{"extra": 1, "type": "x"}).
			Get()
		require.NoError(t, err)

		extra, err := res.Int64("extra")
		require.NoError(t, err)
		assert.EqualValues(t, 1, extra)
	})

	t.Run("FirstErrorStopsTheChain", func(t *testing.T) {
		applied := false
		_, err := NewBuilder(testSchema()).
			WithMap(map[string]any{"unknown_key": 1}).
			WithFileLoader("x", []string{".x"}, func(r io.Reader) (map[string]any, error) {
				applied = true
				return nil, nil
			}).
			Get()

		var unknownErr *UnknownParameterError
		require.ErrorAs(t, err, &unknownErr)
		assert.False(t, applied, "steps after the failing one must not run")
	})

	t.Run("InvalidSchemaSurfacesFromBuild", func(t *testing.T) {
		_, err := NewBuilder(42).Build()
		assert.Error(t, err)
	})

	t.Run("GetReportsMissingValues", func(t *testing.T) {
		_, err := NewBuilder(testSchema()).
			WithMap(map[string]any{"foobar": map[string]any{"foo": 2}}).
			Get()

		var missingErr *MissingValueError
		require.ErrorAs(t, err, &missingErr)
		assert.Equal(t, []string{"type"}, missingErr.Paths)
	})

	t.Run("BuildAndScan", func(t *testing.T) {
		var out typedSchema
		err := NewBuilder(newTypedSchema()).
			WithMap(map[string]any{"type": "scanned", "foobar": map[string]any{"foo": 7}}).
			BuildAndScan(&out)
		require.NoError(t, err)

		assert.Equal(t, "scanned", out.Type)
		assert.Equal(t, 7, out.Foobar.Foo)
		assert.Equal(t, 1, out.Foobar.Bar)
	})

	t.Run("BuildReturnsReusableConfig", func(t *testing.T) {
		cfg, err := NewBuilder(testSchema()).
			WithMap(map[string]any{"type": "a"}).
			Build()
		require.NoError(t, err)

		require.NoError(t, cfg.LoadMap(map[string]any{"type": "b"}))

		res, err := cfg.Get()
		require.NoError(t, err)
		typ, err := res.String("type")
		require.NoError(t, err)
		assert.Equal(t, "b", typ)
	})
}
