package variconf

import (
	"os"
	"strings"
)

// LoadEnv merges configuration from environment variables. Every
// parameter declared in the schema is checked: "server.port" with prefix
// "MYAPP_" reads MYAPP_SERVER_PORT. Values are parsed like dotlist
// values (numbers, booleans, null, quoted strings, raw string fallback).
// Variables that are not set are simply skipped.
func (c *Config) LoadEnv(prefix string) error {
	overlay := make(map[string]any)

	for _, path := range c.schema.leafPaths("") {
		value, exists := os.LookupEnv(envName(prefix, path))
		if !exists {
			continue
		}
		setNestedValue(overlay, path, parseScalar(value))
	}

	if len(overlay) == 0 {
		return nil
	}
	return c.mergeMap(overlay)
}

// DiscoverEnv returns a map of schema path to environment variable name
// for every variable that is currently set and would be picked up by
// LoadEnv with the same prefix.
func (c *Config) DiscoverEnv(prefix string) map[string]string {
	discovered := make(map[string]string)
	for _, path := range c.schema.leafPaths("") {
		envVar := envName(prefix, path)
		if _, exists := os.LookupEnv(envVar); exists {
			discovered[path] = envVar
		}
	}
	return discovered
}

// envName converts a dotted config path to an environment variable name:
// dots become underscores, the result is uppercased and prefixed.
func envName(prefix, path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return prefix + env
}
