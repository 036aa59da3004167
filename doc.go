// Package variconf loads application configuration from layered sources
// into a schema-validated result.
//
// A Config is created from a schema: either a nested map of default values
// or a struct (in which case type checking is enabled). A number of
// Load-methods merge configuration from different sources (JSON, YAML and
// TOML files, in-memory maps, environment variables, "dotlist" overrides)
// on top of the defaults. Later loads override earlier ones; an input only
// needs to provide the parameters it wants to change.
//
// Quick start:
//
//	schema := map[string]any{
//	    "server": map[string]any{"host": "localhost", "port": 8080},
//	    "token":  variconf.Required,
//	}
//
//	cfg, err := variconf.New(schema)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.LoadFile("/etc/myapp/config.toml"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.LoadDotlist(os.Args[1:]); err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := cfg.Get()
//	if err != nil {
//	    log.Fatal(err) // e.g. "token" was never provided
//	}
//	port, _ := res.Int64("server.port")
//
// Strict mode (the default) rejects parameters that are not declared in
// the schema. Values may reference other values with ${path.to.value}
// syntax; references are resolved when Get is called.
//
// Config is not safe for concurrent use; callers that share an instance
// across goroutines must synchronize access themselves.
package variconf
