// Package config defines the JSON configuration model for one tabsql
// pipeline run. It is dependency-free: files are decoded with the standard
// library, with a light Options helper for engine-specific settings.
//
// Example:
//
//	{
//	  "job":     "contract_summary",
//	  "input":   {"table": "contracts", "path": "data/in.csv", "schema": "schemas/in.json"},
//	  "tables":  "configs/tables.json",
//	  "process": {"path": "configs/process.json"},
//	  "output":  {"path": "out/summary.csv", "schema": "schemas/out.json"},
//	  "engine":  {"kind": "sqlite", "dsn": ":memory:", "options": {"batch_size": 5000}}
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables consulted when the matching config value is empty.
const (
	EnvEngine    = "TABSQL_ENGINE"
	EnvEngineDSN = "TABSQL_ENGINE_DSN"
)

// DefaultEngine is used when neither the config nor the environment name one.
const DefaultEngine = "sqlite"

// Pipeline describes one run: read and validate the input, execute the
// process query on an engine, apply the output schema and write the result.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job"`

	// Input is the primary dataset.
	Input Input `json:"input"`

	// Tables optionally points at a tables document registering further
	// datasets under their own schemas.
	Tables string `json:"tables,omitempty"`

	Process Process `json:"process"`
	Output  Output  `json:"output"`
	Engine  Engine  `json:"engine"`
}

// Input names the primary dataset.
type Input struct {
	// Table is the name the process query reads it under. Empty uses the
	// process document's source.
	Table  string `json:"table,omitempty"`
	Path   string `json:"path"`
	Schema string `json:"schema"`
}

// Process points at the process document.
type Process struct {
	Path string `json:"path"`

	// Functions extends the scalar function whitelist for this pipeline.
	Functions []string `json:"functions,omitempty"`
}

// Output names the result file and the schema applied before writing.
type Output struct {
	Path   string `json:"path"`
	Schema string `json:"schema"`
}

// Engine selects the SQL engine backend.
type Engine struct {
	// Kind is a registered storage kind (sqlite, postgres, mssql, mysql).
	Kind string `json:"kind"`
	// DSN is passed to the backend driver.
	DSN string `json:"dsn,omitempty"`
	// Options carries backend settings such as batch_size.
	Options Options `json:"options"`
}

// Load decodes the pipeline at path, resolves relative paths against the
// file's directory and fills engine defaults from the environment.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.Resolve(filepath.Dir(path))
	p.ApplyEnv(os.Getenv)
	return p, nil
}

// Resolve rewrites every relative path in p against base.
func (p *Pipeline) Resolve(base string) {
	for _, s := range []*string{
		&p.Input.Path, &p.Input.Schema, &p.Tables,
		&p.Process.Path, &p.Output.Path, &p.Output.Schema,
	} {
		if *s != "" && !filepath.IsAbs(*s) {
			*s = filepath.Join(base, *s)
		}
	}
}

// ApplyEnv fills an empty engine kind and DSN from getenv.
func (p *Pipeline) ApplyEnv(getenv func(string) string) {
	if p.Engine.Kind == "" {
		p.Engine.Kind = getenv(EnvEngine)
	}
	if p.Engine.Kind == "" {
		p.Engine.Kind = DefaultEngine
	}
	if p.Engine.DSN == "" {
		p.Engine.DSN = getenv(EnvEngineDSN)
	}
	if p.Engine.Options == nil {
		p.Engine.Options = Options{}
	}
}

// Paths returns every file the pipeline reads, for change watching.
func (p Pipeline) Paths() []string {
	var out []string
	for _, s := range []string{p.Input.Path, p.Input.Schema, p.Tables, p.Process.Path, p.Output.Schema} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
//
// Options is used for engine-specific configuration where the shape varies by
// backend.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
