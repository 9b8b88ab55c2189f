// Package tables loads the tables document that names the datasets a
// process query may read, and materialises them.
//
//	{
//	  "tables": [
//	    {"name": "sales", "source_type": "csv", "path": "data/sales.csv", "schema": "schemas/sales.json"}
//	  ]
//	}
//
// Relative paths resolve against the document's directory.
package tables

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"tabsql/internal/dataset"
	"tabsql/internal/document"
)

const docKind = "tables"

// SourceCSV is the only supported source type.
const SourceCSV = "csv"

// Table is one entry of the tables document.
type Table struct {
	Name       string `json:"name"`
	SourceType string `json:"source_type,omitempty"`
	Path       string `json:"path"`
	Schema     string `json:"schema"`
}

// Config is the decoded tables document.
type Config struct {
	Tables []Table `json:"tables"`
}

// Load reads and checks the tables document at path.
func Load(path string) (*Config, error) {
	var c Config
	if err := document.ReadJSON(docKind, path, &c); err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	seen := make(map[string]bool, len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		if strings.TrimSpace(t.Name) == "" {
			return nil, document.Structuralf(docKind, path, "tables[%d]: name is required", i)
		}
		if seen[t.Name] {
			return nil, document.Structuralf(docKind, path, "tables[%d]: duplicate table name %q", i, t.Name)
		}
		seen[t.Name] = true
		if t.SourceType == "" {
			t.SourceType = SourceCSV
		}
		if !strings.EqualFold(t.SourceType, SourceCSV) {
			return nil, document.Structuralf(docKind, path, "unsupported source_type: %s for table %s", t.SourceType, t.Name)
		}
		if t.Path == "" || t.Schema == "" {
			return nil, document.Structuralf(docKind, path, "tables[%d]: path and schema are required", i)
		}
		t.Path = resolve(base, t.Path)
		t.Schema = resolve(base, t.Schema)
	}
	return &c, nil
}

// ReadFunc materialises one table from its data and schema paths.
type ReadFunc func(ctx context.Context, dataPath, schemaPath string) (*dataset.Dataset, error)

// Datasets reads every table with read, each under its own schema, and
// returns them keyed by table name.
func (c *Config) Datasets(ctx context.Context, read ReadFunc) (map[string]*dataset.Dataset, error) {
	out := make(map[string]*dataset.Dataset, len(c.Tables))
	for _, t := range c.Tables {
		ds, err := read(ctx, t.Path, t.Schema)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		out[t.Name] = ds
	}
	return out, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
