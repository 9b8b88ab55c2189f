// Package main wires one tabsql run end to end: read and validate the
// input under its schema, compile the process document to SQL, execute it on
// the configured engine, apply the output schema and write the result. The
// CLI layer depends only on storage-agnostic interfaces; engine drivers are
// linked in through storage/all.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"tabsql/internal/config"
	"tabsql/internal/dataset"
	"tabsql/internal/datasource/file"
	"tabsql/internal/metrics"
	csvparser "tabsql/internal/parser/csv"
	"tabsql/internal/query"
	"tabsql/internal/schema"
	"tabsql/internal/storage"
	"tabsql/internal/tables"
	"tabsql/internal/transformer"
	"tabsql/internal/transformer/builtin"
)

// Function variables used to introduce test seams.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	readWithSchemaFn = readWithSchema
)

// readWithSchema reads the CSV at dataPath as raw text using the layout and
// columns of the schema at schemaPath, then coerces and validates it.
func readWithSchema(ctx context.Context, dataPath, schemaPath string) (*dataset.Dataset, error) {
	s, err := schema.Load(schemaPath)
	if err != nil {
		return nil, err
	}

	src, err := file.NewLocal(dataPath).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	raw, err := csvparser.Read(src, csvparser.OptionsFor(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataPath, err)
	}
	return schemaChain(s).Apply(raw)
}

// applySchemaFromPath coerces and validates ds under the schema at
// schemaPath. Errors name the schema and the stage.
func applySchemaFromPath(ds *dataset.Dataset, schemaPath string) (*dataset.Dataset, *schema.Schema, error) {
	s, err := schema.Load(schemaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("apply output schema %q: %w", schemaPath, err)
	}
	out, err := schemaChain(s).Apply(ds)
	if err != nil {
		return nil, nil, fmt.Errorf("apply output schema %q: %w", schemaPath, err)
	}
	return out, s, nil
}

func schemaChain(s *schema.Schema) transformer.Chain {
	return transformer.Chain{
		builtin.Coerce{Schema: s},
		builtin.Validate{Schema: s},
	}
}

// whitelistFor returns the default whitelist, extended with the pipeline's
// extra scalar functions when it names any.
func whitelistFor(p config.Pipeline) *query.Whitelist {
	if len(p.Process.Functions) == 0 {
		return query.DefaultWhitelist()
	}
	scalars := append(append([]string(nil), query.DefaultScalars...), p.Process.Functions...)
	return query.NewWhitelist(query.WhitelistConfig{
		Aggregates:   query.DefaultAggregates,
		Scalars:      scalars,
		ConditionOps: query.DefaultConditionOps,
		BinaryOps:    query.DefaultBinaryOps,
	})
}

// compileProcess renders spec for dialect using the pipeline's whitelist.
func compileProcess(p config.Pipeline, spec *query.ProcessSpec, dialect query.Dialect) (string, error) {
	c := query.NewCompiler(query.WithWhitelist(whitelistFor(p)), query.WithDialect(dialect))
	sqlText, err := c.Compile(spec)
	if err != nil {
		return "", fmt.Errorf("compile %s: %w", p.Process.Path, err)
	}
	return sqlText, nil
}

// inputTableName is the name the input is bound under: input.table, or the
// process document's source when that is empty.
func inputTableName(p config.Pipeline, spec *query.ProcessSpec) string {
	if p.Input.Table != "" {
		return p.Input.Table
	}
	return spec.Source
}

// engineConfig maps the pipeline's engine block onto storage.Config.
func engineConfig(p config.Pipeline) storage.Config {
	return storage.Config{
		Kind:      p.Engine.Kind,
		DSN:       p.Engine.DSN,
		BatchSize: p.Engine.Options.Int("batch_size", 0),
	}
}

// queryTimeout returns engine.options.query_timeout, or zero when unset.
func queryTimeout(p config.Pipeline) (time.Duration, error) {
	s := p.Engine.Options.String("query_timeout", "")
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("engine.options.query_timeout: %w", err)
	}
	return d, nil
}

// step times fn, records it as a pipeline step and logs the outcome.
func step(runID, job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(job, name, err, d)
	if err != nil {
		log.Printf("run=%s job=%s step=%s status=failure elapsed=%s", runID, job, name, d.Truncate(time.Millisecond))
		return err
	}
	log.Printf("run=%s job=%s step=%s status=success elapsed=%s", runID, job, name, d.Truncate(time.Millisecond))
	return nil
}

// run executes one pipeline. The output file is only created when every
// stage succeeds.
func run(ctx context.Context, runID string, p config.Pipeline) error {
	start := time.Now()
	timeout, err := queryTimeout(p)
	if err != nil {
		return err
	}

	// The process document is needed up front for the input's table name.
	spec, err := query.LoadProcess(p.Process.Path)
	if err != nil {
		return err
	}

	bound := make(map[string]*dataset.Dataset)
	err = step(runID, p.Job, metrics.StepReadValidate, func() error {
		in, err := readWithSchemaFn(ctx, p.Input.Path, p.Input.Schema)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		name := inputTableName(p, spec)
		bound[name] = in
		metrics.RecordRows(p.Job, "input", int64(in.Len()))

		if p.Tables == "" {
			return nil
		}
		tc, err := tables.Load(p.Tables)
		if err != nil {
			return err
		}
		extra, err := tc.Datasets(ctx, tables.ReadFunc(readWithSchemaFn))
		if err != nil {
			return err
		}
		var n int64
		for k, ds := range extra {
			if k == name {
				return fmt.Errorf("table %q: already bound to the input", k)
			}
			bound[k] = ds
			n += int64(ds.Len())
		}
		metrics.RecordRows(p.Job, "tables", n)
		return nil
	})
	if err != nil {
		return err
	}

	var result *dataset.Dataset
	err = step(runID, p.Job, metrics.StepCompileExecute, func() error {
		repo, err := newRepositoryFn(ctx, engineConfig(p))
		if err != nil {
			return err
		}
		defer repo.Close()

		sqlText, err := compileProcess(p, spec, repo.Dialect())
		if err != nil {
			return err
		}
		if verbose {
			log.Printf("run=%s job=%s engine=%s sql=%q", runID, p.Job, p.Engine.Kind, sqlText)
		}

		qctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result, err = storage.Execute(qctx, repo, sqlText, bound)
		return err
	})
	if err != nil {
		return err
	}

	var (
		out       *dataset.Dataset
		outSchema *schema.Schema
	)
	err = step(runID, p.Job, metrics.StepOutputSchema, func() error {
		var err error
		out, outSchema, err = applySchemaFromPath(result, p.Output.Schema)
		return err
	})
	if err != nil {
		return err
	}

	err = step(runID, p.Job, metrics.StepWrite, func() error {
		return writeOutput(ctx, p.Output.Path, out, outSchema)
	})
	if err != nil {
		return err
	}
	metrics.RecordRows(p.Job, "output", int64(out.Len()))

	log.Printf("run=%s job=%s summary: input_tables=%d output_rows=%d output=%s elapsed=%s",
		runID, p.Job, len(bound), out.Len(), p.Output.Path, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// writeOutput writes ds to path in the layout of s. The file appears only
// after a complete write.
func writeOutput(ctx context.Context, path string, ds *dataset.Dataset, s *schema.Schema) (err error) {
	w, err := file.NewLocal(path).Create(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Abort()
		}
	}()

	opt := csvparser.OptionsFor(s)
	opt.Columns = nil
	if err := csvparser.Write(w, ds, opt); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Commit()
}
