package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tabsql/internal/config"
	"tabsql/internal/datasource/file"
	"tabsql/internal/metrics"
	"tabsql/internal/metrics/datadog"
	"tabsql/internal/metrics/prompush"
	"tabsql/internal/query"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "tabsql/internal/storage/all"
)

var (
	// runFn is the single-pipeline entry point; tests replace it.
	runFn = run

	// verbose enables per-run detail lines such as the compiled SQL.
	verbose bool
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// main is the entry point for the tabsql binary. It loads the pipeline
// configs, optionally initializes a metrics backend, and executes the runs
// once, on file changes (-watch) or on a cron schedule (-schedule).
func main() {
	var (
		cfgPaths          stringList
		cfgList           string
		parallel          int
		metricsBackendFlg string
		pushGatewayURLFlg string
		ddAddrFlg         string
		schedule          string
		validate          bool
		printSQL          bool
		watch             bool
	)

	flag.Var(&cfgPaths, "config", "pipeline config JSON path (repeatable)")
	flag.StringVar(&cfgList, "config-list", "", "file listing pipeline config paths, one per line")
	flag.IntVar(&parallel, "parallel", 1, "maximum number of pipelines run concurrently")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&ddAddrFlg, "dd-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.StringVar(&schedule, "schedule", "", "cron expression; run the pipelines on this schedule until interrupted")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and documents, then exit")
	flag.BoolVar(&printSQL, "print-sql", false, "with -validate, print the compiled SQL of each pipeline")
	flag.BoolVar(&watch, "watch", false, "re-run the pipelines whenever a config, schema, process or input file changes")
	flag.BoolVar(&verbose, "v", false, "enable verbose logs")

	flag.Parse()

	paths, err := configPaths(cfgPaths, cfgList)
	if err != nil {
		fatalf("%v", err)
	}
	if len(paths) == 0 {
		fatalf("no pipeline config given; use -config or -config-list")
	}

	if validate {
		pipelines, err := loadPipelines(paths)
		if err != nil {
			fatalf("%v", err)
		}
		if err := checkPipelines(os.Stderr, paths, pipelines, true); err != nil {
			fatalf("%v", err)
		}
		if printSQL {
			if err := printCompiledSQL(os.Stdout, pipelines); err != nil {
				fatalf("%v", err)
			}
		}
		fmt.Fprintf(os.Stderr, "configuration is valid: %s\n", strings.Join(paths, ", "))
		os.Exit(0)
	}

	flush := setupMetrics(
		firstNonEmpty(metricsBackendFlg, os.Getenv("METRICS_BACKEND")),
		firstNonEmpty(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"),
		firstNonEmpty(ddAddrFlg, os.Getenv("DD_AGENT_ADDR"), "127.0.0.1:8125"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, paths, parallel, schedule, watch)
	stop()
	flush()
	os.Exit(code)
}

// execute runs the pipelines in the selected mode and returns the exit code.
func execute(ctx context.Context, paths []string, parallel int, schedule string, watch bool) int {
	once := func(ctx context.Context) error {
		start := time.Now()
		err := runConfigs(ctx, paths, parallel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		log.Printf("completed %d pipeline(s) in %s", len(paths), time.Since(start).Truncate(time.Millisecond))
		return err
	}

	switch {
	case schedule != "":
		if err := runScheduled(ctx, schedule, func(ctx context.Context) { _ = once(ctx) }); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return 0

	case watch:
		_ = once(ctx)
		watched, err := watchPaths(paths)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		if err := watchAndRun(ctx, watched, defaultDebounce, func(ctx context.Context) { _ = once(ctx) }); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return 0

	default:
		if err := once(ctx); err != nil {
			return 1
		}
		return 0
	}
}

// configPaths merges -config values with the entries of -config-list.
func configPaths(flagPaths []string, listPath string) ([]string, error) {
	out := append([]string(nil), flagPaths...)
	if listPath == "" {
		return out, nil
	}
	listed, err := file.ReadList(listPath)
	if err != nil {
		return nil, err
	}
	return append(out, listed...), nil
}

func loadPipelines(paths []string) ([]config.Pipeline, error) {
	out := make([]config.Pipeline, 0, len(paths))
	for _, path := range paths {
		p, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// checkPipelines prints every issue to w and fails when any is an error.
// With deep set the referenced documents are loaded as well.
func checkPipelines(w io.Writer, paths []string, pipelines []config.Pipeline, deep bool) error {
	bad := 0
	for i, p := range pipelines {
		issues := config.ValidatePipeline(p)
		if deep {
			issues = append(issues, config.CheckDocuments(p)...)
		}
		for _, iss := range issues {
			fmt.Fprintf(w, "%s: %s: %s: %s\n", paths[i], iss.Severity, iss.Path, iss.Message)
		}
		if config.HasErrors(issues) {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("configuration is invalid: %d of %d pipeline(s) have errors", bad, len(pipelines))
	}
	return nil
}

// printCompiledSQL compiles each pipeline's process document for the
// dialect its engine kind implies.
func printCompiledSQL(w io.Writer, pipelines []config.Pipeline) error {
	for _, p := range pipelines {
		dialect, err := query.ParseDialect(p.Engine.Kind)
		if err != nil {
			dialect = query.ANSI
		}
		spec, err := query.LoadProcess(p.Process.Path)
		if err != nil {
			return err
		}
		sqlText, err := compileProcess(p, spec, dialect)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "-- %s (%s)\n%s;\n", p.Job, dialect, sqlText)
	}
	return nil
}

// runConfigs loads and checks the configs, then runs them.
func runConfigs(ctx context.Context, paths []string, parallel int) error {
	pipelines, err := loadPipelines(paths)
	if err != nil {
		return err
	}
	if err := checkPipelines(os.Stderr, paths, pipelines, false); err != nil {
		return err
	}
	return runAll(ctx, pipelines, parallel)
}

// runAll runs independent pipelines with at most parallel in flight. A
// failing pipeline does not stop the others; all errors are returned joined.
func runAll(ctx context.Context, pipelines []config.Pipeline, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}
	errs := make([]error, len(pipelines))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, p := range pipelines {
		g.Go(func() error {
			runID := uuid.NewString()
			log.Printf("run=%s job=%s engine=%s: started", runID, p.Job, p.Engine.Kind)
			if err := runFn(ctx, runID, p); err != nil {
				errs[i] = fmt.Errorf("job %s: %w", p.Job, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// setupMetrics installs the named backend and returns its flush function.
// Unknown names and init failures leave the nop backend in place.
func setupMetrics(backendName, gwURL, ddAddr string) func() {
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}

	switch backendName {
	case "pushgateway":
		b, err := prompush.NewBackend(prompush.DefaultJob, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, prompush.DefaultJob)
		metrics.SetBackend(b)
		return flush

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: addr=%v, backend=%v", ddAddr, backendName)
		metrics.SetBackend(b)
		return flush

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return func() {}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
