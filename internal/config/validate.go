package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tabsql/internal/query"
	"tabsql/internal/schema"
	"tabsql/internal/tables"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "engine.dsn",
// "output.schema"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// knownEngines lists the built-in backends. Unknown kinds are warnings so
// separately registered backends still pass.
var knownEngines = map[string]struct{}{
	"sqlite":   {},
	"postgres": {},
	"mssql":    {},
	"mysql":    {},
}

// ValidatePipeline performs static checks over p without touching the
// filesystem. It does not mutate the pipeline.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it is used for metrics labeling and identifying runs")
	}

	if p.Input.Path == "" {
		add(SeverityError, "input.path", "input.path must not be empty")
	}
	if p.Input.Schema == "" {
		add(SeverityError, "input.schema", "input.schema must not be empty")
	}
	if p.Input.Table == "" {
		add(SeverityWarning, "input.table", "input.table is empty; the process source name is used")
	}
	if p.Process.Path == "" {
		add(SeverityError, "process.path", "process.path must not be empty")
	}
	for i, fn := range p.Process.Functions {
		if strings.TrimSpace(fn) == "" {
			add(SeverityError, fmt.Sprintf("process.functions[%d]", i), "function name must not be empty")
		}
	}
	if p.Output.Path == "" {
		add(SeverityError, "output.path", "output.path must not be empty")
	}
	if p.Output.Schema == "" {
		add(SeverityError, "output.schema", "output.schema must not be empty")
	}
	if p.Output.Path != "" && filepath.Clean(p.Output.Path) == filepath.Clean(p.Input.Path) {
		add(SeverityError, "output.path", "output.path must differ from input.path")
	}

	issues = append(issues, validateEngine(p.Engine)...)
	return issues
}

func validateEngine(e Engine) []Issue {
	var issues []Issue

	kind := strings.TrimSpace(e.Kind)
	switch {
	case kind == "":
		issues = append(issues, Issue{SeverityError, "engine.kind", "engine.kind must not be empty"})
	case !isKnownEngine(kind):
		issues = append(issues, Issue{SeverityWarning, "engine.kind",
			fmt.Sprintf("unknown engine kind %q; ensure a matching backend is registered", kind)})
	case kind != "sqlite" && strings.TrimSpace(e.DSN) == "":
		issues = append(issues, Issue{SeverityError, "engine.dsn",
			fmt.Sprintf("engine %q requires a dsn (or %s)", kind, EnvEngineDSN)})
	}
	if n := e.Options.Int("batch_size", 0); n < 0 {
		issues = append(issues, Issue{SeverityError, "engine.options.batch_size", "batch_size must be >= 0"})
	}
	if s := e.Options.String("query_timeout", ""); s != "" {
		if d, err := time.ParseDuration(s); err != nil || d <= 0 {
			issues = append(issues, Issue{SeverityError, "engine.options.query_timeout",
				fmt.Sprintf("query_timeout %q is not a positive duration", s)})
		}
	}
	return issues
}

func isKnownEngine(kind string) bool {
	_, ok := knownEngines[kind]
	return ok
}

// CheckDocuments loads every document p refers to and reports structural
// problems as issues. It complements ValidatePipeline for -validate runs.
func CheckDocuments(p Pipeline) []Issue {
	var issues []Issue
	fail := func(path string, err error) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: err.Error()})
	}

	if p.Input.Schema != "" {
		if _, err := schema.Load(p.Input.Schema); err != nil {
			fail("input.schema", err)
		}
	}
	if p.Output.Schema != "" {
		if _, err := schema.Load(p.Output.Schema); err != nil {
			fail("output.schema", err)
		}
	}
	if p.Process.Path != "" {
		if _, err := query.LoadProcess(p.Process.Path); err != nil {
			fail("process.path", err)
		}
	}
	if p.Tables != "" {
		if _, err := tables.Load(p.Tables); err != nil {
			fail("tables", err)
		}
	}
	return issues
}
