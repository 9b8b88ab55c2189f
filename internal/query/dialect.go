package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the few renderings that differ between engines.
type Dialect string

const (
	// ANSI is the default: LIMIT n, TRUE/FALSE.
	ANSI Dialect = "ansi"
	// TSQL targets SQL Server: OFFSET/FETCH, 1/0 booleans, CEILING.
	TSQL Dialect = "tsql"
)

// ParseDialect maps a config value onto a Dialect ("" means ANSI).
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ansi", "sqlite", "postgres", "mysql":
		return ANSI, nil
	case "tsql", "mssql", "sqlserver":
		return TSQL, nil
	default:
		return "", fmt.Errorf("unknown SQL dialect %q", s)
	}
}

func (d Dialect) boolLiteral(b bool) string {
	if d == TSQL {
		if b {
			return "1"
		}
		return "0"
	}
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d Dialect) funcName(name string) string {
	if d == TSQL && name == "CEIL" {
		return "CEILING"
	}
	return name
}

// limitClauses returns the ORDER BY and row-limit lines for the dialect.
// T-SQL needs an ORDER BY before OFFSET/FETCH, so one is supplied when the
// query has none.
func (d Dialect) limitClauses(orderBy string, limit *int64) (string, string) {
	if limit == nil {
		return orderBy, ""
	}
	n := strconv.FormatInt(*limit, 10)
	if d == TSQL {
		if orderBy == "" {
			orderBy = "ORDER BY (SELECT NULL)"
		}
		return orderBy, "OFFSET 0 ROWS FETCH NEXT " + n + " ROWS ONLY"
	}
	return orderBy, "LIMIT " + n
}
