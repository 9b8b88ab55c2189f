// Package csv reads delimited text into raw datasets and writes datasets
// back out. Every cell is read as text; typing is left to the coercion
// stage so values such as zero-padded codes survive intact.
package csv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tabsql/internal/dataset"
	"tabsql/internal/schema"
)

// Options configures reading and writing.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// HasHeader indicates whether the first row holds column names.
	HasHeader bool

	// Encoding names the character set ("" and "utf-8" mean UTF-8).
	Encoding string

	// Columns selects and orders the columns to keep. With a header they
	// are matched by NFC-normalised name and absent ones are skipped; without
	// a header they name the file's columns by position. Empty keeps every
	// header column.
	Columns []string
}

// OptionsFor derives reader/writer options from a schema's format block,
// selecting the schema's fields as columns.
func OptionsFor(s *schema.Schema) Options {
	return Options{
		Comma:     s.Format.Comma(),
		HasHeader: s.Format.HasHeader(),
		Encoding:  s.Format.EncodingName(),
		Columns:   s.Names(),
	}
}

// Read parses r into a dataset of string cells. Empty cells are null.
func Read(r io.Reader, opt Options) (*dataset.Dataset, error) {
	dec, err := decoder(opt.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(transform.NewReader(r, dec), 64*1024)
	if err := skipBOM(br); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(br)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true

	var (
		names []string
		pick  []int // source position per output column
	)
	if opt.HasHeader {
		h, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: file is empty")
		}
		if err != nil {
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		header := StripHeaderBOM(append([]string(nil), h...))
		names, pick = selectByName(header, opt.Columns)
	} else {
		cr.FieldsPerRecord = -1
		names = append([]string(nil), opt.Columns...)
		pick = make([]int, len(names))
		for i := range pick {
			pick[i] = i
		}
	}

	out := dataset.New(names...)
	row := make([]any, len(names))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if !opt.HasHeader && len(names) == 0 {
			// Header-less input without names keeps every column.
			names = positionalNames(len(rec))
			pick = make([]int, len(names))
			for i := range pick {
				pick[i] = i
			}
			out = dataset.New(names...)
			row = make([]any, len(names))
		}
		for i, src := range pick {
			row[i] = nil
			if src < len(rec) && rec[src] != "" {
				row[i] = rec[src]
			}
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// selectByName matches wanted names against the header after NFC
// normalisation. The first occurrence of a duplicated header wins.
func selectByName(header, wanted []string) ([]string, []int) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		k := norm.NFC.String(h)
		if _, dup := pos[k]; !dup {
			pos[k] = i
		}
	}
	if len(wanted) == 0 {
		names := make([]string, 0, len(header))
		pick := make([]int, 0, len(header))
		for i, h := range header {
			if pos[norm.NFC.String(h)] == i {
				names = append(names, h)
				pick = append(pick, i)
			}
		}
		return names, pick
	}
	var names []string
	var pick []int
	for _, w := range wanted {
		if i, ok := pos[norm.NFC.String(w)]; ok {
			names = append(names, w)
			pick = append(pick, i)
		}
	}
	return names, pick
}

func positionalNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i)
	}
	return out
}
