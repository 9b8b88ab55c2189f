package csv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/transform"

	"tabsql/internal/dataset"
)

// Write renders ds as delimited text. Nulls are written as empty cells and
// numbers in their canonical form (see dataset.FormatValue). With
// opt.Columns set only those columns are written, in that order.
func Write(w io.Writer, ds *dataset.Dataset, opt Options) error {
	enc, err := encoder(opt.Encoding)
	if err != nil {
		return err
	}

	cols := ds.Columns()
	if len(opt.Columns) > 0 {
		cols = make([]*dataset.Column, 0, len(opt.Columns))
		for _, name := range opt.Columns {
			c, ok := ds.Column(name)
			if !ok {
				return fmt.Errorf("write csv: column %q not in dataset", name)
			}
			cols = append(cols, c)
		}
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	var sink io.Writer = bw
	var tw *transform.Writer
	if enc != nil {
		tw = transform.NewWriter(bw, enc)
		sink = tw
	} else if wantsBOM(opt.Encoding) {
		if _, err := bw.WriteString(utf8BOM); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(sink)
	if opt.Comma != 0 {
		cw.Comma = opt.Comma
	}
	rec := make([]string, len(cols))
	if opt.HasHeader {
		for i, c := range cols {
			rec[i] = c.Name
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for r := 0; r < ds.Len(); r++ {
		for i, c := range cols {
			rec[i] = dataset.FormatValue(c.Values[r])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return bw.Flush()
}
