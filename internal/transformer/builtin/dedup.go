package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"tabsql/internal/dataset"
)

// maxKeyPreview caps the rows listed for duplicated primary keys.
const maxKeyPreview = 10

// DuplicateRows returns, in ascending order, every row whose key tuple over
// keys occurs more than once (all occurrences, not only the later ones).
// Nulls compare equal to each other. It fails when a key column is missing.
//
// Rows are bucketed by a hash of the encoded tuple; rows sharing a bucket
// are compared on the encoded bytes so hash collisions never merge keys.
func DuplicateRows(ds *dataset.Dataset, keys []string) ([]int, error) {
	cols := make([]*dataset.Column, len(keys))
	for i, k := range keys {
		c, ok := ds.Column(k)
		if !ok {
			return nil, fmt.Errorf("key column %q missing", k)
		}
		cols[i] = c
	}

	type slot struct {
		key  string
		rows []int
	}
	buckets := make(map[uint64][]*slot, ds.Len())
	var buf []byte
	for r := 0; r < ds.Len(); r++ {
		buf = encodeKey(buf[:0], cols, r)
		h := xxh3.Hash(buf)
		var hit *slot
		for _, s := range buckets[h] {
			if s.key == string(buf) {
				hit = s
				break
			}
		}
		if hit == nil {
			hit = &slot{key: string(buf)}
			buckets[h] = append(buckets[h], hit)
		}
		hit.rows = append(hit.rows, r)
	}

	var dup []int
	for _, slots := range buckets {
		for _, s := range slots {
			if len(s.rows) > 1 {
				dup = append(dup, s.rows...)
			}
		}
	}
	sort.Ints(dup)
	return dup, nil
}

// encodeKey appends a self-delimiting encoding of row r's key tuple: a kind
// byte per cell (0 for null) then the length-prefixed text form.
func encodeKey(buf []byte, cols []*dataset.Column, r int) []byte {
	for _, c := range cols {
		v := c.Values[r]
		if v == nil {
			buf = append(buf, 0)
			continue
		}
		s := dataset.FormatValue(v)
		buf = append(buf, byte(c.Kind)+1)
		buf = fmt.Appendf(buf, "%d:", len(s))
		buf = append(buf, s...)
	}
	return buf
}

// keyPreview renders the key values of rows as one mapping per row.
func keyPreview(ds *dataset.Dataset, keys []string, rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		kv := make([]string, len(keys))
		for j, k := range keys {
			c, _ := ds.Column(k)
			kv[j] = k + ": " + previewValue(c.Values[r])
		}
		parts[i] = "{" + strings.Join(kv, ", ") + "}"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
