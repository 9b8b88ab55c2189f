package csv

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// aliases covers names used by data producers that neither the IANA nor the
// WHATWG index knows.
var aliases = map[string]string{
	"cp932":  "windows-31j",
	"ms932":  "windows-31j",
	"sjis":   "shift_jis",
	"eucjp":  "euc-jp",
	"utf8":   "utf-8",
	"latin1": "iso-8859-1",
}

// LookupEncoding resolves a schema encoding name. UTF-8 (including the
// "utf-8-sig" spelling) returns nil: input is read as is and a BOM is
// skipped; on output, "utf-8-sig" writes one.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	switch n {
	case "", "utf-8", "utf-8-sig", "utf_8", "utf_8_sig":
		return nil, nil
	}
	if e, err := ianaindex.IANA.Encoding(n); err == nil && e != nil {
		return e, nil
	}
	if e, err := htmlindex.Get(n); err == nil {
		return e, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// wantsBOM reports whether output in encoding name starts with a UTF-8 BOM.
func wantsBOM(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "utf-8-sig" || n == "utf_8_sig"
}

// decoder returns the transformer that turns input in encoding name into
// UTF-8. UTF-8 input is only validated.
func decoder(name string) (transform.Transformer, error) {
	e, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return encoding.UTF8Validator, nil
	}
	return e.NewDecoder(), nil
}

// encoder returns the transformer from UTF-8 into encoding name, or nil for
// UTF-8 output.
func encoder(name string) (transform.Transformer, error) {
	e, err := LookupEncoding(name)
	if err != nil || e == nil {
		return nil, err
	}
	return e.NewEncoder(), nil
}
