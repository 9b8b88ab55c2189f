package csv

import (
	"bufio"
	"bytes"
	"strings"
)

const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// skipBOM discards a leading UTF-8 BOM from br.
func skipBOM(br *bufio.Reader) error {
	b, err := br.Peek(len(utf8BOM))
	if err != nil {
		// Shorter than a BOM: nothing to skip, the CSV reader sees the rest.
		return nil
	}
	if bytes.Equal(b, []byte(utf8BOM)) {
		_, err = br.Discard(len(utf8BOM))
	}
	return err
}
