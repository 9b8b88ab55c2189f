// Package datasource defines where pipeline inputs come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a byte stream for one pipeline input.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sink creates the destination for one pipeline output. Commit makes the
// written bytes visible; Abort discards them.
type Sink interface {
	Create(ctx context.Context) (Writer, error)
}

// Writer is an output stream that is published only on Commit.
type Writer interface {
	io.Writer
	Commit() error
	Abort() error
}
