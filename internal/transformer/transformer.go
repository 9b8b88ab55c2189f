// Package transformer defines the dataset-to-dataset stages that run between
// reading an input and handing it to the engine.
package transformer

import "tabsql/internal/dataset"

// Transformer is one stage. Implementations must not mutate their input;
// stages that change values return a new dataset.
type Transformer interface {
	Apply(*dataset.Dataset) (*dataset.Dataset, error)
}

// Func adapts a plain function to Transformer.
type Func func(*dataset.Dataset) (*dataset.Dataset, error)

// Apply calls f.
func (f Func) Apply(in *dataset.Dataset) (*dataset.Dataset, error) { return f(in) }

// Chain is an ordered list of transformers. It stops at the first error.
type Chain []Transformer

// Apply runs every stage in order, feeding each the previous output.
func (c Chain) Apply(in *dataset.Dataset) (*dataset.Dataset, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
