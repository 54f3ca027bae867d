// Package bundle routes keyed batches of vectors between model components.
//
// A component declares a fixed, ordered list of named inputs and named
// outputs. An Adapter binds bundle keys to those positional inputs through an
// explicit mapping table built at construction time; nothing is inferred
// from call signatures at call time.
package bundle

import (
	"context"
	"fmt"
)

// Bundle is a keyed collection of batches. Each value is a batch of row
// vectors, as consumed by the quantizer.
type Bundle map[string][][]float32

// Func is a computation with declared named inputs and outputs. Apply
// receives one batch per declared input, in declaration order, and must
// return one batch per declared output, in declaration order.
type Func struct {
	Name    string
	Inputs  []string
	Outputs []string
	Apply   func(ctx context.Context, args ...[][]float32) ([][][]float32, error)
}

// Adapter binds bundle keys to a Func's positional inputs.
type Adapter struct {
	fn Func

	// keys[i] is the bundle key feeding declared input i.
	keys []string
}

// NewAdapter builds the input mapping for fn. keyFor maps a declared input
// name to the bundle key that feeds it; inputs absent from keyFor read the
// key matching their own name.
func NewAdapter(fn Func, keyFor map[string]string) (*Adapter, error) {
	if fn.Apply == nil {
		return nil, fmt.Errorf("func %q has no Apply", fn.Name)
	}
	if len(fn.Inputs) == 0 {
		return nil, fmt.Errorf("func %q declares no inputs", fn.Name)
	}
	if len(fn.Outputs) == 0 {
		return nil, fmt.Errorf("func %q declares no outputs", fn.Name)
	}

	seen := make(map[string]struct{}, len(fn.Inputs))
	for _, name := range fn.Inputs {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("func %q: duplicate input %q", fn.Name, name)
		}
		seen[name] = struct{}{}
	}
	for name := range keyFor {
		if _, ok := seen[name]; !ok {
			return nil, fmt.Errorf("func %q: mapping for unknown input %q", fn.Name, name)
		}
	}

	keys := make([]string, len(fn.Inputs))
	for i, name := range fn.Inputs {
		if key, ok := keyFor[name]; ok {
			keys[i] = key
		} else {
			keys[i] = name
		}
	}

	return &Adapter{fn: fn, keys: keys}, nil
}

// Call gathers the mapped inputs from in, applies the function, and returns
// its outputs keyed by their declared names.
func (a *Adapter) Call(ctx context.Context, in Bundle) (Bundle, error) {
	args := make([][][]float32, len(a.keys))
	for i, key := range a.keys {
		batch, ok := in[key]
		if !ok {
			return nil, fmt.Errorf("func %q: bundle missing key %q for input %q", a.fn.Name, key, a.fn.Inputs[i])
		}
		args[i] = batch
	}

	outs, err := a.fn.Apply(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(outs) != len(a.fn.Outputs) {
		return nil, fmt.Errorf("func %q: returned %d outputs, declared %d", a.fn.Name, len(outs), len(a.fn.Outputs))
	}

	out := make(Bundle, len(outs))
	for i, name := range a.fn.Outputs {
		out[name] = outs[i]
	}
	return out, nil
}

// Inputs returns the declared input names.
func (a *Adapter) Inputs() []string {
	return a.fn.Inputs
}

// Outputs returns the declared output names.
func (a *Adapter) Outputs() []string {
	return a.fn.Outputs
}
