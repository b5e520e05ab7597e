package aggregator

import (
	"bytes"
	"encoding/json"

	"github.com/scanviz/merge-results/internal/results"
)

// Registry maps scanner identifiers to their opaque result payloads.
// Keys keep the position of their first insertion; setting an existing key replaces its payload.
type Registry struct {
	keys     []string
	payloads map[string]json.RawMessage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{payloads: make(map[string]json.RawMessage)}
}

// Set stores payload for scanner, overwriting any previous payload.
// It returns true if an existing payload was replaced.
func (r *Registry) Set(scanner string, payload json.RawMessage) (replaced bool) {
	if _, replaced = r.payloads[scanner]; !replaced {
		r.keys = append(r.keys, scanner)
	}
	r.payloads[scanner] = payload
	return replaced
}

// Merge folds every entry of obj into the registry, in order.
// It returns the scanners which were already present.
func (r *Registry) Merge(obj results.Object) (replaced []string) {
	for _, e := range obj {
		if r.Set(e.Scanner, e.Payload) {
			replaced = append(replaced, e.Scanner)
		}
	}
	return replaced
}

// Get returns the payload stored for scanner.
func (r *Registry) Get(scanner string) (json.RawMessage, bool) {
	p, ok := r.payloads[scanner]
	return p, ok
}

// Keys returns the scanner identifiers in insertion order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of scanners in the registry.
func (r *Registry) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the registry as a JSON object, in insertion order.
func (r *Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		// Encode appends a newline, which is insignificant whitespace here.
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')

		p := r.payloads[k]
		if len(p) == 0 {
			p = json.RawMessage("null")
		}
		buf.Write(p)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
