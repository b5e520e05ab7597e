package aggregator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the document read by the visualizer.
type Envelope struct {
	RecordedTests *Registry `json:"recordedTests"`
}

// Marshal serializes the envelope with a two spaces indentation and no trailing newline.
// Scanners keep their insertion order and payloads keep their member order.
func (e Envelope) Marshal() ([]byte, error) {
	reg := e.RecordedTests
	if reg == nil {
		reg = NewRegistry()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{RecordedTests: reg}); err != nil {
		return nil, fmt.Errorf("could not serialize aggregated results: %v", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
