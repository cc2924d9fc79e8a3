package stream

import (
	"encoding/json"
	"fmt"
	"io"
)

// Encoder writes records in the same framing the Decoder reads
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v as a single "data: <json>" record
func (e *Encoder) Encode(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal stream record: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, payload); err != nil {
		return fmt.Errorf("failed to write stream record: %w", err)
	}
	return nil
}

// Done writes the terminating sentinel record
func (e *Encoder) Done() error {
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, doneSentinel); err != nil {
		return fmt.Errorf("failed to write stream terminator: %w", err)
	}
	return nil
}
