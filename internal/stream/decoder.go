// Package stream decodes the server-sent event body of the LLM service's
// streaming generation endpoint into typed events.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// TransportError reports a response or stream that could not be read
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("llm service returned status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("llm service returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("stream read error: %v", e.Err)
	default:
		return "stream is not readable"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError describes a single record that could not be decoded
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse stream record %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decoder reads StreamEvents from an SSE body. It is pull-based: Next returns
// io.EOF once the body is exhausted.
type Decoder struct {
	r       *bufio.Reader
	skipped int
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Open checks the response status and wraps its body in a Decoder
func Open(resp *http.Response) (*Decoder, error) {
	if resp == nil || resp.Body == nil {
		return nil, &TransportError{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return NewDecoder(resp.Body), nil
}

// Skipped returns how many malformed records were dropped so far
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Next returns the next event in arrival order
func (d *Decoder) Next() (models.StreamEvent, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			// A fragment without its terminating newline is never interpreted
			if errors.Is(err, io.EOF) {
				return models.StreamEvent{}, io.EOF
			}
			return models.StreamEvent{}, &TransportError{Err: err}
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimPrefix(line, dataPrefix)
		if payload == doneSentinel {
			continue
		}

		var event models.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			d.skipped++
			log.Printf(`{"level":"warn","message":"Skipping malformed stream record","error":%q}`, (&ParseError{Line: payload, Err: err}).Error())
			continue
		}

		return event, nil
	}
}
