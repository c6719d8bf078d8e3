// Package sse incrementally parses a chat-completion event stream.
//
// A Parser is fed raw chunks as they arrive off the wire. It keeps the
// trailing partial line between calls so an event split across reads is
// parsed exactly once.
package sse

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pario-ai/routebench/pkg/apierr"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// Usage is an authoritative token count observed in the stream. A nil field
// means the upstream did not report that count as a number.
type Usage struct {
	PromptTokens     *int
	CompletionTokens *int
}

// Event is one decoded data line.
type Event struct {
	// Content is the incremental text of choices[0].delta.content.
	Content string
	// Usage is set when the event carried a usage object.
	Usage *Usage
}

// Parser is an incremental event-stream parser. It is not safe for
// concurrent use.
type Parser struct {
	buf     strings.Builder
	skipped int
	lastErr *apierr.ParseError
}

// Feed appends chunk to the carry buffer and returns the events decoded from
// every complete line.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf.Write(chunk)
	text := p.buf.String()

	idx := strings.LastIndexByte(text, '\n')
	if idx < 0 {
		return nil
	}
	complete, rest := text[:idx], text[idx+1:]
	p.buf.Reset()
	p.buf.WriteString(rest)

	var events []Event
	for _, line := range strings.Split(complete, "\n") {
		if ev, ok := p.parseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush processes whatever is left in the carry buffer as a final line.
func (p *Parser) Flush() []Event {
	rest := p.buf.String()
	p.buf.Reset()
	if ev, ok := p.parseLine(rest); ok {
		return []Event{ev}
	}
	return nil
}

// Skipped returns how many data lines were dropped as malformed.
func (p *Parser) Skipped() int { return p.skipped }

// LastError returns the most recent malformed-line error, if any.
func (p *Parser) LastError() *apierr.ParseError { return p.lastErr }

func (p *Parser) parseLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	data := strings.TrimSpace(line[len(dataPrefix):])
	if data == doneMarker {
		return Event{}, false
	}
	if !gjson.Valid(data) {
		p.skipped++
		p.lastErr = &apierr.ParseError{Line: line, Err: errMalformed}
		return Event{}, false
	}

	var ev Event
	root := gjson.Parse(data)
	if usage := root.Get("usage"); usage.IsObject() {
		ev.Usage = &Usage{
			PromptTokens:     intField(usage, "prompt_tokens"),
			CompletionTokens: intField(usage, "completion_tokens"),
		}
	}
	if content := root.Get("choices.0.delta.content"); content.Type == gjson.String {
		ev.Content = content.Str
	}
	if ev.Usage == nil && ev.Content == "" {
		return Event{}, false
	}
	return ev, true
}

func intField(obj gjson.Result, key string) *int {
	v := obj.Get(key)
	if v.Type != gjson.Number {
		return nil
	}
	n := int(v.Int())
	return &n
}
