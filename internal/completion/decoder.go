package completion

import (
	"bytes"
	"encoding/json"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// EventKind discriminates decoded stream events.
type EventKind int

const (
	// EventDelta carries an incremental piece of generated text.
	EventDelta EventKind = iota
	// EventDone signals the normal end of the stream.
	EventDone
)

// Event is one decoded element of the provider's event stream.
type Event struct {
	Kind  EventKind
	Delta string
}

// ChunkDecoder incrementally parses the line-oriented completion stream.
// Bytes may arrive split at arbitrary boundaries; the decoder carries the
// trailing incomplete line between feeds and reassembles it. Lines that
// are blank, unprefixed, malformed JSON, or missing a content delta
// produce no event and never abort decoding.
type ChunkDecoder struct {
	carry []byte
}

// NewChunkDecoder creates a decoder with an empty carry-over buffer.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{}
}

// Feed consumes the next slice of stream bytes and returns the events
// decoded from every line completed by it, in stream order.
func (d *ChunkDecoder) Feed(p []byte) []Event {
	d.carry = append(d.carry, p...)

	var events []Event
	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		line := d.carry[:i]
		d.carry = d.carry[i+1:]

		if ev, ok := decodeLine(line); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Flush decodes whatever remains in the carry-over buffer. Call it once
// at end of input for streams whose final line lacks a trailing newline.
func (d *ChunkDecoder) Flush() []Event {
	if len(d.carry) == 0 {
		return nil
	}
	line := d.carry
	d.carry = nil

	if ev, ok := decodeLine(line); ok {
		return []Event{ev}
	}

	return nil
}

func decodeLine(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return Event{}, false
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if bytes.Equal(payload, []byte(doneSentinel)) {
		return Event{Kind: EventDone}, true
	}

	var chunk providerStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		// A single bad line must not terminate otherwise-valid decoding.
		return Event{}, false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return Event{}, false
	}

	return Event{Kind: EventDelta, Delta: chunk.Choices[0].Delta.Content}, true
}
