package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	orders "electrohub/internal/features/orders/domain"
)

// Server-sent event names on an order stream.
const (
	EventSnapshot = "snapshot"
	EventNotFound = "not_found"
)

// Heartbeat is an SSE comment that keeps idle connections open.
var Heartbeat = []byte(": heartbeat\n\n")

// Event is one server-sent event.
type Event struct {
	ID   string
	Name string
	Data []byte
}

// SnapshotEvent wraps an order snapshot. A nil order means the order does not exist.
func SnapshotEvent(o *orders.Order) (Event, error) {
	if o == nil {
		return Event{Name: EventNotFound, Data: []byte("null")}, nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal order snapshot: %w", err)
	}
	return Event{
		ID:   strconv.FormatInt(o.Revision, 10),
		Name: EventSnapshot,
		Data: data,
	}, nil
}

// WriteTo encodes the event in text/event-stream framing.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if e.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.ID)
	}
	if e.Name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Name)
	}
	for _, line := range bytes.Split(e.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.WriteTo(w)
}
