package transport

import (
	"context"
	"fmt"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/response"
)

// EventStream is a lazy, unbounded sequence of decoded server events
// delivered over one dedicated connection (§4.6). The connection is used for
// nothing else once registered; the client does not auto-resubscribe if it
// drops — callers that need resilience call ListenFor again.
type EventStream struct {
	conn   *Conn
	events chan *response.Event
	done   chan struct{}
}

// Events returns the channel events are delivered on. Check Err after a read
// loop exits to distinguish a deliberate Close from a dropped connection.
func (s *EventStream) Events() <-chan *response.Event { return s.events }

// Err reports an error if the stream's connection broke without Close having
// been called; it returns nil while the connection is healthy and after Close.
func (s *EventStream) Err() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	if s.conn.HasBroken() {
		return fmt.Errorf("transport: event stream connection broken")
	}
	return nil
}

// Close tears down the dedicated connection.
func (s *EventStream) Close() error {
	close(s.done)
	return s.conn.Close()
}

// ListenFor opens a new connection to addr, sends REGISTER for the given
// event kinds, and returns an EventStream that receives every subsequent
// unsolicited EVENT frame (§4.4, §4.6). kinds are the EventKind strings:
// TOPOLOGY_CHANGE, STATUS_CHANGE, SCHEMA_CHANGE.
func ListenFor(ctx context.Context, addr string, cfg ConnConfig, kinds []string) (*EventStream, error) {
	conn, err := DialAndHandshake(ctx, addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: event connection to %s: %w", addr, err)
	}

	s := &EventStream{
		conn:   conn,
		events: make(chan *response.Event, 64),
		done:   make(chan struct{}),
	}

	if err := conn.Register(ctx, frame.StringList(kinds), s.deliver, s.closeEvents); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: REGISTER on %s: %w", addr, err)
	}
	return s, nil
}

// closeEvents is the connection's onClosed callback: it runs exactly once,
// from the reader goroutine, whether the stream's connection was torn down
// by Close or dropped unexpectedly. Closing events unblocks any range over
// Events() instead of leaking it forever; the caller distinguishes the two
// cases afterward with Err (spec: "on disconnect, the stream terminates —
// resubscription is the caller's responsibility").
func (s *EventStream) closeEvents(error) {
	close(s.events)
}

// deliver is invoked by the connection's reader goroutine for every EVENT
// frame; it must never block that goroutine for long, so delivery is
// best-effort once the stream's buffer is full.
func (s *EventStream) deliver(ev *response.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	default:
		// buffer full: drop rather than stall the reader loop.
	}
}
