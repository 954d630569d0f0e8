package transport

import (
	"net"
	"testing"
	"time"

	"github.com/nativecql/cqldriver/frame/response"
)

func newTestEventStream(t *testing.T, bufSize int) (*EventStream, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	conn := WrapConn(client, ConnConfig{})
	return &EventStream{
		conn:   conn,
		events: make(chan *response.Event, bufSize),
		done:   make(chan struct{}),
	}, server
}

func TestEventStreamDeliver(t *testing.T) {
	t.Parallel()
	s, _ := newTestEventStream(t, 1)
	defer s.Close()

	ev := &response.Event{Kind: response.StatusChangeEvent}
	s.deliver(ev)

	select {
	case got := <-s.Events():
		if got != ev {
			t.Fatal("delivered a different event than was sent")
		}
	default:
		t.Fatal("deliver did not place the event on the channel")
	}
}

func TestEventStreamDeliverDropsWhenFull(t *testing.T) {
	t.Parallel()
	s, _ := newTestEventStream(t, 1)
	defer s.Close()

	s.deliver(&response.Event{Kind: response.StatusChangeEvent})
	// buffer is now full; a second delivery must not block the reader goroutine
	s.deliver(&response.Event{Kind: response.TopologyChangeEvent})

	if len(s.events) != 1 {
		t.Fatalf("len(events) = %d, want 1 (second event should have been dropped)", len(s.events))
	}
}

func TestEventStreamClose(t *testing.T) {
	t.Parallel()
	s, _ := newTestEventStream(t, 1)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-s.done:
	default:
		t.Fatal("Close must close the done channel")
	}
}

func TestEventStreamErrReportsNilWhenHealthy(t *testing.T) {
	t.Parallel()
	s, _ := newTestEventStream(t, 1)
	defer s.Close()
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil on a healthy connection", err)
	}
}

func TestEventStreamTerminatesOnUnexpectedDisconnect(t *testing.T) {
	t.Parallel()
	s, server := newTestEventStream(t, 1)
	s.conn.r.eventClosed = s.closeEvents

	server.Close() // drop the connection without ever calling s.Close

	select {
	case _, ok := <-s.Events():
		if ok {
			t.Fatal("expected Events() to close, got a value instead")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Events() to close after the connection dropped")
	}
	if s.Err() == nil {
		t.Fatal("Err should report the broken connection after an unexpected disconnect")
	}
}
