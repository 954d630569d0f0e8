package transport

import (
	"testing"

	"github.com/google/uuid"
)

func TestNodeAccessors(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	n := NewNode("10.0.0.1:9042", "dc1", "rack1", id)

	if n.Addr() != "10.0.0.1:9042" || n.Datacenter() != "dc1" || n.Rack() != "rack1" || n.HostID != id {
		t.Fatalf("unexpected node fields: %+v", n)
	}
	if n.IsUp() {
		t.Fatal("a freshly constructed node should start Down until Init succeeds")
	}
}

func TestNodeLeastBusyConnWhenDown(t *testing.T) {
	t.Parallel()
	n := NewNode("10.0.0.1:9042", "", "", uuid.New())

	if _, err := n.LeastBusyConn(); err == nil {
		t.Fatal("expected an error borrowing a connection from a Down node")
	}
}

func TestNodeCloseWithoutInit(t *testing.T) {
	t.Parallel()
	n := NewNode("10.0.0.1:9042", "", "", uuid.New())
	n.Close() // must not panic on a nil pool
	if n.IsUp() {
		t.Fatal("Close should leave the node marked Down")
	}
}
