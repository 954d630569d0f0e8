package transport

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestCluster(addrs ...string) *Cluster {
	policy := NewRoundRobinPolicy()
	nodes := make([]*Node, 0, len(addrs))
	for _, a := range addrs {
		n := NewNode(a, "dc1", "rack1", uuid.New())
		n.setStatus(statusUp)
		nodes = append(nodes, n)
	}
	policy.Init(nodes)
	// A short ConnectTimeout bounds the dial that HandleTopologyChange and
	// HandleStatusChange make to an unreachable test address instead of
	// hanging on the OS default.
	return &Cluster{policy: policy, nodes: nodes, cfg: ConnConfig{ConnectTimeout: 50 * time.Millisecond}}
}

func TestClusterHandleStatusChangeDown(t *testing.T) {
	t.Parallel()
	c := newTestCluster("10.0.0.1:9042", "10.0.0.2:9042")

	c.HandleStatusChange("10.0.0.1:9042", false)

	for _, n := range c.Nodes() {
		if n.Addr() == "10.0.0.1:9042" && n.IsUp() {
			t.Fatal("node should be marked Down after a DOWN status change")
		}
	}
	if len(c.Nodes()) != 2 {
		t.Fatal("HandleStatusChange must not remove the node from the set, only mark it Down")
	}
}

func TestClusterHandleStatusChangeUp(t *testing.T) {
	t.Parallel()
	c := newTestCluster("10.0.0.1:9042")
	c.nodes[0].setStatus(statusDown)

	c.HandleStatusChange("10.0.0.1:9042", true)

	if !c.nodes[0].IsUp() {
		t.Fatal("node should be marked Up after an UP status change")
	}
}

func TestClusterHandleTopologyChangeRemoved(t *testing.T) {
	t.Parallel()
	c := newTestCluster("10.0.0.1:9042", "10.0.0.2:9042")

	c.HandleTopologyChange("10.0.0.1:9042", false)

	if len(c.Nodes()) != 1 {
		t.Fatalf("len(Nodes()) = %d, want 1 after REMOVED_NODE", len(c.Nodes()))
	}
	if c.Nodes()[0].Addr() != "10.0.0.2:9042" {
		t.Fatal("the wrong node was removed")
	}
}

func TestClusterHandleTopologyChangeAdded(t *testing.T) {
	t.Parallel()
	c := newTestCluster("10.0.0.1:9042")

	c.HandleTopologyChange("10.0.0.3:9042", true)

	if len(c.Nodes()) != 2 {
		t.Fatalf("len(Nodes()) = %d, want 2 after NEW_NODE", len(c.Nodes()))
	}
	found := false
	for _, n := range c.Nodes() {
		if n.Addr() == "10.0.0.3:9042" {
			found = true
		}
	}
	if !found {
		t.Fatal("the newly bootstrapped node was not added to the set")
	}
}
