package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"
)

// Cluster owns the set of known nodes and the load-balancing policy that
// picks among them (§3 Session, §4.5). It discovers the rest of the ring
// from one of the caller-supplied contact points via system.peers, the same
// bootstrap the reference driver's exec.go TODOs gesture at but never
// implement.
type Cluster struct {
	cfg    ConnConfig
	policy HostSelectionPolicy
	nodes  []*Node
	port   string
}

// NewCluster dials the first reachable contact point, discovers its peers
// from system.local/system.peers, builds a Node (with its own connection
// pool) for every member reached, and seeds policy with the resulting set.
// A peer whose pool fails to initialize is kept in the set but marked Down,
// so a later UP event can restore it.
func NewCluster(ctx context.Context, contactPoints []string, cfg ConnConfig, policy HostSelectionPolicy) (*Cluster, error) {
	if len(contactPoints) == 0 {
		return nil, fmt.Errorf("transport: no contact points given")
	}

	c := &Cluster{cfg: cfg, policy: policy}

	var control *Conn
	var controlAddr string
	var lastErr error
	for _, addr := range contactPoints {
		conn, err := DialAndHandshake(ctx, addr, cfg)
		if err == nil {
			control = conn
			controlAddr = addr
			break
		}
		lastErr = err
	}
	if control == nil {
		return nil, fmt.Errorf("transport: no contact point reachable: %w", lastErr)
	}
	defer control.Close()

	_, port, err := net.SplitHostPort(controlAddr)
	if err != nil {
		port = "9042"
	}
	c.port = port

	descriptors, err := discoverPeers(ctx, control, controlAddr, port)
	if err != nil {
		descriptors = contactPointDescriptors(contactPoints)
		cfg.logger().Printf("transport: peer discovery failed, falling back to contact points only: %v", err)
	}

	for _, d := range descriptors {
		n := NewNode(d.addr, d.datacenter, d.rack, d.hostID)
		if err := n.Init(ctx, cfg); err != nil {
			cfg.logger().Printf("transport: %v", err)
		}
		c.nodes = append(c.nodes, n)
	}
	if len(c.nodes) == 0 {
		return nil, fmt.Errorf("transport: no nodes discovered from %v", contactPoints)
	}

	policy.Init(c.nodes)
	return c, nil
}

// Policy returns the cluster's node-selection policy.
func (c *Cluster) Policy() HostSelectionPolicy { return c.policy }

// Nodes returns the full known node set, including any marked Down.
func (c *Cluster) Nodes() []*Node { return c.nodes }

// Close tears down every node's connection pool.
func (c *Cluster) Close() {
	for _, n := range c.nodes {
		n.Close()
	}
}

// HandleStatusChange marks a node Up or Down in response to a STATUS_CHANGE
// event (§4.5, §4.6). DOWN takes the node out of the policy; UP builds its
// pool if it has none and puts it back into the policy. Broken connections
// of an existing pool are redialed lazily the next time it is selected.
func (c *Cluster) HandleStatusChange(addr string, up bool) {
	for _, n := range c.nodes {
		if n.addr != addr {
			continue
		}
		if up {
			if n.pool == nil {
				if err := n.Init(context.Background(), c.cfg); err != nil {
					c.cfg.logger().Printf("transport: %v", err)
				}
			}
			n.setStatus(statusUp)
			c.policy.Remove(func(candidate *Node) bool { return candidate.addr == addr })
			c.policy.Add(n)
		} else {
			n.setStatus(statusDown)
			c.policy.Remove(func(candidate *Node) bool { return candidate.addr == addr })
		}
		return
	}
}

// HandleTopologyChange adds a newly bootstrapped node or drops a removed one
// in response to a TOPOLOGY_CHANGE event (§4.5, §4.6).
func (c *Cluster) HandleTopologyChange(addr string, added bool) {
	if !added {
		c.policy.Remove(func(n *Node) bool { return n.addr == addr })
		for i, n := range c.nodes {
			if n.addr == addr {
				n.Close()
				c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
				return
			}
		}
		return
	}
	n := NewNode(addr, "", "", uuid.UUID{})
	if err := n.Init(context.Background(), c.cfg); err != nil {
		c.cfg.logger().Printf("transport: %v", err)
	}
	c.nodes = append(c.nodes, n)
	c.policy.Add(n)
}

type peerDescriptor struct {
	addr       string
	datacenter string
	rack       string
	hostID     uuid.UUID
}

func contactPointDescriptors(contactPoints []string) []peerDescriptor {
	out := make([]peerDescriptor, 0, len(contactPoints))
	for _, addr := range contactPoints {
		out = append(out, peerDescriptor{addr: addr})
	}
	return out
}

// discoverPeers reads system.local (the control node itself) and
// system.peers (everyone else it knows about), reassembling each peer's
// `inet` address with the control connection's own port since system.peers
// never stores one (§4.6 supplemented feature; not in the distilled spec).
func discoverPeers(ctx context.Context, control *Conn, controlAddr, port string) ([]peerDescriptor, error) {
	var out []peerDescriptor

	localRes, err := control.Query(ctx, "SELECT host_id, data_center, rack FROM system.local", request.QueryParams{Consistency: frame.ONE})
	if err != nil {
		return nil, fmt.Errorf("system.local: %w", err)
	}
	if localRes.Rows != nil && len(localRes.Rows.Rows) == 1 {
		row := localRes.Rows.Rows[0]
		d := peerDescriptor{addr: controlAddr}
		if len(row) > 0 {
			if id, err := frame.DecodeUUID(row[0]); err == nil {
				d.hostID = id
			}
		}
		if len(row) > 1 {
			d.datacenter, _ = frame.DecodeVarchar(row[1])
		}
		if len(row) > 2 {
			d.rack, _ = frame.DecodeVarchar(row[2])
		}
		out = append(out, d)
	}

	peersRes, err := control.Query(ctx, "SELECT peer, host_id, data_center, rack FROM system.peers", request.QueryParams{Consistency: frame.ONE})
	if err != nil {
		return nil, fmt.Errorf("system.peers: %w", err)
	}
	if peersRes.Rows != nil {
		for _, row := range peersRes.Rows.Rows {
			if len(row) < 1 {
				continue
			}
			ip, err := frame.DecodeInetAddr(row[0])
			if err != nil {
				continue
			}
			d := peerDescriptor{addr: net.JoinHostPort(ip.String(), port)}
			if len(row) > 1 {
				if id, err := frame.DecodeUUID(row[1]); err == nil {
					d.hostID = id
				}
			}
			if len(row) > 2 {
				d.datacenter, _ = frame.DecodeVarchar(row[2])
			}
			if len(row) > 3 {
				d.rack, _ = frame.DecodeVarchar(row[3])
			}
			out = append(out, d)
		}
	}
	return out, nil
}
