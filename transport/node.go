package transport

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"
	"github.com/nativecql/cqldriver/frame/response"
	"go.uber.org/atomic"
)

const (
	statusDown = false
	statusUp   = true
)

// Node is one cluster member: its address, topology metadata learned from
// the control connection's system tables, and its connection pool (§3, §4.5,
// §4.7). A HostSelectionPolicy never dials a socket itself; it only ever
// hands back a *Node for the caller to borrow a connection from.
type Node struct {
	HostID     uuid.UUID
	addr       string
	datacenter string
	rack       string

	pool   *ConnPool
	status atomic.Bool
}

// NewNode describes a cluster member without opening any connections; call
// Init to build its pool.
func NewNode(addr, datacenter, rack string, hostID uuid.UUID) *Node {
	n := &Node{addr: addr, datacenter: datacenter, rack: rack, HostID: hostID}
	n.status.Store(statusDown)
	return n
}

func (n *Node) Addr() string       { return n.addr }
func (n *Node) Datacenter() string { return n.datacenter }
func (n *Node) Rack() string       { return n.rack }
func (n *Node) IsUp() bool         { return n.status.Load() }

func (n *Node) setStatus(v bool) { n.status.Store(v) }

// Init builds the node's connection pool, marking it Up on success and Down
// (but not removed from the node set) on failure, so a later UP status event
// can bring it back (§4.7).
func (n *Node) Init(ctx context.Context, cfg ConnConfig) error {
	if n.pool != nil {
		return nil
	}
	pool, err := NewConnPool(ctx, n.addr, cfg)
	if err != nil {
		n.setStatus(statusDown)
		return fmt.Errorf("node %s: %w", n.addr, err)
	}
	n.pool = pool
	n.setStatus(statusUp)
	return nil
}

// Close tears down the node's pool and marks it Down.
func (n *Node) Close() {
	if n.pool != nil {
		n.pool.Close()
	}
	n.setStatus(statusDown)
}

// LeastBusyConn borrows the node's least loaded connection (§4.7).
func (n *Node) LeastBusyConn() (*Conn, error) {
	if !n.IsUp() {
		return nil, fmt.Errorf("node %s is down", n.addr)
	}
	if n.pool == nil {
		return nil, fmt.Errorf("node %s has no connection pool", n.addr)
	}
	return n.pool.LeastBusyConn()
}

// Prepare runs PREPARE against this node's least busy connection (§4.6).
func (n *Node) Prepare(ctx context.Context, cql string) (*response.Prepared, error) {
	conn, err := n.LeastBusyConn()
	if err != nil {
		return nil, err
	}
	return conn.Prepare(ctx, cql)
}

var schemaVersionQuery = "SELECT schema_version FROM system.local WHERE key='local'"

// FetchSchemaVersion reads this node's current schema version, used by the
// control connection to detect when a schema-agreement wait is satisfied
// (§4.6, SCHEMA_CHANGE handling).
func (n *Node) FetchSchemaVersion(ctx context.Context) (uuid.UUID, error) {
	conn, err := n.LeastBusyConn()
	if err != nil {
		return uuid.UUID{}, err
	}

	res, err := conn.Query(ctx, schemaVersionQuery, request.QueryParams{Consistency: frame.ONE})
	if err != nil {
		return uuid.UUID{}, err
	}
	if res.Rows == nil || len(res.Rows.Rows) < 1 || len(res.Rows.Rows[0]) < 1 {
		return uuid.UUID{}, fmt.Errorf("schema_version query returned no rows")
	}

	version, err := frame.DecodeUUID(res.Rows.Rows[0][0])
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("parsing schema_version: %w", err)
	}
	return version, nil
}
