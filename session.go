package cqldriver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"
	"github.com/nativecql/cqldriver/frame/response"
	"github.com/nativecql/cqldriver/transport"
)

// PreparedQuery is the session-wide cached result of a successful PREPARE:
// the server-assigned id plus the original CQL text, retained so the
// session can transparently re-prepare after an UNPREPARED error (§3, §4.4).
type PreparedQuery struct {
	CQL               string
	ID                []byte
	ResultMetadata    response.ResultMetadata
	VariablesMetadata response.ResultMetadata
}

// Session is the user-facing entry point: it owns the cluster's node set
// and connection pools, the load-balancing and retry policies, and a
// prepared-statement cache (§3 Session, §4.6).
type Session struct {
	cfg     SessionConfig
	cluster *transport.Cluster
	stream  *transport.EventStream

	mu       sync.RWMutex
	prepared map[string]*PreparedQuery
}

// NewSession builds the cluster (dialing contact points, discovering peers,
// opening per-node pools) and, if cfg.Events is non-empty, subscribes a
// dedicated connection to those event kinds (§4.6, §6).
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cluster, err := transport.NewCluster(ctx, cfg.Hosts, cfg.ConnConfig, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("cqldriver: %w", err)
	}

	s := &Session{
		cfg:      cfg,
		cluster:  cluster,
		prepared: make(map[string]*PreparedQuery),
	}

	if len(cfg.Events) > 0 {
		nodes := cluster.Nodes()
		if len(nodes) == 0 {
			cluster.Close()
			return nil, fmt.Errorf("cqldriver: no nodes available to subscribe for events")
		}
		stream, err := transport.ListenFor(ctx, nodes[0].Addr(), cfg.ConnConfig, cfg.Events)
		if err != nil {
			cluster.Close()
			return nil, fmt.Errorf("cqldriver: subscribing to events: %w", err)
		}
		s.stream = stream
		go s.dispatchEvents(cfg.Events)
	}

	return s, nil
}

// dispatchEvents runs for the lifetime of the session's event subscription,
// feeding STATUS_CHANGE/TOPOLOGY_CHANGE into the cluster's node set and
// evicting prepared statements invalidated by a SCHEMA_CHANGE (§4.6
// supplement: the reference driver never implements this, the spec's own
// Open Question does).
func (s *Session) dispatchEvents(kinds []EventType) {
	wantSchema := false
	for _, k := range kinds {
		if k == SchemaChange {
			wantSchema = true
		}
	}
	for ev := range s.stream.Events() {
		switch ev.Kind {
		case response.StatusChangeEvent:
			addr := net.JoinHostPort(net.IP(ev.Address.IP).String(), fmt.Sprint(ev.Address.Port))
			s.cluster.HandleStatusChange(addr, ev.StatusChangeKind == response.NodeUp)
		case response.TopologyChangeEvent:
			addr := net.JoinHostPort(net.IP(ev.Address.IP).String(), fmt.Sprint(ev.Address.Port))
			s.cluster.HandleTopologyChange(addr, ev.TopologyChangeKind == response.NewNode)
		case response.SchemaChangeEvent:
			if wantSchema && ev.Target == response.TargetTable {
				s.evictPrepared(ev.Keyspace, ev.Name)
			}
		}
	}
}

func (s *Session) evictPrepared(keyspace, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cql, pq := range s.prepared {
		if tableReferencedIn(cql, keyspace, table) {
			delete(s.prepared, cql)
			_ = pq
		}
	}
}

// tableReferencedIn is a conservative, syntax-free heuristic: it just checks
// the keyspace-qualified or bare table name appears in the cached CQL text.
// A false positive only costs a redundant re-prepare, never correctness.
func tableReferencedIn(cql, keyspace, table string) bool {
	return containsFold(cql, table) && (keyspace == "" || containsFold(cql, keyspace))
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hl, nl := []rune(haystack), []rune(needle)
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j, r := range nl {
			hr := hl[i+j]
			if hr != r && foldRune(hr) != foldRune(r) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func foldRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Query returns a fluent, unprepared Query builder bound to cql (§4.6).
func (s *Session) Query(cql string) *Query {
	return &Query{
		session: s,
		cql:     cql,
		params:  request.QueryParams{Consistency: s.cfg.DefaultConsistency},
	}
}

// Prepare sends PREPARE if cql is not already cached, and returns a Query
// builder bound to the resulting statement id (§3 PreparedQuery, §4.4, §4.6).
func (s *Session) Prepare(ctx context.Context, cql string) (*Query, error) {
	s.mu.RLock()
	pq, ok := s.prepared[cql]
	s.mu.RUnlock()

	if !ok {
		node, found := s.cluster.Policy().Next()
		if !found {
			return nil, errNoHostAvailable
		}
		prepared, err := node.Prepare(ctx, cql)
		if err != nil {
			return nil, fmt.Errorf("cqldriver: preparing %q: %w", cql, err)
		}
		pq = &PreparedQuery{
			CQL:               cql,
			ID:                prepared.ID,
			ResultMetadata:    prepared.ResultMetadata,
			VariablesMetadata: prepared.VariablesMetadata,
		}
		s.mu.Lock()
		s.prepared[cql] = pq
		s.mu.Unlock()
	}

	return &Query{
		session:  s,
		cql:      cql,
		prepared: pq,
		params:   request.QueryParams{Consistency: s.cfg.DefaultConsistency},
	}, nil
}

// Batch returns an empty Batch builder bound to this session (§3 Batch,
// §4.4, §4.6).
func (s *Session) Batch(typ request.BatchType) *Batch {
	return &Batch{
		session: s,
		req: &request.Batch{
			Type:        typ,
			Consistency: s.cfg.DefaultConsistency,
		},
	}
}

// ListenFor sends REGISTER on a dedicated connection to an arbitrary live
// node and returns the resulting event stream (§4.6). Unlike the
// subscription opened by NewSession from cfg.Events, a stream returned here
// is owned entirely by the caller: the session does not dispatch its events
// into the cluster's own node-state tracking.
func (s *Session) ListenFor(ctx context.Context, kinds ...EventType) (*transport.EventStream, error) {
	nodes := s.cluster.Nodes()
	if len(nodes) == 0 {
		return nil, errNoHostAvailable
	}
	return transport.ListenFor(ctx, nodes[0].Addr(), s.cfg.ConnConfig, kinds)
}

// WaitForSchemaAgreement polls every up node's schema_version until they all
// match or ctx is done, giving a caller that just ran a DDL statement a way
// to know the cluster has converged before issuing dependent queries.
func (s *Session) WaitForSchemaAgreement(ctx context.Context) error {
	nodes := s.cluster.Nodes()

	for {
		versions := make(map[string]struct{})
		for _, n := range nodes {
			if !n.IsUp() {
				continue
			}
			v, err := n.FetchSchemaVersion(ctx)
			if err != nil {
				continue
			}
			versions[v.String()] = struct{}{}
		}
		if len(versions) <= 1 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("cqldriver: schema agreement not reached: %w", ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// do picks a node via the configured policy, borrows a connection, and runs
// attempt, applying the configured RetryPolicy on transient failure and
// bounding the number of distinct nodes tried (§4.6 steps 1-8).
func (s *Session) do(ctx context.Context, idempotent bool, consistency frame.Consistency, attempt func(conn *transport.Conn) (*response.Result, error)) (*response.Result, error) {
	rd := s.cfg.RetryPolicy.NewRetryDecider()
	maxNodes := len(s.cluster.Nodes()) + 1
	if maxNodes < 1 {
		maxNodes = 1
	}

	var lastErr error
nodeLoop:
	for tried := 0; tried < maxNodes; tried++ {
		node, ok := s.cluster.Policy().Next()
		if !ok {
			break
		}
		conn, err := node.LeastBusyConn()
		if err != nil {
			lastErr = err
			continue
		}

		for {
			res, err := attempt(conn)
			s.cluster.Policy().Report(node, err)
			if err == nil {
				return res, nil
			}

			ri := transport.RetryInfo{Error: err, Idempotent: idempotent, Consistency: consistency}
			switch rd.Decide(ri) {
			case transport.RetrySameNode:
				continue
			case transport.RetryNextNode:
				lastErr = err
				continue nodeLoop
			default:
				return nil, err
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("cqldriver: no host available: %w", lastErr)
	}
	return nil, errNoHostAvailable
}

// Close tears down every node's connection pool and, if active, the
// session-level event subscription.
func (s *Session) Close() {
	if s.stream != nil {
		_ = s.stream.Close()
	}
	s.cluster.Close()
}
