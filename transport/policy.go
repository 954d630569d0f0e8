package transport

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hailocab/go-hostpool"
	"go.uber.org/atomic"
)

// HostSelectionPolicy is the pluggable node-selection strategy a Session is
// configured with (§4.5). It is polymorphic over the node set; Init seeds
// it, Next returns the next candidate, Add/Remove track topology churn (a
// node going Down via an EVENT, or a freshly discovered one), and Report
// feeds back the outcome of whatever request Next's node was used for. Every
// policy but HostPoolPolicy ignores Report.
type HostSelectionPolicy interface {
	Init(nodes []*Node)
	Next() (*Node, bool)
	Add(n *Node)
	Remove(pred func(*Node) bool)
	Report(n *Node, err error)
}

func aliveNodes(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.IsUp() {
			out = append(out, n)
		}
	}
	return out
}

func removeMatching(nodes []*Node, pred func(*Node) bool) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if !pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// RoundRobinPolicy returns nodes[(prev+1) mod N] on each call; the initial
// prev is -1 so the first call returns index 0 (§4.5, §8 boundary property:
// "round-robin over N nodes returns each node exactly once in any N
// consecutive calls"). Safe under concurrent calls via an atomic cursor.
type RoundRobinPolicy struct {
	mu    sync.RWMutex
	nodes []*Node
	prev  atomic.Int64
}

func NewRoundRobinPolicy() *RoundRobinPolicy {
	p := &RoundRobinPolicy{}
	p.prev.Store(-1)
	return p
}

func (p *RoundRobinPolicy) Init(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = nodes
	p.prev.Store(-1)
}

func (p *RoundRobinPolicy) Next() (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	nodes := aliveNodes(p.nodes)
	if len(nodes) == 0 {
		return nil, false
	}
	idx := p.prev.Add(1) % int64(len(nodes))
	return nodes[idx], true
}

func (p *RoundRobinPolicy) Add(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = append(p.nodes, n)
}

func (p *RoundRobinPolicy) Remove(pred func(*Node) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = removeMatching(p.nodes, pred)
}

func (p *RoundRobinPolicy) Report(*Node, error) {}

// RandomPolicy picks uniformly at random among healthy nodes (§4.5).
type RandomPolicy struct {
	mu    sync.RWMutex
	nodes []*Node
}

func NewRandomPolicy() *RandomPolicy { return &RandomPolicy{} }

func (p *RandomPolicy) Init(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = nodes
}

func (p *RandomPolicy) Next() (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	nodes := aliveNodes(p.nodes)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[rand.Intn(len(nodes))], true //nolint:gosec // load balancing, not a security boundary
}

func (p *RandomPolicy) Add(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = append(p.nodes, n)
}

func (p *RandomPolicy) Remove(pred func(*Node) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = removeMatching(p.nodes, pred)
}

func (p *RandomPolicy) Report(*Node, error) {}

// SingleNodePolicy always returns nodes[0]; it errors (via Next returning
// false) if the node set is empty (§4.5).
type SingleNodePolicy struct {
	mu   sync.RWMutex
	node *Node
}

func NewSingleNodePolicy() *SingleNodePolicy { return &SingleNodePolicy{} }

func (p *SingleNodePolicy) Init(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(nodes) > 0 {
		p.node = nodes[0]
	}
}

func (p *SingleNodePolicy) Next() (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.node == nil || !p.node.IsUp() {
		return nil, false
	}
	return p.node, true
}

func (p *SingleNodePolicy) Add(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.node == nil {
		p.node = n
	}
}

func (p *SingleNodePolicy) Remove(pred func(*Node) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.node != nil && pred(p.node) {
		p.node = nil
	}
}

func (p *SingleNodePolicy) Report(*Node, error) {}

// TopologyAwarePolicy prefers same-datacenter healthy nodes, falling back to
// remote-DC nodes only when the local set is empty (§4.5).
type TopologyAwarePolicy struct {
	mu      sync.RWMutex
	localDC string
	nodes   []*Node
	local   *RoundRobinPolicy
	remote  *RoundRobinPolicy
}

func NewTopologyAwarePolicy(localDC string) *TopologyAwarePolicy {
	return &TopologyAwarePolicy{
		localDC: localDC,
		local:   NewRoundRobinPolicy(),
		remote:  NewRoundRobinPolicy(),
	}
}

func (p *TopologyAwarePolicy) Init(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = nodes
	var local, remote []*Node
	for _, n := range nodes {
		if n.datacenter == p.localDC {
			local = append(local, n)
		} else {
			remote = append(remote, n)
		}
	}
	p.local.Init(local)
	p.remote.Init(remote)
}

func (p *TopologyAwarePolicy) Next() (*Node, bool) {
	if n, ok := p.local.Next(); ok {
		return n, true
	}
	return p.remote.Next()
}

func (p *TopologyAwarePolicy) Add(n *Node) {
	p.mu.Lock()
	p.nodes = append(p.nodes, n)
	p.mu.Unlock()
	if n.datacenter == p.localDC {
		p.local.Add(n)
	} else {
		p.remote.Add(n)
	}
}

func (p *TopologyAwarePolicy) Remove(pred func(*Node) bool) {
	p.mu.Lock()
	p.nodes = removeMatching(p.nodes, pred)
	p.mu.Unlock()
	p.local.Remove(pred)
	p.remote.Remove(pred)
}

func (p *TopologyAwarePolicy) Report(*Node, error) {}

// HostPoolPolicy is the domain-stack addition: an adaptive policy backed by
// github.com/hailocab/go-hostpool's epsilon-greedy selector, so that nodes
// which are slow or erroring receive proportionally less traffic without
// being marked fully Down (§4.5, §10 domain stack). Callers report request
// outcomes via Report so the pool can adapt.
type HostPoolPolicy struct {
	mu    sync.Mutex
	nodes map[string]*Node
	pool  hostpool.HostPool
	resp  map[string]hostpool.HostPoolResponse // addr -> outstanding Get(), awaiting Report
}

func NewHostPoolPolicy() *HostPoolPolicy {
	return &HostPoolPolicy{nodes: make(map[string]*Node), resp: make(map[string]hostpool.HostPoolResponse)}
}

func (p *HostPoolPolicy) Init(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hosts := make([]string, 0, len(nodes))
	p.nodes = make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		hosts = append(hosts, n.addr)
		p.nodes[n.addr] = n
	}
	p.pool = hostpool.NewEpsilonGreedy(hosts, 0, &hostpool.LinearEpsilonValueCalculator{})
}

func (p *HostPoolPolicy) Next() (*Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return nil, false
	}
	resp := p.pool.Get()
	n, ok := p.nodes[resp.Host()]
	if !ok || !n.IsUp() {
		resp.Mark(fmt.Errorf("transport: host %s not up", resp.Host()))
		return nil, false
	}
	p.resp[resp.Host()] = resp
	return n, true
}

// Report feeds a request's outcome back to the epsilon-greedy selector as a
// hostpool.HostPoolResponse.Mark (§4.5, §10 domain stack): a caller that got
// n from Next calls Report once it knows whether the request n served
// succeeded. Without this the pool can never learn a node is slow or
// erroring and Next degrades to uniform random selection.
func (p *HostPoolPolicy) Report(n *Node, err error) {
	p.mu.Lock()
	resp, ok := p.resp[n.addr]
	if ok {
		delete(p.resp, n.addr)
	}
	p.mu.Unlock()
	if ok {
		resp.Mark(err)
	}
}

func (p *HostPoolPolicy) Add(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[n.addr] = n
	hosts := make([]string, 0, len(p.nodes))
	for addr := range p.nodes {
		hosts = append(hosts, addr)
	}
	p.pool.SetHosts(hosts)
}

func (p *HostPoolPolicy) Remove(pred func(*Node) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hosts := make([]string, 0, len(p.nodes))
	for addr, n := range p.nodes {
		if pred(n) {
			delete(p.nodes, addr)
			continue
		}
		hosts = append(hosts, addr)
	}
	p.pool.SetHosts(hosts)
}
