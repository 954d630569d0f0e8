package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nativecql/cqldriver/frame/request"
	"github.com/nativecql/cqldriver/frame/response"
)

// DefaultPoolSizePerNode is the library surface's pool_size_per_node default
// (§6).
const DefaultPoolSizePerNode = 16

// ConnPool is the concrete realization of the abstract pool contract §4.7
// describes: a bounded set of ready connections to one node, all dialed when
// the pool is built, with any broken or emptied slot redialed lazily on
// borrow, health-checked on borrow, and recycled on a fatal error. It
// generalizes the reference driver's one-connection-per-shard
// LeastBusyConn selection to an arbitrary fixed pool size.
type ConnPool struct {
	addr string
	cfg  ConnConfig
	size int

	mu    sync.Mutex
	conns []*Conn
	// tokens bounds concurrent borrowers to size; a receive blocks until a
	// slot is free, mirroring a sync.Cond-style semaphore.
	tokens chan struct{}
}

// NewConnPool dials `size` connections to addr (DefaultPoolSizePerNode if
// cfg.PoolSize is zero) and runs the STARTUP/AUTHENTICATE handshake on each.
func NewConnPool(ctx context.Context, addr string, cfg ConnConfig) (*ConnPool, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSizePerNode
	}

	p := &ConnPool{
		addr:   addr,
		cfg:    cfg,
		size:   size,
		conns:  make([]*Conn, size),
		tokens: make(chan struct{}, size),
	}
	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}

	var firstErr error
	opened := 0
	for i := 0; i < size; i++ {
		c, err := DialAndHandshake(ctx, addr, cfg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.conns[i] = c
		opened++
	}
	if opened == 0 {
		return nil, fmt.Errorf("transport: pool to %s: %w", addr, firstErr)
	}
	return p, nil
}

// LeastBusyConn returns the live connection with the fewest in-flight
// requests, reconnecting lazily in place of any slot found broken or empty.
func (p *ConnPool) LeastBusyConn() (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Conn
	bestLoad := -1
	for i, c := range p.conns {
		if c == nil || c.HasBroken() {
			if fresh, err := DialAndHandshake(context.Background(), p.addr, p.cfg); err == nil {
				p.conns[i] = fresh
				c = fresh
			} else {
				continue
			}
		}
		load := c.InFlight()
		if best == nil || load < bestLoad {
			best, bestLoad = c, load
		}
	}
	if best == nil {
		return nil, fmt.Errorf("transport: no live connection to %s", p.addr)
	}
	return best, nil
}

// Get acquires a connection, blocking until one is free or ctx is done, per
// the abstract contract's "guaranteed release on scope exit" — callers
// should defer Release(c).
func (p *ConnPool) Get(ctx context.Context) (*Conn, error) {
	select {
	case <-p.tokens:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c, err := p.LeastBusyConn()
	if err != nil {
		p.tokens <- struct{}{}
		return nil, err
	}
	return c, nil
}

// Release returns a connection borrowed via Get.
func (p *ConnPool) Release(*Conn) {
	p.tokens <- struct{}{}
}

// IsValid sends an OPTIONS frame and expects SUPPORTED within cfg.Timeout
// (§4.7).
func (p *ConnPool) IsValid(c *Conn) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.healthCheckTimeout())
	defer cancel()
	resp, err := c.sendRequest(ctx, &request.Options{})
	_, ok := resp.(*response.Supported)
	return err == nil && ok
}

func (p *ConnPool) healthCheckTimeout() time.Duration {
	if p.cfg.Timeout > 0 {
		return p.cfg.Timeout
	}
	return DefaultRequestTimeout
}

// HasBroken reports whether c has observed a fatal protocol/I-O error.
func (p *ConnPool) HasBroken(c *Conn) bool { return c.HasBroken() }

// Reset discards c; a replacement is manufactured lazily by LeastBusyConn.
func (p *ConnPool) Reset(c *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.conns {
		if cur == c {
			c.Close()
			p.conns[i] = nil
			return
		}
	}
}

// Close tears down every connection in the pool.
func (p *ConnPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.conns {
		if c != nil {
			c.Close()
			p.conns[i] = nil
		}
	}
}
