package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"
	"github.com/nativecql/cqldriver/frame/response"
	"go.uber.org/atomic"
)

// DefaultRequestTimeout is the §5 default deadline for any single I/O
// operation (socket read/write, pool acquisition, auth round-trip).
const DefaultRequestTimeout = 5 * time.Second

// ConnConfig configures one connection: its transport, its handshake, and
// its pool membership (§6 library surface).
type ConnConfig struct {
	Keyspace           string
	Compression        frame.Compression
	Authenticator      Authenticator // nil means no credentials are offered
	TCPNoDelay         bool
	ConnectTimeout     time.Duration
	Timeout            time.Duration // per-request deadline; DefaultRequestTimeout if zero
	PoolSize           int
	TLS                *tls.Config // nil means plaintext TCP
	DefaultConsistency frame.Consistency
	Logger             Logger
}

// DefaultConnConfig returns the library surface's documented defaults
// (§6): no compression, pool size 16, 5s timeouts, consistency ONE.
func DefaultConnConfig(keyspace string) ConnConfig {
	return ConnConfig{
		Keyspace:           keyspace,
		Compression:        frame.CompressionNone,
		TCPNoDelay:         true,
		ConnectTimeout:     DefaultRequestTimeout,
		Timeout:            DefaultRequestTimeout,
		PoolSize:           DefaultPoolSizePerNode,
		DefaultConsistency: frame.ONE,
		Logger:             DefaultLogger{},
	}
}

func (c ConnConfig) logger() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return DefaultLogger{}
}

// connResponse is one parsed frame handed from the reader goroutine to
// whoever is waiting on its stream id.
type connResponse struct {
	frame.Header
	frame.Response
	Warnings []string
	Err      error
}

type responseHandler chan connResponse

type outgoingRequest struct {
	frame.Request
	StreamID frame.StreamID
	Compress bool
	Handler  responseHandler
}

// connWriter owns the socket's write side: a single goroutine drains
// requestCh and serializes frames onto the wire, so concurrent callers never
// interleave writes on one connection (§5 shared mutable state).
type connWriter struct {
	conn       io.Writer
	buf        frame.Buffer
	compressor frame.Compressor
	requestCh  chan outgoingRequest
	closeCh    chan struct{}
}

func (w *connWriter) submit(r outgoingRequest) {
	select {
	case w.requestCh <- r:
	case <-w.closeCh:
		r.Handler <- connResponse{Err: fmt.Errorf("transport: connection closed")}
	}
}

func (w *connWriter) loop() {
	runtime.LockOSThread()
	for {
		select {
		case r, ok := <-w.requestCh:
			if !ok {
				return
			}
			if err := w.send(r); err != nil {
				r.Handler <- connResponse{Err: fmt.Errorf("send: %w", err)}
			}
		case <-w.closeCh:
			return
		}
	}
}

func (w *connWriter) send(r outgoingRequest) error {
	w.buf.Reset()
	r.WriteTo(&w.buf)
	body := w.buf.Bytes()

	flags := byte(0)
	if r.Compress && w.compressor != nil && w.compressor.Name() != frame.CompressionNone {
		compressed, err := w.compressor.Compress(body)
		if err != nil {
			return fmt.Errorf("compress: %w", err)
		}
		body = compressed
		flags |= frame.FlagCompression
	}

	var out frame.Buffer
	h := frame.Header{
		Version:  frame.CQLv4,
		Flags:    flags,
		StreamID: r.StreamID,
		OpCode:   r.OpCode(),
		Length:   frame.Int(len(body)),
	}
	h.WriteTo(&out)
	if _, err := out.Write(body); err != nil {
		return err
	}

	_, err := frame.CopyBuffer(&out, w.conn)
	return err
}

// connReader owns the socket's read side: a single goroutine parses frames
// off the wire and dispatches each to the waiter registered for its stream
// id, or to the event sink for stream 0 (§4.4).
type connReader struct {
	conn       *bufio.Reader
	compressor frame.Compressor

	mu sync.Mutex
	h  map[frame.StreamID]responseHandler
	s  streamIDAllocator

	eventSink   func(*response.Event)
	eventClosed func(error) // invoked once, from loop, when the connection dies
	broken      atomic.Bool
	closeCh     chan struct{}
}

func (r *connReader) setHandler(h responseHandler) (frame.StreamID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.s.Alloc()
	if err != nil {
		return 0, err
	}
	r.h[id] = h
	return id, nil
}

func (r *connReader) freeHandler(id frame.StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Free(id)
	delete(r.h, id)
}

func (r *connReader) handler(id frame.StreamID) responseHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.h[id]
}

func (r *connReader) loop() {
	runtime.LockOSThread()
	for {
		resp := r.recv()
		var unknown frame.UnknownOpCode
		if errors.As(resp.Err, &unknown) {
			// The body was read in full, so the stream stays in sync: only
			// this frame is dropped, and its waiter (if any) gets the error.
			if h := r.handler(resp.Header.StreamID); h != nil {
				h <- resp
			}
			continue
		}
		if resp.Err != nil {
			r.broken.Store(true)
			r.broadcastError(resp.Err)
			if r.eventClosed != nil {
				r.eventClosed(resp.Err)
			}
			return
		}
		if resp.Header.OpCode == frame.OpEvent {
			if ev, ok := resp.Response.(*response.Event); ok && r.eventSink != nil {
				r.eventSink(ev)
			}
			continue
		}
		if h := r.handler(resp.Header.StreamID); h != nil {
			h <- resp
		}
	}
}

// broadcastError delivers a terminal connection error to every outstanding
// waiter; nothing else will ever answer them.
func (r *connReader) broadcastError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.h {
		h <- connResponse{Err: err}
		delete(r.h, id)
	}
}

func (r *connReader) recv() connResponse {
	var resp connResponse
	var headerBuf frame.Buffer
	if _, err := io.CopyN(&headerBuf, r.conn, frame.HeaderSize); err != nil {
		resp.Err = fmt.Errorf("read header: %w", err)
		return resp
	}
	resp.Header = frame.ParseHeader(&headerBuf)
	if err := headerBuf.Error(); err != nil {
		resp.Err = fmt.Errorf("parse header: %w", err)
		return resp
	}

	var bodyBuf frame.Buffer
	if resp.Header.Length > 0 {
		if _, err := io.CopyN(&bodyBuf, r.conn, int64(resp.Header.Length)); err != nil {
			resp.Err = fmt.Errorf("read body: %w", err)
			return resp
		}
	}
	body := bodyBuf.Bytes()

	if resp.Header.Flags&frame.FlagCompression != 0 && r.compressor != nil {
		decompressed, err := r.compressor.Decompress(body)
		if err != nil {
			resp.Err = fmt.Errorf("decompress: %w", err)
			return resp
		}
		body = decompressed
	}

	var buf frame.Buffer
	if _, err := buf.Write(body); err != nil {
		resp.Err = fmt.Errorf("buffer body: %w", err)
		return resp
	}

	if resp.Header.Flags&frame.FlagTracing != 0 {
		_ = buf.ReadUUID() // tracing id: not surfaced by the core API
	}
	if resp.Header.Flags&frame.FlagWarning != 0 {
		resp.Warnings = buf.ReadStringList()
	}
	if resp.Header.Flags&frame.FlagCustomPayload != 0 {
		_ = buf.ReadBytesMap()
	}

	resp.Response = parseBody(resp.Header.OpCode, &buf)
	if err := buf.Error(); err != nil {
		resp.Err = fmt.Errorf("parse body: %w", err)
		return resp
	}
	return resp
}

func parseBody(op frame.OpCode, buf *frame.Buffer) frame.Response {
	switch op {
	case frame.OpError:
		return response.ParseError(buf)
	case frame.OpReady:
		return response.ParseReady(buf)
	case frame.OpAuthenticate:
		return response.ParseAuthenticate(buf)
	case frame.OpAuthChallenge:
		return response.ParseAuthChallenge(buf)
	case frame.OpAuthSuccess:
		return response.ParseAuthSuccess(buf)
	case frame.OpSupported:
		return response.ParseSupported(buf)
	case frame.OpResult:
		return response.ParseResult(buf)
	case frame.OpEvent:
		return response.ParseEvent(buf)
	default:
		buf.Poison(frame.UnknownOpCode{OpCode: op})
		return nil
	}
}

// Conn is one TCP connection to a node, past the STARTUP handshake, capable
// of pipelining many in-flight requests via stream-id multiplexing (§5).
type Conn struct {
	conn     net.Conn
	w        connWriter
	r        *connReader
	timeout  time.Duration
	inFlight atomic.Int64
}

const requestChanSize = 1024

// Dial opens a plain or TLS TCP connection to addr, without running the
// handshake; DialAndHandshake is the entry point callers normally use.
func Dial(ctx context.Context, addr string, cfg ConnConfig) (net.Conn, error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	if dl, ok := ctx.Deadline(); ok {
		d.Deadline = dl
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(cfg.TCPNoDelay)
	}
	if cfg.TLS != nil {
		tlsConn := tls.Client(conn, cfg.TLS)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		return tlsConn, nil
	}
	return conn, nil
}

// WrapConn builds a Conn around an already-open byte stream, starting its
// reader/writer goroutines. It does not run the handshake.
func WrapConn(conn net.Conn, cfg ConnConfig) *Conn {
	c := &Conn{
		conn:    conn,
		timeout: cfg.Timeout,
	}
	c.w = connWriter{
		conn:      conn,
		requestCh: make(chan outgoingRequest, requestChanSize),
		closeCh:   make(chan struct{}),
	}
	c.r = &connReader{
		conn:    bufio.NewReaderSize(conn, 8192),
		h:       make(map[frame.StreamID]responseHandler),
		s:       newStreamIDAllocator(),
		closeCh: make(chan struct{}),
	}
	go c.w.loop()
	go c.r.loop()
	return c
}

// DialAndHandshake opens a connection and drives it through
// [Fresh] -> ... -> [Operational] (§4.4): OPTIONS/SUPPORTED negotiates
// compression, STARTUP/READY or STARTUP/AUTHENTICATE completes the
// handshake, and an optional USE <keyspace> sets the default keyspace.
func DialAndHandshake(ctx context.Context, addr string, cfg ConnConfig) (*Conn, error) {
	raw, err := Dial(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	c := WrapConn(raw, cfg)

	supportedResp, err := c.sendRequestCompressed(ctx, &request.Options{}, false)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("OPTIONS: %w", err)
	}
	sup, ok := supportedResp.(*response.Supported)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("transport: expected SUPPORTED, got %T", supportedResp)
	}

	compression := cfg.Compression
	if compression != frame.CompressionNone {
		if algos, ok := sup.Options["COMPRESSION"]; !ok || !containsStr(algos, string(compression)) {
			compression = frame.CompressionNone
		}
	}
	compressor, err := frame.NewCompressor(compression)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.w.compressor = compressor
	c.r.compressor = compressor

	startupResp, err := c.sendRequestCompressed(ctx, &request.Startup{Options: frame.NewStartupOptions(compression)}, false)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("STARTUP: %w", err)
	}

	switch v := startupResp.(type) {
	case *response.Ready:
		// no authentication required
	case *response.Authenticate:
		if err := c.authenticate(ctx, v, cfg.Authenticator); err != nil {
			c.Close()
			return nil, err
		}
	default:
		c.Close()
		return nil, fmt.Errorf("transport: expected READY or AUTHENTICATE, got %T", startupResp)
	}

	if cfg.Keyspace != "" {
		params := request.QueryParams{Consistency: cfg.DefaultConsistency}
		if _, err := c.Query(ctx, fmt.Sprintf("USE %s", cfg.Keyspace), params); err != nil {
			c.Close()
			return nil, fmt.Errorf("USE %s: %w", cfg.Keyspace, err)
		}
	}
	return c, nil
}

func containsStr(l []string, s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// authenticate drives [AwaitAuth] until AUTH_SUCCESS (§4.4). auth must be
// non-nil; a server requiring auth with none configured is rejected. The
// server's advertised authenticator class must match auth.Name(), a sanity
// check against misconfiguration (e.g. a PasswordAuthenticator configured
// against a server running a different IAuthenticator implementation).
func (c *Conn) authenticate(ctx context.Context, challenge *response.Authenticate, auth Authenticator) error {
	if auth == nil {
		return fmt.Errorf("transport: server requires authenticator %q, none configured", challenge.Authenticator)
	}
	if auth.Name() != challenge.Authenticator {
		return fmt.Errorf("transport: server requires authenticator %q, configured authenticator answers %q", challenge.Authenticator, auth.Name())
	}

	token, err := auth.InitialResponse()
	if err != nil {
		return fmt.Errorf("transport: building initial auth token: %w", err)
	}

	for {
		resp, err := c.sendRequest(ctx, &request.AuthResponse{Token: token})
		if err != nil {
			return fmt.Errorf("AUTH_RESPONSE: %w", err)
		}
		switch v := resp.(type) {
		case *response.AuthSuccess:
			return nil
		case *response.AuthChallenge:
			token, err = auth.Challenge(v.Token)
			if err != nil {
				return fmt.Errorf("transport: building auth challenge response: %w", err)
			}
		default:
			return fmt.Errorf("transport: expected AUTH_CHALLENGE or AUTH_SUCCESS, got %T", resp)
		}
	}
}

// sendRequest writes req, compressed if the connection negotiated
// compression, and blocks for its matching response (§5 cancellation and
// timeouts).
func (c *Conn) sendRequest(ctx context.Context, req frame.Request) (frame.Response, error) {
	return c.sendRequestCompressed(ctx, req, true)
}

func (c *Conn) sendRequestCompressed(ctx context.Context, req frame.Request, compress bool) (frame.Response, error) {
	if c.HasBroken() {
		return nil, fmt.Errorf("transport: connection is broken")
	}

	h := make(responseHandler, 1)
	streamID, err := c.r.setHandler(h)
	if err != nil {
		return nil, fmt.Errorf("stream id alloc: %w", err)
	}
	c.inFlight.Inc()
	defer c.inFlight.Dec()

	c.w.submit(outgoingRequest{Request: req, StreamID: streamID, Compress: compress, Handler: h})

	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-h:
		c.r.freeHandler(streamID)
		if resp.Err != nil {
			return nil, resp.Err
		}
		if ce, ok := resp.Response.(*response.Error); ok {
			return nil, ce
		}
		return resp.Response, nil
	case <-ctx.Done():
		c.r.freeHandler(streamID)
		return nil, ctx.Err()
	case <-timer.C:
		c.r.freeHandler(streamID)
		c.r.broken.Store(true)
		return nil, fmt.Errorf("transport: request timed out after %s", timeout)
	}
}

// Query sends QUERY and interprets the RESULT (§4.4, §6).
func (c *Conn) Query(ctx context.Context, cql string, params request.QueryParams) (*response.Result, error) {
	resp, err := c.sendRequest(ctx, &request.Query{QueryString: cql, Params: params})
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*response.Result)
	if !ok {
		return nil, fmt.Errorf("transport: expected RESULT, got %T", resp)
	}
	return res, nil
}

// Prepare sends PREPARE and returns the RESULT::Prepared body (§4.4).
func (c *Conn) Prepare(ctx context.Context, cql string) (*response.Prepared, error) {
	resp, err := c.sendRequest(ctx, &request.Prepare{QueryString: cql})
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*response.Result)
	if !ok || res.Prepared == nil {
		return nil, fmt.Errorf("transport: expected RESULT::Prepared, got %T", resp)
	}
	return res.Prepared, nil
}

// Execute sends EXECUTE against a previously prepared statement id (§4.4).
func (c *Conn) Execute(ctx context.Context, id []byte, params request.QueryParams) (*response.Result, error) {
	resp, err := c.sendRequest(ctx, &request.Execute{ID: id, Params: params})
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*response.Result)
	if !ok {
		return nil, fmt.Errorf("transport: expected RESULT, got %T", resp)
	}
	return res, nil
}

// Batch sends BATCH (§4.4).
func (c *Conn) Batch(ctx context.Context, b *request.Batch) (*response.Result, error) {
	resp, err := c.sendRequest(ctx, b)
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*response.Result)
	if !ok {
		return nil, fmt.Errorf("transport: expected RESULT, got %T", resp)
	}
	return res, nil
}

// Register sends REGISTER and installs sink as the receiver for every
// subsequent unsolicited EVENT frame (§4.4, §4.6). Callers use a dedicated
// connection for this; Register is not meant to share a connection with
// ordinary request traffic afterwards. onClosed runs exactly once, from the
// reader goroutine, when the connection dies for any reason (an explicit
// Close or an unexpected drop), so the caller can terminate whatever it
// exposes the event stream as; it may be nil.
func (c *Conn) Register(ctx context.Context, eventTypes frame.StringList, sink func(*response.Event), onClosed func(error)) error {
	c.r.eventSink = sink
	c.r.eventClosed = onClosed
	resp, err := c.sendRequest(ctx, request.Register{EventTypes: eventTypes})
	if err != nil {
		return err
	}
	if _, ok := resp.(*response.Ready); !ok {
		return fmt.Errorf("transport: expected READY, got %T", resp)
	}
	return nil
}

// InFlight reports the number of requests currently awaiting a response on
// this connection, used by ConnPool.LeastBusyConn.
func (c *Conn) InFlight() int { return int(c.inFlight.Load()) }

// HasBroken reports whether this connection has observed a fatal
// protocol/I-O error and must not be borrowed again (§4.7).
func (c *Conn) HasBroken() bool { return c.r.broken.Load() }

// Close tears down the connection and its reader/writer goroutines.
func (c *Conn) Close() error {
	close(c.w.closeCh)
	close(c.r.closeCh)
	return c.conn.Close()
}
