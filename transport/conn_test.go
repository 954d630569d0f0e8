package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"
	"github.com/nativecql/cqldriver/frame/response"
)

// scriptedFrame is one frame the fake server writes in reply to a request it
// read off the wire; body is a pre-encoded RESULT/READY/etc. payload.
type scriptedFrame struct {
	op   frame.OpCode
	body []byte
}

// runFakeServer reads one request frame per scripted reply and writes the
// reply back with the matching stream id, letting conn_test drive Conn
// through its public API without a real Cassandra node.
func runFakeServer(t *testing.T, conn net.Conn, replies []scriptedFrame) {
	t.Helper()
	go func() {
		for _, reply := range replies {
			var headerBuf frame.Buffer
			if _, err := io.CopyN(&headerBuf, conn, frame.HeaderSize); err != nil {
				return
			}
			h := frame.ParseHeader(&headerBuf)
			if h.Length > 0 {
				var bodyBuf frame.Buffer
				if _, err := io.CopyN(&bodyBuf, conn, int64(h.Length)); err != nil {
					return
				}
			}
			writeFrame(conn, h.StreamID, reply.op, reply.body)
		}
	}()
}

func writeFrame(conn net.Conn, streamID frame.StreamID, op frame.OpCode, body []byte) {
	var out frame.Buffer
	hdr := frame.Header{Version: frame.CQLv4Response, StreamID: streamID, OpCode: op, Length: frame.Int(len(body))}
	hdr.WriteTo(&out)
	_, _ = out.Write(body)
	_, _ = conn.Write(out.Bytes())
}

func voidResultBody() []byte {
	var b frame.Buffer
	b.WriteInt(frame.Int(response.ResultVoid))
	return b.Bytes()
}

func preparedResultBody(id []byte) []byte {
	var b frame.Buffer
	b.WriteInt(frame.Int(response.ResultPrepared))
	b.WriteShortBytes(id)
	// variables metadata: flags, column count, pk-index count, no columns
	b.WriteInt(0)
	b.WriteInt(0)
	b.WriteShort(0)
	// result metadata: flags, column count, no columns
	b.WriteInt(0)
	b.WriteInt(0)
	return b.Bytes()
}

func readyBody() []byte { return nil }

func newPipeConn(t *testing.T, cfg ConnConfig) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	c := WrapConn(client, cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c, server
}

func TestConnQuery(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{})
	runFakeServer(t, server, []scriptedFrame{{op: frame.OpResult, body: voidResultBody()}})

	res, err := c.Query(context.Background(), "SELECT * FROM ks.t", request.QueryParams{Consistency: frame.ONE})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != response.ResultVoid {
		t.Fatalf("Kind = %v, want ResultVoid", res.Kind)
	}
}

func TestConnPrepare(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{})
	runFakeServer(t, server, []scriptedFrame{{op: frame.OpResult, body: preparedResultBody([]byte{0xAB, 0xCD})}})

	prepared, err := c.Prepare(context.Background(), "SELECT * FROM ks.t WHERE id = ?")
	if err != nil {
		t.Fatal(err)
	}
	if string(prepared.ID) != string([]byte{0xAB, 0xCD}) {
		t.Fatalf("ID = %v, want [0xAB 0xCD]", prepared.ID)
	}
}

func TestConnExecuteAndBatch(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{})
	runFakeServer(t, server, []scriptedFrame{
		{op: frame.OpResult, body: voidResultBody()},
		{op: frame.OpResult, body: voidResultBody()},
	})

	if _, err := c.Execute(context.Background(), []byte{0xAB}, request.QueryParams{Consistency: frame.ONE}); err != nil {
		t.Fatal(err)
	}

	batch := &request.Batch{Type: request.BatchLogged, Consistency: frame.ONE}
	if _, err := c.Batch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
}

func TestConnQueryServerError(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{})

	var errBody frame.Buffer
	errBody.WriteInt(frame.Int(frame.ErrInvalid))
	errBody.WriteString("no such table")
	runFakeServer(t, server, []scriptedFrame{{op: frame.OpError, body: errBody.Bytes()}})

	_, err := c.Query(context.Background(), "SELECT * FROM ks.missing", request.QueryParams{Consistency: frame.ONE})
	if err == nil {
		t.Fatal("expected an error")
	}
	ce, ok := err.(*response.Error)
	if !ok {
		t.Fatalf("err = %T, want *response.Error", err)
	}
	if ce.Code() != frame.ErrInvalid {
		t.Fatalf("Code() = %v, want ErrInvalid", ce.Code())
	}
}

func TestConnRequestTimeout(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{Timeout: 20 * time.Millisecond})
	defer server.Close()
	// server never replies

	_, err := c.Query(context.Background(), "SELECT * FROM ks.t", request.QueryParams{Consistency: frame.ONE})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !c.HasBroken() {
		t.Fatal("a timed-out connection must be marked broken so it is never borrowed again")
	}
}

func TestConnAuthenticateRejectsAuthenticatorMismatch(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{})
	defer server.Close()

	challenge := &response.Authenticate{Authenticator: "org.apache.cassandra.auth.OtherAuthenticator"}
	auth := PasswordAuthenticator{Username: "cassandra", Password: "cassandra"}

	err := c.authenticate(context.Background(), challenge, auth)
	if err == nil {
		t.Fatal("expected authenticate to reject a mismatched authenticator class name")
	}
}

func TestConnRegisterDispatchesEvents(t *testing.T) {
	t.Parallel()
	c, server := newPipeConn(t, ConnConfig{})

	events := make(chan *response.Event, 1)
	go func() {
		var headerBuf frame.Buffer
		if _, err := io.CopyN(&headerBuf, server, frame.HeaderSize); err != nil {
			return
		}
		h := frame.ParseHeader(&headerBuf)
		if h.Length > 0 {
			var bodyBuf frame.Buffer
			_, _ = io.CopyN(&bodyBuf, server, int64(h.Length))
		}
		writeFrame(server, h.StreamID, frame.OpReady, readyBody())

		var evBody frame.Buffer
		evBody.WriteString(string(response.StatusChangeEvent))
		evBody.WriteString(string(response.NodeDown))
		evBody.WriteInet(frame.Inet{IP: net.ParseIP("10.0.0.1").To4(), Port: 9042})
		writeFrame(server, 0, frame.OpEvent, evBody.Bytes())
	}()

	err := c.Register(context.Background(), frame.StringList{"STATUS_CHANGE"}, func(ev *response.Event) {
		events <- ev
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != response.StatusChangeEvent || ev.StatusChangeKind != response.NodeDown {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}
