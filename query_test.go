package cqldriver

import (
	"testing"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"

	"github.com/google/go-cmp/cmp"
)

func TestQueryBuilder(t *testing.T) {
	t.Parallel()
	q := &Query{cql: "SELECT * FROM ks.users WHERE id = ?"}
	q.Bind(frame.NewValue(nil, frame.Bytes{0x01})).
		Consistency(frame.QUORUM).
		SerialConsistency(frame.SERIAL).
		PageSize(100).
		Idempotent(true)

	if q.params.Consistency != frame.QUORUM {
		t.Fatalf("Consistency = %v, want QUORUM", q.params.Consistency)
	}
	if !q.params.HasSerialConsistency || q.params.SerialConsistency != frame.SERIAL {
		t.Fatal("SerialConsistency was not set")
	}
	if q.params.PageSize != 100 {
		t.Fatalf("PageSize = %d, want 100", q.params.PageSize)
	}
	if !q.idempotent {
		t.Fatal("Idempotent was not set")
	}
	if diff := cmp.Diff(q.params.Values, []frame.Value{frame.NewValue(nil, frame.Bytes{0x01})}); diff != "" {
		t.Fatal(diff)
	}
}

func TestQueryNamedBindClearsPositionalBind(t *testing.T) {
	t.Parallel()
	q := &Query{cql: "INSERT INTO ks.users (id, name) VALUES (:id, :name)"}
	q.Bind(frame.NewValue(nil, frame.Bytes{0x01}))
	q.NamedBind([]string{"id", "name"}, []frame.Value{frame.NewValue(nil, frame.Bytes{0x01}), frame.NewValue(nil, frame.Bytes("bob"))})

	if diff := cmp.Diff(q.params.Names, []string{"id", "name"}); diff != "" {
		t.Fatal(diff)
	}
	if len(q.params.Values) != 2 {
		t.Fatalf("len(Values) = %d, want 2", len(q.params.Values))
	}
}

func TestBatchBuilder(t *testing.T) {
	t.Parallel()
	s := &Session{}
	pq := &PreparedQuery{CQL: "INSERT INTO ks.users (id) VALUES (?)", ID: []byte{0xAB}}

	b := s.Batch(request.BatchLogged).
		Add("INSERT INTO ks.log (msg) VALUES (?)", frame.NewValue(nil, frame.Bytes("hi"))).
		AddPrepared(pq, frame.NewValue(nil, frame.Bytes{0x01})).
		Consistency(frame.QUORUM).
		Idempotent(true)

	if b.req.Type != request.BatchLogged {
		t.Fatalf("Type = %v, want BatchLogged", b.req.Type)
	}
	if len(b.req.Statements) != 2 {
		t.Fatalf("len(Statements) = %d, want 2", len(b.req.Statements))
	}
	if b.req.Statements[0].QueryString == "" || b.req.Statements[0].ID != nil {
		t.Fatal("first statement should be a plain-string entry")
	}
	if diff := cmp.Diff(b.req.Statements[1].ID, []byte{0xAB}); diff != "" {
		t.Fatal(diff)
	}
	if b.req.Consistency != frame.QUORUM {
		t.Fatalf("Consistency = %v, want QUORUM", b.req.Consistency)
	}
	if !b.idempotent {
		t.Fatal("Idempotent was not set")
	}
}
