package response

import (
	"testing"

	"github.com/nativecql/cqldriver/frame"

	"github.com/google/go-cmp/cmp"
)

func TestParseResultVoid(t *testing.T) {
	t.Parallel()
	var buf frame.Buffer
	buf.WriteInt(frame.Int(ResultVoid))

	in := frame.Buffer{}
	_, _ = in.Write(buf.Bytes())
	got := ParseResult(&in)

	if diff := cmp.Diff(got, &Result{Kind: ResultVoid, Void: &Void{}}); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseResultSetKeyspace(t *testing.T) {
	t.Parallel()
	var buf frame.Buffer
	buf.WriteInt(frame.Int(ResultSetKeyspace))
	buf.WriteString("system")

	in := frame.Buffer{}
	_, _ = in.Write(buf.Bytes())
	got := ParseResult(&in)

	expected := &Result{Kind: ResultSetKeyspace, SetKeyspace: &SetKeyspace{Keyspace: "system"}}
	if diff := cmp.Diff(got, expected); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseResultRows(t *testing.T) {
	t.Parallel()

	var buf frame.Buffer
	buf.WriteInt(frame.Int(ResultRows))
	// metadata: global_tables_spec | has_more_pages, 2 columns
	buf.WriteInt(0x0001 | 0x0002)
	buf.WriteInt(2)
	buf.WriteBytes([]byte{0xCA, 0xFE})
	buf.WriteString("ks")
	buf.WriteString("tbl")
	buf.WriteString("id")
	frame.WriteOption(&buf, frame.Option{ID: frame.UUIDID})
	buf.WriteString("name")
	frame.WriteOption(&buf, frame.Option{ID: frame.VarcharID})
	// one row
	buf.WriteInt(1)
	buf.WriteBytes([]byte{0x01, 0x02})
	buf.WriteBytes([]byte("bob"))

	in := frame.Buffer{}
	_, _ = in.Write(buf.Bytes())
	got := ParseResult(&in)
	if err := in.Error(); err != nil {
		t.Fatal(err)
	}

	if got.Kind != ResultRows {
		t.Fatalf("Kind = %v, want ResultRows", got.Kind)
	}
	if !got.Rows.Metadata.HasMorePages {
		t.Fatal("expected HasMorePages")
	}
	if diff := cmp.Diff(got.Rows.Metadata.PagingState, frame.Bytes{0xCA, 0xFE}); diff != "" {
		t.Fatal(diff)
	}
	if len(got.Rows.Rows) != 1 || len(got.Rows.Rows[0]) != 2 {
		t.Fatalf("unexpected rows: %+v", got.Rows.Rows)
	}
	if diff := cmp.Diff(got.Rows.Rows[0][1], frame.Bytes("bob")); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseResultPrepared(t *testing.T) {
	t.Parallel()

	var buf frame.Buffer
	buf.WriteInt(frame.Int(ResultPrepared))
	buf.WriteShortBytes([]byte{0xAB, 0xCD})
	// variables metadata: flags, column count, pk-index count, pk index 0,
	// then one column spec
	buf.WriteInt(0)
	buf.WriteInt(1)
	buf.WriteShort(1)
	buf.WriteShort(0)
	buf.WriteString("ks")
	buf.WriteString("tbl")
	buf.WriteString("id")
	frame.WriteOption(&buf, frame.Option{ID: frame.UUIDID})
	// result metadata: flags, column count, no columns
	buf.WriteInt(0)
	buf.WriteInt(0)

	in := frame.Buffer{}
	_, _ = in.Write(buf.Bytes())
	got := ParseResult(&in)
	if err := in.Error(); err != nil {
		t.Fatal(err)
	}

	if got.Kind != ResultPrepared {
		t.Fatalf("Kind = %v, want ResultPrepared", got.Kind)
	}
	if diff := cmp.Diff(got.Prepared.ID, []byte{0xAB, 0xCD}); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(got.Prepared.VariablesMetadata.PKIndexes, []frame.Short{0}); diff != "" {
		t.Fatal(diff)
	}
	if len(got.Prepared.VariablesMetadata.Columns) != 1 || got.Prepared.VariablesMetadata.Columns[0].Name != "id" {
		t.Fatalf("unexpected variables metadata: %+v", got.Prepared.VariablesMetadata)
	}
	if got.Prepared.ResultMetadata.ColumnCount != 0 {
		t.Fatalf("ResultMetadata.ColumnCount = %d, want 0", got.Prepared.ResultMetadata.ColumnCount)
	}
}

func TestParseResultSchemaChange(t *testing.T) {
	t.Parallel()
	var buf frame.Buffer
	buf.WriteInt(frame.Int(ResultSchemaChange))
	buf.WriteString(string(SchemaUpdated))
	buf.WriteString(string(TargetTable))
	buf.WriteString("ks")
	buf.WriteString("tbl")

	in := frame.Buffer{}
	_, _ = in.Write(buf.Bytes())
	got := ParseResult(&in)

	expected := &Result{
		Kind: ResultSchemaChange,
		SchemaChange: &SchemaChange{
			Kind:     SchemaUpdated,
			Target:   TargetTable,
			Keyspace: "ks",
			Name:     "tbl",
		},
	}
	if diff := cmp.Diff(got, expected); diff != "" {
		t.Fatal(diff)
	}
}
