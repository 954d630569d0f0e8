package response

import "github.com/nativecql/cqldriver/frame"

// ResultKind is the first [int] of every RESULT body (§6).
type ResultKind frame.Int

const (
	ResultVoid         ResultKind = 0x0001
	ResultRows         ResultKind = 0x0002
	ResultSetKeyspace  ResultKind = 0x0003
	ResultPrepared     ResultKind = 0x0004
	ResultSchemaChange ResultKind = 0x0005
)

// Rows metadata flag bits (§4.4, §6).
const (
	rowsFlagGlobalTablesSpec frame.Int = 0x0001
	rowsFlagHasMorePages     frame.Int = 0x0002
	rowsFlagNoMetadata       frame.Int = 0x0004
)

// ColumnSpec names and types one column of a Rows result or one bind marker
// of a Prepared result's variables metadata.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     frame.Option
}

// ResultMetadata is the metadata block shared by RESULT::Rows and the two
// metadata sections (result columns, bind-variable columns) of
// RESULT::Prepared.
type ResultMetadata struct {
	ColumnCount  frame.Int
	HasMorePages bool
	PagingState  []byte
	PKIndexes    []frame.Short // only present in Prepared's variables metadata
	Columns      []ColumnSpec  // nil when the NO_METADATA flag is set
}

func parseResultMetadata(buf *frame.Buffer, withPKIndexes bool) ResultMetadata {
	var m ResultMetadata
	flags := buf.ReadInt()
	m.ColumnCount = buf.ReadInt()

	if withPKIndexes {
		n := buf.ReadShort()
		m.PKIndexes = make([]frame.Short, 0, n)
		for i := frame.Short(0); i < n; i++ {
			m.PKIndexes = append(m.PKIndexes, buf.ReadShort())
		}
	}
	if flags&rowsFlagHasMorePages != 0 {
		m.HasMorePages = true
		m.PagingState = buf.ReadBytes()
	}
	if flags&rowsFlagNoMetadata != 0 {
		return m
	}

	global := flags&rowsFlagGlobalTablesSpec != 0
	var globalKeyspace, globalTable string
	if global {
		globalKeyspace = buf.ReadString()
		globalTable = buf.ReadString()
	}
	m.Columns = make([]ColumnSpec, 0, m.ColumnCount)
	for i := frame.Int(0); i < m.ColumnCount; i++ {
		var c ColumnSpec
		if global {
			c.Keyspace, c.Table = globalKeyspace, globalTable
		} else {
			c.Keyspace = buf.ReadString()
			c.Table = buf.ReadString()
		}
		c.Name = buf.ReadString()
		c.Type = frame.ReadOption(buf)
		m.Columns = append(m.Columns, c)
	}
	return m
}

// Row is one decoded data row: one [bytes] value per column, in column
// order. It deliberately stays raw (Bytes, not a typed Value) because the
// caller, not the parser, knows how it wants to scan each column; the typed
// decode is frame.Decode* driven off the matching ColumnSpec.Type.
type Row []frame.Bytes

// Void is the RESULT::Void body: no fields, confirms a write succeeded.
type Void struct{}

// SetKeyspace is the RESULT::SetKeyspace body, confirming a `USE <ks>`.
type SetKeyspace struct {
	Keyspace string
}

// Rows is the RESULT::Rows body: metadata followed by the row data.
type Rows struct {
	Metadata ResultMetadata
	Rows     []Row
}

// Prepared is the RESULT::Prepared body: the assigned statement id plus
// metadata for the bind variables and (for a SELECT) the result columns.
type Prepared struct {
	ID                []byte
	ResultMetadataID  []byte // protocol v5+; always nil on v4
	VariablesMetadata ResultMetadata
	ResultMetadata    ResultMetadata
}

// SchemaChange is the RESULT::SchemaChange body; it shares its payload shape
// with the unsolicited EVENT of the same name (§3, §6).
type SchemaChange struct {
	Kind          SchemaChangeKind
	Target        SchemaChangeTarget
	Keyspace      string
	Name          string
	ArgumentTypes []string
}

// Result is the union of the five RESULT kinds. Exactly one field is
// non-nil, selected by Kind.
type Result struct {
	Kind ResultKind

	Void         *Void
	Rows         *Rows
	SetKeyspace  *SetKeyspace
	Prepared     *Prepared
	SchemaChange *SchemaChange
}

// ParseResult decodes a RESULT body: [int] kind then a kind-specific tail.
func ParseResult(buf *frame.Buffer) *Result {
	r := &Result{Kind: ResultKind(buf.ReadInt())}

	switch r.Kind {
	case ResultVoid:
		r.Void = &Void{}
	case ResultSetKeyspace:
		r.SetKeyspace = &SetKeyspace{Keyspace: buf.ReadString()}
	case ResultRows:
		r.Rows = parseRows(buf)
	case ResultPrepared:
		r.Prepared = parsePrepared(buf)
	case ResultSchemaChange:
		r.SchemaChange = parseSchemaChange(buf)
	}
	return r
}

func parseRows(buf *frame.Buffer) *Rows {
	meta := parseResultMetadata(buf, false)
	rowCount := buf.ReadInt()
	rows := make([]Row, 0, rowCount)
	for i := frame.Int(0); i < rowCount; i++ {
		row := make(Row, meta.ColumnCount)
		for c := frame.Int(0); c < meta.ColumnCount; c++ {
			row[c] = buf.ReadBytes()
		}
		rows = append(rows, row)
	}
	return &Rows{Metadata: meta, Rows: rows}
}

func parsePrepared(buf *frame.Buffer) *Prepared {
	id := buf.ReadShortBytes()
	varsMeta := parseResultMetadata(buf, true)
	resultMeta := parseResultMetadata(buf, false)
	return &Prepared{ID: id, VariablesMetadata: varsMeta, ResultMetadata: resultMeta}
}

func parseSchemaChange(buf *frame.Buffer) *SchemaChange {
	sc := &SchemaChange{
		Kind:     SchemaChangeKind(buf.ReadString()),
		Target:   SchemaChangeTarget(buf.ReadString()),
		Keyspace: buf.ReadString(),
	}
	switch sc.Target {
	case TargetKeyspace:
	case TargetFunction, TargetAggregate:
		sc.Name = buf.ReadString()
		sc.ArgumentTypes = buf.ReadStringList()
	default:
		sc.Name = buf.ReadString()
	}
	return sc
}
