package response

import "github.com/nativecql/cqldriver/frame"

// EventKind names one of the three event families a REGISTER subscribes to.
type EventKind string

const (
	TopologyChangeEvent EventKind = "TOPOLOGY_CHANGE"
	StatusChangeEvent   EventKind = "STATUS_CHANGE"
	SchemaChangeEvent   EventKind = "SCHEMA_CHANGE"
)

// TopologyChangeKind is NEW_NODE or REMOVED_NODE.
type TopologyChangeKind string

const (
	NewNode     TopologyChangeKind = "NEW_NODE"
	RemovedNode TopologyChangeKind = "REMOVED_NODE"
)

// StatusChangeKind is UP or DOWN.
type StatusChangeKind string

const (
	NodeUp   StatusChangeKind = "UP"
	NodeDown StatusChangeKind = "DOWN"
)

// SchemaChangeKind is CREATED, UPDATED or DROPPED.
type SchemaChangeKind string

const (
	SchemaCreated SchemaChangeKind = "CREATED"
	SchemaUpdated SchemaChangeKind = "UPDATED"
	SchemaDropped SchemaChangeKind = "DROPPED"
)

// SchemaChangeTarget is KEYSPACE, TABLE, TYPE, FUNCTION or AGGREGATE.
type SchemaChangeTarget string

const (
	TargetKeyspace  SchemaChangeTarget = "KEYSPACE"
	TargetTable     SchemaChangeTarget = "TABLE"
	TargetType      SchemaChangeTarget = "TYPE"
	TargetFunction  SchemaChangeTarget = "FUNCTION"
	TargetAggregate SchemaChangeTarget = "AGGREGATE"
)

// Event is an unsolicited EVENT frame (§3 ServerEvent, §4.4). Exactly one of
// the three sections is populated, selected by Kind.
type Event struct {
	Kind EventKind

	// TOPOLOGY_CHANGE
	TopologyChangeKind TopologyChangeKind
	Address            frame.Inet

	// STATUS_CHANGE
	StatusChangeKind StatusChangeKind
	// Address above is shared with STATUS_CHANGE.

	// SCHEMA_CHANGE
	SchemaChangeKind SchemaChangeKind
	Target           SchemaChangeTarget
	Keyspace         string
	Name             string
	ArgumentTypes    []string
}

// ParseEvent decodes an EVENT body: [string] event-type, then a
// kind-specific payload.
func ParseEvent(buf *frame.Buffer) *Event {
	e := &Event{Kind: EventKind(buf.ReadString())}

	switch e.Kind {
	case TopologyChangeEvent:
		e.TopologyChangeKind = TopologyChangeKind(buf.ReadString())
		e.Address = buf.ReadInet()
	case StatusChangeEvent:
		e.StatusChangeKind = StatusChangeKind(buf.ReadString())
		e.Address = buf.ReadInet()
	case SchemaChangeEvent:
		e.SchemaChangeKind = SchemaChangeKind(buf.ReadString())
		e.Target = SchemaChangeTarget(buf.ReadString())
		e.Keyspace = buf.ReadString()
		switch e.Target {
		case TargetKeyspace:
			// no further fields
		case TargetFunction, TargetAggregate:
			e.Name = buf.ReadString()
			e.ArgumentTypes = buf.ReadStringList()
		default: // TABLE, TYPE
			e.Name = buf.ReadString()
		}
	}
	return e
}
