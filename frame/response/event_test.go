package response

import (
	"net"
	"testing"

	"github.com/nativecql/cqldriver/frame"

	"github.com/google/go-cmp/cmp"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		build    func(buf *frame.Buffer)
		expected *Event
	}{
		{
			name: "Should parse a STATUS_CHANGE event",
			build: func(buf *frame.Buffer) {
				buf.WriteString(string(StatusChangeEvent))
				buf.WriteString(string(NodeDown))
				buf.WriteInet(frame.Inet{IP: net.ParseIP("127.0.0.1").To4(), Port: 9042})
			},
			expected: &Event{
				Kind:             StatusChangeEvent,
				StatusChangeKind: NodeDown,
				Address:          frame.Inet{IP: net.ParseIP("127.0.0.1").To4(), Port: 9042},
			},
		},
		{
			name: "Should parse a TOPOLOGY_CHANGE event",
			build: func(buf *frame.Buffer) {
				buf.WriteString(string(TopologyChangeEvent))
				buf.WriteString(string(NewNode))
				buf.WriteInet(frame.Inet{IP: net.ParseIP("10.0.0.5").To4(), Port: 9042})
			},
			expected: &Event{
				Kind:               TopologyChangeEvent,
				TopologyChangeKind: NewNode,
				Address:            frame.Inet{IP: net.ParseIP("10.0.0.5").To4(), Port: 9042},
			},
		},
		{
			name: "Should parse a SCHEMA_CHANGE TABLE event",
			build: func(buf *frame.Buffer) {
				buf.WriteString(string(SchemaChangeEvent))
				buf.WriteString(string(SchemaUpdated))
				buf.WriteString(string(TargetTable))
				buf.WriteString("ks")
				buf.WriteString("tbl")
			},
			expected: &Event{
				Kind:             SchemaChangeEvent,
				SchemaChangeKind: SchemaUpdated,
				Target:           TargetTable,
				Keyspace:         "ks",
				Name:             "tbl",
			},
		},
		{
			name: "Should parse a SCHEMA_CHANGE KEYSPACE event with no further fields",
			build: func(buf *frame.Buffer) {
				buf.WriteString(string(SchemaChangeEvent))
				buf.WriteString(string(SchemaDropped))
				buf.WriteString(string(TargetKeyspace))
				buf.WriteString("ks")
			},
			expected: &Event{
				Kind:             SchemaChangeEvent,
				SchemaChangeKind: SchemaDropped,
				Target:           TargetKeyspace,
				Keyspace:         "ks",
			},
		},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf frame.Buffer
			tc.build(&buf)

			in := frame.Buffer{}
			_, _ = in.Write(buf.Bytes())
			got := ParseEvent(&in)
			if err := in.Error(); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(got, tc.expected); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}
