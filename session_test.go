package cqldriver

import "testing"

func TestTableReferencedIn(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		cql      string
		keyspace string
		table    string
		want     bool
	}{
		{
			name:     "Should match a keyspace-qualified table",
			cql:      "SELECT * FROM my_keyspace.users WHERE id = ?",
			keyspace: "my_keyspace",
			table:    "users",
			want:     true,
		},
		{
			name:     "Should not match a different table",
			cql:      "SELECT * FROM my_keyspace.accounts WHERE id = ?",
			keyspace: "my_keyspace",
			table:    "users",
			want:     false,
		},
		{
			name:     "Should be case-insensitive",
			cql:      "SELECT * FROM MY_KEYSPACE.USERS WHERE id = ?",
			keyspace: "my_keyspace",
			table:    "users",
			want:     true,
		},
		{
			name:  "Should match a bare table name when no keyspace is given",
			cql:   "SELECT * FROM users WHERE id = ?",
			table: "users",
			want:  true,
		},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tableReferencedIn(tc.cql, tc.keyspace, tc.table); got != tc.want {
				t.Fatalf("tableReferencedIn() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvictPrepared(t *testing.T) {
	t.Parallel()
	s := &Session{prepared: map[string]*PreparedQuery{
		"SELECT * FROM ks.users WHERE id = ?":    {CQL: "SELECT * FROM ks.users WHERE id = ?"},
		"SELECT * FROM ks.accounts WHERE id = ?": {CQL: "SELECT * FROM ks.accounts WHERE id = ?"},
	}}

	s.evictPrepared("ks", "users")

	if _, ok := s.prepared["SELECT * FROM ks.users WHERE id = ?"]; ok {
		t.Fatal("expected the users statement to be evicted")
	}
	if _, ok := s.prepared["SELECT * FROM ks.accounts WHERE id = ?"]; !ok {
		t.Fatal("did not expect the accounts statement to be evicted")
	}
}
