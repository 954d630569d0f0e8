package cqldriver

import (
	"testing"

	"github.com/nativecql/cqldriver/transport"
)

func TestSessionConfigValidate(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		cfg     SessionConfig
		wantErr error
	}{
		{
			name:    "Should reject no hosts",
			cfg:     DefaultSessionConfig("ks"),
			wantErr: ErrNoHosts,
		},
		{
			name:    "Should reject an unknown event type",
			cfg:     withEvents(DefaultSessionConfig("ks", "127.0.0.1:9042"), "NOT_AN_EVENT"),
			wantErr: ErrEventType,
		},
		{
			name: "Should accept the documented defaults",
			cfg:  DefaultSessionConfig("ks", "127.0.0.1:9042"),
		},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && err != tc.wantErr {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func withEvents(cfg SessionConfig, events ...EventType) SessionConfig {
	cfg.Events = events
	return cfg
}

func TestSessionConfigCloneIsIndependent(t *testing.T) {
	t.Parallel()
	original := DefaultSessionConfig("ks", "127.0.0.1:9042")
	original.Events = []EventType{SchemaChange}

	clone := original.Clone()
	clone.Hosts[0] = "10.0.0.1:9042"
	clone.Events[0] = StatusChange

	if original.Hosts[0] != "127.0.0.1:9042" {
		t.Fatal("Clone aliased the original Hosts slice")
	}
	if original.Events[0] != SchemaChange {
		t.Fatal("Clone aliased the original Events slice")
	}
}

func TestPolicyConstructors(t *testing.T) {
	t.Parallel()
	constructors := []func() transport.HostSelectionPolicy{
		NewRoundRobinPolicy,
		NewRandomPolicy,
		NewSingleNodePolicy,
		NewHostPoolPolicy,
		func() transport.HostSelectionPolicy { return NewTopologyAwarePolicy("dc1") },
	}
	for _, c := range constructors {
		if c() == nil {
			t.Fatal("policy constructor returned nil")
		}
	}
}
