package cqldriver

import (
	"fmt"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/transport"
)

// EventType names one of the three event families a Session can subscribe
// to at construction time via SessionConfig.Events (§4.6, §6).
type EventType = string

const (
	TopologyChange EventType = "TOPOLOGY_CHANGE"
	StatusChange   EventType = "STATUS_CHANGE"
	SchemaChange   EventType = "SCHEMA_CHANGE"
)

var (
	ErrNoHosts   = fmt.Errorf("cqldriver: no hosts given")
	ErrEventType = fmt.Errorf("cqldriver: invalid event type\npossible events:\n" +
		"TopologyChange EventType = \"TOPOLOGY_CHANGE\"\n" +
		"StatusChange   EventType = \"STATUS_CHANGE\"\n" +
		"SchemaChange   EventType = \"SCHEMA_CHANGE\"")
	ErrClosedIter      = fmt.Errorf("cqldriver: iter is closed")
	ErrNoMoreRows      = fmt.Errorf("cqldriver: no more rows left")
	ErrNoQueryResults  = fmt.Errorf("cqldriver: no query results to fetch")
	errNoHostAvailable = fmt.Errorf("cqldriver: no host available")
)

// SessionConfig is the library surface's top-level configuration (§6):
// contact points, the load-balancing and retry policies, the event
// subscriptions to establish at startup, and the per-connection settings
// every pooled connection is opened with.
type SessionConfig struct {
	Hosts         []string
	Events        []EventType
	Policy        transport.HostSelectionPolicy
	RetryPolicy   transport.RetryPolicy
	AutoReprepare bool
	transport.ConnConfig
}

// DefaultSessionConfig returns the library surface's documented defaults
// (§6): RoundRobin load balancing, DefaultRetryPolicy, AutoReprepare on, and
// DefaultConnConfig's connection settings.
func DefaultSessionConfig(keyspace string, hosts ...string) SessionConfig {
	return SessionConfig{
		Hosts:         hosts,
		Policy:        transport.NewRoundRobinPolicy(),
		RetryPolicy:   transport.DefaultRetryPolicy{},
		AutoReprepare: true,
		ConnConfig:    transport.DefaultConnConfig(keyspace),
	}
}

// Clone deep-copies the slices SessionConfig owns, so a Session never
// aliases a caller-owned slice it could later mutate out from under it.
func (cfg SessionConfig) Clone() SessionConfig {
	v := cfg
	v.Hosts = append([]string(nil), cfg.Hosts...)
	v.Events = append([]EventType(nil), cfg.Events...)
	return v
}

func (cfg SessionConfig) Validate() error {
	if len(cfg.Hosts) == 0 {
		return ErrNoHosts
	}
	for _, e := range cfg.Events {
		if e != TopologyChange && e != StatusChange && e != SchemaChange {
			return ErrEventType
		}
	}
	if cfg.Policy == nil {
		return fmt.Errorf("cqldriver: no load balancing policy configured")
	}
	if cfg.RetryPolicy == nil {
		return fmt.Errorf("cqldriver: no retry policy configured")
	}
	return nil
}

// Policy constructors matching transport.HostSelectionPolicy (§4.5, §6):
// the session layer never constructs a transport.Node or Cluster directly,
// only the policy that will later be handed one.

func NewRoundRobinPolicy() transport.HostSelectionPolicy { return transport.NewRoundRobinPolicy() }
func NewRandomPolicy() transport.HostSelectionPolicy      { return transport.NewRandomPolicy() }
func NewSingleNodePolicy() transport.HostSelectionPolicy  { return transport.NewSingleNodePolicy() }

func NewTopologyAwarePolicy(localDC string) transport.HostSelectionPolicy {
	return transport.NewTopologyAwarePolicy(localDC)
}

func NewHostPoolPolicy() transport.HostSelectionPolicy { return transport.NewHostPoolPolicy() }

// Consistency levels, re-exported so callers don't need to import frame
// directly for the common case.
type Consistency = frame.Consistency

const (
	ANY         = frame.ANY
	ONE         = frame.ONE
	TWO         = frame.TWO
	THREE       = frame.THREE
	QUORUM      = frame.QUORUM
	ALL         = frame.ALL
	LOCALQUORUM = frame.LOCALQUORUM
	EACHQUORUM  = frame.EACHQUORUM
	SERIAL       = frame.SERIAL
	LOCALSERIAL = frame.LOCALSERIAL
	LOCALONE    = frame.LOCALONE
)
