package stage

import (
	"fmt"
	"time"
)

// Protocol is the show-control protocol an output is labelled with. It is a
// display field only; nothing is ever sent.
type Protocol string

const (
	ProtocolOSC    Protocol = "OSC"
	ProtocolMIDI   Protocol = "MIDI"
	ProtocolArtNet Protocol = "ArtNet"
)

// ConnState is the mock link state of an output.
type ConnState string

const (
	Connected    ConnState = "connected"
	Disconnected ConnState = "disconnected"
	Errored      ConnState = "error"
)

// ParseConnState validates a state string from an operator.
func ParseConnState(s string) (ConnState, error) {
	switch ConnState(s) {
	case Connected, Disconnected, Errored:
		return ConnState(s), nil
	}
	return "", fmt.Errorf("unknown connection state %q", s)
}

// Connection is one named output on the roster.
type Connection struct {
	Name     string     `json:"name"`
	Protocol Protocol   `json:"protocol"`
	State    ConnState  `json:"state"`
	Address  string     `json:"address,omitempty"`
	Port     int        `json:"port,omitempty"`
	LastPing *time.Time `json:"last_ping,omitempty"`
}

func (c Connection) clone() Connection {
	if c.LastPing != nil {
		t := *c.LastPing
		c.LastPing = &t
	}
	return c
}

// DefaultConnections returns the stock output roster.
func DefaultConnections(now time.Time) []Connection {
	qlab, resolume := now, now
	stale := now.Add(-30 * time.Second)
	return []Connection{
		{Name: "QLab", Protocol: ProtocolOSC, State: Connected, Address: "192.168.1.100", Port: 53000, LastPing: &qlab},
		{Name: "Resolume Arena", Protocol: ProtocolOSC, State: Connected, Address: "192.168.1.101", Port: 7000, LastPing: &resolume},
		{Name: "Chamsys MagicQ", Protocol: ProtocolArtNet, State: Disconnected, Address: "192.168.1.102", LastPing: &stale},
	}
}
