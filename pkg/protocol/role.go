package protocol

import (
	"encoding/json"
	"fmt"
)

// Role is the identity a connection declares in its Hello message.
type Role string

// Connection roles.
const (
	RoleFixture      Role = "fixture"
	RoleClient       Role = "client"
	RoleClientSerial Role = "client-serial"
)

// ClientRole returns the test role for a serial or parallel test client.
func ClientRole(serial bool) Role {
	if serial {
		return RoleClientSerial
	}
	return RoleClient
}

// IsTest reports whether r is one of the test roles.
func (r Role) IsTest() bool {
	return r == RoleClient || r == RoleClientSerial
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleFixture || r.IsTest()
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !Role(s).Valid() {
		return fmt.Errorf("unknown connection type %q", s)
	}
	*r = Role(s)
	return nil
}
