package auth

import (
	"encoding/json"
	"fmt"
)

// Role is a marketplace role.
type Role int

const (
	// RoleGuest is the role of a client without a session.
	RoleGuest Role = iota
	// RoleBasicUser is a buyer.
	RoleBasicUser
	// RoleProducer is an approved farmer who sells products.
	RoleProducer
	// RoleLogisticsOperator delivers packages.
	RoleLogisticsOperator
	// RoleAdministrator reviews farmer applications.
	RoleAdministrator
)

var roleWire = map[Role]string{
	RoleGuest:             "",
	RoleBasicUser:         "user",
	RoleProducer:          "farmer",
	RoleLogisticsOperator: "transporter",
	RoleAdministrator:     "admin",
}

var roleNames = map[Role]string{
	RoleGuest:             "guest",
	RoleBasicUser:         "basic-user",
	RoleProducer:          "producer",
	RoleLogisticsOperator: "logistics-operator",
	RoleAdministrator:     "administrator",
}

// InvalidRoleError is returned by ParseRole for values outside the role set.
type InvalidRoleError struct {
	Value string
}

func (e InvalidRoleError) Error() string {
	return fmt.Sprintf("unknown user_type %q", e.Value)
}

// ParseRole maps an API user_type value to a Role. The empty string is a
// guest.
func ParseRole(wire string) (Role, error) {
	for r, w := range roleWire {
		if w == wire {
			return r, nil
		}
	}
	return RoleGuest, InvalidRoleError{Value: wire}
}

// Wire returns the API user_type value for r.
func (r Role) Wire() string {
	return roleWire[r]
}

// String returns the role name used in logs and CLI output.
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r belongs to the role set.
func (r Role) Valid() bool {
	_, ok := roleWire[r]
	return ok
}

// MarshalJSON encodes the role as its wire value.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Wire())
}

// UnmarshalJSON decodes a wire value and rejects unknown roles.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RegisterableRoles lists the roles a user may pick when registering.
func RegisterableRoles() []Role {
	return []Role{RoleBasicUser, RoleProducer, RoleLogisticsOperator}
}
