package models

import "fmt"

// Role is the closed set of user roles.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleBuyer
	RoleSeller
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleBuyer:  "buyer",
	RoleSeller: "seller",
	RoleAdmin:  "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole maps a stored role name onto the Role variant.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Principal is the authenticated actor of a request.
type Principal struct {
	ID     int64 `json:"id"`
	Role   Role  `json:"role"`
	Active bool  `json:"active"`
}

// Resource is anything whose mutation is gated on an owner id.
type Resource interface {
	OwnerID() int64
}
