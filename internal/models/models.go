package models

// Role is the caller's role inside an organization, supplied by the identity
// gateway.
type Role string

const (
	RoleRequestor  Role = "requestor"
	RoleTechnician Role = "technician"
	RoleApprover   Role = "approver"
	RoleAdmin      Role = "admin"
)

var roleRank = map[Role]int{
	RoleRequestor:  1,
	RoleTechnician: 2,
	RoleApprover:   3,
	RoleAdmin:      4,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Actor identifies who performs a core operation. It is built once per
// request and passed explicitly into every call.
type Actor struct {
	UserID         int64  `json:"user_id"`
	OrganizationID int64  `json:"organization_id"`
	Role           Role   `json:"role"`
	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

// SystemActor is used by background workers acting on behalf of the
// organization.
func SystemActor(orgID, onBehalfOf int64) Actor {
	return Actor{UserID: onBehalfOf, OrganizationID: orgID, Role: RoleAdmin, UserAgent: "workshop-worker"}
}

// Page bounds list queries.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
