package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller as resolved by the auth middleware.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanRead reports whether the actor may see an order owned by ownerID.
func (a Actor) CanRead(ownerID string) bool {
	return a.IsAdmin() || a.UserID == ownerID
}
