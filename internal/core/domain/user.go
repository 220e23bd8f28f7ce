package domain

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// User is the authenticated principal as asserted by a verified token.
type User struct {
	Username string
	Role     Role
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Owns reports whether the principal may act on an order created by owner.
func (u *User) Owns(owner string) bool {
	return u != nil && (u.IsAdmin() || u.Username == owner)
}
