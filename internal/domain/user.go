package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles recognised by the portal.
const (
	RoleAdmin      = "Admin"
	RoleDispatcher = "Dispatcher"
	RoleDrayage    = "Drayage"
	RoleWarehouse  = "Warehouse"
)

// Roles lists every role in display order.
var Roles = []string{RoleAdmin, RoleDispatcher, RoleDrayage, RoleWarehouse}

// CanonicalRole returns the canonical spelling of role, compared
// case-insensitively, and whether it is a known role.
func CanonicalRole(role string) (string, bool) {
	r := strings.TrimSpace(role)
	for _, known := range Roles {
		if strings.EqualFold(r, known) {
			return known, true
		}
	}
	return r, false
}

// SameRole reports whether a and b name the same role, ignoring case.
func SameRole(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// User is the profile the remote API returns on sign-in.
type User struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	Company     string `json:"company,omitempty"`
	CompanyCode string `json:"company_code,omitempty"`
	Remark      string `json:"remark,omitempty"`
}

// Session is a signed-in portal session. ID is the opaque value stored in
// the browser cookie; Token is the bearer token issued by the remote API.
type Session struct {
	ID        uuid.UUID `json:"id"`
	OK        bool      `json:"ok"`
	Token     string    `json:"-"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// CompanyCodes are the codes a Drayage or Warehouse user may be linked to.
type CompanyCodes struct {
	Drayage   []string `json:"drayage"`
	Warehouse []string `json:"warehouse"`
}

// For returns the code list that applies to role, or nil when the role is
// not tied to a company.
func (c CompanyCodes) For(role string) []string {
	switch {
	case SameRole(role, RoleDrayage):
		return c.Drayage
	case SameRole(role, RoleWarehouse):
		return c.Warehouse
	default:
		return nil
	}
}
