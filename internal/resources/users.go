package resources

import (
	"fmt"
	"strings"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/table"
)

// User row field keys.
const (
	UserEmail       = "email"
	UserPassword    = "password"
	UserRole        = "role"
	UserCompanyCode = "company_code"
)

// Users is the user administration page. Passwords are never loaded; a
// blank password on save keeps the user's current one.
func Users() table.Schema {
	return table.Schema{
		Resource:  UsersName,
		Title:     "Users",
		Endpoint:  "/users",
		SheetName: "Users",
		FileName:  "Users.xlsx",
		KeyField:  UserEmail,
		Columns: []table.Column{
			{Key: UserRole, Label: "Role*", Width: 140},
			{Key: UserEmail, Label: "Email*", Width: 240, Required: true, Trim: true, Lower: true, Placeholder: "user@example.com"},
			{Key: UserPassword, Label: "Password (set to change)", Width: 200, Trim: true, Secret: true, Placeholder: "(leave blank to keep)"},
			{Key: "name", Label: "Name", Width: 180},
			{Key: "company", Label: "Company", Width: 200},
			{Key: UserCompanyCode, Label: "Company Code", Width: 160, Trim: true},
			{Key: "remark", Label: "Remark", Width: 240},
		},
		NewRow: map[string]string{UserRole: domain.RoleDispatcher},
		OnLoad: func(fields map[string]string) {
			fields[UserPassword] = ""
		},
	}
}

// UsersValidator checks roles and company codes before an admin save:
// every role must be a known role, and Drayage and Warehouse users need a
// company code taken from the matching code list.
func UsersValidator(codes domain.CompanyCodes) table.Validator {
	return func(rows []table.Row) error {
		for _, r := range rows {
			email := strings.ToLower(strings.TrimSpace(r.Get(UserEmail)))
			role := strings.TrimSpace(r.Get(UserRole))
			if !isRole(role) {
				return fmt.Errorf("%w: Invalid role for %s", domain.ErrValidation, email)
			}

			code := strings.TrimSpace(r.Get(UserCompanyCode))
			var kind string
			switch role {
			case domain.RoleDrayage:
				kind = "Drayage Code"
			case domain.RoleWarehouse:
				kind = "WHSE Code"
			default:
				continue
			}
			if code == "" {
				return fmt.Errorf("%w: Company Code is required for %s (%s).", domain.ErrValidation, email, role)
			}
			if !contains(codes.For(role), code) {
				return fmt.Errorf("%w: Company Code must be a valid %s for %s.", domain.ErrValidation, kind, email)
			}
		}
		return nil
	}
}

// UsersEditHook keeps company codes consistent when a role changes: a code
// that is not in the new role's list is cleared.
func UsersEditHook(codes domain.CompanyCodes) table.EditHook {
	return func(fields map[string]string, key string) {
		if key != UserRole {
			return
		}
		role := fields[UserRole]
		if role != domain.RoleDrayage && role != domain.RoleWarehouse {
			return
		}
		if !contains(codes.For(role), strings.TrimSpace(fields[UserCompanyCode])) {
			fields[UserCompanyCode] = ""
		}
	}
}

// isRole matches the exact spelling the remote API stores.
func isRole(role string) bool {
	return contains(domain.Roles, role)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
