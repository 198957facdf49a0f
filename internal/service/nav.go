package service

import (
	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/session"
)

// NavEntry is one sidebar link. Resource names the tabular page behind the
// link, if any.
type NavEntry struct {
	Label    string `json:"label"`
	Path     string `json:"path"`
	Resource string `json:"resource,omitempty"`
}

// Nav returns the sidebar entries for the caller: everyone gets the
// dashboard and their containers, administrators also get the admin pages.
// A signed-out caller gets nothing.
func Nav(sc session.Context) []NavEntry {
	if !sc.IsSignedIn() {
		return []NavEntry{}
	}
	out := []NavEntry{
		{Label: "Dashboard", Path: "/dashboard"},
		{Label: "My Containers", Path: "/my-containers", Resource: resources.ContainersName},
	}
	if !sc.IsAdmin() {
		return out
	}
	return append(out,
		NavEntry{Label: "Admin Home", Path: "/admin"},
		NavEntry{Label: "Users", Path: "/admin/users", Resource: resources.UsersName},
		NavEntry{Label: "Drayage", Path: "/admin/drayage", Resource: resources.DrayageName},
		NavEntry{Label: "Warehouse", Path: "/admin/warehouse", Resource: resources.WarehousesName},
	)
}
