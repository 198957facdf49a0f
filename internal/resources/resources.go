// Package resources defines the tabular pages of the portal: their columns,
// remote endpoints, key fields and who may see or change them.
package resources

import (
	"sort"
	"strings"

	"github.com/portpilot/portal/internal/status"
	"github.com/portpilot/portal/internal/table"
)

// Resource names used in portal URLs.
const (
	ContainersName = "containers"
	DrayageName    = "drayage"
	WarehousesName = "warehouses"
	UsersName      = "users"
)

// Page is a tabular page: its schema plus access rules.
type Page struct {
	Schema table.Schema

	// AdminOnly pages are hidden from every other role.
	AdminOnly bool

	// EditAdminOnly pages can be viewed by any signed-in user but only an
	// Admin may change them. Other roles see a read-only view.
	EditAdminOnly bool
}

// All returns every page in navigation order.
func All() []Page {
	return []Page{
		{Schema: Containers()},
		{Schema: Users(), EditAdminOnly: true},
		{Schema: Drayage(), AdminOnly: true},
		{Schema: Warehouses(), AdminOnly: true},
	}
}

// Lookup returns the page with the given resource name.
func Lookup(resource string) (Page, bool) {
	for _, p := range All() {
		if p.Schema.Resource == resource {
			return p, true
		}
	}
	return Page{}, false
}

// Containers is the "My Containers" shipment tracker. The status column is
// derived from the milestone dates.
func Containers() table.Schema {
	return table.Schema{
		Resource:  ContainersName,
		Title:     "My Containers",
		Endpoint:  "/my-containers",
		SheetName: "MyContainers",
		FileName:  "MyContainers.xlsx",
		KeyField:  status.FieldMBL,
		Columns: []table.Column{
			{Key: "order_no", Label: "Order No", Width: 180},
			{Key: status.Field, Label: "Status", Width: 110, ReadOnly: true},
			{Key: "drayage", Label: "Drayage", Width: 110},
			{Key: "warehouse", Label: "Warehouse", Width: 110},
			{Key: status.FieldMBL, Label: "MBL No", Width: 150},
			{Key: status.FieldContainer, Label: "Container No", Width: 140},
			{Key: "etd", Label: "ETD", Width: 110, Type: table.Date},
			{Key: "eta", Label: "ETA", Width: 110, Type: table.Date},
			{Key: "pod", Label: "POD", Width: 150},
			{Key: status.FieldArrived, Label: "Arrived", Width: 110, Type: table.Date},
			{Key: "lfd", Label: "LFD", Width: 110, Type: table.Date},
			{Key: status.FieldApptDate, Label: "Appt Date", Width: 130, Type: table.Date},
			{Key: "lrd", Label: "LRD", Width: 110, Type: table.Date},
			{Key: status.FieldDelivered, Label: "Delivered DateTime", Width: 180, Type: table.DateTime},
			{Key: status.FieldEmptied, Label: "Emptied DateTime", Width: 170, Type: table.DateTime},
			{Key: status.FieldReturnedDate, Label: "Returned Date", Width: 130, Type: table.Date},
		},
		Derived: &table.Derivation{
			Field:     status.Field,
			DependsOn: status.Dependencies,
			Derive:    status.Derive,
		},
	}
}

// Drayage is the drayage partner master list.
func Drayage() table.Schema {
	return table.Schema{
		Resource:  DrayageName,
		Title:     "Drayage",
		Endpoint:  "/drayage",
		SheetName: "Drayage",
		FileName:  "Drayage.xlsx",
		KeyField:  "code",
		Columns: []table.Column{
			{Key: "code", Label: "Drayage Code*", Width: 220, Required: true, Trim: true},
			{Key: "name", Label: "Drayage Name", Width: 320, Placeholder: "Company name"},
			{Key: "address", Label: "Address", Width: 420, Placeholder: "Street, City, State"},
		},
	}
}

// Warehouses is the warehouse master list.
func Warehouses() table.Schema {
	return table.Schema{
		Resource:  WarehousesName,
		Title:     "Warehouse",
		Endpoint:  "/warehouses",
		SheetName: "Warehouse",
		FileName:  "Warehouse.xlsx",
		KeyField:  "whse_code",
		Columns: []table.Column{
			{Key: "whse_code", Label: "WHSE Code*", Width: 200, Required: true, Trim: true},
			{Key: "whse_name", Label: "WHSE Name", Width: 260},
			{Key: "address", Label: "Address", Width: 420},
		},
	}
}

// CodesFrom extracts the distinct, non-empty, trimmed values of field from
// rows, sorted.
func CodesFrom(rows []map[string]string, field string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range rows {
		c := strings.TrimSpace(r[field])
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
