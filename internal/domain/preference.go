package domain

// MinColumnWidth is the narrowest a column may be resized to, in pixels.
const MinColumnWidth = 60

// Preference keys stored per browser.
const (
	PrefSidebarCollapsed = "sidebar.collapsed"
	prefWidthsPrefix     = "colwidths."
)

// WidthsKey returns the preference key holding column widths for a page.
func WidthsKey(resource string) string {
	return prefWidthsPrefix + resource
}

// Preferences are small UI settings kept per browser with no expiry.
type Preferences struct {
	// ColumnWidths maps page resource → column key → width in pixels.
	ColumnWidths     map[string]map[string]int `json:"column_widths"`
	SidebarCollapsed bool                      `json:"sidebar_collapsed"`
}

// ClampWidths returns a copy of widths with every value raised to at least
// MinColumnWidth.
func ClampWidths(widths map[string]int) map[string]int {
	out := make(map[string]int, len(widths))
	for k, w := range widths {
		if w < MinColumnWidth {
			w = MinColumnWidth
		}
		out[k] = w
	}
	return out
}
