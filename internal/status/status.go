// Package status derives the read-only shipment status of a container row
// from the milestone fields that are filled in.
package status

import "strings"

// Status labels, in precedence order.
const (
	Returned  = "Returned"
	Emptied   = "Emptied"
	Delivered = "Delivered"
	ApptMade  = "Appt Made"
	Arrival   = "Arrival"
	Offshore  = "Offshore"
	Planning  = "Planning"
)

// Container field keys the derivation reads.
const (
	FieldReturnedDate = "returned_date"
	FieldEmptied      = "emptied_dt"
	FieldDelivered    = "delivered_dt"
	FieldApptDate     = "appt_date"
	FieldArrived      = "arrived"
	FieldMBL          = "mbl_no"
	FieldContainer    = "container"
)

// Field is the key the derived status is stored under.
const Field = "status"

// Dependencies lists every field whose change can alter the derived status.
var Dependencies = []string{
	FieldReturnedDate,
	FieldEmptied,
	FieldDelivered,
	FieldApptDate,
	FieldArrived,
	FieldMBL,
	FieldContainer,
}

// milestones maps single-field milestones to their label, highest first.
var milestones = []struct {
	field string
	label string
}{
	{FieldReturnedDate, Returned},
	{FieldEmptied, Emptied},
	{FieldDelivered, Delivered},
	{FieldApptDate, ApptMade},
	{FieldArrived, Arrival},
}

// Derive returns the status for a row's fields. The first matching rule wins:
// Returned, Emptied, Delivered, Appt Made, Arrival, then Offshore when both
// the master bill and container number are set, otherwise Planning.
// A field counts as present when it is non-empty after trimming.
func Derive(fields map[string]string) string {
	for _, m := range milestones {
		if present(fields, m.field) {
			return m.label
		}
	}
	if present(fields, FieldMBL) && present(fields, FieldContainer) {
		return Offshore
	}
	return Planning
}

// IsDependency reports whether key participates in status derivation.
func IsDependency(key string) bool {
	for _, d := range Dependencies {
		if d == key {
			return true
		}
	}
	return false
}

func present(fields map[string]string, key string) bool {
	return strings.TrimSpace(fields[key]) != ""
}
