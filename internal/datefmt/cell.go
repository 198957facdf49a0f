package datefmt

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Excel serials outside this window are treated as plain numbers, which keeps
// a bare year or an order number from turning into a date.
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// NormalizeCell is Normalize for spreadsheet cells. Besides the text forms
// Normalize accepts, it understands Excel serial date numbers, which is how
// many workbooks store dates whose cells were never formatted as text.
func NormalizeCell(cell string, dateTime bool) string {
	s := strings.TrimSpace(cell)
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		// ParseFloat accepts "NaN", which compares false against both bounds.
		if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < minExcelSerial || serial > maxExcelSerial {
			return ""
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return ""
		}
		t = t.Round(time.Second)
		if dateTime {
			return t.Format(DateTimeLayout)
		}
		return t.Format(DateLayout)
	}
	return Normalize(s, dateTime)
}
