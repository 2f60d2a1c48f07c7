package analysis

import (
	"fmt"
	"time"
)

// FinancialYear returns the Australian financial-year label for a date, in
// the form "FY2024-25". The Australian FY runs 1 July through 30 June.
func FinancialYear(date time.Time) string {
	year := date.Year()
	if date.Month() < time.July {
		year--
	}
	return fmt.Sprintf("FY%d-%02d", year, (year+1)%100)
}
