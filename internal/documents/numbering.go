package documents

import "fmt"

// FormatNumber renders a document number as TYPE/YYYY/NNNNN.
func FormatNumber(t Type, year int, seq int64) string {
	return fmt.Sprintf("%s/%04d/%05d", t, year, seq)
}
