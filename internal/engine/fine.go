package engine

import "time"

const day = 24 * time.Hour

// LateDays returns the number of whole or partial days returnDate falls after
// endDate. Partial days round up, in the borrower's disfavor.
func LateDays(endDate, returnDate time.Time) int64 {
	late := returnDate.Sub(endDate)
	if late <= 0 {
		return 0
	}
	days := int64(late / day)
	if late%day != 0 {
		days++
	}
	return days
}

// FineCents computes the fine for a return: daysLate * dailyRateCents, zero
// when the item comes back on or before the due date.
func FineCents(dailyRateCents int64, endDate, returnDate time.Time) int64 {
	return LateDays(endDate, returnDate) * dailyRateCents
}
