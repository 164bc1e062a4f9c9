package domain

// OrderSummary fingerprints a seller's order history: the timestamp of the
// most recent order and how many orders share it.
type OrderSummary struct {
	TopDate      int64
	TopDateCount int
	OrderCount   int
}

// Equal compares the fingerprint only; OrderCount is informational.
func (s OrderSummary) Equal(o OrderSummary) bool {
	return s.TopDate == o.TopDate && s.TopDateCount == o.TopDateCount
}

// SummarizeOrderDates builds a summary from order timestamps in unix seconds.
func SummarizeOrderDates(dates []int64) OrderSummary {
	s := OrderSummary{OrderCount: len(dates)}
	for _, d := range dates {
		switch {
		case d > s.TopDate:
			s.TopDate = d
			s.TopDateCount = 1
		case d == s.TopDate && d != 0:
			s.TopDateCount++
		}
	}
	return s
}
