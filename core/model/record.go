package model

// FundingRecord is one funded proposal as read from the source sheet.
type FundingRecord struct {
	Name      string
	AmountUSD float64
}
