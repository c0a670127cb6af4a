package model

import "time"

// TradeSheet is an immutable conflict-free snapshot of a lab, ready for
// downstream execution.
type TradeSheet struct {
	SheetID     int64
	LabID       int64
	ViewID      *int64
	Name        string
	Description string
	ReportLink  string
	CreatedAt   time.Time
}
