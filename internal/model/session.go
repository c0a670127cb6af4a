package model

type SessionState int

const (
	DefaultState SessionState = iota
	ExpectingLabName
	ExpectingLabValue
	ExpectingNewLabValue
	ExpectingTicker
	ExpectingSizingInput
	ExpectingPositionShares
	ExpectingBenchmarkWeight
	ExpectingSheetName
)

type Session struct {
	State   SessionState
	LabID   int64
	LabName string
	Ticker  string
}
