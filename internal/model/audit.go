package model

import "time"

type AuditEvent struct {
	EventType string
	LabID     int64
	Details   string
	CreatedAt time.Time
}

const (
	AuditTradeSheetBlocked = "trade_sheet_blocked"
	AuditTradeSheetCreated = "trade_sheet_created"
	AuditVariantTrashed    = "variant_trashed"
)
