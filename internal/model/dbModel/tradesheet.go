package dbModel

import (
	"database/sql"
	"time"
)

type TradeSheet struct {
	SheetID     int64          `db:"sheet_id"`
	LabID       int64          `db:"lab_id"`
	ViewID      sql.NullInt64  `db:"view_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	ReportLink  sql.NullString `db:"report_link"`
	CreatedAt   time.Time      `db:"dt_create"`
}
