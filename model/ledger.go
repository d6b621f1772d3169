package model

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerEntry records every XP-affecting action, append-only.
// The ledger exists to make double-award bugs visible after the fact;
// it is written asynchronously and never read on the hot path.
type LedgerEntry struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_ledger_trace;size:36" json:"trace_id"`
	AccountID  int64          `gorm:"index:idx_ledger_account;not null" json:"account_id"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	XPDelta    int64          `json:"xp_delta"`
	Detail     datatypes.JSON `json:"detail"`
	Error      string         `gorm:"type:text" json:"error"`
	IP         string         `gorm:"size:45" json:"ip"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_ledger_created;autoCreateTime:milli" json:"created_at"`
}
