package db

import (
	"gorm.io/gorm"
)

// RequestLog records one REST request handled by the gateway.
type RequestLog struct {
	gorm.Model
	RequestID  string `gorm:"index"`
	Method     string `gorm:"not null"`
	Path       string `gorm:"not null"`
	Query      string
	RemoteIP   string `gorm:"not null"`
	StatusCode int    `gorm:"not null"`
	DurationMS int64  `gorm:"not null"`
}

// DispatchLog records one SOAP operation dispatched to the remote CA,
// including rejected and failed attempts.
type DispatchLog struct {
	gorm.Model
	RequestID string `gorm:"index"`
	Operation string `gorm:"not null;index"`
	Outcome   string `gorm:"not null"`
	Detail    string `gorm:"type:text"`
}

// Dispatch outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnknownOp   = "unknown_operation"
	OutcomeRemoteFault = "remote_fault"
	OutcomeTransport   = "transport_error"
	OutcomeUnavailable = "unavailable"
)
