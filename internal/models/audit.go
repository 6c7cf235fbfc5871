package models

import (
	"encoding/json"
	"time"
)

// AuditAction enumerates the actions recorded in the admin action log.
type AuditAction string

const (
	AuditActionCreate      AuditAction = "create"
	AuditActionUpdate      AuditAction = "update"
	AuditActionDelete      AuditAction = "delete"
	AuditActionExport      AuditAction = "export"
	AuditActionApprove     AuditAction = "approve"
	AuditActionReject      AuditAction = "reject"
	AuditActionRequestInfo AuditAction = "request_info"
	AuditActionOther       AuditAction = "other"
)

// ObjectReprLimit bounds AdminActionLog.ObjectRepr.
const ObjectReprLimit = 200

// AdminActionLog is an immutable audit trail row.
type AdminActionLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction     `db:"action" json:"action"`
	ModelName  string          `db:"model_name" json:"model_name"`
	ObjectRepr string          `db:"object_repr" json:"object_repr"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	UserID    string
	Action    AuditAction
	ModelName string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
