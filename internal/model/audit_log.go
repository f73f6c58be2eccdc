package model

import (
	"encoding/json"
	"time"
)

const (
	AuditEntitySession     = "test_session"
	AuditEntityCertificate = "certificate"
	AuditEntitySurvey      = "survey"
)

// AuditLog is append-only.
type AuditLog struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID    *uint           `gorm:"index" json:"actorId,omitempty"`
	Action     string          `gorm:"size:64;index;not null" json:"action"`
	EntityType string          `gorm:"size:64;index:idx_audit_entity;not null" json:"entityType"`
	EntityID   string          `gorm:"size:64;index:idx_audit_entity;not null" json:"entityId"`
	Details    json.RawMessage `gorm:"type:json" json:"details,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
