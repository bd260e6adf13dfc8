package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

type AuditEventEntity struct {
	ID            uuid.UUID
	Actor         string
	Action        AuditAction
	EntityType    string
	EntityID      string
	Description   string
	ChangedFields map[string]string
	CreatedAt     time.Time
}

type AuditEventDTO struct {
	ID            uuid.UUID         `json:"id"`
	Actor         string            `json:"actor"`
	Action        AuditAction       `json:"action"`
	EntityType    string            `json:"entityType"`
	EntityID      string            `json:"entityId"`
	Description   string            `json:"description"`
	ChangedFields map[string]string `json:"changedFields"`
	CreatedAt     time.Time         `json:"createdAt"`
}
