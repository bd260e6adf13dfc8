package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openlims/labflow/auditlog/model"
	"github.com/openlims/labflow/db"
)

type auditEventDAO struct {
	ID            uuid.UUID         `db:"id"`
	Actor         string            `db:"actor"`
	Action        model.AuditAction `db:"action"`
	EntityType    string            `db:"entity_type"`
	EntityID      string            `db:"entity_id"`
	Description   string            `db:"description"`
	ChangedFields string            `db:"changed_fields"`
	CreatedAt     time.Time         `db:"created_at"`
}

type AuditLogRepository interface {
	CreateEvent(ctx context.Context, event model.AuditEventEntity) error
	LoadEvents(ctx context.Context, offset, limit int) ([]model.AuditEventEntity, int, error)
}

type auditLogRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewAuditLogRepository(db db.DbConnector, dbSchema string) AuditLogRepository {
	return &auditLogRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *auditLogRepository) CreateEvent(ctx context.Context, event model.AuditEventEntity) error {
	changedFields, err := json.Marshal(event.ChangedFields)
	if err != nil {
		log.Error().Err(err).Msg("Can not marshal changed fields of audit event")
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_audit_events(id, actor, "action", entity_type, entity_id, description, changed_fields, created_at)
		VALUES(:id, :actor, :action, :entity_type, :entity_id, :description, :changed_fields, :created_at);`, r.dbSchema)
	_, err = r.db.NamedExecContext(ctx, query, auditEventDAO{
		ID:            event.ID,
		Actor:         event.Actor,
		Action:        event.Action,
		EntityType:    event.EntityType,
		EntityID:      event.EntityID,
		Description:   event.Description,
		ChangedFields: string(changedFields),
		CreatedAt:     event.CreatedAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("Can not create audit event")
		return err
	}
	return nil
}

func (r *auditLogRepository) LoadEvents(ctx context.Context, offset, limit int) ([]model.AuditEventEntity, int, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_audit_events;`, r.dbSchema)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery)
	if err != nil {
		log.Error().Err(err).Msg("Can not count audit events")
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT id, actor, "action", entity_type, entity_id, description, changed_fields, created_at
		FROM %s.lf_audit_events ORDER BY created_at DESC OFFSET $1 LIMIT $2;`, r.dbSchema)
	var daos []auditEventDAO
	err = r.db.SelectContext(ctx, &daos, query, offset, limit)
	if err != nil && err != sql.ErrNoRows {
		log.Error().Err(err).Msg("Can not load audit events")
		return nil, 0, err
	}
	events := make([]model.AuditEventEntity, len(daos))
	for i := range daos {
		changedFields := make(map[string]string)
		if err = json.Unmarshal([]byte(daos[i].ChangedFields), &changedFields); err != nil {
			log.Warn().Err(err).Str("eventID", daos[i].ID.String()).Msg("Invalid changed fields payload in audit event")
		}
		events[i] = model.AuditEventEntity{
			ID:            daos[i].ID,
			Actor:         daos[i].Actor,
			Action:        daos[i].Action,
			EntityType:    daos[i].EntityType,
			EntityID:      daos[i].EntityID,
			Description:   daos[i].Description,
			ChangedFields: changedFields,
			CreatedAt:     daos[i].CreatedAt,
		}
	}
	return events, total, nil
}
