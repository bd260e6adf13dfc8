package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jcuga/golongpoll"
	"github.com/rs/zerolog/log"

	"github.com/openlims/labflow/auditlog/model"
	"github.com/openlims/labflow/auditlog/repository"
	"github.com/openlims/labflow/clients"
)

const auditEventCategory = "audit-events"

type AuditLogService interface {
	RecordEvent(ctx context.Context, actor string, action model.AuditAction, entityType, entityID, description string, changedFields map[string]string)
	GetEvents(ctx context.Context, offset, limit int) ([]model.AuditEventDTO, int, error)
}

type auditLogService struct {
	repository      repository.AuditLogRepository
	eventLogClient  clients.EventLogClient
	longpollManager *golongpoll.LongpollManager
}

func NewAuditLogService(repository repository.AuditLogRepository, eventLogClient clients.EventLogClient, longpollManager *golongpoll.LongpollManager) AuditLogService {
	return &auditLogService{
		repository:      repository,
		eventLogClient:  eventLogClient,
		longpollManager: longpollManager,
	}
}

// RecordEvent persists the event, pushes it to live subscribers and forwards
// it to the external sink. Sink failures are logged, never propagated: audit
// trouble must not fail the operation it describes.
func (s *auditLogService) RecordEvent(ctx context.Context, actor string, action model.AuditAction, entityType, entityID, description string, changedFields map[string]string) {
	if changedFields == nil {
		changedFields = make(map[string]string)
	}
	event := model.AuditEventEntity{
		ID:            uuid.New(),
		Actor:         actor,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Description:   description,
		ChangedFields: changedFields,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repository.CreateEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("entityID", entityID).Msg("Can not persist audit event")
	}

	if s.longpollManager != nil {
		if err := s.longpollManager.Publish(auditEventCategory, convertEntityToDTO(event)); err != nil {
			log.Warn().Err(err).Str("eventID", event.ID.String()).Msg("Can not publish audit event to subscribers")
		}
	}

	go func() {
		err := s.eventLogClient.SendEvent(clients.EventLogTO{
			EventID:       event.ID.String(),
			Actor:         event.Actor,
			Action:        string(event.Action),
			EntityType:    event.EntityType,
			EntityID:      event.EntityID,
			Description:   event.Description,
			ChangedFields: event.ChangedFields,
			OccurredAt:    event.CreatedAt,
		})
		if err != nil {
			log.Warn().Err(err).Str("eventID", event.ID.String()).Msg("Can not forward audit event to the event-log sink")
		}
	}()
}

func (s *auditLogService) GetEvents(ctx context.Context, offset, limit int) ([]model.AuditEventDTO, int, error) {
	events, total, err := s.repository.LoadEvents(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]model.AuditEventDTO, len(events))
	for i := range events {
		dtos[i] = convertEntityToDTO(events[i])
	}
	return dtos, total, nil
}

func convertEntityToDTO(event model.AuditEventEntity) model.AuditEventDTO {
	return model.AuditEventDTO{
		ID:            event.ID,
		Actor:         event.Actor,
		Action:        event.Action,
		EntityType:    event.EntityType,
		EntityID:      event.EntityID,
		Description:   event.Description,
		ChangedFields: event.ChangedFields,
		CreatedAt:     event.CreatedAt,
	}
}
