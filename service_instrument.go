package labflow

import (
	"context"

	auditmodel "github.com/openlims/labflow/auditlog/model"
	auditservice "github.com/openlims/labflow/auditlog/service"
)

const entityTypeInstrument = "instrument"

type InstrumentService interface {
	GetInstrumentByID(ctx context.Context, id string) (Instrument, error)
	GetInstruments(ctx context.Context) ([]Instrument, error)
	UpdateInstrumentStatus(ctx context.Context, id string, status InstrumentStatus, actor string) error
}

type instrumentService struct {
	instrumentRepository InstrumentRepository
	instrumentCache      InstrumentCache
	auditLogService      auditservice.AuditLogService
}

func NewInstrumentService(instrumentRepository InstrumentRepository, instrumentCache InstrumentCache, auditLogService auditservice.AuditLogService) InstrumentService {
	return &instrumentService{
		instrumentRepository: instrumentRepository,
		instrumentCache:      instrumentCache,
		auditLogService:      auditLogService,
	}
}

func (s *instrumentService) GetInstrumentByID(ctx context.Context, id string) (Instrument, error) {
	if instrument, ok := s.instrumentCache.GetByID(id); ok {
		return instrument, nil
	}
	instrument, err := s.instrumentRepository.GetInstrumentByID(ctx, id)
	if err != nil {
		return Instrument{}, err
	}
	if _, err = s.GetInstruments(ctx); err != nil {
		return Instrument{}, err
	}
	return instrument, nil
}

func (s *instrumentService) GetInstruments(ctx context.Context) ([]Instrument, error) {
	instruments, err := s.instrumentRepository.GetInstruments(ctx)
	if err != nil {
		return nil, err
	}
	s.instrumentCache.Set(instruments)
	return instruments, nil
}

func (s *instrumentService) UpdateInstrumentStatus(ctx context.Context, id string, status InstrumentStatus, actor string) error {
	if _, err := s.instrumentRepository.GetInstrumentByID(ctx, id); err != nil {
		return err
	}
	if err := s.instrumentRepository.UpdateInstrumentStatus(ctx, id, status); err != nil {
		return err
	}
	s.instrumentCache.Invalidate()
	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeInstrument, id,
		"Changed instrument status to "+string(status),
		map[string]string{"status": string(status)})
	return nil
}
