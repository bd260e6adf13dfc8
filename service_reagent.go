package labflow

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	auditmodel "github.com/openlims/labflow/auditlog/model"
	auditservice "github.com/openlims/labflow/auditlog/service"
	"github.com/openlims/labflow/db"
)

const (
	entityTypeReagentInventory  = "reagent_inventory"
	entityTypeInstrumentReagent = "instrument_reagent"
)

type ReagentService interface {
	Install(ctx context.Context, inventoryLotID, instrumentID string, quantity decimal.Decimal, installedBy string) (InstrumentReagent, error)
	RecordUsage(ctx context.Context, lotNumber, instrumentID string, quantityUsed decimal.Decimal, orderID *string, usedBy string) (string, error)
	UpdateStatus(ctx context.Context, instrumentReagentID string, status InstrumentReagentStatus, actor string) error
	MarkReturned(ctx context.Context, inventoryLotID, reason, actor string) error
	GetInventoryByID(ctx context.Context, id string) (ReagentInventory, error)
	GetInventories(ctx context.Context, pageable Pageable) ([]ReagentInventory, int, error)
	GetInstrumentReagents(ctx context.Context, instrumentID *string, pageable Pageable) ([]InstrumentReagent, int, error)
	GetUsageHistory(ctx context.Context, instrumentID *string, pageable Pageable) ([]ReagentUsageHistory, int, error)
	HasAvailableReagent(ctx context.Context, instrumentID string) (bool, error)
	WithTransaction(tx db.DbConnector) ReagentService
}

type reagentService struct {
	reagentRepository    ReagentRepository
	instrumentRepository InstrumentRepository
	auditLogService      auditservice.AuditLogService
	externalTx           db.DbConnector
}

func NewReagentService(reagentRepository ReagentRepository, instrumentRepository InstrumentRepository, auditLogService auditservice.AuditLogService) ReagentService {
	return &reagentService{
		reagentRepository:    reagentRepository,
		instrumentRepository: instrumentRepository,
		auditLogService:      auditLogService,
	}
}

func (s *reagentService) WithTransaction(tx db.DbConnector) ReagentService {
	if tx == nil {
		return s
	}
	return &reagentService{
		reagentRepository:    s.reagentRepository,
		instrumentRepository: s.instrumentRepository,
		auditLogService:      s.auditLogService,
		externalTx:           tx,
	}
}

func (s *reagentService) repository() ReagentRepository {
	return s.reagentRepository.WithTransaction(s.externalTx)
}

// Install debits the warehouse lot and snapshots an installed copy on the
// instrument. The two writes share one transaction; the conditional debit is
// what keeps concurrent installs from overdrawing the lot.
func (s *reagentService) Install(ctx context.Context, inventoryLotID, instrumentID string, quantity decimal.Decimal, installedBy string) (InstrumentReagent, error) {
	if !quantity.IsPositive() {
		return InstrumentReagent{}, NewPreconditionFailedError(MsgReagentQuantityNotPositive)
	}

	inventory, err := s.reagentRepository.GetInventoryByID(ctx, inventoryLotID)
	if err != nil {
		return InstrumentReagent{}, err
	}
	if inventory.Status == InventoryReturned {
		return InstrumentReagent{}, NewPreconditionFailedError(MsgReagentLotReturned)
	}
	if quantity.GreaterThan(inventory.QuantityInStock) {
		return InstrumentReagent{}, NewPreconditionFailedError(MsgReagentQuantityExceedsStock)
	}

	instrument, err := s.instrumentRepository.GetInstrumentByID(ctx, instrumentID)
	if err != nil {
		return InstrumentReagent{}, err
	}

	tx, err := s.reagentRepository.CreateTransaction()
	if err != nil {
		return InstrumentReagent{}, NewInternalError(MsgFailedToStartTransaction, err)
	}

	debited, err := s.reagentRepository.WithTransaction(tx).DebitInventory(ctx, inventoryLotID, quantity)
	if err != nil {
		_ = tx.Rollback()
		return InstrumentReagent{}, err
	}
	if !debited {
		_ = tx.Rollback()
		return InstrumentReagent{}, NewPreconditionFailedError(MsgReagentQuantityExceedsStock)
	}

	installed := InstrumentReagent{
		ID:                NewEntityID(),
		InstrumentID:      instrument.ID,
		ReagentTypeID:     inventory.ReagentTypeID,
		Name:              inventory.Name,
		LotNumber:         inventory.LotNumber,
		ExpirationDate:    inventory.ExpirationDate,
		Quantity:          quantity,
		QuantityRemaining: quantity,
		Status:            ReagentInUse,
		InstalledBy:       installedBy,
		InstalledAt:       time.Now().UTC(),
	}
	if _, err = s.reagentRepository.WithTransaction(tx).CreateInstrumentReagent(ctx, installed); err != nil {
		_ = tx.Rollback()
		return InstrumentReagent{}, err
	}

	if err = tx.Commit(); err != nil {
		log.Error().Err(err).Msg(MsgFailedToCommitTransaction)
		_ = tx.Rollback()
		return InstrumentReagent{}, NewInternalError(MsgFailedToCommitTransaction, err)
	}

	s.auditLogService.RecordEvent(ctx, installedBy, auditmodel.ActionCreate, entityTypeInstrumentReagent, installed.ID,
		"Installed reagent lot "+installed.LotNumber+" on instrument "+instrument.Name,
		map[string]string{"quantity": quantity.String()})

	return installed, nil
}

// RecordUsage appends a ledger entry for a debit that the conditional update
// accepted. A rejected debit never writes history.
func (s *reagentService) RecordUsage(ctx context.Context, lotNumber, instrumentID string, quantityUsed decimal.Decimal, orderID *string, usedBy string) (string, error) {
	if !quantityUsed.IsPositive() {
		return "", NewPreconditionFailedError(MsgReagentQuantityNotPositive)
	}

	repository := s.repository()
	installed, found, err := repository.GetInstalledLot(ctx, instrumentID, lotNumber)
	if err != nil {
		return "", err
	}
	if !found {
		return "", NewPreconditionFailedError(MsgInstalledLotNotFound)
	}

	debited, err := repository.DebitInstrumentReagent(ctx, installed.ID, quantityUsed)
	if err != nil {
		return "", err
	}
	if !debited {
		return "", NewPreconditionFailedError(MsgReagentUsageExceedsRemaining)
	}

	historyID, err := repository.CreateUsageHistory(ctx, ReagentUsageHistory{
		ID:           NewEntityID(),
		LotNumber:    lotNumber,
		InstrumentID: instrumentID,
		OrderID:      orderID,
		QuantityUsed: quantityUsed,
		UsedBy:       usedBy,
		UsedAt:       time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	if s.externalTx == nil {
		s.auditLogService.RecordEvent(ctx, usedBy, auditmodel.ActionUpdate, entityTypeInstrumentReagent, installed.ID,
			"Recorded usage of reagent lot "+lotNumber,
			map[string]string{"quantityUsed": quantityUsed.String()})
	}

	return historyID, nil
}

func (s *reagentService) UpdateStatus(ctx context.Context, instrumentReagentID string, status InstrumentReagentStatus, actor string) error {
	if !IsValidInstrumentReagentStatus(status) {
		return NewValidationError(MsgInvalidRequestBody, map[string]string{"status": "must be one of in_use, not_in_use, expired"})
	}

	installed, err := s.reagentRepository.GetInstrumentReagentByID(ctx, instrumentReagentID)
	if err != nil {
		return err
	}
	if installed.Status == status {
		return NewConflictError(MsgReagentStatusUnchanged)
	}

	updated, err := s.reagentRepository.UpdateInstrumentReagentStatus(ctx, instrumentReagentID, status)
	if err != nil {
		return err
	}
	if !updated {
		return NewConflictError(MsgReagentStatusUnchanged)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeInstrumentReagent, instrumentReagentID,
		"Changed reagent status to "+string(status),
		map[string]string{"status": string(status)})

	return nil
}

func (s *reagentService) MarkReturned(ctx context.Context, inventoryLotID, reason, actor string) error {
	if strings.TrimSpace(reason) == "" {
		return NewValidationError(MsgReturnReasonRequired, map[string]string{"reason": "required"})
	}

	inventory, err := s.reagentRepository.GetInventoryByID(ctx, inventoryLotID)
	if err != nil {
		return err
	}

	returned, err := s.reagentRepository.MarkInventoryReturned(ctx, inventoryLotID, reason)
	if err != nil {
		return err
	}
	if !returned {
		return NewConflictError(MsgReagentLotReturned)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeReagentInventory, inventoryLotID,
		"Marked reagent lot "+inventory.LotNumber+" as returned",
		map[string]string{"reason": reason})

	return nil
}

func (s *reagentService) GetInventoryByID(ctx context.Context, id string) (ReagentInventory, error) {
	return s.reagentRepository.GetInventoryByID(ctx, id)
}

func (s *reagentService) GetInventories(ctx context.Context, pageable Pageable) ([]ReagentInventory, int, error) {
	return s.reagentRepository.GetInventories(ctx, pageable)
}

func (s *reagentService) GetInstrumentReagents(ctx context.Context, instrumentID *string, pageable Pageable) ([]InstrumentReagent, int, error) {
	return s.reagentRepository.GetInstrumentReagents(ctx, instrumentID, pageable)
}

func (s *reagentService) GetUsageHistory(ctx context.Context, instrumentID *string, pageable Pageable) ([]ReagentUsageHistory, int, error) {
	return s.reagentRepository.GetUsageHistory(ctx, instrumentID, pageable)
}

func (s *reagentService) HasAvailableReagent(ctx context.Context, instrumentID string) (bool, error) {
	return s.reagentRepository.HasAvailableReagent(ctx, instrumentID)
}
