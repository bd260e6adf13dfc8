package labflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	auditmodel "github.com/openlims/labflow/auditlog/model"
	auditservice "github.com/openlims/labflow/auditlog/service"
)

const (
	entityTypeTestOrder    = "test_order"
	entityTypeOrderComment = "order_comment"
	entityTypeRawResult    = "raw_result"
)

// ResultInput is a single measurement handed to the state machine; the
// flagging verdict is resolved at insertion time, never taken from the caller.
type ResultInput struct {
	ParameterID      string
	Value            decimal.Decimal
	ReagentLotNumber *string
	MeasuredAt       *time.Time
}

type TestOrderUpdate struct {
	PatientID    *string
	InstrumentID *string
	Status       *OrderStatus
}

type OrderService interface {
	CreateOrder(ctx context.Context, patientID string, instrumentID *string, createdBy string) (TestOrder, error)
	GetOrderByID(ctx context.Context, id string) (TestOrder, error)
	GetOrders(ctx context.Context, pageable Pageable) ([]TestOrder, int, error)
	UpdateOrder(ctx context.Context, id string, update TestOrderUpdate, actor string) (TestOrder, error)
	DeleteOrder(ctx context.Context, id, actor string) error
	ProcessSample(ctx context.Context, barcode, instrumentID string, patientID *string, actor string) (TestOrder, bool, error)
	AddResults(ctx context.Context, orderID string, inputs []ResultInput, actor string) (TestOrder, error)
	SyncRawResult(ctx context.Context, rawResultID, actor string) (TestOrder, error)
	Complete(ctx context.Context, orderID string, usages []ReagentUsage, actor string) (TestOrder, error)
	AddComment(ctx context.Context, orderID, text, actor string) (Comment, error)
	UpdateComment(ctx context.Context, orderID, commentID, text, actor string) error
	DeleteComment(ctx context.Context, orderID, commentID, actor string) error
}

type orderService struct {
	orderRepository     OrderRepository
	patientRepository   PatientRepository
	parameterRepository ParameterRepository
	flaggingService     FlaggingService
	reagentService      ReagentService
	instrumentService   InstrumentService
	auditLogService     auditservice.AuditLogService
}

func NewOrderService(orderRepository OrderRepository, patientRepository PatientRepository, parameterRepository ParameterRepository,
	flaggingService FlaggingService, reagentService ReagentService, instrumentService InstrumentService,
	auditLogService auditservice.AuditLogService) OrderService {
	return &orderService{
		orderRepository:     orderRepository,
		patientRepository:   patientRepository,
		parameterRepository: parameterRepository,
		flaggingService:     flaggingService,
		reagentService:      reagentService,
		instrumentService:   instrumentService,
		auditLogService:     auditLogService,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, patientID string, instrumentID *string, createdBy string) (TestOrder, error) {
	patient, err := s.patientRepository.GetPatientByID(ctx, patientID)
	if err != nil {
		return TestOrder{}, err
	}

	if instrumentID != nil {
		if _, err = s.instrumentService.GetInstrumentByID(ctx, *instrumentID); err != nil {
			return TestOrder{}, err
		}
	}

	activeOrders, err := s.orderRepository.CountActiveOrdersByPatientID(ctx, patient.ID)
	if err != nil {
		return TestOrder{}, err
	}
	if activeOrders > 0 {
		return TestOrder{}, NewConflictError(MsgPatientHasPendingOrder)
	}

	now := time.Now().UTC()
	order := TestOrder{
		ID:           NewEntityID(),
		OrderNumber:  NewOrderNumber(now),
		Barcode:      NewBarcode(),
		PatientID:    patient.ID,
		InstrumentID: instrumentID,
		Status:       OrderStatusPending,
		TestResults:  []TestResult{},
		Comments:     []Comment{},
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}
	if _, err = s.orderRepository.CreateOrder(ctx, order); err != nil {
		return TestOrder{}, err
	}

	s.auditLogService.RecordEvent(ctx, createdBy, auditmodel.ActionCreate, entityTypeTestOrder, order.ID,
		"Created test order "+order.OrderNumber,
		map[string]string{"patientId": patient.ID, "barcode": order.Barcode})

	return order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, id string) (TestOrder, error) {
	return s.orderRepository.GetOrderByID(ctx, id)
}

func (s *orderService) GetOrders(ctx context.Context, pageable Pageable) ([]TestOrder, int, error) {
	return s.orderRepository.GetOrders(ctx, pageable)
}

func (s *orderService) UpdateOrder(ctx context.Context, id string, update TestOrderUpdate, actor string) (TestOrder, error) {
	order, err := s.orderRepository.GetOrderByID(ctx, id)
	if err != nil {
		return TestOrder{}, err
	}
	if order.Status.IsTerminal() {
		return TestOrder{}, NewConflictError(MsgTestOrderAlreadyTerminal)
	}

	changedFields := make(map[string]string)

	if update.PatientID != nil && *update.PatientID != order.PatientID {
		if _, err = s.patientRepository.GetPatientByID(ctx, *update.PatientID); err != nil {
			return TestOrder{}, err
		}
		order.PatientID = *update.PatientID
		changedFields["patientId"] = *update.PatientID
	}
	if update.InstrumentID != nil {
		if _, err = s.instrumentService.GetInstrumentByID(ctx, *update.InstrumentID); err != nil {
			return TestOrder{}, err
		}
		order.InstrumentID = update.InstrumentID
		changedFields["instrumentId"] = *update.InstrumentID
	}

	statusChanges := update.Status != nil && *update.Status != order.Status
	if statusChanges {
		if !IsValidOrderStatus(*update.Status) || !order.Status.CanTransitionTo(*update.Status) {
			return TestOrder{}, NewValidationError(MsgInvalidRequestBody, map[string]string{
				"status": fmt.Sprintf("can not transition from %s to %s", order.Status, *update.Status),
			})
		}
	}
	if len(changedFields) == 0 && !statusChanges {
		return order, nil
	}

	// field changes and the status transition land or fail together
	tx, err := s.orderRepository.CreateTransaction()
	if err != nil {
		return TestOrder{}, NewInternalError(MsgFailedToStartTransaction, err)
	}
	txOrderRepository := s.orderRepository.WithTransaction(tx)

	if len(changedFields) > 0 {
		if err = txOrderRepository.UpdateOrder(ctx, order); err != nil {
			_ = tx.Rollback()
			return TestOrder{}, err
		}
	}
	if statusChanges {
		transitioned, err := txOrderRepository.TransitionStatus(ctx, order.ID, []OrderStatus{order.Status}, *update.Status, nil, nil)
		if err != nil {
			_ = tx.Rollback()
			return TestOrder{}, err
		}
		if !transitioned {
			_ = tx.Rollback()
			return TestOrder{}, NewConflictError(MsgTestOrderAlreadyProcessed)
		}
		changedFields["status"] = string(*update.Status)
	}

	if err = tx.Commit(); err != nil {
		log.Error().Err(err).Msg(MsgFailedToCommitTransaction)
		_ = tx.Rollback()
		return TestOrder{}, NewInternalError(MsgFailedToCommitTransaction, err)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeTestOrder, order.ID,
		"Updated test order "+order.OrderNumber, changedFields)

	return s.orderRepository.GetOrderByID(ctx, order.ID)
}

func (s *orderService) DeleteOrder(ctx context.Context, id, actor string) error {
	order, err := s.orderRepository.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.orderRepository.SoftDeleteOrder(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return NewConflictError(MsgTestOrderAlreadyTerminal)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionDelete, entityTypeTestOrder, id,
		"Deleted test order "+order.OrderNumber, nil)

	return nil
}

// ProcessSample is the idempotent barcode intake. A known barcode returns the
// existing order untouched; a new one creates the order and synthesizes a raw
// instrument exchange from the currently active parameters.
func (s *orderService) ProcessSample(ctx context.Context, barcode, instrumentID string, patientID *string, actor string) (TestOrder, bool, error) {
	instrument, err := s.instrumentService.GetInstrumentByID(ctx, instrumentID)
	if err != nil {
		return TestOrder{}, false, err
	}
	if instrument.Status != InstrumentReady {
		return TestOrder{}, false, NewPreconditionFailedError(MsgInstrumentNotReady)
	}

	available, err := s.reagentService.HasAvailableReagent(ctx, instrumentID)
	if err != nil {
		return TestOrder{}, false, err
	}
	if !available {
		return TestOrder{}, false, NewPreconditionFailedError(MsgInsufficientReagent)
	}

	existing, found, err := s.orderRepository.GetOrderByBarcode(ctx, barcode)
	if err != nil {
		return TestOrder{}, false, err
	}
	if found {
		return existing, false, nil
	}

	if patientID == nil {
		return TestOrder{}, false, NewValidationError(MsgInvalidRequestBody, map[string]string{"patientId": "required for an unknown barcode"})
	}
	patient, err := s.patientRepository.GetPatientByID(ctx, *patientID)
	if err != nil {
		return TestOrder{}, false, err
	}

	now := time.Now().UTC()
	order := TestOrder{
		ID:           NewEntityID(),
		OrderNumber:  NewOrderNumber(now),
		Barcode:      barcode,
		PatientID:    patient.ID,
		InstrumentID: &instrument.ID,
		Status:       OrderStatusPending,
		TestResults:  []TestResult{},
		Comments:     []Comment{},
		CreatedBy:    actor,
		CreatedAt:    now,
	}
	if _, err = s.orderRepository.CreateOrder(ctx, order); err != nil {
		return TestOrder{}, false, err
	}

	activeParameters, err := s.parameterRepository.GetActiveParameters(ctx)
	if err != nil {
		return TestOrder{}, false, err
	}
	placeholders := make([]TestResult, len(activeParameters))
	for i, parameter := range activeParameters {
		placeholders[i] = TestResult{
			ParameterID:   parameter.ID,
			ParameterCode: parameter.Code,
			Value:         decimal.Zero,
			Unit:          parameter.Unit,
			MeasuredAt:    now,
		}
	}

	rawResult := RawResult{
		ID:           NewEntityID(),
		OrderID:      order.ID,
		InstrumentID: instrument.ID,
		Message:      GenerateHL7(order, patient, placeholders, now),
		CreatedAt:    now,
	}
	if _, err = s.orderRepository.CreateRawResult(ctx, rawResult); err != nil {
		return TestOrder{}, false, err
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionCreate, entityTypeTestOrder, order.ID,
		"Processed sample with barcode "+barcode,
		map[string]string{"instrumentId": instrument.ID, "rawResultId": rawResult.ID})

	return order, true, nil
}

func (s *orderService) AddResults(ctx context.Context, orderID string, inputs []ResultInput, actor string) (TestOrder, error) {
	order, err := s.orderRepository.GetOrderByID(ctx, orderID)
	if err != nil {
		return TestOrder{}, err
	}
	if order.Status.IsTerminal() {
		return TestOrder{}, NewConflictError(MsgTestOrderAlreadyTerminal)
	}

	patient, err := s.patientRepository.GetPatientByID(ctx, order.PatientID)
	if err != nil {
		return TestOrder{}, err
	}

	results, err := s.buildFlaggedResults(ctx, patient, inputs)
	if err != nil {
		return TestOrder{}, err
	}

	if _, err = s.orderRepository.CreateTestResults(ctx, order.ID, results); err != nil {
		return TestOrder{}, err
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeTestOrder, order.ID,
		fmt.Sprintf("Added %d result(s) to test order %s", len(results), order.OrderNumber), nil)

	return s.orderRepository.GetOrderByID(ctx, order.ID)
}

// SyncRawResult consumes a stored exchange exactly once: the synced marker and
// the status transition ride the same transaction, so a losing second caller
// rolls back with Conflict and leaves the order untouched.
func (s *orderService) SyncRawResult(ctx context.Context, rawResultID, actor string) (TestOrder, error) {
	rawResult, err := s.orderRepository.GetRawResultByID(ctx, rawResultID)
	if err != nil {
		return TestOrder{}, err
	}
	if rawResult.SyncedAt != nil {
		return TestOrder{}, NewConflictError(MsgRawResultAlreadySynced)
	}

	order, err := s.orderRepository.GetOrderByID(ctx, rawResult.OrderID)
	if err != nil {
		return TestOrder{}, err
	}
	patient, err := s.patientRepository.GetPatientByID(ctx, order.PatientID)
	if err != nil {
		return TestOrder{}, err
	}

	exchange, err := ParseHL7(rawResult.Message)
	if err != nil {
		log.Error().Err(err).Str("rawResultID", rawResultID).Msg("Stored raw result message is not parseable")
		return TestOrder{}, NewInternalError(MsgInternalServerError, err)
	}

	now := time.Now().UTC()
	results := make([]TestResult, 0, len(exchange.Observations))
	for _, observation := range exchange.Observations {
		parameter, err := s.parameterRepository.GetParameterByCode(ctx, observation.ParameterCode)
		if err != nil {
			if CategoryOf(err) == ErrorCategoryNotFound {
				log.Warn().Str("parameterCode", observation.ParameterCode).Str("rawResultID", rawResultID).Msg("Skipping observation with unknown parameter code")
				continue
			}
			return TestOrder{}, err
		}
		verdict, err := s.flaggingService.ResolveForPatient(ctx, parameter.ID, observation.Value, patient, now)
		if err != nil {
			return TestOrder{}, err
		}
		referenceRange := verdict.ReferenceRange
		if referenceRange == "" {
			referenceRange = observation.ReferenceRange
		}
		results = append(results, TestResult{
			ParameterID:    parameter.ID,
			ParameterCode:  parameter.Code,
			Value:          observation.Value,
			Unit:           observation.Unit,
			ReferenceRange: referenceRange,
			IsFlagged:      verdict.Flagged,
			FlagSeverity:   verdict.Severity,
			MeasuredAt:     now,
		})
	}

	tx, err := s.orderRepository.CreateTransaction()
	if err != nil {
		return TestOrder{}, NewInternalError(MsgFailedToStartTransaction, err)
	}
	txRepository := s.orderRepository.WithTransaction(tx)

	synced, err := txRepository.MarkRawResultSynced(ctx, rawResult.ID, now)
	if err != nil {
		_ = tx.Rollback()
		return TestOrder{}, err
	}
	if !synced {
		_ = tx.Rollback()
		return TestOrder{}, NewConflictError(MsgRawResultAlreadySynced)
	}

	if _, err = txRepository.CreateTestResults(ctx, order.ID, results); err != nil {
		_ = tx.Rollback()
		return TestOrder{}, err
	}

	transitioned, err := txRepository.TransitionStatus(ctx, order.ID, []OrderStatus{OrderStatusPending, OrderStatusRunning}, OrderStatusCompleted, &actor, &now)
	if err != nil {
		_ = tx.Rollback()
		return TestOrder{}, err
	}
	if !transitioned {
		_ = tx.Rollback()
		return TestOrder{}, NewConflictError(MsgTestOrderAlreadyProcessed)
	}

	if err = tx.Commit(); err != nil {
		log.Error().Err(err).Msg(MsgFailedToCommitTransaction)
		_ = tx.Rollback()
		return TestOrder{}, NewInternalError(MsgFailedToCommitTransaction, err)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeRawResult, rawResult.ID,
		"Synced raw result into test order "+order.OrderNumber,
		map[string]string{"orderId": order.ID, "resultCount": fmt.Sprintf("%d", len(results))})

	return s.orderRepository.GetOrderByID(ctx, order.ID)
}

// Complete finalizes the order and debits every requested reagent usage in one
// transaction: a single failed debit rolls back the completion and every other
// debit with it.
func (s *orderService) Complete(ctx context.Context, orderID string, usages []ReagentUsage, actor string) (TestOrder, error) {
	order, err := s.orderRepository.GetOrderByID(ctx, orderID)
	if err != nil {
		return TestOrder{}, err
	}
	if len(usages) > 0 && order.InstrumentID == nil {
		return TestOrder{}, NewPreconditionFailedError(MsgInstalledLotNotFound)
	}

	now := time.Now().UTC()

	tx, err := s.orderRepository.CreateTransaction()
	if err != nil {
		return TestOrder{}, NewInternalError(MsgFailedToStartTransaction, err)
	}

	transitioned, err := s.orderRepository.WithTransaction(tx).TransitionStatus(ctx, orderID, []OrderStatus{OrderStatusPending, OrderStatusRunning}, OrderStatusCompleted, &actor, &now)
	if err != nil {
		_ = tx.Rollback()
		return TestOrder{}, err
	}
	if !transitioned {
		_ = tx.Rollback()
		return TestOrder{}, NewConflictError(MsgTestOrderAlreadyProcessed)
	}

	txReagentService := s.reagentService.WithTransaction(tx)
	for _, usage := range usages {
		if _, err = txReagentService.RecordUsage(ctx, usage.LotNumber, *order.InstrumentID, usage.Quantity, &orderID, actor); err != nil {
			_ = tx.Rollback()
			return TestOrder{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		log.Error().Err(err).Msg(MsgFailedToCommitTransaction)
		_ = tx.Rollback()
		return TestOrder{}, NewInternalError(MsgFailedToCommitTransaction, err)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeTestOrder, orderID,
		"Completed test order "+order.OrderNumber,
		map[string]string{"status": string(OrderStatusCompleted), "reagentUsages": fmt.Sprintf("%d", len(usages))})

	return s.orderRepository.GetOrderByID(ctx, orderID)
}

func (s *orderService) AddComment(ctx context.Context, orderID, text, actor string) (Comment, error) {
	if text == "" {
		return Comment{}, NewValidationError(MsgInvalidRequestBody, map[string]string{"text": "required"})
	}
	if _, err := s.orderRepository.GetOrderByID(ctx, orderID); err != nil {
		return Comment{}, err
	}

	comment := Comment{
		ID:        NewEntityID(),
		Text:      text,
		CreatedBy: actor,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.orderRepository.CreateComment(ctx, orderID, comment); err != nil {
		return Comment{}, err
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionCreate, entityTypeOrderComment, comment.ID,
		"Added comment to test order", map[string]string{"orderId": orderID})

	return comment, nil
}

func (s *orderService) UpdateComment(ctx context.Context, orderID, commentID, text, actor string) error {
	if text == "" {
		return NewValidationError(MsgInvalidRequestBody, map[string]string{"text": "required"})
	}
	updated, err := s.orderRepository.UpdateComment(ctx, orderID, commentID, text)
	if err != nil {
		return err
	}
	if !updated {
		return NewNotFoundError(MsgCommentNotFound)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionUpdate, entityTypeOrderComment, commentID,
		"Updated comment on test order", map[string]string{"orderId": orderID})

	return nil
}

func (s *orderService) DeleteComment(ctx context.Context, orderID, commentID, actor string) error {
	deleted, err := s.orderRepository.SoftDeleteComment(ctx, orderID, commentID)
	if err != nil {
		return err
	}
	if !deleted {
		return NewNotFoundError(MsgCommentNotFound)
	}

	s.auditLogService.RecordEvent(ctx, actor, auditmodel.ActionDelete, entityTypeOrderComment, commentID,
		"Deleted comment from test order", map[string]string{"orderId": orderID})

	return nil
}

func (s *orderService) buildFlaggedResults(ctx context.Context, patient Patient, inputs []ResultInput) ([]TestResult, error) {
	now := time.Now().UTC()
	results := make([]TestResult, 0, len(inputs))
	for _, input := range inputs {
		parameter, err := s.parameterRepository.GetParameterByID(ctx, input.ParameterID)
		if err != nil {
			return nil, err
		}
		measuredAt := now
		if input.MeasuredAt != nil {
			measuredAt = input.MeasuredAt.UTC()
		}
		verdict, err := s.flaggingService.ResolveForPatient(ctx, parameter.ID, input.Value, patient, measuredAt)
		if err != nil {
			return nil, err
		}
		results = append(results, TestResult{
			ParameterID:      parameter.ID,
			ParameterCode:    parameter.Code,
			Value:            input.Value,
			Unit:             parameter.Unit,
			ReferenceRange:   verdict.ReferenceRange,
			IsFlagged:        verdict.Flagged,
			FlagSeverity:     verdict.Severity,
			ReagentLotNumber: input.ReagentLotNumber,
			MeasuredAt:       measuredAt,
		})
	}
	return results, nil
}
