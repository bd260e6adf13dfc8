package labflow

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	auditmodel "github.com/openlims/labflow/auditlog/model"
	"github.com/openlims/labflow/db"
)

type dbConnectorMock struct {
	committed  bool
	rolledBack bool
}

func (m *dbConnectorMock) CreateTransactionConnector() (db.DbConnector, error) {
	return m, nil
}

func (m *dbConnectorMock) ExecContext(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (m *dbConnectorMock) NamedExecContext(_ context.Context, _ string, _ interface{}) (sql.Result, error) {
	return nil, nil
}

func (m *dbConnectorMock) NamedQueryContext(_ context.Context, _ string, _ interface{}) (*sqlx.Rows, error) {
	return nil, nil
}

func (m *dbConnectorMock) QueryxContext(_ context.Context, _ string, _ ...interface{}) (*sqlx.Rows, error) {
	return nil, nil
}

func (m *dbConnectorMock) QueryRowxContext(_ context.Context, _ string, _ ...interface{}) *sqlx.Row {
	return nil
}

func (m *dbConnectorMock) GetContext(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return nil
}

func (m *dbConnectorMock) SelectContext(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return nil
}

func (m *dbConnectorMock) Rebind(query string) string {
	return query
}

func (m *dbConnectorMock) Commit() error {
	m.committed = true
	return nil
}

func (m *dbConnectorMock) Rollback() error {
	m.rolledBack = true
	return nil
}

func (m *dbConnectorMock) Ping() error {
	return nil
}

type flaggingRepositoryMock struct {
	createConfigurationFunc                func(ctx context.Context, configuration FlaggingConfiguration) (string, error)
	updateConfigurationFunc                func(ctx context.Context, configuration FlaggingConfiguration) error
	deleteConfigurationFunc                func(ctx context.Context, id string) (bool, error)
	getConfigurationByIDFunc               func(ctx context.Context, id string) (FlaggingConfiguration, error)
	getConfigurationsFunc                  func(ctx context.Context, pageable Pageable) ([]FlaggingConfiguration, int, error)
	getActiveConfigurationsByParameterFunc func(ctx context.Context, parameterID string) ([]FlaggingConfiguration, error)
	getConfigurationByTripleFunc           func(ctx context.Context, parameterID string, sex *Sex, ageGroup *AgeGroup) (FlaggingConfiguration, bool, error)
}

func (m *flaggingRepositoryMock) CreateConfiguration(ctx context.Context, configuration FlaggingConfiguration) (string, error) {
	return m.createConfigurationFunc(ctx, configuration)
}

func (m *flaggingRepositoryMock) UpdateConfiguration(ctx context.Context, configuration FlaggingConfiguration) error {
	return m.updateConfigurationFunc(ctx, configuration)
}

func (m *flaggingRepositoryMock) DeleteConfiguration(ctx context.Context, id string) (bool, error) {
	return m.deleteConfigurationFunc(ctx, id)
}

func (m *flaggingRepositoryMock) GetConfigurationByID(ctx context.Context, id string) (FlaggingConfiguration, error) {
	return m.getConfigurationByIDFunc(ctx, id)
}

func (m *flaggingRepositoryMock) GetConfigurations(ctx context.Context, pageable Pageable) ([]FlaggingConfiguration, int, error) {
	return m.getConfigurationsFunc(ctx, pageable)
}

func (m *flaggingRepositoryMock) GetActiveConfigurationsByParameterID(ctx context.Context, parameterID string) ([]FlaggingConfiguration, error) {
	return m.getActiveConfigurationsByParameterFunc(ctx, parameterID)
}

func (m *flaggingRepositoryMock) GetConfigurationByTriple(ctx context.Context, parameterID string, sex *Sex, ageGroup *AgeGroup) (FlaggingConfiguration, bool, error) {
	return m.getConfigurationByTripleFunc(ctx, parameterID, sex, ageGroup)
}

type flaggingConfigCacheMock struct {
	getActiveConfigurationsFunc func(ctx context.Context, parameterID string) ([]FlaggingConfiguration, bool)
	setActiveConfigurationsFunc func(ctx context.Context, parameterID string, configurations []FlaggingConfiguration)
	invalidateFunc              func(ctx context.Context, parameterID string)
}

func (m *flaggingConfigCacheMock) GetActiveConfigurations(ctx context.Context, parameterID string) ([]FlaggingConfiguration, bool) {
	if m.getActiveConfigurationsFunc != nil {
		return m.getActiveConfigurationsFunc(ctx, parameterID)
	}
	return nil, false
}

func (m *flaggingConfigCacheMock) SetActiveConfigurations(ctx context.Context, parameterID string, configurations []FlaggingConfiguration) {
	if m.setActiveConfigurationsFunc != nil {
		m.setActiveConfigurationsFunc(ctx, parameterID, configurations)
	}
}

func (m *flaggingConfigCacheMock) Invalidate(ctx context.Context, parameterID string) {
	if m.invalidateFunc != nil {
		m.invalidateFunc(ctx, parameterID)
	}
}

type parameterRepositoryMock struct {
	getParameterByIDFunc    func(ctx context.Context, id string) (Parameter, error)
	getParameterByCodeFunc  func(ctx context.Context, code string) (Parameter, error)
	getActiveParametersFunc func(ctx context.Context) ([]Parameter, error)
}

func (m *parameterRepositoryMock) GetParameterByID(ctx context.Context, id string) (Parameter, error) {
	return m.getParameterByIDFunc(ctx, id)
}

func (m *parameterRepositoryMock) GetParameterByCode(ctx context.Context, code string) (Parameter, error) {
	return m.getParameterByCodeFunc(ctx, code)
}

func (m *parameterRepositoryMock) GetActiveParameters(ctx context.Context) ([]Parameter, error) {
	return m.getActiveParametersFunc(ctx)
}

type patientRepositoryMock struct {
	getPatientByIDFunc func(ctx context.Context, id string) (Patient, error)
}

func (m *patientRepositoryMock) GetPatientByID(ctx context.Context, id string) (Patient, error) {
	return m.getPatientByIDFunc(ctx, id)
}

type instrumentRepositoryMock struct {
	getInstrumentByIDFunc      func(ctx context.Context, id string) (Instrument, error)
	getInstrumentsFunc         func(ctx context.Context) ([]Instrument, error)
	updateInstrumentStatusFunc func(ctx context.Context, id string, status InstrumentStatus) error
}

func (m *instrumentRepositoryMock) GetInstrumentByID(ctx context.Context, id string) (Instrument, error) {
	return m.getInstrumentByIDFunc(ctx, id)
}

func (m *instrumentRepositoryMock) GetInstruments(ctx context.Context) ([]Instrument, error) {
	return m.getInstrumentsFunc(ctx)
}

func (m *instrumentRepositoryMock) UpdateInstrumentStatus(ctx context.Context, id string, status InstrumentStatus) error {
	return m.updateInstrumentStatusFunc(ctx, id, status)
}

type auditLogServiceMock struct {
	recordEventFunc func(ctx context.Context, actor string, action auditmodel.AuditAction, entityType, entityID, description string, changedFields map[string]string)
}

func (m *auditLogServiceMock) RecordEvent(ctx context.Context, actor string, action auditmodel.AuditAction, entityType, entityID, description string, changedFields map[string]string) {
	if m.recordEventFunc != nil {
		m.recordEventFunc(ctx, actor, action, entityType, entityID, description, changedFields)
	}
}

func (m *auditLogServiceMock) GetEvents(_ context.Context, _, _ int) ([]auditmodel.AuditEventDTO, int, error) {
	return nil, 0, nil
}

type reagentRepositoryMock struct {
	getInventoryByIDFunc              func(ctx context.Context, id string) (ReagentInventory, error)
	getInventoriesFunc                func(ctx context.Context, pageable Pageable) ([]ReagentInventory, int, error)
	debitInventoryFunc                func(ctx context.Context, id string, quantity decimal.Decimal) (bool, error)
	markInventoryReturnedFunc         func(ctx context.Context, id, reason string) (bool, error)
	createInstrumentReagentFunc       func(ctx context.Context, reagent InstrumentReagent) (string, error)
	getInstrumentReagentByIDFunc      func(ctx context.Context, id string) (InstrumentReagent, error)
	getInstrumentReagentsFunc         func(ctx context.Context, instrumentID *string, pageable Pageable) ([]InstrumentReagent, int, error)
	getInstalledLotFunc               func(ctx context.Context, instrumentID, lotNumber string) (InstrumentReagent, bool, error)
	debitInstrumentReagentFunc        func(ctx context.Context, id string, quantity decimal.Decimal) (bool, error)
	updateInstrumentReagentStatusFunc func(ctx context.Context, id string, status InstrumentReagentStatus) (bool, error)
	hasAvailableReagentFunc           func(ctx context.Context, instrumentID string) (bool, error)
	createUsageHistoryFunc            func(ctx context.Context, entry ReagentUsageHistory) (string, error)
	getUsageHistoryFunc               func(ctx context.Context, instrumentID *string, pageable Pageable) ([]ReagentUsageHistory, int, error)
	createTransactionFunc             func() (db.DbConnector, error)
}

func (m *reagentRepositoryMock) GetInventoryByID(ctx context.Context, id string) (ReagentInventory, error) {
	return m.getInventoryByIDFunc(ctx, id)
}

func (m *reagentRepositoryMock) GetInventories(ctx context.Context, pageable Pageable) ([]ReagentInventory, int, error) {
	return m.getInventoriesFunc(ctx, pageable)
}

func (m *reagentRepositoryMock) DebitInventory(ctx context.Context, id string, quantity decimal.Decimal) (bool, error) {
	return m.debitInventoryFunc(ctx, id, quantity)
}

func (m *reagentRepositoryMock) MarkInventoryReturned(ctx context.Context, id, reason string) (bool, error) {
	return m.markInventoryReturnedFunc(ctx, id, reason)
}

func (m *reagentRepositoryMock) CreateInstrumentReagent(ctx context.Context, reagent InstrumentReagent) (string, error) {
	return m.createInstrumentReagentFunc(ctx, reagent)
}

func (m *reagentRepositoryMock) GetInstrumentReagentByID(ctx context.Context, id string) (InstrumentReagent, error) {
	return m.getInstrumentReagentByIDFunc(ctx, id)
}

func (m *reagentRepositoryMock) GetInstrumentReagents(ctx context.Context, instrumentID *string, pageable Pageable) ([]InstrumentReagent, int, error) {
	return m.getInstrumentReagentsFunc(ctx, instrumentID, pageable)
}

func (m *reagentRepositoryMock) GetInstalledLot(ctx context.Context, instrumentID, lotNumber string) (InstrumentReagent, bool, error) {
	return m.getInstalledLotFunc(ctx, instrumentID, lotNumber)
}

func (m *reagentRepositoryMock) DebitInstrumentReagent(ctx context.Context, id string, quantity decimal.Decimal) (bool, error) {
	return m.debitInstrumentReagentFunc(ctx, id, quantity)
}

func (m *reagentRepositoryMock) UpdateInstrumentReagentStatus(ctx context.Context, id string, status InstrumentReagentStatus) (bool, error) {
	return m.updateInstrumentReagentStatusFunc(ctx, id, status)
}

func (m *reagentRepositoryMock) HasAvailableReagent(ctx context.Context, instrumentID string) (bool, error) {
	return m.hasAvailableReagentFunc(ctx, instrumentID)
}

func (m *reagentRepositoryMock) CreateUsageHistory(ctx context.Context, entry ReagentUsageHistory) (string, error) {
	return m.createUsageHistoryFunc(ctx, entry)
}

func (m *reagentRepositoryMock) GetUsageHistory(ctx context.Context, instrumentID *string, pageable Pageable) ([]ReagentUsageHistory, int, error) {
	return m.getUsageHistoryFunc(ctx, instrumentID, pageable)
}

func (m *reagentRepositoryMock) CreateTransaction() (db.DbConnector, error) {
	if m.createTransactionFunc != nil {
		return m.createTransactionFunc()
	}
	return &dbConnectorMock{}, nil
}

func (m *reagentRepositoryMock) WithTransaction(_ db.DbConnector) ReagentRepository {
	return m
}

type instrumentServiceMock struct {
	getInstrumentByIDFunc      func(ctx context.Context, id string) (Instrument, error)
	getInstrumentsFunc         func(ctx context.Context) ([]Instrument, error)
	updateInstrumentStatusFunc func(ctx context.Context, id string, status InstrumentStatus, actor string) error
}

func (m *instrumentServiceMock) GetInstrumentByID(ctx context.Context, id string) (Instrument, error) {
	return m.getInstrumentByIDFunc(ctx, id)
}

func (m *instrumentServiceMock) GetInstruments(ctx context.Context) ([]Instrument, error) {
	return m.getInstrumentsFunc(ctx)
}

func (m *instrumentServiceMock) UpdateInstrumentStatus(ctx context.Context, id string, status InstrumentStatus, actor string) error {
	return m.updateInstrumentStatusFunc(ctx, id, status, actor)
}

type flaggingServiceMock struct {
	resolveFunc           func(ctx context.Context, parameterID string, value decimal.Decimal, sex *Sex, ageGroup *AgeGroup) (FlagVerdict, error)
	resolveForPatientFunc func(ctx context.Context, parameterID string, value decimal.Decimal, patient Patient, at time.Time) (FlagVerdict, error)
}

func (m *flaggingServiceMock) CreateConfiguration(_ context.Context, _ FlaggingConfiguration) (string, error) {
	return "", nil
}

func (m *flaggingServiceMock) UpdateConfiguration(_ context.Context, _ FlaggingConfiguration) error {
	return nil
}

func (m *flaggingServiceMock) DeleteConfiguration(_ context.Context, _ string) error {
	return nil
}

func (m *flaggingServiceMock) GetConfigurationByID(_ context.Context, _ string) (FlaggingConfiguration, error) {
	return FlaggingConfiguration{}, nil
}

func (m *flaggingServiceMock) GetConfigurations(_ context.Context, _ Pageable) ([]FlaggingConfiguration, int, error) {
	return nil, 0, nil
}

func (m *flaggingServiceMock) SyncConfigurations(_ context.Context, _ []FlaggingConfiguration) (FlaggingSyncResult, error) {
	return FlaggingSyncResult{}, nil
}

func (m *flaggingServiceMock) Resolve(ctx context.Context, parameterID string, value decimal.Decimal, sex *Sex, ageGroup *AgeGroup) (FlagVerdict, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, parameterID, value, sex, ageGroup)
	}
	return FlagVerdict{}, nil
}

func (m *flaggingServiceMock) ResolveForPatient(ctx context.Context, parameterID string, value decimal.Decimal, patient Patient, at time.Time) (FlagVerdict, error) {
	if m.resolveForPatientFunc != nil {
		return m.resolveForPatientFunc(ctx, parameterID, value, patient, at)
	}
	return FlagVerdict{}, nil
}

type reagentServiceMock struct {
	recordUsageFunc         func(ctx context.Context, lotNumber, instrumentID string, quantityUsed decimal.Decimal, orderID *string, usedBy string) (string, error)
	hasAvailableReagentFunc func(ctx context.Context, instrumentID string) (bool, error)
}

func (m *reagentServiceMock) Install(_ context.Context, _, _ string, _ decimal.Decimal, _ string) (InstrumentReagent, error) {
	return InstrumentReagent{}, nil
}

func (m *reagentServiceMock) RecordUsage(ctx context.Context, lotNumber, instrumentID string, quantityUsed decimal.Decimal, orderID *string, usedBy string) (string, error) {
	if m.recordUsageFunc != nil {
		return m.recordUsageFunc(ctx, lotNumber, instrumentID, quantityUsed, orderID, usedBy)
	}
	return NewEntityID(), nil
}

func (m *reagentServiceMock) UpdateStatus(_ context.Context, _ string, _ InstrumentReagentStatus, _ string) error {
	return nil
}

func (m *reagentServiceMock) MarkReturned(_ context.Context, _, _, _ string) error {
	return nil
}

func (m *reagentServiceMock) GetInventoryByID(_ context.Context, _ string) (ReagentInventory, error) {
	return ReagentInventory{}, nil
}

func (m *reagentServiceMock) GetInventories(_ context.Context, _ Pageable) ([]ReagentInventory, int, error) {
	return nil, 0, nil
}

func (m *reagentServiceMock) GetInstrumentReagents(_ context.Context, _ *string, _ Pageable) ([]InstrumentReagent, int, error) {
	return nil, 0, nil
}

func (m *reagentServiceMock) GetUsageHistory(_ context.Context, _ *string, _ Pageable) ([]ReagentUsageHistory, int, error) {
	return nil, 0, nil
}

func (m *reagentServiceMock) HasAvailableReagent(ctx context.Context, instrumentID string) (bool, error) {
	if m.hasAvailableReagentFunc != nil {
		return m.hasAvailableReagentFunc(ctx, instrumentID)
	}
	return true, nil
}

func (m *reagentServiceMock) WithTransaction(_ db.DbConnector) ReagentService {
	return m
}

type orderRepositoryMock struct {
	createOrderFunc                  func(ctx context.Context, order TestOrder) (string, error)
	getOrderByIDFunc                 func(ctx context.Context, id string) (TestOrder, error)
	getOrderByBarcodeFunc            func(ctx context.Context, barcode string) (TestOrder, bool, error)
	getOrdersFunc                    func(ctx context.Context, pageable Pageable) ([]TestOrder, int, error)
	countActiveOrdersByPatientIDFunc func(ctx context.Context, patientID string) (int, error)
	updateOrderFunc                  func(ctx context.Context, order TestOrder) error
	transitionStatusFunc             func(ctx context.Context, id string, from []OrderStatus, to OrderStatus, runBy *string, runAt *time.Time) (bool, error)
	softDeleteOrderFunc              func(ctx context.Context, id string) (bool, error)
	createTestResultsFunc            func(ctx context.Context, orderID string, results []TestResult) ([]string, error)
	getTestResultsByOrderIDsFunc     func(ctx context.Context, orderIDs []string) (map[string][]TestResult, error)
	createCommentFunc                func(ctx context.Context, orderID string, comment Comment) (string, error)
	updateCommentFunc                func(ctx context.Context, orderID, commentID, text string) (bool, error)
	softDeleteCommentFunc            func(ctx context.Context, orderID, commentID string) (bool, error)
	getCommentsByOrderIDsFunc        func(ctx context.Context, orderIDs []string) (map[string][]Comment, error)
	createRawResultFunc              func(ctx context.Context, rawResult RawResult) (string, error)
	getRawResultByIDFunc             func(ctx context.Context, id string) (RawResult, error)
	markRawResultSyncedFunc          func(ctx context.Context, id string, syncedAt time.Time) (bool, error)
	createTransactionFunc            func() (db.DbConnector, error)
}

func (m *orderRepositoryMock) CreateOrder(ctx context.Context, order TestOrder) (string, error) {
	return m.createOrderFunc(ctx, order)
}

func (m *orderRepositoryMock) GetOrderByID(ctx context.Context, id string) (TestOrder, error) {
	return m.getOrderByIDFunc(ctx, id)
}

func (m *orderRepositoryMock) GetOrderByBarcode(ctx context.Context, barcode string) (TestOrder, bool, error) {
	return m.getOrderByBarcodeFunc(ctx, barcode)
}

func (m *orderRepositoryMock) GetOrders(ctx context.Context, pageable Pageable) ([]TestOrder, int, error) {
	return m.getOrdersFunc(ctx, pageable)
}

func (m *orderRepositoryMock) CountActiveOrdersByPatientID(ctx context.Context, patientID string) (int, error) {
	return m.countActiveOrdersByPatientIDFunc(ctx, patientID)
}

func (m *orderRepositoryMock) UpdateOrder(ctx context.Context, order TestOrder) error {
	return m.updateOrderFunc(ctx, order)
}

func (m *orderRepositoryMock) TransitionStatus(ctx context.Context, id string, from []OrderStatus, to OrderStatus, runBy *string, runAt *time.Time) (bool, error) {
	return m.transitionStatusFunc(ctx, id, from, to, runBy, runAt)
}

func (m *orderRepositoryMock) SoftDeleteOrder(ctx context.Context, id string) (bool, error) {
	return m.softDeleteOrderFunc(ctx, id)
}

func (m *orderRepositoryMock) CreateTestResults(ctx context.Context, orderID string, results []TestResult) ([]string, error) {
	return m.createTestResultsFunc(ctx, orderID, results)
}

func (m *orderRepositoryMock) GetTestResultsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]TestResult, error) {
	return m.getTestResultsByOrderIDsFunc(ctx, orderIDs)
}

func (m *orderRepositoryMock) CreateComment(ctx context.Context, orderID string, comment Comment) (string, error) {
	return m.createCommentFunc(ctx, orderID, comment)
}

func (m *orderRepositoryMock) UpdateComment(ctx context.Context, orderID, commentID, text string) (bool, error) {
	return m.updateCommentFunc(ctx, orderID, commentID, text)
}

func (m *orderRepositoryMock) SoftDeleteComment(ctx context.Context, orderID, commentID string) (bool, error) {
	return m.softDeleteCommentFunc(ctx, orderID, commentID)
}

func (m *orderRepositoryMock) GetCommentsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]Comment, error) {
	return m.getCommentsByOrderIDsFunc(ctx, orderIDs)
}

func (m *orderRepositoryMock) CreateRawResult(ctx context.Context, rawResult RawResult) (string, error) {
	return m.createRawResultFunc(ctx, rawResult)
}

func (m *orderRepositoryMock) GetRawResultByID(ctx context.Context, id string) (RawResult, error) {
	return m.getRawResultByIDFunc(ctx, id)
}

func (m *orderRepositoryMock) MarkRawResultSynced(ctx context.Context, id string, syncedAt time.Time) (bool, error) {
	return m.markRawResultSyncedFunc(ctx, id, syncedAt)
}

func (m *orderRepositoryMock) CreateTransaction() (db.DbConnector, error) {
	if m.createTransactionFunc != nil {
		return m.createTransactionFunc()
	}
	return &dbConnectorMock{}, nil
}

func (m *orderRepositoryMock) WithTransaction(_ db.DbConnector) OrderRepository {
	return m
}
