package labflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openlims/labflow/db"
)

type testOrderDAO struct {
	ID           string         `db:"id"`
	OrderNumber  string         `db:"order_number"`
	Barcode      string         `db:"barcode"`
	PatientID    string         `db:"patient_id"`
	InstrumentID sql.NullString `db:"instrument_id"`
	Status       OrderStatus    `db:"status"`
	CreatedBy    string         `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
	ModifiedAt   sql.NullTime   `db:"modified_at"`
	RunBy        sql.NullString `db:"run_by"`
	RunAt        sql.NullTime   `db:"run_at"`
}

type testResultDAO struct {
	ID               string          `db:"id"`
	OrderID          string          `db:"order_id"`
	ParameterID      string          `db:"parameter_id"`
	ParameterCode    string          `db:"parameter_code"`
	Value            decimal.Decimal `db:"value"`
	Unit             string          `db:"unit"`
	ReferenceRange   string          `db:"reference_range"`
	IsFlagged        bool            `db:"is_flagged"`
	FlagSeverity     sql.NullString  `db:"flag_severity"`
	ReagentLotNumber sql.NullString  `db:"reagent_lot_number"`
	MeasuredAt       time.Time       `db:"measured_at"`
}

type orderCommentDAO struct {
	ID         string       `db:"id"`
	OrderID    string       `db:"order_id"`
	Text       string       `db:"text"`
	CreatedBy  string       `db:"created_by"`
	CreatedAt  time.Time    `db:"created_at"`
	ModifiedAt sql.NullTime `db:"modified_at"`
	DeletedAt  sql.NullTime `db:"deleted_at"`
}

type rawResultDAO struct {
	ID           string       `db:"id"`
	OrderID      string       `db:"order_id"`
	InstrumentID string       `db:"instrument_id"`
	Message      string       `db:"message"`
	CreatedAt    time.Time    `db:"created_at"`
	SyncedAt     sql.NullTime `db:"synced_at"`
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order TestOrder) (string, error)
	GetOrderByID(ctx context.Context, id string) (TestOrder, error)
	GetOrderByBarcode(ctx context.Context, barcode string) (TestOrder, bool, error)
	GetOrders(ctx context.Context, pageable Pageable) ([]TestOrder, int, error)
	CountActiveOrdersByPatientID(ctx context.Context, patientID string) (int, error)
	UpdateOrder(ctx context.Context, order TestOrder) error
	TransitionStatus(ctx context.Context, id string, from []OrderStatus, to OrderStatus, runBy *string, runAt *time.Time) (bool, error)
	SoftDeleteOrder(ctx context.Context, id string) (bool, error)

	CreateTestResults(ctx context.Context, orderID string, results []TestResult) ([]string, error)
	GetTestResultsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]TestResult, error)

	CreateComment(ctx context.Context, orderID string, comment Comment) (string, error)
	UpdateComment(ctx context.Context, orderID, commentID, text string) (bool, error)
	SoftDeleteComment(ctx context.Context, orderID, commentID string) (bool, error)
	GetCommentsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]Comment, error)

	CreateRawResult(ctx context.Context, rawResult RawResult) (string, error)
	GetRawResultByID(ctx context.Context, id string) (RawResult, error)
	MarkRawResultSynced(ctx context.Context, id string, syncedAt time.Time) (bool, error)

	CreateTransaction() (db.DbConnector, error)
	WithTransaction(tx db.DbConnector) OrderRepository
}

type orderRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewOrderRepository(db db.DbConnector, dbSchema string) OrderRepository {
	return &orderRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order TestOrder) (string, error) {
	if order.ID == "" {
		order.ID = NewEntityID()
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_test_orders(id, order_number, barcode, patient_id, instrument_id, status, created_by, created_at)
		VALUES(:id, :order_number, :barcode, :patient_id, :instrument_id, :status, :created_by, :created_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, convertOrderToDAO(order))
	if err != nil {
		log.Error().Err(err).Msg("Can not create test order")
		return "", NewInternalError(MsgInternalServerError, err)
	}
	return order.ID, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id string) (TestOrder, error) {
	query := fmt.Sprintf(`SELECT id, order_number, barcode, patient_id, instrument_id, status, created_by, created_at, modified_at, run_by, run_at
		FROM %s.lf_test_orders WHERE id = $1 AND deleted_at IS NULL;`, r.dbSchema)
	var dao testOrderDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TestOrder{}, NewNotFoundError(MsgTestOrderNotFound)
		}
		log.Error().Err(err).Msg("Can not get test order")
		return TestOrder{}, NewInternalError(MsgInternalServerError, err)
	}
	order := convertDAOToOrder(dao)
	err = r.loadEmbedded(ctx, []*TestOrder{&order})
	if err != nil {
		return TestOrder{}, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderByBarcode(ctx context.Context, barcode string) (TestOrder, bool, error) {
	query := fmt.Sprintf(`SELECT id, order_number, barcode, patient_id, instrument_id, status, created_by, created_at, modified_at, run_by, run_at
		FROM %s.lf_test_orders WHERE barcode = $1 AND deleted_at IS NULL;`, r.dbSchema)
	var dao testOrderDAO
	err := r.db.GetContext(ctx, &dao, query, barcode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TestOrder{}, false, nil
		}
		log.Error().Err(err).Msg("Can not get test order by barcode")
		return TestOrder{}, false, NewInternalError(MsgInternalServerError, err)
	}
	order := convertDAOToOrder(dao)
	err = r.loadEmbedded(ctx, []*TestOrder{&order})
	if err != nil {
		return TestOrder{}, false, err
	}
	return order, true, nil
}

func (r *orderRepository) GetOrders(ctx context.Context, pageable Pageable) ([]TestOrder, int, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_test_orders WHERE deleted_at IS NULL;`, r.dbSchema)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery)
	if err != nil {
		log.Error().Err(err).Msg("Can not count test orders")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}

	query := fmt.Sprintf(`SELECT o.id, o.order_number, o.barcode, o.patient_id, o.instrument_id, o.status, o.created_by, o.created_at, o.modified_at, o.run_by, o.run_at
		FROM %s.lf_test_orders o WHERE o.deleted_at IS NULL`, r.dbSchema)
	query += applyPagination(pageable, "o", "o.created_at DESC", "order_number", "barcode", "status", "created_at", "run_at") + ";"
	var daos []testOrderDAO
	err = r.db.SelectContext(ctx, &daos, query)
	if err != nil {
		log.Error().Err(err).Msg("Can not get test orders")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}

	orders := make([]TestOrder, len(daos))
	orderPointers := make([]*TestOrder, len(daos))
	for i := range daos {
		orders[i] = convertDAOToOrder(daos[i])
		orderPointers[i] = &orders[i]
	}
	err = r.loadEmbedded(ctx, orderPointers)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) CountActiveOrdersByPatientID(ctx context.Context, patientID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_test_orders
		WHERE patient_id = $1 AND deleted_at IS NULL AND status IN ('%s', '%s');`,
		r.dbSchema, OrderStatusPending, OrderStatusRunning)
	var count int
	err := r.db.GetContext(ctx, &count, query, patientID)
	if err != nil {
		log.Error().Err(err).Msg("Can not count active test orders of patient")
		return 0, NewInternalError(MsgInternalServerError, err)
	}
	return count, nil
}

func (r *orderRepository) UpdateOrder(ctx context.Context, order TestOrder) error {
	query := fmt.Sprintf(`UPDATE %s.lf_test_orders
		SET patient_id = :patient_id, instrument_id = :instrument_id, status = :status, modified_at = timezone('utc', now())
		WHERE id = :id AND deleted_at IS NULL;`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, convertOrderToDAO(order))
	if err != nil {
		log.Error().Err(err).Msg("Can not update test order")
		return NewInternalError(MsgInternalServerError, err)
	}
	return nil
}

// TransitionStatus applies a compare-and-set status change. The losing caller
// of two concurrent transitions gets ok=false and must not retry.
func (r *orderRepository) TransitionStatus(ctx context.Context, id string, from []OrderStatus, to OrderStatus, runBy *string, runAt *time.Time) (bool, error) {
	fromList := make([]string, len(from))
	for i := range from {
		fromList[i] = "'" + string(from[i]) + "'"
	}
	query := fmt.Sprintf(`UPDATE %s.lf_test_orders
		SET status = $1, run_by = COALESCE($2, run_by), run_at = COALESCE($3, run_at), modified_at = timezone('utc', now())
		WHERE id = $4 AND deleted_at IS NULL AND status IN (%s);`, r.dbSchema, strings.Join(fromList, ", "))
	result, err := r.db.ExecContext(ctx, query, to, stringPointerToNullString(runBy), timePointerToNullTime(runAt), id)
	if err != nil {
		log.Error().Err(err).Msg("Can not transition test order status")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *orderRepository) SoftDeleteOrder(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_test_orders SET deleted_at = timezone('utc', now())
		WHERE id = $1 AND deleted_at IS NULL AND status IN ('%s', '%s');`,
		r.dbSchema, OrderStatusPending, OrderStatusRunning)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not delete test order")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *orderRepository) CreateTestResults(ctx context.Context, orderID string, results []TestResult) ([]string, error) {
	if len(results) == 0 {
		return []string{}, nil
	}
	daos := make([]testResultDAO, len(results))
	ids := make([]string, len(results))
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = NewEntityID()
		}
		ids[i] = results[i].ID
		daos[i] = convertTestResultToDAO(orderID, results[i])
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_test_results(id, order_id, parameter_id, parameter_code, "value", unit, reference_range, is_flagged, flag_severity, reagent_lot_number, measured_at)
		VALUES(:id, :order_id, :parameter_id, :parameter_code, :value, :unit, :reference_range, :is_flagged, :flag_severity, :reagent_lot_number, :measured_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, daos)
	if err != nil {
		log.Error().Err(err).Msg("Can not create test results")
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	return ids, nil
}

func (r *orderRepository) GetTestResultsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]TestResult, error) {
	resultsByOrderID := make(map[string][]TestResult)
	if len(orderIDs) == 0 {
		return resultsByOrderID, nil
	}
	query := fmt.Sprintf(`SELECT id, order_id, parameter_id, parameter_code, "value", unit, reference_range, is_flagged, flag_severity, reagent_lot_number, measured_at
		FROM %s.lf_test_results WHERE order_id IN (?) ORDER BY measured_at, id;`, r.dbSchema)
	query, args, err := sqlx.In(query, orderIDs)
	if err != nil {
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	var daos []testResultDAO
	err = r.db.SelectContext(ctx, &daos, r.db.Rebind(query), args...)
	if err != nil {
		log.Error().Err(err).Msg("Can not get test results")
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	for i := range daos {
		resultsByOrderID[daos[i].OrderID] = append(resultsByOrderID[daos[i].OrderID], convertDAOToTestResult(daos[i]))
	}
	return resultsByOrderID, nil
}

func (r *orderRepository) CreateComment(ctx context.Context, orderID string, comment Comment) (string, error) {
	if comment.ID == "" {
		comment.ID = NewEntityID()
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_order_comments(id, order_id, "text", created_by, created_at)
		VALUES(:id, :order_id, :text, :created_by, :created_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, orderCommentDAO{
		ID:        comment.ID,
		OrderID:   orderID,
		Text:      comment.Text,
		CreatedBy: comment.CreatedBy,
		CreatedAt: comment.CreatedAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("Can not create order comment")
		return "", NewInternalError(MsgInternalServerError, err)
	}
	return comment.ID, nil
}

func (r *orderRepository) UpdateComment(ctx context.Context, orderID, commentID, text string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_order_comments SET "text" = $1, modified_at = timezone('utc', now())
		WHERE id = $2 AND order_id = $3 AND deleted_at IS NULL;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, text, commentID, orderID)
	if err != nil {
		log.Error().Err(err).Msg("Can not update order comment")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *orderRepository) SoftDeleteComment(ctx context.Context, orderID, commentID string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_order_comments SET deleted_at = timezone('utc', now())
		WHERE id = $1 AND order_id = $2 AND deleted_at IS NULL;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, commentID, orderID)
	if err != nil {
		log.Error().Err(err).Msg("Can not delete order comment")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *orderRepository) GetCommentsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]Comment, error) {
	commentsByOrderID := make(map[string][]Comment)
	if len(orderIDs) == 0 {
		return commentsByOrderID, nil
	}
	query := fmt.Sprintf(`SELECT id, order_id, "text", created_by, created_at, modified_at, deleted_at
		FROM %s.lf_order_comments WHERE order_id IN (?) ORDER BY created_at, id;`, r.dbSchema)
	query, args, err := sqlx.In(query, orderIDs)
	if err != nil {
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	var daos []orderCommentDAO
	err = r.db.SelectContext(ctx, &daos, r.db.Rebind(query), args...)
	if err != nil {
		log.Error().Err(err).Msg("Can not get order comments")
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	for i := range daos {
		commentsByOrderID[daos[i].OrderID] = append(commentsByOrderID[daos[i].OrderID], Comment{
			ID:         daos[i].ID,
			Text:       daos[i].Text,
			CreatedBy:  daos[i].CreatedBy,
			CreatedAt:  daos[i].CreatedAt,
			ModifiedAt: nullTimeToTimePointer(daos[i].ModifiedAt),
			DeletedAt:  nullTimeToTimePointer(daos[i].DeletedAt),
		})
	}
	return commentsByOrderID, nil
}

func (r *orderRepository) CreateRawResult(ctx context.Context, rawResult RawResult) (string, error) {
	if rawResult.ID == "" {
		rawResult.ID = NewEntityID()
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_raw_results(id, order_id, instrument_id, message, created_at)
		VALUES(:id, :order_id, :instrument_id, :message, :created_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, rawResultDAO{
		ID:           rawResult.ID,
		OrderID:      rawResult.OrderID,
		InstrumentID: rawResult.InstrumentID,
		Message:      rawResult.Message,
		CreatedAt:    rawResult.CreatedAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("Can not create raw result")
		return "", NewInternalError(MsgInternalServerError, err)
	}
	return rawResult.ID, nil
}

func (r *orderRepository) GetRawResultByID(ctx context.Context, id string) (RawResult, error) {
	query := fmt.Sprintf(`SELECT id, order_id, instrument_id, message, created_at, synced_at
		FROM %s.lf_raw_results WHERE id = $1;`, r.dbSchema)
	var dao rawResultDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RawResult{}, NewNotFoundError(MsgRawResultNotFound)
		}
		log.Error().Err(err).Msg("Can not get raw result")
		return RawResult{}, NewInternalError(MsgInternalServerError, err)
	}
	return RawResult{
		ID:           dao.ID,
		OrderID:      dao.OrderID,
		InstrumentID: dao.InstrumentID,
		Message:      dao.Message,
		CreatedAt:    dao.CreatedAt,
		SyncedAt:     nullTimeToTimePointer(dao.SyncedAt),
	}, nil
}

// MarkRawResultSynced is the one-shot consumption guard: the check and the
// write are a single atomic statement so two concurrent syncers cannot both
// see "not yet synced".
func (r *orderRepository) MarkRawResultSynced(ctx context.Context, id string, syncedAt time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_raw_results SET synced_at = $1
		WHERE id = $2 AND synced_at IS NULL;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, syncedAt, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not mark raw result synced")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *orderRepository) CreateTransaction() (db.DbConnector, error) {
	return r.db.CreateTransactionConnector()
}

func (r *orderRepository) WithTransaction(tx db.DbConnector) OrderRepository {
	if tx == nil {
		return r
	}
	return &orderRepository{
		db:       tx,
		dbSchema: r.dbSchema,
	}
}

func (r *orderRepository) loadEmbedded(ctx context.Context, orders []*TestOrder) error {
	orderIDs := make([]string, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}
	resultsByOrderID, err := r.GetTestResultsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return err
	}
	commentsByOrderID, err := r.GetCommentsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].TestResults = resultsByOrderID[orders[i].ID]
		orders[i].Comments = commentsByOrderID[orders[i].ID]
	}
	return nil
}

func convertOrderToDAO(order TestOrder) testOrderDAO {
	return testOrderDAO{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		Barcode:      order.Barcode,
		PatientID:    order.PatientID,
		InstrumentID: stringPointerToNullString(order.InstrumentID),
		Status:       order.Status,
		CreatedBy:    order.CreatedBy,
		CreatedAt:    order.CreatedAt,
		ModifiedAt:   timePointerToNullTime(order.ModifiedAt),
		RunBy:        stringPointerToNullString(order.RunBy),
		RunAt:        timePointerToNullTime(order.RunAt),
	}
}

func convertDAOToOrder(dao testOrderDAO) TestOrder {
	return TestOrder{
		ID:           dao.ID,
		OrderNumber:  dao.OrderNumber,
		Barcode:      dao.Barcode,
		PatientID:    dao.PatientID,
		InstrumentID: nullStringToStringPointer(dao.InstrumentID),
		Status:       dao.Status,
		CreatedBy:    dao.CreatedBy,
		CreatedAt:    dao.CreatedAt,
		ModifiedAt:   nullTimeToTimePointer(dao.ModifiedAt),
		RunBy:        nullStringToStringPointer(dao.RunBy),
		RunAt:        nullTimeToTimePointer(dao.RunAt),
	}
}

func convertTestResultToDAO(orderID string, result TestResult) testResultDAO {
	dao := testResultDAO{
		ID:               result.ID,
		OrderID:          orderID,
		ParameterID:      result.ParameterID,
		ParameterCode:    result.ParameterCode,
		Value:            result.Value,
		Unit:             result.Unit,
		ReferenceRange:   result.ReferenceRange,
		IsFlagged:        result.IsFlagged,
		ReagentLotNumber: stringPointerToNullString(result.ReagentLotNumber),
		MeasuredAt:       result.MeasuredAt,
	}
	if result.FlagSeverity != nil {
		dao.FlagSeverity = sql.NullString{String: string(*result.FlagSeverity), Valid: true}
	}
	return dao
}

func convertDAOToTestResult(dao testResultDAO) TestResult {
	result := TestResult{
		ID:               dao.ID,
		ParameterID:      dao.ParameterID,
		ParameterCode:    dao.ParameterCode,
		Value:            dao.Value,
		Unit:             dao.Unit,
		ReferenceRange:   dao.ReferenceRange,
		IsFlagged:        dao.IsFlagged,
		ReagentLotNumber: nullStringToStringPointer(dao.ReagentLotNumber),
		MeasuredAt:       dao.MeasuredAt,
	}
	if dao.FlagSeverity.Valid {
		severity := FlagSeverity(dao.FlagSeverity.String)
		result.FlagSeverity = &severity
	}
	return result
}
