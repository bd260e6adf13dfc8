package labflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openlims/labflow/db"
)

type reagentInventoryDAO struct {
	ID               string          `db:"id"`
	ReagentTypeID    string          `db:"reagent_type_id"`
	Name             string          `db:"name"`
	LotNumber        string          `db:"lot_number"`
	ExpirationDate   time.Time       `db:"expiration_date"`
	QuantityReceived decimal.Decimal `db:"quantity_received"`
	QuantityInStock  decimal.Decimal `db:"quantity_in_stock"`
	Status           InventoryStatus `db:"status"`
	ReturnReason     sql.NullString  `db:"return_reason"`
	CreatedAt        time.Time       `db:"created_at"`
	ModifiedAt       sql.NullTime    `db:"modified_at"`
}

type instrumentReagentDAO struct {
	ID                string                  `db:"id"`
	InstrumentID      string                  `db:"instrument_id"`
	ReagentTypeID     string                  `db:"reagent_type_id"`
	Name              string                  `db:"name"`
	LotNumber         string                  `db:"lot_number"`
	ExpirationDate    time.Time               `db:"expiration_date"`
	Quantity          decimal.Decimal         `db:"quantity"`
	QuantityRemaining decimal.Decimal         `db:"quantity_remaining"`
	Status            InstrumentReagentStatus `db:"status"`
	InstalledBy       string                  `db:"installed_by"`
	InstalledAt       time.Time               `db:"installed_at"`
	ModifiedAt        sql.NullTime            `db:"modified_at"`
}

type reagentUsageHistoryDAO struct {
	ID           string          `db:"id"`
	LotNumber    string          `db:"lot_number"`
	InstrumentID string          `db:"instrument_id"`
	OrderID      sql.NullString  `db:"order_id"`
	QuantityUsed decimal.Decimal `db:"quantity_used"`
	UsedBy       string          `db:"used_by"`
	UsedAt       time.Time       `db:"used_at"`
}

type ReagentRepository interface {
	GetInventoryByID(ctx context.Context, id string) (ReagentInventory, error)
	GetInventories(ctx context.Context, pageable Pageable) ([]ReagentInventory, int, error)
	DebitInventory(ctx context.Context, id string, quantity decimal.Decimal) (bool, error)
	MarkInventoryReturned(ctx context.Context, id, reason string) (bool, error)

	CreateInstrumentReagent(ctx context.Context, reagent InstrumentReagent) (string, error)
	GetInstrumentReagentByID(ctx context.Context, id string) (InstrumentReagent, error)
	GetInstrumentReagents(ctx context.Context, instrumentID *string, pageable Pageable) ([]InstrumentReagent, int, error)
	GetInstalledLot(ctx context.Context, instrumentID, lotNumber string) (InstrumentReagent, bool, error)
	DebitInstrumentReagent(ctx context.Context, id string, quantity decimal.Decimal) (bool, error)
	UpdateInstrumentReagentStatus(ctx context.Context, id string, status InstrumentReagentStatus) (bool, error)
	HasAvailableReagent(ctx context.Context, instrumentID string) (bool, error)

	CreateUsageHistory(ctx context.Context, entry ReagentUsageHistory) (string, error)
	GetUsageHistory(ctx context.Context, instrumentID *string, pageable Pageable) ([]ReagentUsageHistory, int, error)

	CreateTransaction() (db.DbConnector, error)
	WithTransaction(tx db.DbConnector) ReagentRepository
}

type reagentRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewReagentRepository(db db.DbConnector, dbSchema string) ReagentRepository {
	return &reagentRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *reagentRepository) GetInventoryByID(ctx context.Context, id string) (ReagentInventory, error) {
	query := fmt.Sprintf(`SELECT id, reagent_type_id, "name", lot_number, expiration_date, quantity_received, quantity_in_stock, status, return_reason, created_at, modified_at
		FROM %s.lf_reagent_inventory WHERE id = $1;`, r.dbSchema)
	var dao reagentInventoryDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReagentInventory{}, NewNotFoundError(MsgReagentLotNotFound)
		}
		log.Error().Err(err).Msg("Can not get reagent inventory lot")
		return ReagentInventory{}, NewInternalError(MsgInternalServerError, err)
	}
	return convertDAOToReagentInventory(dao), nil
}

func (r *reagentRepository) GetInventories(ctx context.Context, pageable Pageable) ([]ReagentInventory, int, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_reagent_inventory;`, r.dbSchema)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery)
	if err != nil {
		log.Error().Err(err).Msg("Can not count reagent inventory lots")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	query := fmt.Sprintf(`SELECT ri.id, ri.reagent_type_id, ri."name", ri.lot_number, ri.expiration_date, ri.quantity_received, ri.quantity_in_stock, ri.status, ri.return_reason, ri.created_at, ri.modified_at
		FROM %s.lf_reagent_inventory ri`, r.dbSchema)
	query += applyPagination(pageable, "ri", "ri.created_at DESC", "name", "lot_number", "expiration_date", "status", "created_at") + ";"
	var daos []reagentInventoryDAO
	err = r.db.SelectContext(ctx, &daos, query)
	if err != nil {
		log.Error().Err(err).Msg("Can not get reagent inventory lots")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	inventories := make([]ReagentInventory, len(daos))
	for i := range daos {
		inventories[i] = convertDAOToReagentInventory(daos[i])
	}
	return inventories, total, nil
}

// DebitInventory only succeeds while the lot is not returned and holds enough
// stock; the guard and the debit are one atomic statement.
func (r *reagentRepository) DebitInventory(ctx context.Context, id string, quantity decimal.Decimal) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_reagent_inventory
		SET quantity_in_stock = quantity_in_stock - $1, modified_at = timezone('utc', now())
		WHERE id = $2 AND status <> $3 AND quantity_in_stock >= $1;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, quantity, id, InventoryReturned)
	if err != nil {
		log.Error().Err(err).Msg("Can not debit reagent inventory lot")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *reagentRepository) MarkInventoryReturned(ctx context.Context, id, reason string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_reagent_inventory
		SET status = $1, quantity_in_stock = 0, return_reason = $2, modified_at = timezone('utc', now())
		WHERE id = $3 AND status <> $1;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, InventoryReturned, reason, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not mark reagent inventory lot returned")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *reagentRepository) CreateInstrumentReagent(ctx context.Context, reagent InstrumentReagent) (string, error) {
	if reagent.ID == "" {
		reagent.ID = NewEntityID()
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_instrument_reagents(id, instrument_id, reagent_type_id, "name", lot_number, expiration_date, quantity, quantity_remaining, status, installed_by, installed_at)
		VALUES(:id, :instrument_id, :reagent_type_id, :name, :lot_number, :expiration_date, :quantity, :quantity_remaining, :status, :installed_by, :installed_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, convertInstrumentReagentToDAO(reagent))
	if err != nil {
		log.Error().Err(err).Msg("Can not create instrument reagent")
		return "", NewInternalError(MsgInternalServerError, err)
	}
	return reagent.ID, nil
}

func (r *reagentRepository) GetInstrumentReagentByID(ctx context.Context, id string) (InstrumentReagent, error) {
	query := fmt.Sprintf(`SELECT id, instrument_id, reagent_type_id, "name", lot_number, expiration_date, quantity, quantity_remaining, status, installed_by, installed_at, modified_at
		FROM %s.lf_instrument_reagents WHERE id = $1;`, r.dbSchema)
	var dao instrumentReagentDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InstrumentReagent{}, NewNotFoundError(MsgInstalledLotNotFound)
		}
		log.Error().Err(err).Msg("Can not get instrument reagent")
		return InstrumentReagent{}, NewInternalError(MsgInternalServerError, err)
	}
	return convertDAOToInstrumentReagent(dao), nil
}

func (r *reagentRepository) GetInstrumentReagents(ctx context.Context, instrumentID *string, pageable Pageable) ([]InstrumentReagent, int, error) {
	whereClause := ""
	args := make([]interface{}, 0, 1)
	if instrumentID != nil {
		whereClause = " WHERE ir.instrument_id = $1"
		args = append(args, *instrumentID)
	}
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_instrument_reagents ir%s;`, r.dbSchema, whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		log.Error().Err(err).Msg("Can not count instrument reagents")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	query := fmt.Sprintf(`SELECT ir.id, ir.instrument_id, ir.reagent_type_id, ir."name", ir.lot_number, ir.expiration_date, ir.quantity, ir.quantity_remaining, ir.status, ir.installed_by, ir.installed_at, ir.modified_at
		FROM %s.lf_instrument_reagents ir%s`, r.dbSchema, whereClause)
	query += applyPagination(pageable, "ir", "ir.installed_at DESC", "lot_number", "status", "installed_at") + ";"
	var daos []instrumentReagentDAO
	err = r.db.SelectContext(ctx, &daos, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("Can not get instrument reagents")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	reagents := make([]InstrumentReagent, len(daos))
	for i := range daos {
		reagents[i] = convertDAOToInstrumentReagent(daos[i])
	}
	return reagents, total, nil
}

func (r *reagentRepository) GetInstalledLot(ctx context.Context, instrumentID, lotNumber string) (InstrumentReagent, bool, error) {
	query := fmt.Sprintf(`SELECT id, instrument_id, reagent_type_id, "name", lot_number, expiration_date, quantity, quantity_remaining, status, installed_by, installed_at, modified_at
		FROM %s.lf_instrument_reagents
		WHERE instrument_id = $1 AND lot_number = $2 AND status = $3
		ORDER BY installed_at DESC LIMIT 1;`, r.dbSchema)
	var dao instrumentReagentDAO
	err := r.db.GetContext(ctx, &dao, query, instrumentID, lotNumber, ReagentInUse)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InstrumentReagent{}, false, nil
		}
		log.Error().Err(err).Msg("Can not get installed reagent lot")
		return InstrumentReagent{}, false, NewInternalError(MsgInternalServerError, err)
	}
	return convertDAOToInstrumentReagent(dao), true, nil
}

// DebitInstrumentReagent refuses to drive quantity_remaining negative; two
// concurrent debits draining the same lot cannot both succeed.
func (r *reagentRepository) DebitInstrumentReagent(ctx context.Context, id string, quantity decimal.Decimal) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_instrument_reagents
		SET quantity_remaining = quantity_remaining - $1, modified_at = timezone('utc', now())
		WHERE id = $2 AND quantity_remaining >= $1;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, quantity, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not debit instrument reagent")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *reagentRepository) UpdateInstrumentReagentStatus(ctx context.Context, id string, status InstrumentReagentStatus) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.lf_instrument_reagents
		SET status = $1, modified_at = timezone('utc', now())
		WHERE id = $2 AND status <> $1;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not update instrument reagent status")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *reagentRepository) HasAvailableReagent(ctx context.Context, instrumentID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s.lf_instrument_reagents
		WHERE instrument_id = $1 AND status = $2 AND quantity_remaining > 0 AND expiration_date >= current_date);`, r.dbSchema)
	var available bool
	err := r.db.GetContext(ctx, &available, query, instrumentID, ReagentInUse)
	if err != nil {
		log.Error().Err(err).Msg("Can not check available reagent")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	return available, nil
}

func (r *reagentRepository) CreateUsageHistory(ctx context.Context, entry ReagentUsageHistory) (string, error) {
	if entry.ID == "" {
		entry.ID = NewEntityID()
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_reagent_usage_history(id, lot_number, instrument_id, order_id, quantity_used, used_by, used_at)
		VALUES(:id, :lot_number, :instrument_id, :order_id, :quantity_used, :used_by, :used_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, reagentUsageHistoryDAO{
		ID:           entry.ID,
		LotNumber:    entry.LotNumber,
		InstrumentID: entry.InstrumentID,
		OrderID:      stringPointerToNullString(entry.OrderID),
		QuantityUsed: entry.QuantityUsed,
		UsedBy:       entry.UsedBy,
		UsedAt:       entry.UsedAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("Can not create reagent usage history entry")
		return "", NewInternalError(MsgInternalServerError, err)
	}
	return entry.ID, nil
}

func (r *reagentRepository) GetUsageHistory(ctx context.Context, instrumentID *string, pageable Pageable) ([]ReagentUsageHistory, int, error) {
	whereClause := ""
	args := make([]interface{}, 0, 1)
	if instrumentID != nil {
		whereClause = " WHERE uh.instrument_id = $1"
		args = append(args, *instrumentID)
	}
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_reagent_usage_history uh%s;`, r.dbSchema, whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		log.Error().Err(err).Msg("Can not count reagent usage history")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	query := fmt.Sprintf(`SELECT uh.id, uh.lot_number, uh.instrument_id, uh.order_id, uh.quantity_used, uh.used_by, uh.used_at
		FROM %s.lf_reagent_usage_history uh%s`, r.dbSchema, whereClause)
	query += applyPagination(pageable, "uh", "uh.used_at DESC", "lot_number", "used_by", "used_at") + ";"
	var daos []reagentUsageHistoryDAO
	err = r.db.SelectContext(ctx, &daos, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("Can not get reagent usage history")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	entries := make([]ReagentUsageHistory, len(daos))
	for i := range daos {
		entries[i] = ReagentUsageHistory{
			ID:           daos[i].ID,
			LotNumber:    daos[i].LotNumber,
			InstrumentID: daos[i].InstrumentID,
			OrderID:      nullStringToStringPointer(daos[i].OrderID),
			QuantityUsed: daos[i].QuantityUsed,
			UsedBy:       daos[i].UsedBy,
			UsedAt:       daos[i].UsedAt,
		}
	}
	return entries, total, nil
}

func (r *reagentRepository) CreateTransaction() (db.DbConnector, error) {
	return r.db.CreateTransactionConnector()
}

func (r *reagentRepository) WithTransaction(tx db.DbConnector) ReagentRepository {
	if tx == nil {
		return r
	}
	return &reagentRepository{
		db:       tx,
		dbSchema: r.dbSchema,
	}
}

func convertDAOToReagentInventory(dao reagentInventoryDAO) ReagentInventory {
	return ReagentInventory{
		ID:               dao.ID,
		ReagentTypeID:    dao.ReagentTypeID,
		Name:             dao.Name,
		LotNumber:        dao.LotNumber,
		ExpirationDate:   dao.ExpirationDate,
		QuantityReceived: dao.QuantityReceived,
		QuantityInStock:  dao.QuantityInStock,
		Status:           dao.Status,
		ReturnReason:     nullStringToStringPointer(dao.ReturnReason),
		CreatedAt:        dao.CreatedAt,
		ModifiedAt:       nullTimeToTimePointer(dao.ModifiedAt),
	}
}

func convertInstrumentReagentToDAO(reagent InstrumentReagent) instrumentReagentDAO {
	return instrumentReagentDAO{
		ID:                reagent.ID,
		InstrumentID:      reagent.InstrumentID,
		ReagentTypeID:     reagent.ReagentTypeID,
		Name:              reagent.Name,
		LotNumber:         reagent.LotNumber,
		ExpirationDate:    reagent.ExpirationDate,
		Quantity:          reagent.Quantity,
		QuantityRemaining: reagent.QuantityRemaining,
		Status:            reagent.Status,
		InstalledBy:       reagent.InstalledBy,
		InstalledAt:       reagent.InstalledAt,
		ModifiedAt:        timePointerToNullTime(reagent.ModifiedAt),
	}
}

func convertDAOToInstrumentReagent(dao instrumentReagentDAO) InstrumentReagent {
	return InstrumentReagent{
		ID:                dao.ID,
		InstrumentID:      dao.InstrumentID,
		ReagentTypeID:     dao.ReagentTypeID,
		Name:              dao.Name,
		LotNumber:         dao.LotNumber,
		ExpirationDate:    dao.ExpirationDate,
		Quantity:          dao.Quantity,
		QuantityRemaining: dao.QuantityRemaining,
		Status:            dao.Status,
		InstalledBy:       dao.InstalledBy,
		InstalledAt:       dao.InstalledAt,
		ModifiedAt:        nullTimeToTimePointer(dao.ModifiedAt),
	}
}
