package labflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openlims/labflow/db"
)

type instrumentDAO struct {
	ID         string           `db:"id"`
	Name       string           `db:"name"`
	Status     InstrumentStatus `db:"status"`
	CreatedAt  time.Time        `db:"created_at"`
	ModifiedAt sql.NullTime     `db:"modified_at"`
}

type InstrumentRepository interface {
	GetInstrumentByID(ctx context.Context, id string) (Instrument, error)
	GetInstruments(ctx context.Context) ([]Instrument, error)
	UpdateInstrumentStatus(ctx context.Context, id string, status InstrumentStatus) error
}

type instrumentRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewInstrumentRepository(db db.DbConnector, dbSchema string) InstrumentRepository {
	return &instrumentRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *instrumentRepository) GetInstrumentByID(ctx context.Context, id string) (Instrument, error) {
	query := fmt.Sprintf(`SELECT id, "name", status, created_at, modified_at
		FROM %s.lf_instruments WHERE id = $1;`, r.dbSchema)
	var dao instrumentDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Instrument{}, NewNotFoundError(MsgInstrumentNotFound)
		}
		log.Error().Err(err).Msg("Can not get instrument")
		return Instrument{}, NewInternalError(MsgInternalServerError, err)
	}
	return convertDAOToInstrument(dao), nil
}

func (r *instrumentRepository) GetInstruments(ctx context.Context) ([]Instrument, error) {
	query := fmt.Sprintf(`SELECT id, "name", status, created_at, modified_at
		FROM %s.lf_instruments ORDER BY "name";`, r.dbSchema)
	var daos []instrumentDAO
	err := r.db.SelectContext(ctx, &daos, query)
	if err != nil {
		log.Error().Err(err).Msg("Can not get instruments")
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	instruments := make([]Instrument, len(daos))
	for i := range daos {
		instruments[i] = convertDAOToInstrument(daos[i])
	}
	return instruments, nil
}

func (r *instrumentRepository) UpdateInstrumentStatus(ctx context.Context, id string, status InstrumentStatus) error {
	query := fmt.Sprintf(`UPDATE %s.lf_instruments SET status = $1, modified_at = timezone('utc', now())
		WHERE id = $2;`, r.dbSchema)
	_, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not update instrument status")
		return NewInternalError(MsgInternalServerError, err)
	}
	return nil
}

func convertDAOToInstrument(dao instrumentDAO) Instrument {
	return Instrument{
		ID:         dao.ID,
		Name:       dao.Name,
		Status:     dao.Status,
		CreatedAt:  dao.CreatedAt,
		ModifiedAt: nullTimeToTimePointer(dao.ModifiedAt),
	}
}
