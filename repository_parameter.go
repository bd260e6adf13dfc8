package labflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openlims/labflow/db"
)

type parameterDAO struct {
	ID     string `db:"id"`
	Code   string `db:"code"`
	Name   string `db:"name"`
	Unit   string `db:"unit"`
	Active bool   `db:"active"`
}

// ParameterRepository - read-only collaborator over the analyte master data
type ParameterRepository interface {
	GetParameterByID(ctx context.Context, id string) (Parameter, error)
	GetParameterByCode(ctx context.Context, code string) (Parameter, error)
	GetActiveParameters(ctx context.Context) ([]Parameter, error)
}

type parameterRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewParameterRepository(db db.DbConnector, dbSchema string) ParameterRepository {
	return &parameterRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *parameterRepository) GetParameterByID(ctx context.Context, id string) (Parameter, error) {
	query := fmt.Sprintf(`SELECT id, code, "name", unit, active FROM %s.lf_parameters WHERE id = $1;`, r.dbSchema)
	return r.getOne(ctx, query, id)
}

func (r *parameterRepository) GetParameterByCode(ctx context.Context, code string) (Parameter, error) {
	query := fmt.Sprintf(`SELECT id, code, "name", unit, active FROM %s.lf_parameters WHERE code = $1;`, r.dbSchema)
	return r.getOne(ctx, query, code)
}

func (r *parameterRepository) GetActiveParameters(ctx context.Context) ([]Parameter, error) {
	query := fmt.Sprintf(`SELECT id, code, "name", unit, active FROM %s.lf_parameters WHERE active ORDER BY code;`, r.dbSchema)
	var daos []parameterDAO
	err := r.db.SelectContext(ctx, &daos, query)
	if err != nil {
		log.Error().Err(err).Msg("Can not get active parameters")
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	parameters := make([]Parameter, len(daos))
	for i := range daos {
		parameters[i] = Parameter(daos[i])
	}
	return parameters, nil
}

func (r *parameterRepository) getOne(ctx context.Context, query string, arg interface{}) (Parameter, error) {
	var dao parameterDAO
	err := r.db.GetContext(ctx, &dao, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Parameter{}, NewNotFoundError(MsgParameterNotFound)
		}
		log.Error().Err(err).Msg("Can not get parameter")
		return Parameter{}, NewInternalError(MsgInternalServerError, err)
	}
	return Parameter(dao), nil
}
