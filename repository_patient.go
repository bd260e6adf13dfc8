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

type patientDAO struct {
	ID          string         `db:"id"`
	FirstName   string         `db:"first_name"`
	LastName    string         `db:"last_name"`
	Sex         sql.NullString `db:"sex"`
	DateOfBirth sql.NullTime   `db:"date_of_birth"`
	CreatedAt   time.Time      `db:"created_at"`
}

// PatientRepository - read-only collaborator, the patient CRUD surface is
// maintained elsewhere
type PatientRepository interface {
	GetPatientByID(ctx context.Context, id string) (Patient, error)
}

type patientRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewPatientRepository(db db.DbConnector, dbSchema string) PatientRepository {
	return &patientRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

func (r *patientRepository) GetPatientByID(ctx context.Context, id string) (Patient, error) {
	query := fmt.Sprintf(`SELECT id, first_name, last_name, sex, date_of_birth, created_at
		FROM %s.lf_patients WHERE id = $1;`, r.dbSchema)
	var dao patientDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Patient{}, NewNotFoundError(MsgPatientNotFound)
		}
		log.Error().Err(err).Msg("Can not get patient")
		return Patient{}, NewInternalError(MsgInternalServerError, err)
	}
	patient := Patient{
		ID:          dao.ID,
		FirstName:   dao.FirstName,
		LastName:    dao.LastName,
		DateOfBirth: nullTimeToTimePointer(dao.DateOfBirth),
		CreatedAt:   dao.CreatedAt,
	}
	if dao.Sex.Valid {
		sex := Sex(dao.Sex.String)
		patient.Sex = &sex
	}
	return patient, nil
}
