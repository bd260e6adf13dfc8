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

type flaggingConfigurationDAO struct {
	ID          string          `db:"id"`
	ParameterID string          `db:"parameter_id"`
	Sex         sql.NullString  `db:"sex"`
	AgeGroup    sql.NullString  `db:"age_group"`
	RangeMin    decimal.Decimal `db:"range_min"`
	RangeMax    decimal.Decimal `db:"range_max"`
	FlagType    FlagSeverity    `db:"flag_type"`
	Active      bool            `db:"active"`
	CreatedBy   string          `db:"created_by"`
	CreatedAt   time.Time       `db:"created_at"`
	ModifiedAt  sql.NullTime    `db:"modified_at"`
}

type FlaggingRepository interface {
	CreateConfiguration(ctx context.Context, configuration FlaggingConfiguration) (string, error)
	UpdateConfiguration(ctx context.Context, configuration FlaggingConfiguration) error
	DeleteConfiguration(ctx context.Context, id string) (bool, error)
	GetConfigurationByID(ctx context.Context, id string) (FlaggingConfiguration, error)
	GetConfigurations(ctx context.Context, pageable Pageable) ([]FlaggingConfiguration, int, error)
	// GetActiveConfigurationsByParameterID returns candidates in creation
	// order; on equal specificity the resolver keeps the last one it sees.
	GetActiveConfigurationsByParameterID(ctx context.Context, parameterID string) ([]FlaggingConfiguration, error)
	GetConfigurationByTriple(ctx context.Context, parameterID string, sex *Sex, ageGroup *AgeGroup) (FlaggingConfiguration, bool, error)
}

type flaggingRepository struct {
	db       db.DbConnector
	dbSchema string
}

func NewFlaggingRepository(db db.DbConnector, dbSchema string) FlaggingRepository {
	return &flaggingRepository{
		db:       db,
		dbSchema: dbSchema,
	}
}

const flaggingConfigurationColumns = `id, parameter_id, sex, age_group, range_min, range_max, flag_type, active, created_by, created_at, modified_at`

func (r *flaggingRepository) CreateConfiguration(ctx context.Context, configuration FlaggingConfiguration) (string, error) {
	if configuration.ID == "" {
		configuration.ID = NewEntityID()
	}
	query := fmt.Sprintf(`INSERT INTO %s.lf_flagging_configurations(id, parameter_id, sex, age_group, range_min, range_max, flag_type, active, created_by, created_at)
		VALUES(:id, :parameter_id, :sex, :age_group, :range_min, :range_max, :flag_type, :active, :created_by, :created_at);`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, convertFlaggingConfigurationToDAO(configuration))
	if err != nil {
		log.Error().Err(err).Msg("Can not create flagging configuration")
		return "", NewInternalError(MsgInternalServerError, err)
	}
	return configuration.ID, nil
}

func (r *flaggingRepository) UpdateConfiguration(ctx context.Context, configuration FlaggingConfiguration) error {
	query := fmt.Sprintf(`UPDATE %s.lf_flagging_configurations
		SET sex = :sex, age_group = :age_group, range_min = :range_min, range_max = :range_max,
			flag_type = :flag_type, active = :active, modified_at = timezone('utc', now())
		WHERE id = :id;`, r.dbSchema)
	_, err := r.db.NamedExecContext(ctx, query, convertFlaggingConfigurationToDAO(configuration))
	if err != nil {
		log.Error().Err(err).Msg("Can not update flagging configuration")
		return NewInternalError(MsgInternalServerError, err)
	}
	return nil
}

func (r *flaggingRepository) DeleteConfiguration(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s.lf_flagging_configurations WHERE id = $1;`, r.dbSchema)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error().Err(err).Msg("Can not delete flagging configuration")
		return false, NewInternalError(MsgInternalServerError, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *flaggingRepository) GetConfigurationByID(ctx context.Context, id string) (FlaggingConfiguration, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s.lf_flagging_configurations WHERE id = $1;`, flaggingConfigurationColumns, r.dbSchema)
	var dao flaggingConfigurationDAO
	err := r.db.GetContext(ctx, &dao, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FlaggingConfiguration{}, NewNotFoundError(MsgFlaggingConfigNotFound)
		}
		log.Error().Err(err).Msg("Can not get flagging configuration")
		return FlaggingConfiguration{}, NewInternalError(MsgInternalServerError, err)
	}
	return convertDAOToFlaggingConfiguration(dao), nil
}

func (r *flaggingRepository) GetConfigurations(ctx context.Context, pageable Pageable) ([]FlaggingConfiguration, int, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.lf_flagging_configurations;`, r.dbSchema)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery)
	if err != nil {
		log.Error().Err(err).Msg("Can not count flagging configurations")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s.lf_flagging_configurations fc`, flaggingConfigurationColumns, r.dbSchema)
	query += applyPagination(pageable, "fc", "fc.created_at DESC", "parameter_id", "sex", "age_group", "flag_type", "created_at") + ";"
	var daos []flaggingConfigurationDAO
	err = r.db.SelectContext(ctx, &daos, query)
	if err != nil {
		log.Error().Err(err).Msg("Can not get flagging configurations")
		return nil, 0, NewInternalError(MsgInternalServerError, err)
	}
	configurations := make([]FlaggingConfiguration, len(daos))
	for i := range daos {
		configurations[i] = convertDAOToFlaggingConfiguration(daos[i])
	}
	return configurations, total, nil
}

func (r *flaggingRepository) GetActiveConfigurationsByParameterID(ctx context.Context, parameterID string) ([]FlaggingConfiguration, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s.lf_flagging_configurations
		WHERE parameter_id = $1 AND active ORDER BY created_at, id;`, flaggingConfigurationColumns, r.dbSchema)
	var daos []flaggingConfigurationDAO
	err := r.db.SelectContext(ctx, &daos, query, parameterID)
	if err != nil {
		log.Error().Err(err).Msg("Can not get active flagging configurations")
		return nil, NewInternalError(MsgInternalServerError, err)
	}
	configurations := make([]FlaggingConfiguration, len(daos))
	for i := range daos {
		configurations[i] = convertDAOToFlaggingConfiguration(daos[i])
	}
	return configurations, nil
}

func (r *flaggingRepository) GetConfigurationByTriple(ctx context.Context, parameterID string, sex *Sex, ageGroup *AgeGroup) (FlaggingConfiguration, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s.lf_flagging_configurations
		WHERE parameter_id = $1 AND sex IS NOT DISTINCT FROM $2 AND age_group IS NOT DISTINCT FROM $3
		ORDER BY created_at DESC LIMIT 1;`, flaggingConfigurationColumns, r.dbSchema)
	var sexValue, ageGroupValue sql.NullString
	if sex != nil {
		sexValue = sql.NullString{String: string(*sex), Valid: true}
	}
	if ageGroup != nil {
		ageGroupValue = sql.NullString{String: string(*ageGroup), Valid: true}
	}
	var dao flaggingConfigurationDAO
	err := r.db.GetContext(ctx, &dao, query, parameterID, sexValue, ageGroupValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FlaggingConfiguration{}, false, nil
		}
		log.Error().Err(err).Msg("Can not get flagging configuration by triple")
		return FlaggingConfiguration{}, false, NewInternalError(MsgInternalServerError, err)
	}
	return convertDAOToFlaggingConfiguration(dao), true, nil
}

func convertFlaggingConfigurationToDAO(configuration FlaggingConfiguration) flaggingConfigurationDAO {
	dao := flaggingConfigurationDAO{
		ID:          configuration.ID,
		ParameterID: configuration.ParameterID,
		RangeMin:    configuration.RangeMin,
		RangeMax:    configuration.RangeMax,
		FlagType:    configuration.FlagType,
		Active:      configuration.Active,
		CreatedBy:   configuration.CreatedBy,
		CreatedAt:   configuration.CreatedAt,
		ModifiedAt:  timePointerToNullTime(configuration.ModifiedAt),
	}
	if configuration.Sex != nil {
		dao.Sex = sql.NullString{String: string(*configuration.Sex), Valid: true}
	}
	if configuration.AgeGroup != nil {
		dao.AgeGroup = sql.NullString{String: string(*configuration.AgeGroup), Valid: true}
	}
	return dao
}

func convertDAOToFlaggingConfiguration(dao flaggingConfigurationDAO) FlaggingConfiguration {
	configuration := FlaggingConfiguration{
		ID:          dao.ID,
		ParameterID: dao.ParameterID,
		RangeMin:    dao.RangeMin,
		RangeMax:    dao.RangeMax,
		FlagType:    dao.FlagType,
		Active:      dao.Active,
		CreatedBy:   dao.CreatedBy,
		CreatedAt:   dao.CreatedAt,
		ModifiedAt:  nullTimeToTimePointer(dao.ModifiedAt),
	}
	if dao.Sex.Valid {
		sex := Sex(dao.Sex.String)
		configuration.Sex = &sex
	}
	if dao.AgeGroup.Valid {
		ageGroup := AgeGroup(dao.AgeGroup.String)
		configuration.AgeGroup = &ageGroup
	}
	return configuration
}
