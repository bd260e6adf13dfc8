package labflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AgeGroupClassifier turns a date of birth into the coarse age-group label
// used as a matching dimension by the flagging rules.
type AgeGroupClassifier interface {
	Classify(dateOfBirth time.Time, at time.Time) AgeGroup
}

type defaultAgeGroupClassifier struct{}

func NewDefaultAgeGroupClassifier() AgeGroupClassifier {
	return &defaultAgeGroupClassifier{}
}

func (c *defaultAgeGroupClassifier) Classify(dateOfBirth time.Time, at time.Time) AgeGroup {
	years := at.Year() - dateOfBirth.Year()
	if at.YearDay() < dateOfBirth.YearDay() {
		years--
	}
	switch {
	case years < 2:
		return AgeGroupInfant
	case years < 13:
		return AgeGroupChild
	case years < 18:
		return AgeGroupAdolescent
	case years < 65:
		return AgeGroupAdult
	default:
		return AgeGroupSenior
	}
}

type FlaggingSyncItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type FlaggingSyncResult struct {
	Created int                     `json:"created"`
	Updated int                     `json:"updated"`
	Failed  int                     `json:"failed"`
	Errors  []FlaggingSyncItemError `json:"errors"`
}

type FlaggingService interface {
	CreateConfiguration(ctx context.Context, configuration FlaggingConfiguration) (string, error)
	UpdateConfiguration(ctx context.Context, configuration FlaggingConfiguration) error
	DeleteConfiguration(ctx context.Context, id string) error
	GetConfigurationByID(ctx context.Context, id string) (FlaggingConfiguration, error)
	GetConfigurations(ctx context.Context, pageable Pageable) ([]FlaggingConfiguration, int, error)
	SyncConfigurations(ctx context.Context, configurations []FlaggingConfiguration) (FlaggingSyncResult, error)
	Resolve(ctx context.Context, parameterID string, value decimal.Decimal, sex *Sex, ageGroup *AgeGroup) (FlagVerdict, error)
	ResolveForPatient(ctx context.Context, parameterID string, value decimal.Decimal, patient Patient, at time.Time) (FlagVerdict, error)
}

type flaggingService struct {
	flaggingRepository  FlaggingRepository
	parameterRepository ParameterRepository
	configCache         FlaggingConfigCache
	classifier          AgeGroupClassifier
}

func NewFlaggingService(flaggingRepository FlaggingRepository, parameterRepository ParameterRepository, configCache FlaggingConfigCache, classifier AgeGroupClassifier) FlaggingService {
	return &flaggingService{
		flaggingRepository:  flaggingRepository,
		parameterRepository: parameterRepository,
		configCache:         configCache,
		classifier:          classifier,
	}
}

func validateFlaggingConfiguration(configuration FlaggingConfiguration) error {
	fields := make(map[string]string)
	if configuration.ParameterID == "" {
		fields["parameterId"] = "required"
	}
	if !configuration.RangeMin.LessThan(configuration.RangeMax) {
		fields["rangeMin"] = MsgInvalidReferenceRange
	}
	if !IsValidFlagSeverity(configuration.FlagType) {
		fields["flagType"] = "must be one of critical, warning, info"
	}
	if len(fields) > 0 {
		return NewValidationError(MsgInvalidRequestBody, fields)
	}
	return nil
}

func (s *flaggingService) CreateConfiguration(ctx context.Context, configuration FlaggingConfiguration) (string, error) {
	if err := validateFlaggingConfiguration(configuration); err != nil {
		return "", err
	}
	if _, err := s.parameterRepository.GetParameterByID(ctx, configuration.ParameterID); err != nil {
		return "", err
	}
	configuration.CreatedAt = time.Now().UTC()
	id, err := s.flaggingRepository.CreateConfiguration(ctx, configuration)
	if err != nil {
		return "", err
	}
	s.configCache.Invalidate(ctx, configuration.ParameterID)
	return id, nil
}

func (s *flaggingService) UpdateConfiguration(ctx context.Context, configuration FlaggingConfiguration) error {
	if err := validateFlaggingConfiguration(configuration); err != nil {
		return err
	}
	existing, err := s.flaggingRepository.GetConfigurationByID(ctx, configuration.ID)
	if err != nil {
		return err
	}
	if err = s.flaggingRepository.UpdateConfiguration(ctx, configuration); err != nil {
		return err
	}
	s.configCache.Invalidate(ctx, existing.ParameterID)
	if configuration.ParameterID != existing.ParameterID {
		s.configCache.Invalidate(ctx, configuration.ParameterID)
	}
	return nil
}

func (s *flaggingService) DeleteConfiguration(ctx context.Context, id string) error {
	existing, err := s.flaggingRepository.GetConfigurationByID(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.flaggingRepository.DeleteConfiguration(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return NewNotFoundError(MsgFlaggingConfigNotFound)
	}
	s.configCache.Invalidate(ctx, existing.ParameterID)
	return nil
}

func (s *flaggingService) GetConfigurationByID(ctx context.Context, id string) (FlaggingConfiguration, error) {
	return s.flaggingRepository.GetConfigurationByID(ctx, id)
}

func (s *flaggingService) GetConfigurations(ctx context.Context, pageable Pageable) ([]FlaggingConfiguration, int, error) {
	return s.flaggingRepository.GetConfigurations(ctx, pageable)
}

// SyncConfigurations upserts each item by its (parameter, sex, age-group)
// triple. Item failures are collected, they never abort the batch.
func (s *flaggingService) SyncConfigurations(ctx context.Context, configurations []FlaggingConfiguration) (FlaggingSyncResult, error) {
	result := FlaggingSyncResult{Errors: make([]FlaggingSyncItemError, 0)}
	for i := range configurations {
		configuration := configurations[i]
		if err := validateFlaggingConfiguration(configuration); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, FlaggingSyncItemError{Index: i, Message: err.Error()})
			continue
		}
		existing, found, err := s.flaggingRepository.GetConfigurationByTriple(ctx, configuration.ParameterID, configuration.Sex, configuration.AgeGroup)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, FlaggingSyncItemError{Index: i, Message: err.Error()})
			continue
		}
		if found {
			configuration.ID = existing.ID
			configuration.CreatedBy = existing.CreatedBy
			if err = s.flaggingRepository.UpdateConfiguration(ctx, configuration); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, FlaggingSyncItemError{Index: i, Message: err.Error()})
				continue
			}
			result.Updated++
		} else {
			configuration.CreatedAt = time.Now().UTC()
			if _, err = s.flaggingRepository.CreateConfiguration(ctx, configuration); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, FlaggingSyncItemError{Index: i, Message: err.Error()})
				continue
			}
			result.Created++
		}
		s.configCache.Invalidate(ctx, configuration.ParameterID)
	}
	return result, nil
}

// Resolve picks the most specific active rule for the parameter and compares
// the value against its range. A rule constraining both sex and age group
// outranks one constraining a single dimension, which outranks the full
// wildcard; among equally specific candidates the one created last wins.
// Without any matching active rule the value is never flagged.
func (s *flaggingService) Resolve(ctx context.Context, parameterID string, value decimal.Decimal, sex *Sex, ageGroup *AgeGroup) (FlagVerdict, error) {
	candidates, err := s.activeConfigurations(ctx, parameterID)
	if err != nil {
		return FlagVerdict{}, err
	}

	var winner *FlaggingConfiguration
	winnerSpecificity := -1
	for i := range candidates {
		candidate := candidates[i]
		if candidate.Sex != nil && (sex == nil || *candidate.Sex != *sex) {
			continue
		}
		if candidate.AgeGroup != nil && (ageGroup == nil || *candidate.AgeGroup != *ageGroup) {
			continue
		}
		if candidate.Specificity() >= winnerSpecificity {
			winner = &candidates[i]
			winnerSpecificity = candidate.Specificity()
		}
	}

	if winner == nil {
		return FlagVerdict{}, nil
	}

	verdict := FlagVerdict{
		ReferenceRange: fmt.Sprintf("%s - %s", winner.RangeMin.String(), winner.RangeMax.String()),
	}
	if value.LessThan(winner.RangeMin) || value.GreaterThan(winner.RangeMax) {
		severity := winner.FlagType
		verdict.Flagged = true
		verdict.Severity = &severity
	}
	return verdict, nil
}

func (s *flaggingService) ResolveForPatient(ctx context.Context, parameterID string, value decimal.Decimal, patient Patient, at time.Time) (FlagVerdict, error) {
	var ageGroup *AgeGroup
	if patient.DateOfBirth != nil {
		group := s.classifier.Classify(*patient.DateOfBirth, at)
		ageGroup = &group
	}
	return s.Resolve(ctx, parameterID, value, patient.Sex, ageGroup)
}

func (s *flaggingService) activeConfigurations(ctx context.Context, parameterID string) ([]FlaggingConfiguration, error) {
	if cached, ok := s.configCache.GetActiveConfigurations(ctx, parameterID); ok {
		return cached, nil
	}
	configurations, err := s.flaggingRepository.GetActiveConfigurationsByParameterID(ctx, parameterID)
	if err != nil {
		log.Error().Err(err).Str("parameterID", parameterID).Msg("Can not load active flagging configurations")
		return nil, err
	}
	s.configCache.SetActiveConfigurations(ctx, parameterID, configurations)
	return configurations, nil
}
