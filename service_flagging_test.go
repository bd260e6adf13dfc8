package labflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sexPtr(sex Sex) *Sex {
	return &sex
}

func ageGroupPtr(group AgeGroup) *AgeGroup {
	return &group
}

func wildcardConfiguration(id, parameterID, rangeMin, rangeMax string, flagType FlagSeverity) FlaggingConfiguration {
	return FlaggingConfiguration{
		ID:          id,
		ParameterID: parameterID,
		RangeMin:    decimal.RequireFromString(rangeMin),
		RangeMax:    decimal.RequireFromString(rangeMax),
		FlagType:    flagType,
		Active:      true,
	}
}

func TestResolveFlagsValueOutsideRange(t *testing.T) {
	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{
				wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.5", "11.0", FlagSeverityWarning),
			}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("3.0"), nil, nil)

	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	require.NotNil(t, verdict.Severity)
	assert.Equal(t, FlagSeverityWarning, *verdict.Severity)
	assert.Equal(t, "4.5 - 11", verdict.ReferenceRange)
}

func TestResolveKeepsReferenceRangeForValueWithinRange(t *testing.T) {
	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{
				wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.5", "11.0", FlagSeverityWarning),
			}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("7.2"), nil, nil)

	require.NoError(t, err)
	assert.False(t, verdict.Flagged)
	assert.Nil(t, verdict.Severity)
	assert.Equal(t, "4.5 - 11", verdict.ReferenceRange)
}

func TestResolveDoesNotFlagRangeBoundaries(t *testing.T) {
	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{
				wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.5", "11.0", FlagSeverityCritical),
			}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	for _, value := range []string{"4.5", "11.0"} {
		verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString(value), nil, nil)
		require.NoError(t, err)
		assert.False(t, verdict.Flagged, "value %s lies on the range boundary", value)
	}
}

func TestResolveWithoutMatchingRuleNeverFlags(t *testing.T) {
	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("99999"), nil, nil)

	require.NoError(t, err)
	assert.False(t, verdict.Flagged)
	assert.Nil(t, verdict.Severity)
	assert.Empty(t, verdict.ReferenceRange)
}

func TestResolvePrefersMostSpecificRule(t *testing.T) {
	wildcard := wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.0", "10.0", FlagSeverityWarning)
	maleAdult := wildcardConfiguration("6897e1cd15f60b7dfc01a345", "6897e1cd15f60b7dfc01a3b0", "5.0", "9.0", FlagSeverityCritical)
	maleAdult.Sex = sexPtr(SexMale)
	maleAdult.AgeGroup = ageGroupPtr(AgeGroupAdult)

	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{maleAdult, wildcard}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	// 4.2 sits inside the wildcard range but below the male/adult range
	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("4.2"), sexPtr(SexMale), ageGroupPtr(AgeGroupAdult))
	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	require.NotNil(t, verdict.Severity)
	assert.Equal(t, FlagSeverityCritical, *verdict.Severity)
	assert.Equal(t, "5 - 9", verdict.ReferenceRange)

	// a female patient never matches the male/adult rule
	verdict, err = flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("4.2"), sexPtr(SexFemale), ageGroupPtr(AgeGroupAdult))
	require.NoError(t, err)
	assert.False(t, verdict.Flagged)
	assert.Equal(t, "4 - 10", verdict.ReferenceRange)
}

func TestResolveSkipsConstrainedRulesForUnknownDimensions(t *testing.T) {
	maleOnly := wildcardConfiguration("6897e1cd15f60b7dfc01a345", "6897e1cd15f60b7dfc01a3b0", "5.0", "9.0", FlagSeverityCritical)
	maleOnly.Sex = sexPtr(SexMale)

	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{maleOnly}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("1.0"), nil, nil)

	require.NoError(t, err)
	assert.False(t, verdict.Flagged)
}

func TestResolveEqualSpecificityLastCreatedWins(t *testing.T) {
	older := wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.0", "10.0", FlagSeverityWarning)
	newer := wildcardConfiguration("6897e1cd15f60b7dfc01a345", "6897e1cd15f60b7dfc01a3b0", "6.0", "8.0", FlagSeverityInfo)

	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			// repository orders candidates by creation time, oldest first
			return []FlaggingConfiguration{older, newer}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("5.0"), nil, nil)

	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	require.NotNil(t, verdict.Severity)
	assert.Equal(t, FlagSeverityInfo, *verdict.Severity)
	assert.Equal(t, "6 - 8", verdict.ReferenceRange)
}

func TestResolveUsesCachedConfigurations(t *testing.T) {
	repositoryQueried := false
	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			repositoryQueried = true
			return nil, nil
		},
	}
	cacheMock := &flaggingConfigCacheMock{
		getActiveConfigurationsFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, bool) {
			return []FlaggingConfiguration{
				wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.5", "11.0", FlagSeverityWarning),
			}, true
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, cacheMock, NewDefaultAgeGroupClassifier())

	verdict, err := flaggingService.Resolve(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("12.0"), nil, nil)

	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	assert.False(t, repositoryQueried)
}

func TestResolveForPatientClassifiesDateOfBirth(t *testing.T) {
	adultRule := wildcardConfiguration("6897e1cd15f60b7dfc01a345", "6897e1cd15f60b7dfc01a3b0", "5.0", "9.0", FlagSeverityCritical)
	adultRule.AgeGroup = ageGroupPtr(AgeGroupAdult)

	flaggingRepositoryMock := &flaggingRepositoryMock{
		getActiveConfigurationsByParameterFunc: func(_ context.Context, _ string) ([]FlaggingConfiguration, error) {
			return []FlaggingConfiguration{adultRule}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, nil, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	dateOfBirth := time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC)
	patient := Patient{ID: "6897e1cd15f60b7dfc01a3f1", Sex: sexPtr(SexFemale), DateOfBirth: &dateOfBirth}
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	verdict, err := flaggingService.ResolveForPatient(context.Background(), "6897e1cd15f60b7dfc01a3b0", decimal.RequireFromString("11.5"), patient, at)

	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	require.NotNil(t, verdict.Severity)
	assert.Equal(t, FlagSeverityCritical, *verdict.Severity)
}

func TestCreateConfigurationRejectsInvalidRange(t *testing.T) {
	flaggingService := NewFlaggingService(&flaggingRepositoryMock{}, &parameterRepositoryMock{}, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	configuration := wildcardConfiguration("", "6897e1cd15f60b7dfc01a3b0", "11.0", "4.5", FlagSeverityWarning)
	_, err := flaggingService.CreateConfiguration(context.Background(), configuration)

	require.Error(t, err)
	assert.Equal(t, ErrorCategoryValidation, CategoryOf(err))
}

func TestCreateConfigurationStampsCreationTime(t *testing.T) {
	var storedConfiguration FlaggingConfiguration
	flaggingRepositoryMock := &flaggingRepositoryMock{
		createConfigurationFunc: func(_ context.Context, configuration FlaggingConfiguration) (string, error) {
			storedConfiguration = configuration
			return "6897e1cd15f60b7dfc01a344", nil
		},
	}
	parameterRepositoryMock := &parameterRepositoryMock{
		getParameterByIDFunc: func(_ context.Context, id string) (Parameter, error) {
			return Parameter{ID: id, Code: "WBC", Active: true}, nil
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, parameterRepositoryMock, NewNoopFlaggingConfigCache(), NewDefaultAgeGroupClassifier())

	configuration := wildcardConfiguration("", "6897e1cd15f60b7dfc01a3b0", "4.5", "11.0", FlagSeverityWarning)
	_, err := flaggingService.CreateConfiguration(context.Background(), configuration)

	// the creation time decides the tie-break between equally specific rules,
	// so the insert must never rely on a zero value
	require.NoError(t, err)
	assert.False(t, storedConfiguration.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), storedConfiguration.CreatedAt, time.Minute)
}

func TestSyncConfigurationsUpsertsByTriple(t *testing.T) {
	existing := wildcardConfiguration("6897e1cd15f60b7dfc01a344", "6897e1cd15f60b7dfc01a3b0", "4.0", "10.0", FlagSeverityWarning)
	existing.CreatedBy = "import-job"

	var createdConfigurations []FlaggingConfiguration
	var updatedConfigurations []FlaggingConfiguration
	invalidatedParameters := make([]string, 0)

	flaggingRepositoryMock := &flaggingRepositoryMock{
		getConfigurationByTripleFunc: func(_ context.Context, parameterID string, sex *Sex, ageGroup *AgeGroup) (FlaggingConfiguration, bool, error) {
			if parameterID == existing.ParameterID && sex == nil && ageGroup == nil {
				return existing, true, nil
			}
			return FlaggingConfiguration{}, false, nil
		},
		createConfigurationFunc: func(_ context.Context, configuration FlaggingConfiguration) (string, error) {
			createdConfigurations = append(createdConfigurations, configuration)
			return "6897e1cd15f60b7dfc01a399", nil
		},
		updateConfigurationFunc: func(_ context.Context, configuration FlaggingConfiguration) error {
			updatedConfigurations = append(updatedConfigurations, configuration)
			return nil
		},
	}
	cacheMock := &flaggingConfigCacheMock{
		invalidateFunc: func(_ context.Context, parameterID string) {
			invalidatedParameters = append(invalidatedParameters, parameterID)
		},
	}
	flaggingService := NewFlaggingService(flaggingRepositoryMock, &parameterRepositoryMock{}, cacheMock, NewDefaultAgeGroupClassifier())

	newRule := wildcardConfiguration("", "6897e1cd15f60b7dfc01a3b1", "1.0", "2.0", FlagSeverityInfo)
	newRule.Sex = sexPtr(SexFemale)
	replacement := wildcardConfiguration("", "6897e1cd15f60b7dfc01a3b0", "4.5", "11.0", FlagSeverityCritical)
	broken := wildcardConfiguration("", "6897e1cd15f60b7dfc01a3b2", "9.0", "3.0", FlagSeverityWarning)

	result, err := flaggingService.SyncConfigurations(context.Background(), []FlaggingConfiguration{newRule, replacement, broken})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Index)

	require.Len(t, createdConfigurations, 1)
	assert.Equal(t, "6897e1cd15f60b7dfc01a3b1", createdConfigurations[0].ParameterID)
	assert.False(t, createdConfigurations[0].CreatedAt.IsZero())

	require.Len(t, updatedConfigurations, 1)
	assert.Equal(t, existing.ID, updatedConfigurations[0].ID)
	assert.Equal(t, existing.CreatedBy, updatedConfigurations[0].CreatedBy)
	assert.True(t, updatedConfigurations[0].RangeMax.Equal(decimal.RequireFromString("11.0")))

	assert.ElementsMatch(t, []string{"6897e1cd15f60b7dfc01a3b0", "6897e1cd15f60b7dfc01a3b1"}, invalidatedParameters)
}

func TestClassifyAgeGroups(t *testing.T) {
	classifier := NewDefaultAgeGroupClassifier()
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		yearsOld int
		expected AgeGroup
	}{
		{1, AgeGroupInfant},
		{2, AgeGroupChild},
		{12, AgeGroupChild},
		{13, AgeGroupAdolescent},
		{17, AgeGroupAdolescent},
		{18, AgeGroupAdult},
		{64, AgeGroupAdult},
		{65, AgeGroupSenior},
		{90, AgeGroupSenior},
	}
	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("%d years", testCase.yearsOld), func(t *testing.T) {
			dateOfBirth := time.Date(at.Year()-testCase.yearsOld, 1, 15, 0, 0, 0, 0, time.UTC)
			assert.Equal(t, testCase.expected, classifier.Classify(dateOfBirth, at))
		})
	}
}

func TestClassifyAgeGroupBeforeBirthday(t *testing.T) {
	classifier := NewDefaultAgeGroupClassifier()
	dateOfBirth := time.Date(2008, 2, 10, 0, 0, 0, 0, time.UTC)

	// 17 the day before the 18th birthday, 18 on the day itself
	assert.Equal(t, AgeGroupAdolescent, classifier.Classify(dateOfBirth, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, AgeGroupAdult, classifier.Classify(dateOfBirth, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)))
}
