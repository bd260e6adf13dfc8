package labflow

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/openlims/labflow/middleware"
)

type flaggingConfigurationTO struct {
	ID          string          `json:"id"`
	ParameterID string          `json:"parameterId"`
	Sex         *Sex            `json:"sex,omitempty"`
	AgeGroup    *AgeGroup       `json:"ageGroup,omitempty"`
	RangeMin    decimal.Decimal `json:"rangeMin"`
	RangeMax    decimal.Decimal `json:"rangeMax"`
	FlagType    FlagSeverity    `json:"flagType"`
	Active      bool            `json:"active"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	ModifiedAt  *time.Time      `json:"modifiedAt,omitempty"`
}

type flaggingConfigurationInputTO struct {
	ParameterID string          `json:"parameterId"`
	Sex         *Sex            `json:"sex"`
	AgeGroup    *AgeGroup       `json:"ageGroup"`
	RangeMin    decimal.Decimal `json:"rangeMin"`
	RangeMax    decimal.Decimal `json:"rangeMax"`
	FlagType    FlagSeverity    `json:"flagType"`
	Active      *bool           `json:"active"`
}

func (api *api) CreateFlaggingConfiguration(c *gin.Context) {
	var to flaggingConfigurationInputTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	configuration := convertInputTOToFlaggingConfiguration(to, middleware.ActorFromContext(c))
	id, err := api.flaggingService.CreateConfiguration(c, configuration)
	if err != nil {
		api.respondError(c, err)
		return
	}

	created, err := api.flaggingService.GetConfigurationByID(c, id)
	if err != nil {
		api.respondError(c, err)
		return
	}
	api.respond(c, http.StatusCreated, "Flagging configuration created", convertFlaggingConfigurationToTO(created))
}

func (api *api) GetFlaggingConfigurations(c *gin.Context) {
	pageable, err := bindPageable(c)
	if err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	configurations, total, err := api.flaggingService.GetConfigurations(c, pageable)
	if err != nil {
		api.respondError(c, err)
		return
	}

	tos := make([]flaggingConfigurationTO, len(configurations))
	for i := range configurations {
		tos[i] = convertFlaggingConfigurationToTO(configurations[i])
	}
	api.respond(c, http.StatusOK, "Flagging configurations", NewPage(pageable, total, tos))
}

func (api *api) GetFlaggingConfigurationByID(c *gin.Context) {
	id, ok := api.entityID(c, "configurationId")
	if !ok {
		return
	}

	configuration, err := api.flaggingService.GetConfigurationByID(c, id)
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Flagging configuration", convertFlaggingConfigurationToTO(configuration))
}

func (api *api) UpdateFlaggingConfiguration(c *gin.Context) {
	id, ok := api.entityID(c, "configurationId")
	if !ok {
		return
	}
	var to flaggingConfigurationInputTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	configuration := convertInputTOToFlaggingConfiguration(to, middleware.ActorFromContext(c))
	configuration.ID = id
	if err := api.flaggingService.UpdateConfiguration(c, configuration); err != nil {
		api.respondError(c, err)
		return
	}

	updated, err := api.flaggingService.GetConfigurationByID(c, id)
	if err != nil {
		api.respondError(c, err)
		return
	}
	api.respond(c, http.StatusOK, "Flagging configuration updated", convertFlaggingConfigurationToTO(updated))
}

func (api *api) DeleteFlaggingConfiguration(c *gin.Context) {
	id, ok := api.entityID(c, "configurationId")
	if !ok {
		return
	}

	if err := api.flaggingService.DeleteConfiguration(c, id); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Flagging configuration deleted", nil)
}

func (api *api) SyncFlaggingConfigurations(c *gin.Context) {
	var tos []flaggingConfigurationInputTO
	if err := c.ShouldBindJSON(&tos); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	actor := middleware.ActorFromContext(c)
	configurations := make([]FlaggingConfiguration, len(tos))
	for i := range tos {
		configurations[i] = convertInputTOToFlaggingConfiguration(tos[i], actor)
	}

	result, err := api.flaggingService.SyncConfigurations(c, configurations)
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Flagging configurations synced", result)
}

func convertInputTOToFlaggingConfiguration(to flaggingConfigurationInputTO, actor string) FlaggingConfiguration {
	active := true
	if to.Active != nil {
		active = *to.Active
	}
	return FlaggingConfiguration{
		ParameterID: to.ParameterID,
		Sex:         to.Sex,
		AgeGroup:    to.AgeGroup,
		RangeMin:    to.RangeMin,
		RangeMax:    to.RangeMax,
		FlagType:    to.FlagType,
		Active:      active,
		CreatedBy:   actor,
	}
}

func convertFlaggingConfigurationToTO(configuration FlaggingConfiguration) flaggingConfigurationTO {
	return flaggingConfigurationTO{
		ID:          configuration.ID,
		ParameterID: configuration.ParameterID,
		Sex:         configuration.Sex,
		AgeGroup:    configuration.AgeGroup,
		RangeMin:    configuration.RangeMin,
		RangeMax:    configuration.RangeMax,
		FlagType:    configuration.FlagType,
		Active:      configuration.Active,
		CreatedBy:   configuration.CreatedBy,
		CreatedAt:   configuration.CreatedAt,
		ModifiedAt:  configuration.ModifiedAt,
	}
}
