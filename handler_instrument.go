package labflow

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openlims/labflow/middleware"
)

type instrumentTO struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     InstrumentStatus `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	ModifiedAt *time.Time       `json:"modifiedAt,omitempty"`
}

type updateInstrumentStatusTO struct {
	Status InstrumentStatus `json:"status"`
}

func (api *api) GetInstruments(c *gin.Context) {
	instruments, err := api.instrumentService.GetInstruments(c)
	if err != nil {
		api.respondError(c, err)
		return
	}

	tos := make([]instrumentTO, len(instruments))
	for i := range instruments {
		tos[i] = convertInstrumentToTO(instruments[i])
	}
	api.respond(c, http.StatusOK, "Instruments", tos)
}

func (api *api) GetInstrumentByID(c *gin.Context) {
	id, ok := api.entityID(c, "instrumentId")
	if !ok {
		return
	}

	instrument, err := api.instrumentService.GetInstrumentByID(c, id)
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Instrument", convertInstrumentToTO(instrument))
}

func (api *api) UpdateInstrumentStatus(c *gin.Context) {
	id, ok := api.entityID(c, "instrumentId")
	if !ok {
		return
	}
	var to updateInstrumentStatusTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	switch to.Status {
	case InstrumentReady, InstrumentOffline, InstrumentMaintenance:
	default:
		api.respondError(c, NewValidationError(MsgInvalidRequestBody, map[string]string{"status": "must be one of READY, OFFLINE, MAINTENANCE"}))
		return
	}

	if err := api.instrumentService.UpdateInstrumentStatus(c, id, to.Status, middleware.ActorFromContext(c)); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Instrument status updated", nil)
}

func convertInstrumentToTO(instrument Instrument) instrumentTO {
	return instrumentTO{
		ID:         instrument.ID,
		Name:       instrument.Name,
		Status:     instrument.Status,
		CreatedAt:  instrument.CreatedAt,
		ModifiedAt: instrument.ModifiedAt,
	}
}
