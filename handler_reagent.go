package labflow

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/openlims/labflow/middleware"
)

type reagentInventoryTO struct {
	ID               string          `json:"id"`
	ReagentTypeID    string          `json:"reagentTypeId"`
	Name             string          `json:"name"`
	LotNumber        string          `json:"lotNumber"`
	ExpirationDate   time.Time       `json:"expirationDate"`
	QuantityReceived decimal.Decimal `json:"quantityReceived"`
	QuantityInStock  decimal.Decimal `json:"quantityInStock"`
	Status           InventoryStatus `json:"status"`
	ReturnReason     *string         `json:"returnReason,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	ModifiedAt       *time.Time      `json:"modifiedAt,omitempty"`
}

type instrumentReagentTO struct {
	ID                string                  `json:"id"`
	InstrumentID      string                  `json:"instrumentId"`
	ReagentTypeID     string                  `json:"reagentTypeId"`
	Name              string                  `json:"name"`
	LotNumber         string                  `json:"lotNumber"`
	ExpirationDate    time.Time               `json:"expirationDate"`
	Quantity          decimal.Decimal         `json:"quantity"`
	QuantityRemaining decimal.Decimal         `json:"quantityRemaining"`
	Status            InstrumentReagentStatus `json:"status"`
	InstalledBy       string                  `json:"installedBy"`
	InstalledAt       time.Time               `json:"installedAt"`
	ModifiedAt        *time.Time              `json:"modifiedAt,omitempty"`
}

type reagentUsageHistoryTO struct {
	ID           string          `json:"id"`
	LotNumber    string          `json:"lotNumber"`
	InstrumentID string          `json:"instrumentId"`
	OrderID      *string         `json:"orderId,omitempty"`
	QuantityUsed decimal.Decimal `json:"quantityUsed"`
	UsedBy       string          `json:"usedBy"`
	UsedAt       time.Time       `json:"usedAt"`
}

type installReagentTO struct {
	InventoryLotID string          `json:"inventoryLotId"`
	InstrumentID   string          `json:"instrumentId"`
	Quantity       decimal.Decimal `json:"quantity"`
}

type recordUsageTO struct {
	LotNumber    string          `json:"lotNumber"`
	InstrumentID string          `json:"instrumentId"`
	QuantityUsed decimal.Decimal `json:"quantityUsed"`
	OrderID      *string         `json:"orderId"`
}

type updateReagentStatusTO struct {
	Status InstrumentReagentStatus `json:"status"`
}

type returnReagentTO struct {
	Reason string `json:"reason"`
}

func (api *api) InstallReagent(c *gin.Context) {
	var to installReagentTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	if !IsValidEntityID(to.InventoryLotID) || !IsValidEntityID(to.InstrumentID) {
		api.respondError(c, NewValidationError(MsgInvalidRequestBody, map[string]string{"inventoryLotId": "must be a 24 character hex string", "instrumentId": "must be a 24 character hex string"}))
		return
	}

	installed, err := api.reagentService.Install(c, to.InventoryLotID, to.InstrumentID, to.Quantity, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusCreated, "Reagent installed", convertInstrumentReagentToTO(installed))
}

func (api *api) GetInstrumentReagents(c *gin.Context) {
	pageable, err := bindPageable(c)
	if err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	var instrumentID *string
	if value := c.Query("instrumentId"); value != "" {
		instrumentID = &value
	}

	reagents, total, err := api.reagentService.GetInstrumentReagents(c, instrumentID, pageable)
	if err != nil {
		api.respondError(c, err)
		return
	}

	tos := make([]instrumentReagentTO, len(reagents))
	for i := range reagents {
		tos[i] = convertInstrumentReagentToTO(reagents[i])
	}
	api.respond(c, http.StatusOK, "Instrument reagents", NewPage(pageable, total, tos))
}

func (api *api) UpdateInstrumentReagentStatus(c *gin.Context) {
	id, ok := api.entityID(c, "instrumentReagentId")
	if !ok {
		return
	}
	var to updateReagentStatusTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	if err := api.reagentService.UpdateStatus(c, id, to.Status, middleware.ActorFromContext(c)); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Reagent status updated", nil)
}

func (api *api) RecordReagentUsage(c *gin.Context) {
	var to recordUsageTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	if to.LotNumber == "" || !IsValidEntityID(to.InstrumentID) {
		api.respondError(c, NewValidationError(MsgInvalidRequestBody, map[string]string{"lotNumber": "required", "instrumentId": "must be a 24 character hex string"}))
		return
	}

	historyID, err := api.reagentService.RecordUsage(c, to.LotNumber, to.InstrumentID, to.QuantityUsed, to.OrderID, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusCreated, "Reagent usage recorded", gin.H{"usageHistoryId": historyID})
}

func (api *api) GetReagentUsageHistory(c *gin.Context) {
	pageable, err := bindPageable(c)
	if err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	var instrumentID *string
	if value := c.Query("instrumentId"); value != "" {
		instrumentID = &value
	}

	entries, total, err := api.reagentService.GetUsageHistory(c, instrumentID, pageable)
	if err != nil {
		api.respondError(c, err)
		return
	}

	tos := make([]reagentUsageHistoryTO, len(entries))
	for i := range entries {
		tos[i] = reagentUsageHistoryTO{
			ID:           entries[i].ID,
			LotNumber:    entries[i].LotNumber,
			InstrumentID: entries[i].InstrumentID,
			OrderID:      entries[i].OrderID,
			QuantityUsed: entries[i].QuantityUsed,
			UsedBy:       entries[i].UsedBy,
			UsedAt:       entries[i].UsedAt,
		}
	}
	api.respond(c, http.StatusOK, "Reagent usage history", NewPage(pageable, total, tos))
}

func (api *api) GetReagentInventories(c *gin.Context) {
	pageable, err := bindPageable(c)
	if err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	inventories, total, err := api.reagentService.GetInventories(c, pageable)
	if err != nil {
		api.respondError(c, err)
		return
	}

	tos := make([]reagentInventoryTO, len(inventories))
	for i := range inventories {
		tos[i] = convertReagentInventoryToTO(inventories[i])
	}
	api.respond(c, http.StatusOK, "Reagent inventory lots", NewPage(pageable, total, tos))
}

func (api *api) GetReagentInventoryByID(c *gin.Context) {
	id, ok := api.entityID(c, "inventoryLotId")
	if !ok {
		return
	}

	inventory, err := api.reagentService.GetInventoryByID(c, id)
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Reagent inventory lot", convertReagentInventoryToTO(inventory))
}

func (api *api) ReturnReagentInventory(c *gin.Context) {
	id, ok := api.entityID(c, "inventoryLotId")
	if !ok {
		return
	}
	var to returnReagentTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	if err := api.reagentService.MarkReturned(c, id, to.Reason, middleware.ActorFromContext(c)); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Reagent lot returned", nil)
}

func convertReagentInventoryToTO(inventory ReagentInventory) reagentInventoryTO {
	return reagentInventoryTO{
		ID:               inventory.ID,
		ReagentTypeID:    inventory.ReagentTypeID,
		Name:             inventory.Name,
		LotNumber:        inventory.LotNumber,
		ExpirationDate:   inventory.ExpirationDate,
		QuantityReceived: inventory.QuantityReceived,
		QuantityInStock:  inventory.QuantityInStock,
		Status:           inventory.Status,
		ReturnReason:     inventory.ReturnReason,
		CreatedAt:        inventory.CreatedAt,
		ModifiedAt:       inventory.ModifiedAt,
	}
}

func convertInstrumentReagentToTO(reagent InstrumentReagent) instrumentReagentTO {
	return instrumentReagentTO{
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
		ModifiedAt:        reagent.ModifiedAt,
	}
}
