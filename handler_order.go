package labflow

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/openlims/labflow/middleware"
)

type testResultTO struct {
	ID               string          `json:"id"`
	ParameterID      string          `json:"parameterId"`
	ParameterCode    string          `json:"parameterCode"`
	Value            decimal.Decimal `json:"value"`
	Unit             string          `json:"unit"`
	ReferenceRange   string          `json:"referenceRange"`
	IsFlagged        bool            `json:"isFlagged"`
	FlagSeverity     *FlagSeverity   `json:"flagSeverity,omitempty"`
	ReagentLotNumber *string         `json:"reagentLotNumber,omitempty"`
	MeasuredAt       time.Time       `json:"measuredAt"`
}

type commentTO struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

type testOrderTO struct {
	ID           string         `json:"id"`
	OrderNumber  string         `json:"orderNumber"`
	Barcode      string         `json:"barcode"`
	PatientID    string         `json:"patientId"`
	InstrumentID *string        `json:"instrumentId,omitempty"`
	Status       OrderStatus    `json:"status"`
	TestResults  []testResultTO `json:"testResults"`
	Comments     []commentTO    `json:"comments"`
	CreatedBy    string         `json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
	ModifiedAt   *time.Time     `json:"modifiedAt,omitempty"`
	RunBy        *string        `json:"runBy,omitempty"`
	RunAt        *time.Time     `json:"runAt,omitempty"`
}

type createTestOrderTO struct {
	PatientID    string  `json:"patientId"`
	InstrumentID *string `json:"instrumentId"`
}

type updateTestOrderTO struct {
	PatientID    *string      `json:"patientId"`
	InstrumentID *string      `json:"instrumentId"`
	Status       *OrderStatus `json:"status"`
}

type resultInputTO struct {
	ParameterID      string          `json:"parameterId"`
	Value            decimal.Decimal `json:"value"`
	ReagentLotNumber *string         `json:"reagentLotNumber"`
	MeasuredAt       *time.Time      `json:"measuredAt"`
}

type commentInputTO struct {
	Text string `json:"text"`
}

type processSampleTO struct {
	Barcode      string  `json:"barcode"`
	InstrumentID string  `json:"instrumentId"`
	PatientID    *string `json:"patientId"`
}

type processSampleResponseTO struct {
	Order testOrderTO `json:"order"`
	IsNew bool        `json:"isNew"`
}

type reagentUsageTO struct {
	LotNumber string          `json:"lotNumber"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type completeTestOrderTO struct {
	ReagentUsages []reagentUsageTO `json:"reagentUsages"`
}

func (api *api) CreateTestOrder(c *gin.Context) {
	var to createTestOrderTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	if !IsValidEntityID(to.PatientID) {
		api.respondError(c, NewValidationError(MsgInvalidRequestBody, map[string]string{"patientId": "must be a 24 character hex string"}))
		return
	}

	order, err := api.orderService.CreateOrder(c, to.PatientID, to.InstrumentID, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusCreated, "Test order created", convertTestOrderToTO(order))
}

func (api *api) GetTestOrders(c *gin.Context) {
	pageable, err := bindPageable(c)
	if err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	orders, total, err := api.orderService.GetOrders(c, pageable)
	if err != nil {
		api.respondError(c, err)
		return
	}

	tos := make([]testOrderTO, len(orders))
	for i := range orders {
		tos[i] = convertTestOrderToTO(orders[i])
	}
	api.respond(c, http.StatusOK, "Test orders", NewPage(pageable, total, tos))
}

func (api *api) GetTestOrderByID(c *gin.Context) {
	id, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}

	order, err := api.orderService.GetOrderByID(c, id)
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Test order", convertTestOrderToTO(order))
}

func (api *api) UpdateTestOrder(c *gin.Context) {
	id, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}
	var to updateTestOrderTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	order, err := api.orderService.UpdateOrder(c, id, TestOrderUpdate{
		PatientID:    to.PatientID,
		InstrumentID: to.InstrumentID,
		Status:       to.Status,
	}, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Test order updated", convertTestOrderToTO(order))
}

func (api *api) DeleteTestOrder(c *gin.Context) {
	id, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}

	if err := api.orderService.DeleteOrder(c, id, middleware.ActorFromContext(c)); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Test order deleted", nil)
}

func (api *api) ProcessSample(c *gin.Context) {
	var to processSampleTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}
	if to.Barcode == "" || to.InstrumentID == "" {
		api.respondError(c, NewValidationError(MsgInvalidRequestBody, map[string]string{"barcode": "required", "instrumentId": "required"}))
		return
	}

	order, isNew, err := api.orderService.ProcessSample(c, to.Barcode, to.InstrumentID, to.PatientID, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	status := http.StatusOK
	message := "Sample already known"
	if isNew {
		status = http.StatusCreated
		message = "Sample processed"
	}
	api.respond(c, status, message, processSampleResponseTO{
		Order: convertTestOrderToTO(order),
		IsNew: isNew,
	})
}

func (api *api) AddTestResults(c *gin.Context) {
	id, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}
	var tos []resultInputTO
	if err := c.ShouldBindJSON(&tos); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	inputs := make([]ResultInput, len(tos))
	for i := range tos {
		inputs[i] = ResultInput{
			ParameterID:      tos[i].ParameterID,
			Value:            tos[i].Value,
			ReagentLotNumber: tos[i].ReagentLotNumber,
			MeasuredAt:       tos[i].MeasuredAt,
		}
	}

	order, err := api.orderService.AddResults(c, id, inputs, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Results added", convertTestOrderToTO(order))
}

func (api *api) CompleteTestOrder(c *gin.Context) {
	id, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}
	var to completeTestOrderTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	usages := make([]ReagentUsage, len(to.ReagentUsages))
	for i := range to.ReagentUsages {
		usages[i] = ReagentUsage{
			LotNumber: to.ReagentUsages[i].LotNumber,
			Quantity:  to.ReagentUsages[i].Quantity,
		}
	}

	order, err := api.orderService.Complete(c, id, usages, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Test order completed", convertTestOrderToTO(order))
}

func (api *api) SyncRawResult(c *gin.Context) {
	id, ok := api.entityID(c, "rawResultId")
	if !ok {
		return
	}

	order, err := api.orderService.SyncRawResult(c, id, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Raw result synced", convertTestOrderToTO(order))
}

func (api *api) AddTestOrderComment(c *gin.Context) {
	id, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}
	var to commentInputTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	comment, err := api.orderService.AddComment(c, id, to.Text, middleware.ActorFromContext(c))
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusCreated, "Comment added", convertCommentToTO(comment))
}

func (api *api) UpdateTestOrderComment(c *gin.Context) {
	orderID, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}
	commentID, ok := api.entityID(c, "commentId")
	if !ok {
		return
	}
	var to commentInputTO
	if err := c.ShouldBindJSON(&to); err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	if err := api.orderService.UpdateComment(c, orderID, commentID, to.Text, middleware.ActorFromContext(c)); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Comment updated", nil)
}

func (api *api) DeleteTestOrderComment(c *gin.Context) {
	orderID, ok := api.entityID(c, "orderId")
	if !ok {
		return
	}
	commentID, ok := api.entityID(c, "commentId")
	if !ok {
		return
	}

	if err := api.orderService.DeleteComment(c, orderID, commentID, middleware.ActorFromContext(c)); err != nil {
		api.respondError(c, err)
		return
	}

	api.respond(c, http.StatusOK, "Comment deleted", nil)
}

func convertTestOrderToTO(order TestOrder) testOrderTO {
	to := testOrderTO{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		Barcode:      order.Barcode,
		PatientID:    order.PatientID,
		InstrumentID: order.InstrumentID,
		Status:       order.Status,
		TestResults:  make([]testResultTO, len(order.TestResults)),
		Comments:     make([]commentTO, len(order.Comments)),
		CreatedBy:    order.CreatedBy,
		CreatedAt:    order.CreatedAt,
		ModifiedAt:   order.ModifiedAt,
		RunBy:        order.RunBy,
		RunAt:        order.RunAt,
	}
	for i := range order.TestResults {
		to.TestResults[i] = convertTestResultToTO(order.TestResults[i])
	}
	for i := range order.Comments {
		to.Comments[i] = convertCommentToTO(order.Comments[i])
	}
	return to
}

func convertTestResultToTO(result TestResult) testResultTO {
	return testResultTO{
		ID:               result.ID,
		ParameterID:      result.ParameterID,
		ParameterCode:    result.ParameterCode,
		Value:            result.Value,
		Unit:             result.Unit,
		ReferenceRange:   result.ReferenceRange,
		IsFlagged:        result.IsFlagged,
		FlagSeverity:     result.FlagSeverity,
		ReagentLotNumber: result.ReagentLotNumber,
		MeasuredAt:       result.MeasuredAt,
	}
}

func convertCommentToTO(comment Comment) commentTO {
	return commentTO{
		ID:         comment.ID,
		Text:       comment.Text,
		CreatedBy:  comment.CreatedBy,
		CreatedAt:  comment.CreatedAt,
		ModifiedAt: comment.ModifiedAt,
		DeletedAt:  comment.DeletedAt,
	}
}
