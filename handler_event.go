package labflow

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (api *api) GetAuditEvents(c *gin.Context) {
	pageable, err := bindPageable(c)
	if err != nil {
		api.respondInvalidBody(c, err)
		return
	}

	offset := 0
	if pageable.IsPaged() {
		offset = (pageable.Page - 1) * pageable.Limit
	}
	events, total, err := api.auditLogService.GetEvents(c, offset, pageable.Limit)
	if err != nil {
		api.respondError(c, NewInternalError(MsgInternalServerError, err))
		return
	}

	api.respond(c, http.StatusOK, "Audit events", NewPage(pageable, total, events))
}

// SubscribeAuditEvents hands the request to the embedded longpoll manager;
// clients poll with the category and since_time query parameters.
func (api *api) SubscribeAuditEvents(c *gin.Context) {
	query := c.Request.URL.Query()
	if query.Get("category") == "" {
		query.Set("category", "audit-events")
		c.Request.URL.RawQuery = query.Encode()
	}
	api.longpollManager.SubscriptionHandler(c.Writer, c.Request)
}
