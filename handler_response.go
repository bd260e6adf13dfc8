package labflow

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type apiError struct {
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Detail   string            `json:"detail,omitempty"`
}

type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

func (api *api) respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, apiResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (api *api) respondError(c *gin.Context, err error) {
	responseError := apiError{
		Category: CategoryOf(err),
		Message:  err.Error(),
	}

	var appError *AppError
	if errors.As(err, &appError) {
		responseError.Fields = appError.Fields
	}
	if responseError.Category == ErrorCategoryInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		responseError.Message = MsgInternalServerError
		// stack detail never leaves the process outside development
		if api.config.Development {
			responseError.Detail = err.Error()
		}
	}

	c.JSON(HTTPStatusOf(err), apiResponse{
		Success: false,
		Message: responseError.Message,
		Error:   &responseError,
	})
}

func (api *api) respondInvalidBody(c *gin.Context, err error) {
	log.Warn().Err(err).Str("path", c.FullPath()).Msg(MsgInvalidRequestBody)
	api.respondError(c, NewValidationError(MsgInvalidRequestBody, nil))
}

func (api *api) entityID(c *gin.Context, param string) (string, bool) {
	id := c.Param(param)
	if id == "" {
		api.respondError(c, NewValidationError(MsgMissingIdParameter, map[string]string{param: "required"}))
		return "", false
	}
	if !IsValidEntityID(id) {
		api.respondError(c, NewValidationError(MsgInvalidIdParameter, map[string]string{param: "must be a 24 character hex string"}))
		return "", false
	}
	return id, true
}

func bindPageable(c *gin.Context) (Pageable, error) {
	var pageable Pageable
	if err := c.ShouldBindQuery(&pageable); err != nil {
		return Pageable{}, err
	}
	pageable.Normalize()
	return pageable, nil
}
