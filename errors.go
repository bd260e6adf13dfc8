package labflow

import (
	"errors"
	"net/http"
)

type ErrorCategory string

const (
	ErrorCategoryValidation         ErrorCategory = "validation"
	ErrorCategoryNotFound           ErrorCategory = "not_found"
	ErrorCategoryConflict           ErrorCategory = "conflict"
	ErrorCategoryPreconditionFailed ErrorCategory = "precondition_failed"
	ErrorCategoryInternal           ErrorCategory = "internal"
)

// AppError carries a machine-stable category next to the user-visible message.
// Field-level details are only filled for validation failures.
type AppError struct {
	Category ErrorCategory
	Message  string
	Fields   map[string]string
	cause    error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewValidationError(message string, fields map[string]string) *AppError {
	return &AppError{Category: ErrorCategoryValidation, Message: message, Fields: fields}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Category: ErrorCategoryNotFound, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Category: ErrorCategoryConflict, Message: message}
}

func NewPreconditionFailedError(message string) *AppError {
	return &AppError{Category: ErrorCategoryPreconditionFailed, Message: message}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{Category: ErrorCategoryInternal, Message: message, cause: cause}
}

// CategoryOf - unknown errors count as internal
func CategoryOf(err error) ErrorCategory {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Category
	}
	return ErrorCategoryInternal
}

func HTTPStatusOf(err error) int {
	switch CategoryOf(err) {
	case ErrorCategoryValidation:
		return http.StatusBadRequest
	case ErrorCategoryNotFound:
		return http.StatusNotFound
	case ErrorCategoryConflict:
		return http.StatusConflict
	case ErrorCategoryPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

const (
	ApiStartMsg           = "API server labflow has been started"
	ApiEndedGracefullyMsg = "API server labflow ended gracefully"
	ApiFailedToStartMsg   = "Failed to start API server labflow"

	MsgInvalidRequestBody          = "Invalid request body"
	MsgMissingIdParameter          = "Missing id parameter"
	MsgInvalidIdParameter          = "Invalid id parameter"
	MsgInternalServerError         = "Unexpected error."
	MsgFailedToStartTransaction    = "can not start transaction"
	MsgFailedToCommitTransaction   = "can not commit transaction"
	MsgFailedToRollBackTransaction = "can not roll-back transaction"

	MsgPatientNotFound              = "Patient not found"
	MsgPatientHasPendingOrder       = "Patient already has a pending test order"
	MsgTestOrderNotFound            = "Test order not found"
	MsgTestOrderAlreadyTerminal     = "Test order is already in a terminal state"
	MsgTestOrderAlreadyProcessed    = "Test order already processed"
	MsgCommentNotFound              = "Comment not found"
	MsgInstrumentNotFound           = "Instrument not found"
	MsgInstrumentNotReady           = "Instrument is not in a ready mode"
	MsgInsufficientReagent          = "Insufficient reagent installed for a run"
	MsgRawResultNotFound            = "Raw result not found"
	MsgRawResultAlreadySynced       = "Raw result was already synced"
	MsgParameterNotFound            = "Parameter not found"
	MsgFlaggingConfigNotFound       = "Flagging configuration not found"
	MsgInvalidReferenceRange        = "Reference range min must be less than max"
	MsgReagentLotNotFound           = "Reagent lot not found"
	MsgReagentLotReturned           = "Reagent lot has been returned"
	MsgReagentQuantityNotPositive   = "Quantity must be greater than zero"
	MsgReagentQuantityExceedsStock  = "Quantity exceeds quantity in stock"
	MsgReagentUsageExceedsRemaining = "Quantity used exceeds remaining quantity"
	MsgInstalledLotNotFound         = "No matching installed reagent lot"
	MsgReagentStatusUnchanged       = "Reagent status is unchanged"
	MsgReturnReasonRequired         = "Return reason must not be empty"
)
