package errors

const (
	HttpInternalError        = "internal_error"
	HttpInvalidParamError    = "invalid_param"
	HttpStorageDisabledError = "storage_disabled"
	HttpStatementFailedError = "statement_failed"
)

// ErrorResponse is the error response body for admin endpoints.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
