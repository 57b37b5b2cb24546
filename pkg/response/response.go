package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

//Error Codes
type ErrCode string

var (
	FAILED_REQUEST    ErrCode = "REQUEST_FAILED"
	BAD_REQUEST       ErrCode = "FAILED_TO_DECODE"
	NOT_AUTHENTICATED ErrCode = "NOT_AUTHENTICATED"
	DATA_UNAVAILABLE  ErrCode = "DATA_UNAVAILABLE"
	VALIDATION_ERROR  ErrCode = "VALIDATION_ERROR"
	WRITE_FAILED      ErrCode = "WRITE_FAILED"
	NOT_FOUND         ErrCode = "NOT_FOUND"
	LOCKED            ErrCode = "LOCKED"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrValidation       = errors.New("validation failed")
	ErrWriteFailed      = errors.New("write failed")
	ErrNotFound         = errors.New("resource not found")
	ErrLocked           = errors.New("resource is locked")

	// Duplicate-key conflicts on the participation ledger are not failures:
	// the standing registration or dated cancellation already exists.
	ErrAlreadyEnrolled  = errors.New("already enrolled")
	ErrAlreadyCancelled = errors.New("already cancelled for date")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}
