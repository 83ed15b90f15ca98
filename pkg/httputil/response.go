package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleanly/booking-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with an explicit status code.
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithError sends an error response. Errors that are not an AppError
// are reported as internal without exposing their cause.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.As(err)
	c.JSON(appErr.StatusCode(), ErrorBody(appErr))
}

// AbortWithError is RespondWithError for middleware that must stop the chain.
func AbortWithError(c *gin.Context, err error) {
	appErr := errors.As(err)
	c.AbortWithStatusJSON(appErr.StatusCode(), ErrorBody(appErr))
}

// ErrorBody builds the error envelope for appErr.
func ErrorBody(appErr *errors.AppError) Response {
	return Response{
		Status: StatusError,
		Error: &Error{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	}
}
