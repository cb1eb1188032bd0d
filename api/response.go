package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"cleanistic/models"
)

// Error codes carried in the response envelope
const (
	CodeAnalysisError      = "ANALYSIS_ERROR"
	CodeAnalysisNotFound   = "ANALYSIS_NOT_FOUND"
	CodeQuoteNotFound      = "QUOTE_NOT_FOUND"
	CodeUnsupportedService = "UNSUPPORTED_SERVICE"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUploadTooLarge     = "UPLOAD_TOO_LARGE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success sends a successful response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// Error sends an error response
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   &ErrorResponse{Code: code, Message: message},
	})
}

// BadRequest sends a 400 invalid request response
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeInvalidRequest, message)
}

// FromError maps a service error onto a status and error code
func FromError(c *gin.Context, err error) {
	var (
		analysisErr   *models.AnalysisError
		analysisNF    *models.AnalysisNotFoundError
		quoteNF       *models.QuoteNotFoundError
		unsupported   *models.UnsupportedServiceError
		invalidStatus *models.InvalidStatusTransitionError
	)

	switch {
	case errors.As(err, &analysisNF):
		Error(c, http.StatusNotFound, CodeAnalysisNotFound, err.Error())
	case errors.As(err, &quoteNF):
		Error(c, http.StatusNotFound, CodeQuoteNotFound, err.Error())
	case errors.As(err, &unsupported):
		Error(c, http.StatusBadRequest, CodeUnsupportedService, err.Error())
	case errors.As(err, &invalidStatus):
		status := http.StatusConflict
		if invalidStatus.From == "" {
			status = http.StatusBadRequest
		}
		Error(c, status, CodeInvalidStatus, err.Error())
	case errors.As(err, &analysisErr):
		Error(c, http.StatusUnprocessableEntity, CodeAnalysisError, err.Error())
	default:
		c.Error(err)
		log.Printf("API: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		Error(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
