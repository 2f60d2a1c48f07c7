package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CleanExpo/ATO-sub007/internal/platform/apierr"
	"github.com/CleanExpo/ATO-sub007/internal/platform/envutil"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// RespondAPIError renders an error from the service layer. Outside diagnostic
// mode the upstream detail is dropped and only the stable code travels.
func RespondAPIError(c *gin.Context, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		ae = apierr.New(http.StatusInternalServerError, "internal_error", err)
	}

	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	msg := "request failed"
	if diagnosticMode() {
		msg = ae.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{
		Message: msg,
		Code:    ae.Code,
		Hint:    ae.Hint,
	}})
}

func diagnosticMode() bool {
	return envutil.Bool("API_DIAGNOSTIC_ERRORS", false)
}
