package echoutil

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrorMessage is the body of error responses.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (e ErrorMessage) Error() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, " caused by: "+e.Cause.Error())
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

// NewErrorMessage creates an error passed to echo's HTTPErrorHandler.
func NewErrorMessage(code int, reason string, advice string, cause error) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason, Advice: advice, Cause: cause}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound(reason string, cause error) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, reason, "", cause)
}

func InternalServerError(reason string, cause error) *echo.HTTPError {
	return NewErrorMessage(http.StatusInternalServerError, reason, "check the pipeline config.", cause)
}
