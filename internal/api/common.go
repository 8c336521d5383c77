package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
)

const (
	indentationChar = "  "
)

var ErrBadRequest = errors.New("bad request")

// validation faults, everything else is reported as a hardware fault
var badRequestErrors = []error{
	ErrBadRequest,
	fans.ErrInvalidChannel,
	fans.ErrUnsupportedMode,
	fans.ErrInvalidPwm,
	fans.ErrInvalidOutputMode,
	fans.ErrInvalidTempSource,
	fans.ErrInvalidTargetRpm,
	curves.ErrInvalidCurve,
	autotune.ErrAlreadyRunning,
	autotune.ErrStillRunning,
	autotune.ErrNoResults,
	autotune.ErrInvalidRequest,
}

type (
	Result struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}

	Success struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
)

func CreateWebserver() *echo.Echo {
	webserver := echo.New()
	webserver.HideBanner = true
	webserver.HidePort = true

	webserver.Use(middleware.Secure())
	webserver.Use(middleware.Logger())
	webserver.Use(middleware.Recover())

	return webserver
}

func statusCodeOf(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// return the error message of an error
func returnError(c echo.Context, e error) error {
	code := statusCodeOf(e)
	name := "Hardware Error"
	if code == http.StatusBadRequest {
		name = "Invalid Request"
	}
	return c.JSONPretty(code, &Result{
		Name:    name,
		Message: e.Error(),
	}, indentationChar)
}

func returnOk(c echo.Context, data interface{}) error {
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func bind(c echo.Context, request interface{}) error {
	if err := c.Bind(request); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
