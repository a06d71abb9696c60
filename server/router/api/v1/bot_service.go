package v1

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
	"github.com/bothub-it/bothub-nlp/server/internal/observability"
)

type askResponse struct {
	BotID  string `json:"botId"`
	Answer string `json:"answer"`
}

type trainRequest struct {
	Language string          `json:"language"`
	Data     json.RawMessage `json:"data"`
}

type trainResponse struct {
	UUID string `json:"uuid"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// askBot serves GET /v1/bots?uuid=<session>&msg=<question>.
func (s *APIV1Service) askBot(c echo.Context) error {
	sessionKey := c.QueryParam("uuid")
	question := c.QueryParam("msg")
	if sessionKey == "" || question == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    string(errcode.ErrCodeInvalidArgument),
			Message: "uuid and msg are required",
		})
	}

	answer, err := s.Dispatcher.Ask(c.Request().Context(), sessionKey, question)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, askResponse{BotID: sessionKey, Answer: answer})
}

// trainBot serves POST /v1/train-bot.
func (s *APIV1Service) trainBot(c echo.Context) error {
	var req trainRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    string(errcode.ErrCodeInvalidArgument),
			Message: "invalid request body",
		})
	}

	sessionKey, err := s.Dispatcher.Train(c.Request().Context(), req.Language, req.Data)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusAccepted, trainResponse{UUID: sessionKey})
}

type instanceStatusResponse struct {
	Instance  string                 `json:"instance"`
	Sessions  []string               `json:"sessions"`
	Available []string               `json:"availableInstances"`
	Metrics   observability.Snapshot `json:"metrics"`
}

// instanceStatus reports this instance's live sessions and the fleet's
// availability set, for routers and operators.
func (s *APIV1Service) instanceStatus(c echo.Context) error {
	available, err := s.Registry.AvailableInstances(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, instanceStatusResponse{
		Instance:  s.Registry.InstanceID(),
		Sessions:  s.Pool.SessionKeys(),
		Available: available,
		Metrics:   s.Dispatcher.Metrics().GetSnapshot(),
	})
}

// errorJSON maps pool error codes onto HTTP statuses.
func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch errcode.GetCodeFromError(err, "") {
	case errcode.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case errcode.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errcode.ErrCodeTimeout:
		status = http.StatusRequestTimeout
	case errcode.ErrCodeSessionBusy:
		status = http.StatusConflict
	case errcode.ErrCodeRegistryWriteFailure:
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, errorResponse{
		Code:    string(errcode.GetCodeFromError(err, "INTERNAL")),
		Message: err.Error(),
	})
}
