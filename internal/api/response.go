package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sentineld/internal/sentinel"
)

// envelope is the Gateway's single JSON response shape. Every handler
// returns through ok/created/fail so the wire format never drifts between
// endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// fail maps an engine error onto an HTTP status via sentinel.Kind and writes
// the envelope. Unrecognized errors (a plain error not wrapped in
// sentinel.Error) default to 500.
func fail(c *gin.Context, err error) {
	if se, ok := sentinel.As(err); ok {
		c.JSON(statusForKind(se.Kind), envelope{Success: false, Error: se.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: err.Error()})
}

// failWithStatus writes the envelope at an explicit status, for handler-local
// validation that never reaches an engine component.
func failWithStatus(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Error: message})
}

func statusForKind(k sentinel.Kind) int {
	switch k {
	case sentinel.KindValidation:
		return http.StatusBadRequest
	case sentinel.KindNotFound:
		return http.StatusNotFound
	case sentinel.KindDuplicate:
		return http.StatusConflict
	case sentinel.KindUpstream:
		return http.StatusBadGateway
	case sentinel.KindRateLimited:
		return http.StatusTooManyRequests
	case sentinel.KindPersistence:
		return http.StatusInternalServerError
	case sentinel.KindPlausibility:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requireFields checks that every named field is present and non-empty in a
// decoded JSON body (map form), returning the missing-field list.
func requireFields(body map[string]interface{}, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		v, ok := body[f]
		if !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func tradingModeParam(c *gin.Context) sentinel.TradingMode {
	mode := c.Query("tradingMode")
	if mode == "" {
		mode = c.Query("trading_mode")
	}
	return sentinel.TradingMode(mode)
}
