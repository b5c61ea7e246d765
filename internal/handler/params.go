package handler

import (
	"net/http"
	"strconv"

	"github.com/eaglebank/registry/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// pathID parses a positive int64 path parameter. On failure it writes a 400
// response and returns false.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid value for path parameter: "+name)
		return 0, false
	}
	return id, true
}

// queryDecimal parses an optional decimal query parameter. An absent
// parameter yields nil.
func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid value for parameter: "+name)
		return nil, false
	}
	return &d, true
}

// bindJSON decodes and validates the body into req, writing the 400
// response itself when either step fails.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if violations := middleware.ValidateRequest(req); violations != nil {
		middleware.RespondWithValidationError(c, violations)
		return false
	}
	return true
}
