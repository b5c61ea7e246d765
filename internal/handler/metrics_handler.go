package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/middleware"
	"github.com/eaglebank/registry/shared/models"
	"github.com/gin-gonic/gin"
)

type MetricsQuerier interface {
	CountAccounts(context.Context, cqrs.CountAccountsQuery) (*models.AccountMetricsView, error)
}

// MetricsHandler serves balance-predicate account counts.
type MetricsHandler struct {
	queries MetricsQuerier
}

func NewMetricsHandler(queries MetricsQuerier) *MetricsHandler {
	return &MetricsHandler{queries: queries}
}

func (h *MetricsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts", h.GetAccountMetrics)
}

func (h *MetricsHandler) GetAccountMetrics(c *gin.Context) {
	gt, ok := queryDecimal(c, "greaterThan")
	if !ok {
		return
	}
	lt, ok := queryDecimal(c, "lessThan")
	if !ok {
		return
	}
	if gt == nil && lt == nil {
		middleware.RespondWithError(c, http.StatusBadRequest, apperr.MsgMetricsBoundMissing)
		return
	}

	view, err := h.queries.CountAccounts(c.Request.Context(), cqrs.CountAccountsQuery{GreaterThan: gt, LessThan: lt})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
