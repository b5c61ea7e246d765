package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/middleware"
	"github.com/eaglebank/registry/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.AccountView, error)
	UpdateAccount(context.Context, cqrs.UpdateAccountCommand) (*models.AccountView, error)
	UpdateBalance(context.Context, cqrs.UpdateBalanceCommand) (*models.AccountView, error)
	DeleteAccount(context.Context, cqrs.DeleteAccountCommand) error
	AddAuthorizedUser(context.Context, cqrs.AddAuthorizedUserCommand) (*models.AccountView, error)
	RemoveAuthorizedUser(context.Context, cqrs.RemoveAuthorizedUserCommand) (*models.AccountView, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	AccountNumber string           `json:"accountNumber" validate:"required,notblank"`
	Balance       *decimal.Decimal `json:"balance" validate:"required,gte=0"`
	PrimaryUserID *int64           `json:"primaryUserId" validate:"required"`
}

type UpdateAccountRequest struct {
	AccountNumber string           `json:"accountNumber" validate:"required,notblank"`
	Balance       *decimal.Decimal `json:"balance" validate:"required,gte=0"`
}

type UpdateBalanceRequest struct {
	Balance *decimal.Decimal `json:"balance" validate:"required,gte=0"`
}

type AddAuthorizedUserRequest struct {
	UserID *int64 `json:"userId" validate:"required"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

// RegisterRoutes mounts the account endpoints on rg.
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListAccounts)
	rg.POST("", h.CreateAccount)
	rg.GET("/:id", h.GetAccount)
	rg.PUT("/:id", h.UpdateAccount)
	rg.DELETE("/:id", h.DeleteAccount)
	rg.PATCH("/:id/balance", h.UpdateBalance)
	rg.POST("/:id/authorized-users", h.AddAuthorizedUser)
	rg.DELETE("/:id/authorized-users/:userId", h.RemoveAuthorizedUser)
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		AccountNumber: req.AccountNumber,
		Balance:       req.Balance,
		PrimaryUserID: *req.PrimaryUserID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	views, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{AccountID: id})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.commands.UpdateAccount(c.Request.Context(), cqrs.UpdateAccountCommand{
		AccountID:     id,
		AccountNumber: req.AccountNumber,
		Balance:       *req.Balance,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) UpdateBalance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateBalanceRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.commands.UpdateBalance(c.Request.Context(), cqrs.UpdateBalanceCommand{
		AccountID: id,
		Balance:   *req.Balance,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.commands.DeleteAccount(c.Request.Context(), cqrs.DeleteAccountCommand{AccountID: id}); err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	middleware.RespondWithMessage(c, "Account deleted successfully")
}

func (h *AccountHandler) AddAuthorizedUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AddAuthorizedUserRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.commands.AddAuthorizedUser(c.Request.Context(), cqrs.AddAuthorizedUserCommand{
		AccountID: id,
		UserID:    *req.UserID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) RemoveAuthorizedUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	view, err := h.commands.RemoveAuthorizedUser(c.Request.Context(), cqrs.RemoveAuthorizedUserCommand{
		AccountID: id,
		UserID:    userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
