package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/middleware"
	"github.com/eaglebank/registry/shared/models"
	"github.com/gin-gonic/gin"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.UserView, error)
	UpdateUser(context.Context, cqrs.UpdateUserCommand) (*models.UserView, error)
	DeleteUser(context.Context, cqrs.DeleteUserCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(context.Context, cqrs.GetUserQuery) (*models.UserView, error)
	ListUsers(context.Context, cqrs.ListUsersQuery) ([]models.UserView, error)
	GetUserBalance(context.Context, cqrs.GetUserBalanceQuery) (*models.UserBalanceView, error)
}

// UserHandler handles user-related HTTP requests.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

type UpdateUserRequest struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

// RegisterRoutes mounts the user endpoints on rg.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListUsers)
	rg.POST("", h.CreateUser)
	rg.GET("/:id", h.GetUser)
	rg.PUT("/:id", h.UpdateUser)
	rg.DELETE("/:id", h.DeleteUser)
	rg.GET("/:id/balance", h.GetUserBalance)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	views, err := h.queries.ListUsers(c.Request.Context(), cqrs.ListUsersQuery{})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{UserID: id})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.commands.UpdateUser(c.Request.Context(), cqrs.UpdateUserCommand{
		UserID: id,
		Name:   req.Name,
		Email:  req.Email,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{UserID: id}); err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	middleware.RespondWithMessage(c, "User deleted successfully")
}

func (h *UserHandler) GetUserBalance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.queries.GetUserBalance(c.Request.Context(), cqrs.GetUserBalanceQuery{UserID: id})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
