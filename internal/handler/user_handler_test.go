package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- mock implementations ----

type mockUserCommander struct {
	createFn func(cqrs.CreateUserCommand) (*models.UserView, error)
	updateFn func(cqrs.UpdateUserCommand) (*models.UserView, error)
	deleteFn func(cqrs.DeleteUserCommand) error
}

func (m *mockUserCommander) CreateUser(_ context.Context, cmd cqrs.CreateUserCommand) (*models.UserView, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) UpdateUser(_ context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
	if m.updateFn != nil {
		return m.updateFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) DeleteUser(_ context.Context, cmd cqrs.DeleteUserCommand) error {
	if m.deleteFn != nil {
		return m.deleteFn(cmd)
	}
	return fmt.Errorf("not configured")
}

type mockUserQuerier struct {
	getFn     func(cqrs.GetUserQuery) (*models.UserView, error)
	listFn    func(cqrs.ListUsersQuery) ([]models.UserView, error)
	balanceFn func(cqrs.GetUserBalanceQuery) (*models.UserBalanceView, error)
}

func (m *mockUserQuerier) GetUser(_ context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserQuerier) ListUsers(_ context.Context, q cqrs.ListUsersQuery) ([]models.UserView, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserQuerier) GetUserBalance(_ context.Context, q cqrs.GetUserBalanceQuery) (*models.UserBalanceView, error) {
	if m.balanceFn != nil {
		return m.balanceFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newUserTestRouter(cmds UserCommander, qrys UserQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewUserHandler(cmds, qrys).RegisterRoutes(r.Group("/users"))
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// ---- test data ----

var testUserView = &models.UserView{
	ID: 1, Name: "Alice", Email: "alice@example.com",
	Accounts: []models.AccountSummary{},
}

func validUserBody() map[string]interface{} {
	return map[string]interface{}{"name": "Alice", "email": "alice@example.com"}
}

// ---- tests ----

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		createFn       func(cqrs.CreateUserCommand) (*models.UserView, error)
		expectedStatus int
	}{
		{
			name:           "success - create user",
			body:           validUserBody(),
			createFn:       func(cmd cqrs.CreateUserCommand) (*models.UserView, error) { return testUserView, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - missing required fields",
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - whitespace-only name",
			body:           map[string]interface{}{"name": "   ", "email": "alice@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - malformed email",
			body:           map[string]interface{}{"name": "Alice", "email": "nope"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "conflict - email already registered",
			body: validUserBody(),
			createFn: func(cmd cqrs.CreateUserCommand) (*models.UserView, error) {
				return nil, apperr.New(apperr.AlreadyExists, apperr.MsgUserEmailExists, cmd.Email)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "internal - store unavailable",
			body: validUserBody(),
			createFn: func(cmd cqrs.CreateUserCommand) (*models.UserView, error) {
				return nil, apperr.Wrap(fmt.Errorf("dial tcp: refused"), apperr.Internal, apperr.MsgInternal)
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newUserTestRouter(&mockUserCommander{createFn: tt.createFn}, &mockUserQuerier{})
			w := doRequest(router, http.MethodPost, "/users", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestCreateUserValidationBody(t *testing.T) {
	router := newUserTestRouter(&mockUserCommander{}, &mockUserQuerier{})
	w := doRequest(router, http.MethodPost, "/users", map[string]interface{}{"email": "bad"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "Validation failed", body["message"])
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Name is required", errs["name"])
	assert.Equal(t, "Email should be valid", errs["email"])
}

func TestCreateUserRejectsBlankName(t *testing.T) {
	called := false
	createFn := func(cqrs.CreateUserCommand) (*models.UserView, error) {
		called = true
		return testUserView, nil
	}
	router := newUserTestRouter(&mockUserCommander{createFn: createFn}, &mockUserQuerier{})
	w := doRequest(router, http.MethodPost, "/users", map[string]interface{}{"name": "   ", "email": "a@x.com"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.False(t, called)

	errs, ok := decodeBody(t, w)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Name is required", errs["name"])
}

func TestGetUser(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		getFn          func(cqrs.GetUserQuery) (*models.UserView, error)
		expectedStatus int
	}{
		{
			name:           "success - fetch user",
			path:           "/users/1",
			getFn:          func(q cqrs.GetUserQuery) (*models.UserView, error) { return testUserView, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found - user does not exist",
			path: "/users/99",
			getFn: func(q cqrs.GetUserQuery) (*models.UserView, error) {
				return nil, apperr.New(apperr.NotFound, apperr.MsgUserNotFound, q.UserID)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - non-numeric id",
			path:           "/users/abc",
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newUserTestRouter(&mockUserCommander{}, &mockUserQuerier{getFn: tt.getFn})
			w := doRequest(router, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestListUsers(t *testing.T) {
	listFn := func(q cqrs.ListUsersQuery) ([]models.UserView, error) { return []models.UserView{*testUserView}, nil }
	router := newUserTestRouter(&mockUserCommander{}, &mockUserQuerier{listFn: listFn})
	w := doRequest(router, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []models.UserView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 1)
}

func TestUpdateUser(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		updateFn       func(cqrs.UpdateUserCommand) (*models.UserView, error)
		expectedStatus int
	}{
		{
			name: "success - update user",
			body: validUserBody(),
			updateFn: func(cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
				if cmd.UserID != 1 {
					return nil, fmt.Errorf("unexpected id %d", cmd.UserID)
				}
				return testUserView, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - missing name",
			body:           map[string]interface{}{"email": "alice@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - whitespace-only name",
			body:           map[string]interface{}{"name": "  ", "email": "alice@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "conflict - email held by another user",
			body: validUserBody(),
			updateFn: func(cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
				return nil, apperr.New(apperr.AlreadyExists, apperr.MsgUserEmailExists, cmd.Email)
			},
			expectedStatus: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newUserTestRouter(&mockUserCommander{updateFn: tt.updateFn}, &mockUserQuerier{})
			w := doRequest(router, http.MethodPut, "/users/1", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name            string
		deleteFn        func(cqrs.DeleteUserCommand) error
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "success - delete user",
			deleteFn:        func(cmd cqrs.DeleteUserCommand) error { return nil },
			expectedStatus:  http.StatusOK,
			expectedMessage: "User deleted successfully",
		},
		{
			name: "conflict - user still has accounts",
			deleteFn: func(cmd cqrs.DeleteUserCommand) error {
				return apperr.New(apperr.HasDependents, apperr.MsgUserHasAccounts, cmd.UserID)
			},
			expectedStatus:  http.StatusConflict,
			expectedMessage: "Cannot delete user with ID 1 because they have associated accounts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newUserTestRouter(&mockUserCommander{deleteFn: tt.deleteFn}, &mockUserQuerier{})
			w := doRequest(router, http.MethodDelete, "/users/1", nil)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedMessage, decodeBody(t, w)["message"])
		})
	}
}

func TestGetUserBalance(t *testing.T) {
	balanceFn := func(q cqrs.GetUserBalanceQuery) (*models.UserBalanceView, error) {
		return &models.UserBalanceView{
			UserID:       q.UserID,
			Name:         "Alice",
			Email:        "alice@example.com",
			TotalBalance: models.NewMoney(decimal.RequireFromString("2500.5")),
			Accounts:     []models.AccountSummary{},
		}, nil
	}
	router := newUserTestRouter(&mockUserCommander{}, &mockUserQuerier{balanceFn: balanceFn})
	w := doRequest(router, http.MethodGet, "/users/1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2500.50", decodeBody(t, w)["totalBalance"])
}
