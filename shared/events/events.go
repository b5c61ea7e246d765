package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"

	AccountCreated = "account.created"
	AccountUpdated = "account.updated"
	AccountDeleted = "account.deleted"
	BalanceUpdated = "balance.updated"

	AccountUserAuthorized = "account.user.authorized"
	AccountUserRemoved    = "account.user.removed"
)

// Stream names
const (
	UserEventsStream    = "registry.user.events"
	AccountEventsStream = "registry.account.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Decode re-reads the loosely typed Data of an event received from a stream
// into the typed payload dst.
func Decode(event Event, dst any) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s event: %w", event.Type, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", event.Type, err)
	}
	return nil
}

// User events. AccountIDs lists the accounts whose views embed the user.
type UserCreatedEvent struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type UserUpdatedEvent struct {
	UserID     int64   `json:"userId"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	AccountIDs []int64 `json:"accountIds"`
}

type UserDeletedEvent struct {
	UserID int64 `json:"userId"`
}

// Account events. UserIDs lists the users whose views embed the account.
type AccountCreatedEvent struct {
	AccountID     int64           `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	PrimaryUserID int64           `json:"primaryUserId"`
	Balance       decimal.Decimal `json:"balance"`
}

type AccountUpdatedEvent struct {
	AccountID     int64           `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	UserIDs       []int64         `json:"userIds"`
}

type AccountDeletedEvent struct {
	AccountID     int64   `json:"accountId"`
	AccountNumber string  `json:"accountNumber"`
	UserIDs       []int64 `json:"userIds"`
}

type BalanceUpdatedEvent struct {
	AccountID  int64           `json:"accountId"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Change     decimal.Decimal `json:"change"`
	UserIDs    []int64         `json:"userIds"`
}

type AccountUserEvent struct {
	AccountID int64 `json:"accountId"`
	UserID    int64 `json:"userId"`
}
