package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTripsThroughStreamEncoding(t *testing.T) {
	published := Event{Type: AccountDeleted, Data: AccountDeletedEvent{
		AccountID: 3, AccountNumber: "ACC-3", UserIDs: []int64{1, 2},
	}}
	raw, err := json.Marshal(published)
	require.NoError(t, err)

	var received Event
	require.NoError(t, json.Unmarshal(raw, &received))

	var data AccountDeletedEvent
	require.NoError(t, Decode(received, &data))
	assert.Equal(t, int64(3), data.AccountID)
	assert.Equal(t, []int64{1, 2}, data.UserIDs)
}

func TestDecodeKeepsDecimalPrecision(t *testing.T) {
	raw, err := json.Marshal(Event{Type: BalanceUpdated, Data: BalanceUpdatedEvent{
		AccountID: 1, NewBalance: decimal.RequireFromString("1500.50"),
	}})
	require.NoError(t, err)
	var received Event
	require.NoError(t, json.Unmarshal(raw, &received))

	var data BalanceUpdatedEvent
	require.NoError(t, Decode(received, &data))
	assert.True(t, data.NewBalance.Equal(decimal.RequireFromString("1500.5")))
}

func TestDecodeRejectsMismatchedPayload(t *testing.T) {
	var data AccountUserEvent
	err := Decode(Event{Type: AccountUserAuthorized, Data: "not an object"}, &data)
	assert.Error(t, err)
}

func TestDisabledPublisher(t *testing.T) {
	var p *Publisher
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), UserEventsStream, UserCreated, UserCreatedEvent{UserID: 1}))
	assert.NoError(t, NewPublisher(nil).Publish(context.Background(), UserEventsStream, UserCreated, nil))
}

func TestProcessMessage(t *testing.T) {
	var got Event
	s := NewSubscriber(nil, SubscriberConfig{
		Stream: AccountEventsStream,
		Handler: func(_ context.Context, e Event) error {
			got = e
			return nil
		},
	})

	payload, err := json.Marshal(Event{Type: AccountUserRemoved, Data: AccountUserEvent{AccountID: 4, UserID: 9}})
	require.NoError(t, err)

	require.NoError(t, s.processMessage(context.Background(), redis.XMessage{
		ID:     "1-0",
		Values: map[string]any{"event": string(payload)},
	}))
	assert.Equal(t, AccountUserRemoved, got.Type)

	err = s.processMessage(context.Background(), redis.XMessage{ID: "2-0", Values: map[string]any{}})
	assert.EqualError(t, err, "invalid message format")
}

func TestProcessMessagePropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSubscriber(nil, SubscriberConfig{Handler: func(context.Context, Event) error { return boom }})
	payload, _ := json.Marshal(Event{Type: UserDeleted})

	err := s.processMessage(context.Background(), redis.XMessage{Values: map[string]any{"event": string(payload)}})
	assert.ErrorIs(t, err, boom)
}
