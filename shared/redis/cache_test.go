package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestDisabledViewCache(t *testing.T) {
	ctx := context.Background()
	c := NewViewCache[testView](nil, 0, nil)

	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() {
		c.Set(ctx, "k", &testView{ID: 1})
		c.Delete(ctx, "k")
	})
	v, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestNilClientRaw(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Raw())
	assert.NoError(t, c.Close())
}
