package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientWithoutSession(t *testing.T) {
	c := NewClient(nil)

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Connect(ConnectOptions{}), ErrDisabled)
	assert.ErrorIs(t, c.Publish("a/b", 0, false, []byte("1")), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe("a/b", 0, func(string, []byte) {}), ErrNotConnected)

	// No-op without a session
	c.Disconnect()
	assert.False(t, c.IsConnected())
}
