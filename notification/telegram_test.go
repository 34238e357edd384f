package notification

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
	zl "github.com/ver3trade/engine/logger/zerolog"
)

func newTestTelegram() *Telegram {
	return newQueued(Settings{Users: []int64{1}}, zl.NewNop())
}

func drainOutbox(t *Telegram) []string {
	var messages []string
	for {
		select {
		case msg := <-t.outbox:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
}

func TestNotifyDropsOldestWhenFull(t *testing.T) {
	tg := newTestTelegram()

	for i := 0; i < outboxCap+5; i++ {
		tg.Notify(fmt.Sprintf("msg %d", i))
	}

	messages := drainOutbox(tg)
	require.Len(t, messages, outboxCap)
	assert.Equal(t, "msg 5", messages[0])
	assert.Equal(t, fmt.Sprintf("msg %d", outboxCap+4), messages[len(messages)-1])
}

func TestNextReturnsCommandsInOrder(t *testing.T) {
	tg := newTestTelegram()

	require.True(t, tg.enqueue(core.Command{Type: core.CommandStatus}))
	require.True(t, tg.enqueue(core.Command{Type: core.CommandClose, Coin: "BTC"}))

	cmd, ok := tg.Next()
	require.True(t, ok)
	assert.Equal(t, core.CommandStatus, cmd.Type)

	cmd, ok = tg.Next()
	require.True(t, ok)
	assert.Equal(t, core.CommandClose, cmd.Type)
	assert.Equal(t, "BTC", cmd.Coin)

	_, ok = tg.Next()
	assert.False(t, ok)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	tg := newTestTelegram()

	for i := 0; i < commandCap; i++ {
		require.True(t, tg.enqueue(core.Command{Type: core.CommandStatus}))
	}
	assert.False(t, tg.enqueue(core.Command{Type: core.CommandStop}))
}

func TestOnErrorQueuesAlert(t *testing.T) {
	tg := newTestTelegram()

	tg.OnError(fmt.Errorf("order rejected"))

	messages := drainOutbox(tg)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "ERROR")
	assert.Contains(t, messages[0], "order rejected")
}

func TestStopIsIdempotent(t *testing.T) {
	tg := newTestTelegram()
	tg.Stop()
	tg.Stop()
}
