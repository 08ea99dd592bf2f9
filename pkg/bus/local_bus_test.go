package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-accelerator-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDeliversToSubscribedChannel(t *testing.T) {
	b := NewLocalBus(logger.NopLogger{})
	defer b.Close()
	ctx := context.Background()

	received := make(chan string, 4)
	require.NoError(t, b.Subscribe(ctx, []string{"responses"}, func(_ context.Context, channel string, payload []byte) error {
		received <- channel + ":" + string(payload)
		return nil
	}))

	require.NoError(t, b.Publish(ctx, "responses", []byte("hello")))

	select {
	case got := <-received:
		assert.Equal(t, "responses:hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
}

func TestLocalBusMultipleChannels(t *testing.T) {
	b := NewLocalBus(logger.NopLogger{})
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[string]int{}
	require.NoError(t, b.Subscribe(ctx, []string{"a", "b"}, func(_ context.Context, channel string, _ []byte) error {
		mu.Lock()
		seen[channel]++
		mu.Unlock()
		return nil
	}))

	require.NoError(t, b.Publish(ctx, "a", []byte("1")))
	require.NoError(t, b.Publish(ctx, "b", []byte("2")))
	require.NoError(t, b.Publish(ctx, "b", []byte("3")))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := seen["a"] == 1 && seen["b"] == 2
		mu.Unlock()
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("incomplete delivery: %v", seen)
}

func TestLocalBusHandlerErrorDoesNotStopDelivery(t *testing.T) {
	b := NewLocalBus(logger.NopLogger{})
	defer b.Close()
	ctx := context.Background()

	received := make(chan []byte, 2)
	require.NoError(t, b.Subscribe(ctx, []string{"c"}, func(_ context.Context, _ string, payload []byte) error {
		received <- payload
		if string(payload) == "first" {
			return assert.AnError
		}
		return nil
	}))

	require.NoError(t, b.Publish(ctx, "c", []byte("first")))
	require.NoError(t, b.Publish(ctx, "c", []byte("second")))

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-received:
			assert.Equal(t, want, string(got))
		case <-time.After(2 * time.Second):
			t.Fatalf("message %q never delivered", want)
		}
	}
}
