package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(4)
	b := h.Subscribe(4)
	defer b.Close()

	h.Publish(BalanceChange{UserID: "u1", Balance: 200, Delta: -300, Category: models.CategorySpend})

	got := <-a.C
	assert.Equal(t, int64(200), got.Balance)
	assert.Equal(t, "u1", (<-b.C).UserID)

	a.Close()
	a.Close()
	_, open := <-a.C
	assert.False(t, open)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(1)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(BalanceChange{UserID: "u1", Delta: int64(i + 1)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, int64(1), (<-s.C).Delta)
}

type fakeRedis struct {
	mu   sync.Mutex
	msgs map[string][]string
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgs == nil {
		f.msgs = map[string][]string{}
	}
	f.msgs[channel] = append(f.msgs[channel], string(message.([]byte)))
	return redis.NewIntCmd(ctx)
}

type inlinePool struct{}

func (inlinePool) Submit(f func()) bool { f(); return true }

func TestRedisBridge_PublishesPerUserChannel(t *testing.T) {
	fake := &fakeRedis{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bridge := NewRedisBridge(fake, inlinePool{}, "", log)

	h := NewHub()
	h.Attach(bridge)
	h.Publish(BalanceChange{UserID: "u7", Balance: 500, Delta: 500, Category: models.CategoryPurchase})

	msgs := fake.msgs["coins:balance:u7"]
	require.Len(t, msgs, 1)
	var c BalanceChange
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &c))
	assert.Equal(t, int64(500), c.Balance)
	assert.Equal(t, models.CategoryPurchase, c.Category)
}
