package main

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/baharkarakas/coinmatch/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	mu    *sync.Mutex
	order *[]string
}

func (c recordingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.order = append(*c.order, "close")
	return nil
}

func TestDrainThenClose_QueuedPublishesFinishFirst(t *testing.T) {
	var mu sync.Mutex
	var order []string
	wp := worker.NewPool(1)

	for i := 0; i < 3; i++ {
		require.True(t, wp.Submit(func() {
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, "publish")
			mu.Unlock()
		}))
	}

	drainThenClose(wp, recordingCloser{mu: &mu, order: &order}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, []string{"publish", "publish", "publish", "close"}, order)
	assert.False(t, wp.Submit(func() {}))
}
