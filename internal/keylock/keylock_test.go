package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestLock_SerializesSameKey(t *testing.T) {
	m := New()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("user:1")
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, m.Len())
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	m := New()
	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestLockTx_HeldUntilUnitEnds(t *testing.T) {
	m := New()
	ctx, u := repo.Begin(context.Background())

	m.LockTx(ctx, "user:1")()
	m.LockTx(ctx, "user:1")() // reentrant inside the unit

	acquired := make(chan struct{})
	go func() {
		unlock := m.Lock("user:1")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("lock released before the unit finished")
	case <-time.After(20 * time.Millisecond):
	}

	u.Finish(true)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released by Finish")
	}
}
