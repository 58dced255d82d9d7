package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
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
	assert.Zero(t, k.size())
}

func TestKeyedMutexOrderedMultiLock(t *testing.T) {
	k := newKeyedMutex()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 100; i++ {
			unlock := k.Lock(1, 2)
			unlock()
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		unlock := k.Lock(2, 1, 2)
		unlock()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock between opposite lock orders")
	}
	assert.Zero(t, k.size())
}
