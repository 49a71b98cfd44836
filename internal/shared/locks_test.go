package shared

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumberingLockKey(t *testing.T) {
	key := NumberingLockKey(time.Date(2024, 10, 19, 15, 0, 0, 0, time.UTC), 7)
	assert.Equal(t, "ledger:numbering:20241019:7", key)
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	var km KeyedMutex
	var wg sync.WaitGroup
	inside := 0
	maxInside := 0
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a")
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
	assert.Empty(t, km.locks)
}
