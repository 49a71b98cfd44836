package shared

import (
	"fmt"
	"sync"
	"time"
)

// NumberingLockKey names the critical section guarding entry numbers of one branch and day.
func NumberingLockKey(date time.Time, branchID int64) string {
	return fmt.Sprintf("ledger:numbering:%s:%d", date.Format("20060102"), branchID)
}

// KeyedMutex serialises callers sharing a key inside one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
