// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager hands out one mutex per key. Idle locks are pruned by a
// background sweep once the table grows past maxLocks.
type LockManager struct {
	locks      map[string]*lockInfo
	globalLock sync.Mutex
	lockTTL    time.Duration
	maxLocks   int
	stop       chan struct{}
	stopOnce   sync.Once
}

type lockInfo struct {
	mu       sync.Mutex
	lastUsed time.Time
	refs     int
}

func NewLockManager() *LockManager {
	lm := &LockManager{
		locks:    make(map[string]*lockInfo),
		lockTTL:  30 * time.Minute,
		maxLocks: 200,
		stop:     make(chan struct{}),
	}
	go lm.cleanupLoop(5 * time.Minute)
	return lm
}

// WithLock runs fn while holding the lock for key.
func (lm *LockManager) WithLock(key string, fn func() error) error {
	info := lm.acquire(key)
	info.mu.Lock()
	defer func() {
		info.mu.Unlock()
		lm.release(info)
	}()
	return fn()
}

func (lm *LockManager) acquire(key string) *lockInfo {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	info, ok := lm.locks[key]
	if !ok {
		info = &lockInfo{}
		lm.locks[key] = info
	}
	info.refs++
	info.lastUsed = time.Now()
	return info
}

func (lm *LockManager) release(info *lockInfo) {
	lm.globalLock.Lock()
	info.refs--
	info.lastUsed = time.Now()
	lm.globalLock.Unlock()
}

// Stop ends the cleanup goroutine.
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() { close(lm.stop) })
}

func (lm *LockManager) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lm.cleanupUnusedLocks(time.Now())
		case <-lm.stop:
			return
		}
	}
}

func (lm *LockManager) cleanupUnusedLocks(now time.Time) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	if len(lm.locks) <= lm.maxLocks {
		return
	}
	for key, info := range lm.locks {
		if info.refs == 0 && now.Sub(info.lastUsed) > lm.lockTTL {
			delete(lm.locks, key)
		}
	}
}

func (lm *LockManager) size() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.locks)
}
