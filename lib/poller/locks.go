package poller

import "sync"

// keyedMutex serializes work per feed. Two overlapping polls of one feed
// would race the engine's read-then-write identity lookup; polls of
// distinct feeds are independent and run concurrently.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uint]*sync.Mutex)}
}

func (km *keyedMutex) Lock(key uint) {
	km.mu.Lock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		km.locks[key] = lock
	}
	km.mu.Unlock()

	lock.Lock()
}

func (km *keyedMutex) Unlock(key uint) {
	km.mu.Lock()
	lock := km.locks[key]
	km.mu.Unlock()

	lock.Unlock()
}
