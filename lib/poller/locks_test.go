package poller

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()

	var counters [3]int
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		for _, key := range []uint{1, 2} {
			wg.Add(1)
			go func(key uint) {
				defer wg.Done()
				km.Lock(key)
				defer km.Unlock(key)
				counters[key]++
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 100, counters[1])
	assert.Equal(t, 100, counters[2])
}
