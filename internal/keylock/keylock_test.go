package keylock

import (
	"sync"
	"testing"
)

func TestSerializesPerKey(t *testing.T) {
	locks := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock("order-1")
			counter++
			locks.Unlock("order-1")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected 100 serialized increments, got %d", counter)
	}
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	locks := New()

	locks.Lock("order-1")
	defer locks.Unlock("order-1")

	done := make(chan struct{})
	go func() {
		locks.Lock("order-2")
		locks.Unlock("order-2")
		close(done)
	}()

	<-done // must not deadlock while order-1 is held
}
