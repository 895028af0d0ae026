package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	k := NewKeyed()
	release := k.Acquire("a")
	release()
	release = k.Acquire("a")
	release()
}

func TestContendersGrantedInArrivalOrder(t *testing.T) {
	t.Parallel()

	k := NewKeyed()
	first := k.Acquire("a")

	const n = 5
	var mu sync.Mutex
	var order []int
	started := make(chan struct{}, n)
	done := make(chan struct{})

	go func() {
		for i := 0; i < n; i++ {
			i := i
			go func() {
				started <- struct{}{}
				release := k.Acquire("a")
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				release()
			}()
			// Give each contender time to queue before the next arrives.
			<-started
			time.Sleep(10 * time.Millisecond)
		}
		close(done)
	}()

	<-done
	first()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == n
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDifferentKeysDoNotContend(t *testing.T) {
	t.Parallel()

	k := NewKeyed()
	releaseA := k.Acquire("a")
	defer releaseA()

	acquired := make(chan struct{})
	go func() {
		release := k.Acquire("b")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock for a different key blocked")
	}
}

func TestMutualExclusion(t *testing.T) {
	t.Parallel()

	k := NewKeyed()
	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.Acquire("a")
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max)
}
