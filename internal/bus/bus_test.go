package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEachSubscriber(t *testing.T) {
	b := New[int](4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish(1)
	b.Publish(2)

	require.Equal(t, 1, <-s1.C)
	require.Equal(t, 2, <-s1.C)
	require.Equal(t, 1, <-s2.C)
	require.Equal(t, 2, <-s2.C)
}

func TestBusDropsOldestOnFullQueue(t *testing.T) {
	b := New[int](2)
	s := b.Subscribe()

	b.Publish(1)
	b.Publish(2)
	b.Publish(3) // queue capacity 2: should drop 1, keep 2 and 3

	require.Equal(t, 2, <-s.C)
	require.Equal(t, 3, <-s.C)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int](2)
	s := b.Subscribe()
	s.Unsubscribe()

	_, open := <-s.C
	require.False(t, open)
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New[int](1)
	s := b.Subscribe()
	_ = s

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}
}
