package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, s *Subscription[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok, "subscription ended unexpectedly")
	return v
}

func assertNothingPending[T any](t *testing.T, s *Subscription[T]) {
	t.Helper()
	select {
	case v, ok := <-s.C():
		if ok {
			t.Fatalf("unexpected value %v", v)
		}
	default:
	}
}

func TestSubscribeReplaysLatest(t *testing.T) {
	b := New(0)
	b.Publish(1)
	b.Publish(2)

	sub := b.Subscribe()
	defer sub.Unsubscribe()

	assert.Equal(t, 2, receive(t, sub))
	assertNothingPending(t, sub)
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	b := New("idle")
	first := b.Subscribe()
	second := b.Subscribe()

	assert.Equal(t, "idle", receive(t, first))
	assert.Equal(t, "idle", receive(t, second))

	b.Publish("loading")

	assert.Equal(t, "loading", receive(t, first))
	assert.Equal(t, "loading", receive(t, second))
	assert.Equal(t, "loading", b.Value())
	assert.Equal(t, 2, b.SubscriberCount())
}

func TestSlowSubscriberGetsLatestValue(t *testing.T) {
	b := New(0)
	sub := b.Subscribe()

	for i := 1; i <= 100; i++ {
		b.Publish(i)
	}

	assert.Equal(t, 100, receive(t, sub))
	assertNothingPending(t, sub)
}

func TestBufferedSubscriberKeepsNewestValues(t *testing.T) {
	b := New(0, WithBufferSize(3))
	sub := b.Subscribe()

	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}

	assert.Equal(t, 3, receive(t, sub))
	assert.Equal(t, 4, receive(t, sub))
	assert.Equal(t, 5, receive(t, sub))
	assertNothingPending(t, sub)
}

func TestUnsubscribeDoesNotAffectOthers(t *testing.T) {
	b := New(0)
	leaving := b.Subscribe()
	staying := b.Subscribe()
	receive(t, leaving)
	receive(t, staying)

	leaving.Unsubscribe()
	leaving.Unsubscribe()

	b.Publish(7)

	_, ok := <-leaving.C()
	assert.False(t, ok)
	assert.Equal(t, 7, receive(t, staying))
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestClose(t *testing.T) {
	b := New(1)
	sub := b.Subscribe()
	receive(t, sub)

	b.Close()
	b.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	b.Publish(2)
	assert.Equal(t, 2, b.Value())

	late := b.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
	assert.NotPanics(t, late.Unsubscribe)
}

func TestAllYieldsPublishedValues(t *testing.T) {
	b := New(0)
	sub := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range sub.All(ctx) {
			got = append(got, v)
			if v == 3 {
				return
			}
		}
	}()

	// Publish only after the previous value was consumed so nothing conflates.
	require.Eventually(t, func() bool { return len(sub.C()) == 0 }, time.Second, time.Millisecond)
	b.Publish(1)
	require.Eventually(t, func() bool { return len(sub.C()) == 0 }, time.Second, time.Millisecond)
	b.Publish(3)

	<-done
	assert.Equal(t, 3, got[len(got)-1])
	assert.Equal(t, 0, got[0])
}

func TestNextHonoursContext(t *testing.T) {
	b := New(0)
	sub := b.Subscribe()
	receive(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := sub.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
