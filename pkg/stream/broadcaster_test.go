package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	b := NewBroadcaster()
	_, events, unsubscribe := b.Subscribe("stripe")
	defer unsubscribe()

	b.Publish("stripe", []byte(`{"phase":"research"}`))

	select {
	case got := <-events:
		assert.Equal(t, `{"phase":"research"}`, string(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublishOnlyReachesMatchingChannel(t *testing.T) {
	b := NewBroadcaster()
	_, events, unsubscribe := b.Subscribe("stripe")
	defer unsubscribe()

	b.Publish("shopify", []byte(`{"phase":"generator"}`))

	select {
	case <-events:
		t.Fatal("subscriber to stripe should not receive shopify events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	id, events, unsubscribe := b.Subscribe("stripe")
	require.NotEmpty(t, id)
	require.Equal(t, 1, b.SubscriberCount("stripe"))

	unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount("stripe"))

	_, open := <-events
	assert.False(t, open, "channel should be closed after unsubscribe")
}

func TestPublishDoesNotBlockOnFullSubscriberBuffer(t *testing.T) {
	b := NewBroadcaster()
	_, _, unsubscribe := b.Subscribe("stripe")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish("stripe", []byte("event"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer instead of dropping")
	}
}

func TestMultipleSubscribersAllReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster()
	_, events1, unsub1 := b.Subscribe("stripe")
	defer unsub1()
	_, events2, unsub2 := b.Subscribe("stripe")
	defer unsub2()

	b.Publish("stripe", []byte("hello"))

	for _, ch := range []<-chan []byte{events1, events2} {
		select {
		case got := <-ch:
			assert.Equal(t, "hello", string(got))
		case <-time.After(time.Second):
			t.Fatal("a subscriber did not receive the broadcast event")
		}
	}
}
