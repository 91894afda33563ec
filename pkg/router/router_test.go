package router

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/eventlink-go/pkg/envelope"
)

func quietRouter() *Router {
	return New(Config{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})
}

func env(kind string) envelope.Envelope {
	return envelope.Envelope{Kind: kind}
}

func TestDispatchRegistrationOrder(t *testing.T) {
	r := quietRouter()
	var order []int

	for i := 1; i <= 3; i++ {
		i := i
		r.Subscribe("content_update", func(envelope.Envelope) error {
			order = append(order, i)
			return nil
		})
	}

	n := r.Dispatch(env("content_update"))
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatchNoSubscribers(t *testing.T) {
	r := quietRouter()
	called := false
	r.Subscribe("a", func(envelope.Envelope) error { called = true; return nil })

	assert.Equal(t, 0, r.Dispatch(env("b")))
	assert.False(t, called)
}

func TestDispatchIsolatesFailingHandlers(t *testing.T) {
	var logBuf bytes.Buffer
	r := New(Config{Logger: slog.New(slog.NewTextHandler(&logBuf, nil))})

	var got []string
	r.Subscribe("x", func(envelope.Envelope) error {
		got = append(got, "first")
		return errors.New("boom")
	})
	r.Subscribe("x", func(envelope.Envelope) error {
		got = append(got, "second")
		panic("handler exploded")
	})
	r.Subscribe("x", func(envelope.Envelope) error {
		got = append(got, "third")
		return nil
	})

	var delivered int
	require.NotPanics(t, func() { delivered = r.Dispatch(env("x")) })

	assert.Equal(t, []string{"first", "second", "third"}, got)
	assert.Equal(t, 1, delivered)
	assert.Contains(t, logBuf.String(), "boom")
	assert.Contains(t, logBuf.String(), "handler exploded")
}

func TestUnsubscribeIdempotent(t *testing.T) {
	r := quietRouter()
	calls := 0
	keep := r.Subscribe("x", func(envelope.Envelope) error { calls++; return nil })
	sub := r.Subscribe("x", func(envelope.Envelope) error { calls += 100; return nil })

	r.Unsubscribe(sub)
	r.Unsubscribe(sub)
	r.Unsubscribe(nil)
	r.UnsubscribeID(sub.ID)

	assert.Equal(t, 1, r.Count("x"))
	r.Dispatch(env("x"))
	assert.Equal(t, 1, calls)

	r.UnsubscribeID(keep.ID)
	assert.Equal(t, 0, r.Count("x"))
}

func TestHandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	r := quietRouter()
	var got []string

	var first *Subscription
	first = r.Subscribe("x", func(envelope.Envelope) error {
		got = append(got, "first")
		r.Unsubscribe(first)
		return nil
	})
	r.Subscribe("x", func(envelope.Envelope) error {
		got = append(got, "second")
		r.Subscribe("x", func(envelope.Envelope) error {
			got = append(got, "late")
			return nil
		})
		return nil
	})

	r.Dispatch(env("x"))
	assert.Equal(t, []string{"first", "second"}, got, "snapshot taken at dispatch start")

	got = nil
	r.Dispatch(env("x"))
	assert.Equal(t, []string{"second", "late"}, got)
}

func TestSubscriptionIDsAreUnique(t *testing.T) {
	r := quietRouter()
	a := r.Subscribe("x", func(envelope.Envelope) error { return nil })
	b := r.Subscribe("x", func(envelope.Envelope) error { return nil })

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "x", a.Topic)
}

func TestPublishConnectionEvent(t *testing.T) {
	r := quietRouter()

	var got ConnectionEvent
	r.Subscribe(TopicConnection, func(e envelope.Envelope) error {
		return e.Decode(&got)
	})

	for _, codec := range []envelope.Codec{envelope.JSON, envelope.CBOR} {
		got = ConnectionEvent{}
		require.NoError(t, r.Publish(codec, TopicConnection, ConnectionEvent{Status: StatusFailed, Attempt: 5}))
		assert.Equal(t, ConnectionEvent{Status: StatusFailed, Attempt: 5}, got)
	}
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(TopicConnection))
	assert.True(t, IsReserved(TopicError))
	assert.False(t, IsReserved("content_update"))
	assert.False(t, IsReserved(""))
}
