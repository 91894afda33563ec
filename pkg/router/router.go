package router

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/metrics"
)

// Handler receives envelopes for a topic.
// The envelope must not be retained beyond the call unless copied.
type Handler func(env envelope.Envelope) error

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	// Topic is the subscribed envelope kind.
	Topic string

	// ID uniquely identifies the subscription.
	ID uuid.UUID

	handler Handler
}

// Config configures a Router.
type Config struct {
	// Logger receives subscriber failures. Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics records subscriber failures. Nil disables metrics.
	Metrics metrics.Recorder
}

// Router is a topic-keyed subscriber registry.
type Router struct {
	mu sync.RWMutex

	// Subscriptions by topic, in registration order
	topics map[string][]*Subscription

	// Topic lookup by subscription ID
	byID map[uuid.UUID]string

	logger  *slog.Logger
	metrics metrics.Recorder
}

// New creates an empty router.
func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	return &Router{
		topics:  make(map[string][]*Subscription),
		byID:    make(map[uuid.UUID]string),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Subscribe registers h under topic and returns a handle for removal.
func (r *Router) Subscribe(topic string, h Handler) *Subscription {
	sub := &Subscription{
		Topic:   topic,
		ID:      uuid.New(),
		handler: h,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic] = append(r.topics[topic], sub)
	r.byID[sub.ID] = topic
	return sub
}

// Unsubscribe removes a subscription. Removing an already removed
// subscription, or nil, is a no-op.
func (r *Router) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.UnsubscribeID(sub.ID)
}

// UnsubscribeID removes the subscription with the given ID, if present.
func (r *Router) UnsubscribeID(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)

	subs := r.topics[topic]
	for i, s := range subs {
		if s.ID == id {
			// Copy so in-flight dispatch snapshots stay intact
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			subs = next
			break
		}
	}
	if len(subs) == 0 {
		delete(r.topics, topic)
	} else {
		r.topics[topic] = subs
	}
}

// Count returns the number of subscriptions for topic.
func (r *Router) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Dispatch delivers env to every subscriber of env.Kind, in registration
// order, and returns the number of handlers that completed without error.
// No lock is held while handlers run, so handlers may subscribe or
// unsubscribe.
func (r *Router) Dispatch(env envelope.Envelope) int {
	r.mu.RLock()
	subs := r.topics[env.Kind]
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if err := r.invoke(sub, env); err != nil {
			r.metrics.SubscriberError(env.Kind)
			r.logger.Warn("subscriber failed",
				"topic", env.Kind,
				"subscription", sub.ID.String(),
				"error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// invoke runs one handler, converting a panic into an error.
func (r *Router) invoke(sub *Subscription, env envelope.Envelope) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return sub.handler(env)
}
