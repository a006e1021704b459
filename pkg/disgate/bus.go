package disgate

import (
	"context"
	"time"
)

// BackpressurePolicy defines how queues behave when subscriber buffers are full.
type BackpressurePolicy string

const (
	// BackpressureDropNewest drops the incoming notification when full.
	BackpressureDropNewest BackpressurePolicy = "drop_newest"
	// BackpressureDropOldest evicts the oldest queued notification before enqueue.
	BackpressureDropOldest BackpressurePolicy = "drop_oldest"
	// BackpressureBlock blocks until queue space is available or context is canceled.
	BackpressureBlock BackpressurePolicy = "block"
)

// InterestSet describes which notification kinds a subscriber consumes. An
// empty set matches everything.
type InterestSet struct {
	Kinds []Kind
}

// Matches reports whether the notification falls inside this interest set.
func (i InterestSet) Matches(note *Notification) bool {
	if note == nil {
		return false
	}
	if len(i.Kinds) == 0 {
		return true
	}
	for _, kind := range i.Kinds {
		if kind == note.Kind {
			return true
		}
	}

	return false
}

// SubscriptionSpec configures a single consumer subscription.
type SubscriptionSpec struct {
	Name           string
	Filter         InterestSet
	Buffer         int
	Workers        int
	HandlerTimeout time.Duration
	Backpressure   BackpressurePolicy
}

// NotificationHandler consumes one published notification.
type NotificationHandler func(ctx context.Context, note *Notification) error

// Subscription controls an active notification stream registration.
type Subscription interface {
	// Name returns the subscription identifier.
	Name() string
	// Close stops delivery for this subscription.
	Close(ctx context.Context) error
}

// NotificationBus is the asynchronous pub/sub contract between the state
// engine and its consumers. Observed lets producers skip work, such as diff
// computation, that no active subscription would see.
type NotificationBus interface {
	// Publish delivers one notification to all matching subscriptions.
	Publish(ctx context.Context, note *Notification) error
	// Subscribe registers a handler with bounded buffering semantics.
	Subscribe(ctx context.Context, spec SubscriptionSpec, handler NotificationHandler) (Subscription, error)
	// Observed reports whether any active subscription matches the kind.
	Observed(kind Kind) bool
	// Close shuts down the bus and all active subscriptions.
	Close(ctx context.Context) error
}
