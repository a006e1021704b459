package disgate

import "errors"

var (
	// ErrInvalidNotification indicates a notification missing mandatory fields.
	ErrInvalidNotification = errors.New("disgate: invalid notification")
	// ErrInvalidSubscription indicates a subscription configuration is invalid.
	ErrInvalidSubscription = errors.New("disgate: invalid subscription")
	// ErrSubscriptionClosed indicates a subscription is no longer active.
	ErrSubscriptionClosed = errors.New("disgate: subscription closed")
	// ErrNotificationDropped indicates a non-blocking backpressure drop.
	ErrNotificationDropped = errors.New("disgate: notification dropped due to backpressure")
	// ErrBusClosed indicates the notification bus has shut down.
	ErrBusClosed = errors.New("disgate: notification bus closed")
	// ErrNoRequester indicates an outbound request was attempted without a
	// configured request collaborator.
	ErrNoRequester = errors.New("disgate: no requester configured")
)
