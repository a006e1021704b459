package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"disgate/pkg/disgate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestBusPublishDeliversMatchingSubscriptions verifies filtered publish delivery.
func TestBusPublishDeliversMatchingSubscriptions(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, 1, time.Second, nil)
	t.Cleanup(func() {
		_ = bus.Close(context.Background())
	})

	received := make(chan *disgate.Notification, 1)
	_, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{
		Name:   "match",
		Filter: disgate.InterestSet{Kinds: []disgate.Kind{disgate.KindMessageCreate}},
	}, func(_ context.Context, note *disgate.Notification) error {
		received <- note
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), newTestNotification("n1", disgate.KindMessageCreate)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := bus.Publish(context.Background(), newTestNotification("n2", disgate.KindTypingStart)); err != nil {
		t.Fatalf("publish unmatched failed: %v", err)
	}

	select {
	case note := <-received:
		if note.ID != "n1" {
			t.Fatalf("notification id = %s, want n1", note.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	select {
	case note := <-received:
		t.Fatalf("unexpected delivery of %s", note.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestBusBackpressurePolicies verifies queue behavior under each backpressure policy.
func TestBusBackpressurePolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		policy    disgate.BackpressurePolicy
		wantNotes []string
	}{
		{
			name:      "drop newest keeps queued oldest",
			policy:    disgate.BackpressureDropNewest,
			wantNotes: []string{"n1", "n2"},
		},
		{
			name:      "drop oldest keeps latest",
			policy:    disgate.BackpressureDropOldest,
			wantNotes: []string{"n1", "n3"},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			bus := NewBus(1, 1, time.Second, nil)
			t.Cleanup(func() {
				_ = bus.Close(context.Background())
			})

			release := make(chan struct{})
			blocked := make(chan struct{}, 1)
			processed := make([]string, 0, 3)
			var first sync.Once
			var mu sync.Mutex

			_, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{
				Name:         "policy",
				Filter:       disgate.InterestSet{Kinds: []disgate.Kind{disgate.KindMessageCreate}},
				Workers:      1,
				Buffer:       1,
				Backpressure: testCase.policy,
			}, func(_ context.Context, note *disgate.Notification) error {
				first.Do(func() {
					blocked <- struct{}{}
					<-release
				})
				mu.Lock()
				processed = append(processed, note.ID)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("subscribe failed: %v", err)
			}

			if err := bus.Publish(context.Background(), newTestNotification("n1", disgate.KindMessageCreate)); err != nil {
				t.Fatalf("publish n1 failed: %v", err)
			}
			select {
			case <-blocked:
			case <-time.After(time.Second):
				t.Fatal("handler did not block as expected")
			}
			if err := bus.Publish(context.Background(), newTestNotification("n2", disgate.KindMessageCreate)); err != nil {
				t.Fatalf("publish n2 failed: %v", err)
			}
			if err := bus.Publish(context.Background(), newTestNotification("n3", disgate.KindMessageCreate)); err != nil {
				t.Fatalf("publish n3 failed: %v", err)
			}

			close(release)
			eventually(t, 2*time.Second, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(processed) == 2
			})

			mu.Lock()
			gotNotes := append([]string(nil), processed...)
			mu.Unlock()
			if gotNotes[0] != testCase.wantNotes[0] || gotNotes[1] != testCase.wantNotes[1] {
				t.Fatalf("processed = %v, want %v", gotNotes, testCase.wantNotes)
			}
		})
	}
}

// TestBusObservedReflectsSubscriptions verifies the diff-gating probe tracks
// subscription lifecycle.
func TestBusObservedReflectsSubscriptions(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, 1, time.Second, nil)
	t.Cleanup(func() {
		_ = bus.Close(context.Background())
	})

	if bus.Observed(disgate.KindMessageUpdate) {
		t.Fatal("observed true with no subscriptions")
	}

	sub, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{
		Name:   "updates",
		Filter: disgate.InterestSet{Kinds: []disgate.Kind{disgate.KindMessageUpdate}},
	}, func(context.Context, *disgate.Notification) error { return nil })
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if !bus.Observed(disgate.KindMessageUpdate) {
		t.Fatal("observed false for a subscribed kind")
	}
	if bus.Observed(disgate.KindPresenceUpdate) {
		t.Fatal("observed true for an unsubscribed kind")
	}

	if err := sub.Close(context.Background()); err != nil {
		t.Fatalf("close subscription failed: %v", err)
	}
	if bus.Observed(disgate.KindMessageUpdate) {
		t.Fatal("observed true after the subscription closed")
	}
}

// TestBusObservedMatchesUnfilteredSubscription verifies an empty interest
// set observes every kind.
func TestBusObservedMatchesUnfilteredSubscription(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, 1, time.Second, nil)
	t.Cleanup(func() {
		_ = bus.Close(context.Background())
	})

	_, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{Name: "all"},
		func(context.Context, *disgate.Notification) error { return nil })
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if !bus.Observed(disgate.KindGuildUpdate) {
		t.Fatal("unfiltered subscription does not observe arbitrary kinds")
	}
}

// TestBusDroppedNotificationReachesErrorSink verifies backpressure drops are
// reported instead of failing the publish.
func TestBusDroppedNotificationReachesErrorSink(t *testing.T) {
	t.Parallel()

	dropped := make(chan error, 4)
	bus := NewBus(1, 1, time.Second, func(_ context.Context, _ string, err error) {
		dropped <- err
	})
	t.Cleanup(func() {
		_ = bus.Close(context.Background())
	})

	release := make(chan struct{})
	blocked := make(chan struct{}, 1)
	var first sync.Once
	_, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{
		Name:    "slow",
		Workers: 1,
		Buffer:  1,
	}, func(context.Context, *disgate.Notification) error {
		first.Do(func() {
			blocked <- struct{}{}
			<-release
		})
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer close(release)

	if err := bus.Publish(context.Background(), newTestNotification("n1", disgate.KindMessageCreate)); err != nil {
		t.Fatalf("publish n1 failed: %v", err)
	}
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("handler did not block as expected")
	}
	if err := bus.Publish(context.Background(), newTestNotification("n2", disgate.KindMessageCreate)); err != nil {
		t.Fatalf("publish n2 failed: %v", err)
	}
	if err := bus.Publish(context.Background(), newTestNotification("n3", disgate.KindMessageCreate)); err != nil {
		t.Fatalf("publish into full queue failed: %v", err)
	}

	select {
	case err := <-dropped:
		if !errors.Is(err, disgate.ErrNotificationDropped) {
			t.Fatalf("sink error = %v, want dropped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("drop never reached the error sink")
	}
}

// TestBusHandlerPanicIsContained verifies a panicking handler is recovered
// and reported without killing its worker.
func TestBusHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	failures := make(chan error, 2)
	bus := NewBus(8, 1, time.Second, func(_ context.Context, _ string, err error) {
		failures <- err
	})
	t.Cleanup(func() {
		_ = bus.Close(context.Background())
	})

	delivered := make(chan string, 2)
	_, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{Name: "explosive"},
		func(_ context.Context, note *disgate.Notification) error {
			if note.ID == "boom" {
				panic("handler exploded")
			}
			delivered <- note.ID
			return nil
		})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), newTestNotification("boom", disgate.KindMessageCreate)); err != nil {
		t.Fatalf("publish boom failed: %v", err)
	}
	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatal("panic never reached the error sink")
	}

	if err := bus.Publish(context.Background(), newTestNotification("after", disgate.KindMessageCreate)); err != nil {
		t.Fatalf("publish after failed: %v", err)
	}
	select {
	case id := <-delivered:
		if id != "after" {
			t.Fatalf("delivered = %s, want after", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

// TestBusCloseRejectsNewPublish verifies publish rejection after bus closure.
func TestBusCloseRejectsNewPublish(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, 1, time.Second, nil)
	if err := bus.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	err := bus.Publish(context.Background(), newTestNotification("n1", disgate.KindMessageCreate))
	if !errors.Is(err, disgate.ErrBusClosed) {
		t.Fatalf("publish error = %v, want bus closed", err)
	}
	if _, err := bus.Subscribe(context.Background(), disgate.SubscriptionSpec{Name: "late"},
		func(context.Context, *disgate.Notification) error { return nil }); !errors.Is(err, disgate.ErrBusClosed) {
		t.Fatalf("subscribe error = %v, want bus closed", err)
	}
	if bus.Observed(disgate.KindMessageCreate) {
		t.Fatal("closed bus still reports observers")
	}
}

// TestBusPublishInvalidNotification verifies validation happens before fan-out.
func TestBusPublishInvalidNotification(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, 1, time.Second, nil)
	t.Cleanup(func() {
		_ = bus.Close(context.Background())
	})

	tests := []struct {
		name string
		note *disgate.Notification
	}{
		{name: "nil notification", note: nil},
		{name: "missing kind", note: &disgate.Notification{ID: "n1"}},
		{name: "warning without error", note: &disgate.Notification{ID: "n1", Kind: disgate.KindWarning}},
	}
	for _, testCase := range tests {
		if err := bus.Publish(context.Background(), testCase.note); !errors.Is(err, disgate.ErrInvalidNotification) {
			t.Fatalf("%s: publish error = %v, want invalid notification", testCase.name, err)
		}
	}
}

func newTestNotification(id string, kind disgate.Kind) *disgate.Notification {
	return &disgate.Notification{
		ID:   id,
		Kind: kind,
		Seq:  1,
	}
}

func eventually(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatal("condition not met before timeout")
}
