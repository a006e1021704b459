package state

import "disgate/pkg/disgate"

// ObserverSource reports whether any consumer is subscribed for a
// notification kind. The notification bus implements it.
type ObserverSource interface {
	Observed(kind disgate.Kind) bool
}

// ChangeNotifier gates diff computation on observer interest. Diffs are a
// cost/observability tradeoff, not a correctness requirement: with nobody
// listening for a kind, no diff work happens at all.
type ChangeNotifier struct {
	observers ObserverSource
}

// NewChangeNotifier creates a change notifier backed by the given observer
// source. A nil source disables diff computation entirely.
func NewChangeNotifier(observers ObserverSource) *ChangeNotifier {
	return &ChangeNotifier{observers: observers}
}

// DiffIfObserved evaluates compute only when at least one observer is
// registered for kind. Callers invoke it before merging so compute sees the
// pre-merge entity state.
func (n *ChangeNotifier) DiffIfObserved(kind disgate.Kind, compute func() disgate.Differences) disgate.Differences {
	if n == nil || n.observers == nil || !n.observers.Observed(kind) {
		return nil
	}

	return compute()
}
