package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"disgate/pkg/disgate"
)

type recordingRequester struct {
	mu       sync.Mutex
	requests []disgate.MemberFetchRequest
	fail     error
}

func (r *recordingRequester) RequestGuildMembers(_ context.Context, req disgate.MemberFetchRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)

	return r.fail
}

func (r *recordingRequester) Enrich(context.Context) error { return nil }

func (r *recordingRequester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.requests)
}

// TestChunkBootstrapLargeUnavailableGuild verifies an unavailable large
// guild is marked pending and gets exactly one roster fetch.
func TestChunkBootstrapLargeUnavailableGuild(t *testing.T) {
	t.Parallel()

	requester := &recordingRequester{}
	chunks := NewMemberChunkCoordinator(requester, true, 250, nil, nil)

	guild := &disgate.Guild{ID: "g1", Unavailable: true, MemberCount: 5000}
	if !chunks.Bootstrap(context.Background(), guild) {
		t.Fatal("bootstrap did not issue a fetch for a large guild")
	}
	if !chunks.HasPending("g1") {
		t.Fatal("unavailable guild not marked pending")
	}
	if requester.count() != 1 {
		t.Fatalf("fetches = %d, want 1", requester.count())
	}

	// a second availability signal must not duplicate the in-flight fetch
	if chunks.GuildAvailable(context.Background(), guild) {
		t.Fatal("duplicate fetch issued while one is outstanding")
	}
	if requester.count() != 1 {
		t.Fatalf("fetches after duplicate signal = %d, want 1", requester.count())
	}
}

// TestChunkBootstrapSmallGuild verifies a guild at or below the threshold
// never triggers a fetch.
func TestChunkBootstrapSmallGuild(t *testing.T) {
	t.Parallel()

	requester := &recordingRequester{}
	chunks := NewMemberChunkCoordinator(requester, true, 250, nil, nil)

	guild := &disgate.Guild{ID: "g1", MemberCount: 10}
	if chunks.Bootstrap(context.Background(), guild) {
		t.Fatal("fetch issued for a small guild")
	}
	if chunks.HasPending("g1") {
		t.Fatal("available guild marked pending")
	}
	if requester.count() != 0 {
		t.Fatalf("fetches = %d, want 0", requester.count())
	}
}

// TestChunkFinalPageReopensFetching verifies the outstanding guard clears on
// the final chunk page and only then.
func TestChunkFinalPageReopensFetching(t *testing.T) {
	t.Parallel()

	requester := &recordingRequester{}
	chunks := NewMemberChunkCoordinator(requester, true, 250, nil, nil)
	guild := &disgate.Guild{ID: "g1", MemberCount: 1000}

	chunks.GuildAvailable(context.Background(), guild)
	if requester.count() != 1 {
		t.Fatalf("fetches = %d, want 1", requester.count())
	}

	chunks.ChunkReceived("g1", false)
	if chunks.GuildAvailable(context.Background(), guild) {
		t.Fatal("fetch issued while earlier fetch still outstanding")
	}

	chunks.ChunkReceived("g1", true)
	if !chunks.GuildAvailable(context.Background(), guild) {
		t.Fatal("fetch not issued after outstanding cleared")
	}
	if requester.count() != 2 {
		t.Fatalf("fetches = %d, want 2", requester.count())
	}
}

// TestChunkGuildAvailableClearsPending verifies a full snapshot releases the
// pending marker.
func TestChunkGuildAvailableClearsPending(t *testing.T) {
	t.Parallel()

	chunks := NewMemberChunkCoordinator(&recordingRequester{}, true, 250, nil, nil)
	chunks.Bootstrap(context.Background(), &disgate.Guild{ID: "g1", Unavailable: true, MemberCount: 10})
	if !chunks.HasPending("g1") {
		t.Fatal("guild not pending after unavailable bootstrap")
	}

	chunks.GuildAvailable(context.Background(), &disgate.Guild{ID: "g1", MemberCount: 10})
	if chunks.HasPending("g1") {
		t.Fatal("guild still pending after full snapshot")
	}
}

// TestChunkDisabledNeverFetches verifies fetch gating by configuration and by
// requester presence.
func TestChunkDisabledNeverFetches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requester disgate.Requester
		enabled   bool
	}{
		{name: "disabled by configuration", requester: &recordingRequester{}, enabled: false},
		{name: "no requester", requester: nil, enabled: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			chunks := NewMemberChunkCoordinator(testCase.requester, testCase.enabled, 250, nil, nil)
			guild := &disgate.Guild{ID: "g1", MemberCount: 5000}
			if chunks.Bootstrap(context.Background(), guild) {
				t.Fatal("fetch issued while fetching is disabled")
			}
		})
	}
}

// TestChunkFetchFailureReachesErrorSink verifies request failures are
// downgraded to the async error sink and the warning hook, never raised.
func TestChunkFetchFailureReachesErrorSink(t *testing.T) {
	t.Parallel()

	requestErr := errors.New("socket gone")
	var sunk, warned []error
	chunks := NewMemberChunkCoordinator(
		&recordingRequester{fail: requestErr},
		true,
		250,
		func(_ context.Context, _ string, err error) {
			sunk = append(sunk, err)
		},
		func(_ context.Context, err error) {
			warned = append(warned, err)
		},
	)

	chunks.Bootstrap(context.Background(), &disgate.Guild{ID: "g1", MemberCount: 1000})
	if len(sunk) != 1 {
		t.Fatalf("sunk errors = %d, want 1", len(sunk))
	}
	if !errors.Is(sunk[0], requestErr) {
		t.Fatalf("sunk error = %v, want wrapped %v", sunk[0], requestErr)
	}
	if len(warned) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warned))
	}
	if !errors.Is(warned[0], requestErr) {
		t.Fatalf("warning = %v, want wrapped %v", warned[0], requestErr)
	}
}

// TestChunkFetchFailureEmitsWarningNotification verifies a failed roster
// fetch surfaces to subscribers as a warning notification through the engine.
func TestChunkFetchFailureEmitsWarningNotification(t *testing.T) {
	t.Parallel()

	requestErr := errors.New("socket gone")
	emitter := newCaptureEmitter()
	engine := New(
		&recordingRequester{fail: requestErr},
		emitter,
		WithLoadAllMembers(true),
		WithLargeGuildThreshold(250),
		WithAsyncErrorSink(func(context.Context, string, error) {}),
	)

	engine.chunks.GuildAvailable(context.Background(), &disgate.Guild{ID: "g1", MemberCount: 1000})

	warnings := emitter.byKind(disgate.KindWarning)
	if len(warnings) != 1 {
		t.Fatalf("warning notifications = %d, want 1", len(warnings))
	}
	if !errors.Is(warnings[0].Err, requestErr) {
		t.Fatalf("warning error = %v, want wrapped %v", warnings[0].Err, requestErr)
	}
}

// TestChunkResetClearsTracking verifies session establishment wipes both
// tracking sets.
func TestChunkResetClearsTracking(t *testing.T) {
	t.Parallel()

	requester := &recordingRequester{}
	chunks := NewMemberChunkCoordinator(requester, true, 250, nil, nil)
	guild := &disgate.Guild{ID: "g1", Unavailable: true, MemberCount: 1000}
	chunks.Bootstrap(context.Background(), guild)

	chunks.Reset()
	if chunks.HasPending("g1") {
		t.Fatal("pending survived reset")
	}
	if !chunks.GuildAvailable(context.Background(), guild) {
		t.Fatal("fetch not issued after reset cleared outstanding")
	}
}
