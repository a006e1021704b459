package state

import (
	"fmt"
	"testing"

	"disgate/pkg/disgate"
)

// TestRepositoryPutKeepsExistingInstance verifies a known key never gets a
// fresh instance on re-insert.
func TestRepositoryPutKeepsExistingInstance(t *testing.T) {
	t.Parallel()

	repo := NewRepository[*disgate.User]()
	original := &disgate.User{ID: "u1", Username: "alice"}
	repo.Put(original)
	repo.Put(&disgate.User{ID: "u1", Username: "impostor"})

	stored, found := repo.Get("u1")
	if !found {
		t.Fatal("u1 not found")
	}
	if stored != original {
		t.Fatal("stored instance replaced by re-insert")
	}
	if stored.Username != "alice" {
		t.Fatalf("username = %s, want alice", stored.Username)
	}
}

// TestRepositoryBoundedEvictsOldest verifies FIFO eviction at capacity.
func TestRepositoryBoundedEvictsOldest(t *testing.T) {
	t.Parallel()

	repo := NewBoundedRepository[*disgate.Message](3)
	for idx := 1; idx <= 4; idx++ {
		repo.Put(&disgate.Message{ID: fmt.Sprintf("m%d", idx)})
	}

	if repo.Len() != 3 {
		t.Fatalf("len = %d, want 3", repo.Len())
	}
	if repo.Has("m1") {
		t.Fatal("oldest entry m1 should have been evicted")
	}
	for _, id := range []string{"m2", "m3", "m4"} {
		if !repo.Has(id) {
			t.Fatalf("%s missing after eviction", id)
		}
	}
}

// TestRepositoryBoundedDeleteFreesCapacity verifies a deleted entry no
// longer counts against the bound.
func TestRepositoryBoundedDeleteFreesCapacity(t *testing.T) {
	t.Parallel()

	repo := NewBoundedRepository[*disgate.Message](2)
	repo.Put(&disgate.Message{ID: "m1"})
	repo.Put(&disgate.Message{ID: "m2"})

	if _, removed := repo.Delete("m1"); !removed {
		t.Fatal("delete m1 failed")
	}
	repo.Put(&disgate.Message{ID: "m3"})

	if !repo.Has("m2") || !repo.Has("m3") {
		t.Fatal("expected m2 and m3 present after delete and re-fill")
	}
}

// TestRepositoryRangeStopsEarly verifies Range honors the stop signal.
func TestRepositoryRangeStopsEarly(t *testing.T) {
	t.Parallel()

	repo := NewRepository[*disgate.User]()
	repo.Put(&disgate.User{ID: "u1"})
	repo.Put(&disgate.User{ID: "u2"})
	repo.Put(&disgate.User{ID: "u3"})

	visited := 0
	repo.Range(func(*disgate.User) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
}

// TestRepositoryReset verifies Reset clears entries and the eviction order.
func TestRepositoryReset(t *testing.T) {
	t.Parallel()

	repo := NewBoundedRepository[*disgate.Message](2)
	repo.Put(&disgate.Message{ID: "m1"})
	repo.Put(&disgate.Message{ID: "m2"})
	repo.Reset()

	if repo.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", repo.Len())
	}
	repo.Put(&disgate.Message{ID: "m3"})
	repo.Put(&disgate.Message{ID: "m4"})
	repo.Put(&disgate.Message{ID: "m5"})
	if repo.Has("m3") {
		t.Fatal("expected m3 evicted under fresh order tracking")
	}
}
