package store

import (
	"context"
	"sync"
	"testing"

	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/models"
)

// TestMemoryFavoriteStore_ToggleInvolution tests that a double toggle is a no-op
func TestMemoryFavoriteStore_ToggleInvolution(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{Logger: logger.Nop()})
	defer store.Close()
	ctx := context.Background()

	store.ToggleFavorite(ctx, 1)
	before, _ := store.load(ctx)

	store.ToggleFavorite(ctx, 2)
	store.ToggleFavorite(ctx, 2)

	after, _ := store.load(ctx)
	if len(after) != 1 || !after.Contains(1) || after.Contains(2) {
		t.Errorf("expected %v, got %v", before.Keys(), after.Keys())
	}
}

// TestMemoryFavoriteStore_ToggleReportsMembership tests the returned flag
func TestMemoryFavoriteStore_ToggleReportsMembership(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{Logger: logger.Nop()})
	defer store.Close()
	ctx := context.Background()

	for i, expected := range []bool{true, false, true} {
		favorite, err := store.ToggleFavorite(ctx, 4)
		if err != nil {
			t.Fatalf("toggle %d failed: %v", i+1, err)
		}
		if favorite != expected {
			t.Errorf("toggle %d: expected favorite=%v, got %v", i+1, expected, favorite)
		}
	}
}

// TestMemoryFavoriteStore_ZeroIdleTimeout tests that a zero keep-warm period releases at once
func TestMemoryFavoriteStore_ZeroIdleTimeout(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{IdleTimeout: 0, Logger: logger.Nop()})
	defer store.Close()

	sub, err := store.ObserveFavorites(context.Background())
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if !store.feed.Warm() {
		t.Fatal("expected feed to be warm while observed")
	}

	sub.Close()

	if store.feed.Warm() {
		t.Error("expected feed to go cold as soon as the last observer left")
	}
}

// TestMemoryFavoriteStore_Observe tests that toggles reach subscribers
func TestMemoryFavoriteStore_Observe(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{Logger: logger.Nop()})
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := store.ObserveFavorites(ctx)
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	nextFavorites(t, sub, func(s models.FavoriteSet) bool { return len(s) == 0 })

	store.ToggleFavorite(ctx, 9)
	nextFavorites(t, sub, func(s models.FavoriteSet) bool { return s.Contains(9) })
}

// TestMemoryFavoriteStore_SnapshotsAreIndependent tests that emitted sets are copies
func TestMemoryFavoriteStore_SnapshotsAreIndependent(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{Logger: logger.Nop()})
	defer store.Close()
	ctx := context.Background()

	snapshot, _ := store.load(ctx)
	store.ToggleFavorite(ctx, 1)

	if snapshot.Contains(1) {
		t.Error("expected earlier snapshot to be unaffected by later toggles")
	}
}

// TestMemoryFavoriteStore_ConcurrentToggles tests same-id toggles under contention
func TestMemoryFavoriteStore_ConcurrentToggles(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{Logger: logger.Nop()})
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 101; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.ToggleFavorite(context.Background(), 5)
		}()
	}
	wg.Wait()

	set, _ := store.load(context.Background())
	if !set.Contains(5) {
		t.Error("expected '5' present after an odd number of toggles")
	}
}

// TestMemoryFavoriteStore_CancelledContext tests that a cancelled toggle changes nothing
func TestMemoryFavoriteStore_CancelledContext(t *testing.T) {
	store := NewMemoryFavoriteStore(Options{Logger: logger.Nop()})
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.ToggleFavorite(ctx, 1); err == nil {
		t.Error("expected context error, got nil")
	}
	set, _ := store.load(context.Background())
	if len(set) != 0 {
		t.Errorf("expected empty set, got %v", set.Keys())
	}
}
