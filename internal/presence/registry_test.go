package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	registry, err := NewRegistry("redis://"+s.Addr(), 2*time.Hour)
	if err != nil {
		t.Fatalf("failed to create presence registry: %v", err)
	}
	return registry, s
}

func TestNewRegistry(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	registry, err := NewRegistry("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer registry.Close()

	ctx := context.Background()
	if err := registry.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestHeartbeatAndOnline(t *testing.T) {
	registry, s := setupTestRegistry(t)
	defer registry.Close()
	defer s.Close()

	ctx := context.Background()

	err := registry.Heartbeat(ctx, "c1", "p1", Record{UserID: "u1", Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	if err := registry.Heartbeat(ctx, "c1", "p1", Record{UserID: "u2", Name: "Grace"}); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	// Another project's user stays out of p1's listing.
	if err := registry.Heartbeat(ctx, "c1", "p2", Record{UserID: "u3", Name: "Alan"}); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	online, err := registry.Online(ctx, "c1", "p1")
	if err != nil {
		t.Fatalf("Online failed: %v", err)
	}
	if len(online) != 2 {
		t.Fatalf("expected 2 online users, got %d", len(online))
	}
	byID := map[string]Record{}
	for _, record := range online {
		byID[record.UserID] = record
	}
	if byID["u1"].Email != "ada@example.com" {
		t.Errorf("u1 record = %+v", byID["u1"])
	}
	if byID["u1"].ConnectedAt.IsZero() {
		t.Error("ConnectedAt not stamped")
	}
}

func TestPresenceExpires(t *testing.T) {
	registry, s := setupTestRegistry(t)
	defer registry.Close()
	defer s.Close()

	ctx := context.Background()
	if err := registry.Heartbeat(ctx, "c1", "p1", Record{UserID: "u1"}); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	s.FastForward(3 * time.Hour)

	online, err := registry.Online(ctx, "c1", "p1")
	if err != nil {
		t.Fatalf("Online failed: %v", err)
	}
	if len(online) != 0 {
		t.Errorf("expected stale user to expire, got %d records", len(online))
	}
}

func TestDisconnect(t *testing.T) {
	registry, s := setupTestRegistry(t)
	defer registry.Close()
	defer s.Close()

	ctx := context.Background()
	if err := registry.Heartbeat(ctx, "c1", "p1", Record{UserID: "u1"}); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	if err := registry.Disconnect(ctx, "c1", "p1", "u1"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	online, err := registry.Online(ctx, "c1", "p1")
	if err != nil {
		t.Fatalf("Online failed: %v", err)
	}
	if len(online) != 0 {
		t.Errorf("expected no online users after disconnect, got %d", len(online))
	}
}
