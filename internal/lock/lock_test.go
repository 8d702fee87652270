package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestMemory_ExclusiveUntilReleased(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := Key("p1", "i1")

	release, err := m.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	if _, err := m.Acquire(ctx, key, time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire() err = %v, want ErrHeld", err)
	}

	if _, err := m.Acquire(ctx, Key("p1", "i2"), time.Minute); err != nil {
		t.Errorf("other key should be free: %v", err)
	}

	release()
	release()

	if _, err := m.Acquire(ctx, key, time.Minute); err != nil {
		t.Errorf("Acquire() after release error: %v", err)
	}
}

func TestMemory_ExpiredLockTakenOver(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }

	staleRelease, err := m.Acquire(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := m.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatalf("expired lock should be taken over: %v", err)
	}

	staleRelease()
	if _, err := m.Acquire(context.Background(), "k", time.Second); !errors.Is(err, ErrHeld) {
		t.Errorf("stale release must not free the new holder's lock, err = %v", err)
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("PRESSROOM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRESSROOM_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	r, err := NewRedis(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedis() error: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	key := Key("test-post", time.Now().Format(time.RFC3339Nano))
	release, err := r.Acquire(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if _, err := r.Acquire(ctx, key, 10*time.Second); !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire() err = %v, want ErrHeld", err)
	}
	release()
	again, err := r.Acquire(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("Acquire() after release error: %v", err)
	}
	again()
}
