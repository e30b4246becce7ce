package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func TestNewULID_SortsByTime(t *testing.T) {
	now := time.Now()
	a := NewULID(now)
	b := NewULID(now.Add(time.Millisecond))
	if a >= b {
		t.Fatalf("expected %s < %s", a, b)
	}
	if _, err := ulid.ParseStrict(a); err != nil {
		t.Fatalf("invalid ulid %q: %v", a, err)
	}
}

func TestNewULID_MonotonicWithinMillisecond(t *testing.T) {
	now := time.Now()
	prev := NewULID(now)
	for i := 0; i < 100; i++ {
		next := NewULID(now)
		if next <= prev {
			t.Fatalf("ulid not monotonic: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestNewUUID(t *testing.T) {
	if _, err := uuid.Parse(NewUUID()); err != nil {
		t.Fatalf("invalid uuid: %v", err)
	}
}
