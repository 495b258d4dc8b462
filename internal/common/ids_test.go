package common

import "testing"

func TestNewULID_NoCollisionRapidCalls(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NewULID()
		if err != nil {
			t.Fatalf("new ulid: %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("expected 26-char ulid, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d calls", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestNewSessionID_MeetsMinimumLength(t *testing.T) {
	id := NewSessionID()
	if len(id) < 33 {
		t.Fatalf("session id %q shorter than 33 chars", id)
	}
	if id == NewSessionID() {
		t.Fatalf("two session ids collided")
	}
}
