package domain

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestNewUIDDeterministic(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewUID("alice", 1, at)
	b := NewUID("alice", 1, at)
	if a != b {
		t.Fatalf("same inputs produced different uids: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("uid length %d, want 64 hex chars", len(a))
	}
}

func TestNewUIDVariesWithInputs(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := NewUID("alice", 1, at)
	if NewUID("bob", 1, at) == base {
		t.Fatalf("different callers produced the same uid")
	}
	if NewUID("alice", 2, at) == base {
		t.Fatalf("different nonces produced the same uid")
	}
	if NewUID("alice", 1, at.Add(time.Nanosecond)) == base {
		t.Fatalf("different mint times produced the same uid")
	}
}

func TestNewUIDUniquenessProperty(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rapid.Check(t, func(t *rapid.T) {
		seen := map[UID]struct{}{}
		callers := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 1, 4, rapid.ID[string]).Draw(t, "callers")
		mints := rapid.IntRange(1, 50).Draw(t, "mints")
		for _, c := range callers {
			for n := 1; n <= mints; n++ {
				uid := NewUID(Identity(c), uint64(n), at)
				if _, dup := seen[uid]; dup {
					t.Fatalf("duplicate uid for caller %s nonce %d", c, n)
				}
				seen[uid] = struct{}{}
			}
		}
	})
}

func TestHashBytes(t *testing.T) {
	h := HashBytes([]byte("hello"))
	// sha256("hello")
	want := Hash("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	if h != want {
		t.Fatalf("digest %s, want %s", h, want)
	}
	if HashBytes([]byte("hello")) != HashBytes([]byte("hello")) {
		t.Fatalf("digest not deterministic")
	}
	if HashBytes([]byte("hello")) == HashBytes([]byte("hello!")) {
		t.Fatalf("distinct payloads collided")
	}
}
