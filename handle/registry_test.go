package handle

import "testing"

func TestRegistry_KindsDeterministicOrder(t *testing.T) {
	registry := NewRegistry()
	for _, kind := range []string{"wallets", "covenants", "scripts"} {
		if err := registry.Register(kind, NewTable[int]()); err != nil {
			t.Fatalf("register %s: %v", kind, err)
		}
	}
	kinds := registry.Kinds()
	want := []string{"covenants", "scripts", "wallets"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d kinds, got %d", len(want), len(kinds))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected ordering at %d: got %v want %v", i, kinds, want)
		}
	}
}

func TestRegistry_DuplicateKindRejected(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("wallets", NewTable[int]()); err != nil {
		t.Fatalf("register wallets: %v", err)
	}
	if err := registry.Register("wallets", NewTable[int]()); err == nil {
		t.Fatalf("expected duplicate kind to be rejected")
	}
	if err := registry.Register("", NewTable[int]()); err == nil {
		t.Fatalf("expected empty kind to be rejected")
	}
}

func TestRegistry_CountsAndReset(t *testing.T) {
	registry := NewRegistry()
	wallets := NewTable[string]()
	keys := NewTable[string]()
	if err := registry.Register("wallets", wallets); err != nil {
		t.Fatalf("register wallets: %v", err)
	}
	if err := registry.Register("private_keys", keys); err != nil {
		t.Fatalf("register private_keys: %v", err)
	}

	wallets.Create("w1")
	wallets.Create("w2")
	keys.Create("k1")

	counts := registry.Counts()
	if counts["wallets"] != 2 || counts["private_keys"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if total := registry.Reset(); total != 3 {
		t.Fatalf("expected 3 dropped entries, got %d", total)
	}
	for kind, count := range registry.Counts() {
		if count != 0 {
			t.Fatalf("kind %s not emptied: %d", kind, count)
		}
	}
}
