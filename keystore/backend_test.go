package keystore

import "testing"

func TestKey_JoinedIdentityIsInjective(t *testing.T) {
	pairs := [][2]Key{
		{{Service: "a", Account: "b/c"}, {Service: "a/b", Account: "c"}},
		{{Service: "a/b/c", Account: "d"}, {Service: "a", Account: "b/c/d"}},
		{{Service: "a%2Fb", Account: "c"}, {Service: "a/b", Account: "c"}},
	}
	for _, pair := range pairs {
		if pair[0].id() == pair[1].id() {
			t.Fatalf("distinct keys share an identity: %+v vs %+v -> %q", pair[0], pair[1], pair[0].id())
		}
	}

	key := Key{Service: "vault", Account: "alice"}
	if key.id() != "vault/alice" {
		t.Fatalf("plain keys keep the readable form, got %q", key.id())
	}
}
