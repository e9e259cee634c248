package idhash

import "testing"

func TestComputeRunID(t *testing.T) {
	id := ComputeRunID(42, 2026, 360, 100, false)
	if id == "" {
		t.Fatal("expected non-empty run id")
	}

	// Deterministic: same inputs, same id.
	if again := ComputeRunID(42, 2026, 360, 100, false); again != id {
		t.Errorf("run id not deterministic: %s vs %s", id, again)
	}
}

func TestComputeRunID_FieldsDiscriminate(t *testing.T) {
	base := ComputeRunID(42, 2026, 360, 100, false)

	variants := []string{
		ComputeRunID(43, 2026, 360, 100, false),
		ComputeRunID(42, 2027, 360, 100, false),
		ComputeRunID(42, 2026, 120, 100, false),
		ComputeRunID(42, 2026, 360, 500, false),
		ComputeRunID(42, 2026, 360, 100, true),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base id", i)
		}
	}
}

func TestComputeRunID_Base58Alphabet(t *testing.T) {
	id := ComputeRunID(-7, 1999, 1, 1, true)
	for _, c := range id {
		switch {
		case c >= '1' && c <= '9', c >= 'A' && c <= 'H', c >= 'J' && c <= 'N',
			c >= 'P' && c <= 'Z', c >= 'a' && c <= 'k', c >= 'm' && c <= 'z':
		default:
			t.Fatalf("character %q outside base58 alphabet in %s", c, id)
		}
	}
}
