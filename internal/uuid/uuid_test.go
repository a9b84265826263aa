package uuid

import (
	"testing"
)

func TestNewGeneratesValidV4(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New()
		if !IsValid(id) {
			t.Fatalf("Generated invalid UUID: %s", id)
		}
		if seen[id] {
			t.Fatalf("Generated duplicate UUID: %s", id)
		}
		seen[id] = true
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("550e8400-e29b-41d4-a716-446655440000"); err != nil {
		t.Errorf("Expected valid v4 UUID, got %v", err)
	}
	for _, bad := range []string{
		"",
		"not-a-uuid",
		"550e8400-e29b-11d4-a716-446655440000", // v1
		"550E8400-E29B-41D4-A716-44665544000",  // truncated
	} {
		if err := Validate(bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}
