package piimask

import "testing"

func TestMaskRedactsEmailPhoneCard(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := Mask(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestMaskRedactsIDLikeToken(t *testing.T) {
	out, changed := Mask("member number 884213 is active")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if !contains(out, "[REDACTED_ID]") {
		t.Fatalf("output missing id marker: %q", out)
	}
}

func TestMaskLeavesCleanTextAlone(t *testing.T) {
	out, changed := Mask("hello there, nice weather today")
	if changed {
		t.Fatalf("changed = true, want false")
	}
	if out != "hello there, nice weather today" {
		t.Fatalf("out = %q, want unchanged input", out)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
