package u2m

import (
	"encoding/base64"
	"testing"
)

func TestChallengeS256(t *testing.T) {
	// RFC 7636 appendix B test vector.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	got := challengeS256(verifier)
	if got != want {
		t.Errorf("challengeS256() = %q, want %q", got, want)
	}

	// Deterministic: same verifier, same challenge.
	if again := challengeS256(verifier); again != got {
		t.Errorf("challengeS256() not deterministic: %q != %q", again, got)
	}

	// 32 bytes SHA256 base64url encoded is always 43 characters.
	if len(got) != 43 {
		t.Errorf("challengeS256() length = %d, want 43", len(got))
	}

	// Different verifiers must not collide on trivially related inputs.
	if challengeS256(verifier+"x") == got {
		t.Error("challengeS256() produced identical challenge for different verifiers")
	}
}

func TestGenerateState(t *testing.T) {
	states := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := generateState()
		if err != nil {
			t.Fatalf("generateState() iteration %d error = %v", i, err)
		}
		if s == "" {
			t.Fatal("generateState() returned empty string")
		}
		if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
			t.Errorf("generateState() not valid base64url: %v", err)
		}
		if states[s] {
			t.Errorf("generateState() generated duplicate: %s", s)
		}
		states[s] = true
	}
}
