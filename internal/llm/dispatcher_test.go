package llm

import "testing"

func TestEstimateCharCountDividedByFour(t *testing.T) {
	u := estimate("abcdefgh", "abcd")
	if u.InputTokens != 2 {
		t.Fatalf("expected 2 input tokens, got %d", u.InputTokens)
	}
	if u.OutputTokens != 1 {
		t.Fatalf("expected 1 output token, got %d", u.OutputTokens)
	}
	if !u.Estimated {
		t.Fatal("expected Estimated=true")
	}
}

func TestClassifyRateLimit(t *testing.T) {
	err := classify(&statusErr{code: 429, body: "slow down"})
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error")
	}
}
