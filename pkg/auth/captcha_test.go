package auth

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// solve parses "a op b = ?" and computes the answer.
func solve(t *testing.T, question string) int {
	t.Helper()
	fields := strings.Fields(question)
	if len(fields) != 5 {
		t.Fatalf("Unexpected question format: %q", question)
	}
	a, err := strconv.Atoi(fields[0])
	if err != nil {
		t.Fatalf("Bad operand in %q: %v", question, err)
	}
	b, err := strconv.Atoi(fields[2])
	if err != nil {
		t.Fatalf("Bad operand in %q: %v", question, err)
	}
	switch fields[1] {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	}
	t.Fatalf("Unknown operator in %q", question)
	return 0
}

func TestCaptchaStore_GenerateAndVerify(t *testing.T) {
	store := NewCaptchaStore()

	for i := 0; i < 50; i++ {
		challenge, err := store.Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if challenge.ID == "" {
			t.Fatal("Expected a non-empty challenge ID")
		}

		answer := solve(t, challenge.Question)
		if answer < 0 {
			t.Errorf("Answer for %q is negative", challenge.Question)
		}
		if !store.Verify(challenge.ID, answer) {
			t.Errorf("Correct answer %d rejected for %q", answer, challenge.Question)
		}
	}
}

func TestCaptchaStore_WrongAnswer(t *testing.T) {
	store := NewCaptchaStore()

	challenge, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if store.Verify(challenge.ID, solve(t, challenge.Question)+1) {
		t.Error("Wrong answer accepted")
	}
}

func TestCaptchaStore_SingleUse(t *testing.T) {
	store := NewCaptchaStore()

	challenge, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	answer := solve(t, challenge.Question)

	if !store.Verify(challenge.ID, answer) {
		t.Fatal("First verification should succeed")
	}
	if store.Verify(challenge.ID, answer) {
		t.Error("Second verification against the same ID should fail")
	}
}

func TestCaptchaStore_ConsumedEvenWhenWrong(t *testing.T) {
	store := NewCaptchaStore()

	challenge, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	answer := solve(t, challenge.Question)

	if store.Verify(challenge.ID, answer+1) {
		t.Fatal("Wrong answer accepted")
	}
	// The failed attempt burned the challenge; the right answer no longer helps.
	if store.Verify(challenge.ID, answer) {
		t.Error("Challenge survived a failed verification")
	}
}

func TestCaptchaStore_UnknownID(t *testing.T) {
	store := NewCaptchaStore()
	if store.Verify("no-such-id", 4) {
		t.Error("Unknown challenge ID accepted")
	}
}

func TestCaptchaStore_Expired(t *testing.T) {
	store := NewCaptchaStore()

	challenge, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	answer := solve(t, challenge.Question)

	store.mu.Lock()
	rec := store.challenges[challenge.ID]
	rec.expiresAt = time.Now().Add(-time.Second)
	store.challenges[challenge.ID] = rec
	store.mu.Unlock()

	if store.Verify(challenge.ID, answer) {
		t.Error("Expired challenge accepted")
	}
}

func TestCaptchaStore_Cleanup(t *testing.T) {
	store := NewCaptchaStore()

	live, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	expired, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	store.mu.Lock()
	rec := store.challenges[expired.ID]
	rec.expiresAt = time.Now().Add(-time.Second)
	store.challenges[expired.ID] = rec
	store.mu.Unlock()

	if removed := store.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if !store.Verify(live.ID, solve(t, live.Question)) {
		t.Error("Live challenge should survive cleanup")
	}
}

func TestRandomInt_Bounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := randomInt(1, 10)
		if err != nil {
			t.Fatalf("randomInt() error = %v", err)
		}
		if n < 1 || n > 10 {
			t.Fatalf("randomInt(1, 10) = %d out of bounds", n)
		}
	}
}

func TestCaptchaStore_QuestionShape(t *testing.T) {
	store := NewCaptchaStore()

	challenge, err := store.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasSuffix(challenge.Question, "= ?") {
		t.Errorf("Question %q should end with '= ?'", challenge.Question)
	}
	for _, op := range []string{"+", "-", "*"} {
		if strings.Contains(challenge.Question, op) {
			return
		}
	}
	t.Errorf("Question %q has no recognized operator", challenge.Question)
}
