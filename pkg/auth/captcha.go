package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

const captchaTTL = 5 * time.Minute

// CaptchaChallenge is a small arithmetic question presented to throttled
// clients. The answer stays server-side, keyed by the opaque ID.
type CaptchaChallenge struct {
	ID       string `json:"captcha_id"`
	Question string `json:"question"`
}

type captchaRecord struct {
	answer    int
	expiresAt time.Time
}

// CaptchaStore issues and verifies single-use arithmetic CAPTCHA
// challenges. Like the login throttle, state is process-local.
type CaptchaStore struct {
	mu         sync.Mutex
	challenges map[string]captchaRecord
}

// NewCaptchaStore creates an empty CAPTCHA store.
func NewCaptchaStore() *CaptchaStore {
	return &CaptchaStore{challenges: make(map[string]captchaRecord)}
}

// Generate produces a new challenge with small random operands.
// Subtraction is built larger-minus-smaller so the answer is never
// negative.
func (s *CaptchaStore) Generate() (CaptchaChallenge, error) {
	a, err := randomInt(1, 10)
	if err != nil {
		return CaptchaChallenge{}, err
	}
	b, err := randomInt(1, 10)
	if err != nil {
		return CaptchaChallenge{}, err
	}
	op, err := randomInt(0, 3)
	if err != nil {
		return CaptchaChallenge{}, err
	}

	var question string
	var answer int
	switch op {
	case 0:
		question = fmt.Sprintf("%d + %d = ?", a, b)
		answer = a + b
	case 1:
		if a < b {
			a, b = b, a
		}
		question = fmt.Sprintf("%d - %d = ?", a, b)
		answer = a - b
	default:
		question = fmt.Sprintf("%d * %d = ?", a, b)
		answer = a * b
	}

	challenge := CaptchaChallenge{
		ID:       uuid.NewString(),
		Question: question,
	}

	s.mu.Lock()
	s.challenges[challenge.ID] = captchaRecord{
		answer:    answer,
		expiresAt: time.Now().Add(captchaTTL),
	}
	s.mu.Unlock()

	return challenge, nil
}

// Verify checks an answer against a challenge. The challenge is consumed
// regardless of outcome: unknown IDs, expired challenges, and wrong
// answers all fail, and a second attempt against the same ID always fails.
func (s *CaptchaStore) Verify(id string, answer int) bool {
	s.mu.Lock()
	rec, ok := s.challenges[id]
	delete(s.challenges, id)
	s.mu.Unlock()

	if !ok || time.Now().After(rec.expiresAt) {
		return false
	}
	return rec.answer == answer
}

// Cleanup purges expired challenges.
func (s *CaptchaStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, rec := range s.challenges {
		if now.After(rec.expiresAt) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed
}

// randomInt returns a uniform random int in [min, max].
func randomInt(min, max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return min + int(n.Int64()), nil
}
