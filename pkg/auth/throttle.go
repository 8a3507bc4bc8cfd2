package auth

import (
	"sync"
	"time"
)

// Throttle defaults.
const (
	DefaultCaptchaThreshold = 2
	DefaultThrottleDelay    = 10 * time.Second
	DefaultThrottleWindow   = 15 * time.Minute
)

// ThrottleConfig holds login throttle configuration.
type ThrottleConfig struct {
	// CaptchaThreshold is the number of failed attempts within the window
	// after which a CAPTCHA and delay are required.
	CaptchaThreshold int
	// Delay is the fixed delay enforced before the credential check once
	// the threshold is reached.
	Delay time.Duration
	// Window is the sliding window in which failures accumulate.
	Window time.Duration
}

// ThrottleStatus is a pure read of the throttle state for one source IP.
type ThrottleStatus struct {
	RequiresCaptcha bool          `json:"requires_captcha"`
	Delay           time.Duration `json:"-"`
	DelaySeconds    int           `json:"delay_seconds"`
	FailedAttempts  int           `json:"failed_attempts"`
}

type throttleRecord struct {
	failures    int
	lastAttempt time.Time
	resetAt     time.Time
}

// LoginThrottle tracks failed login attempts per source IP in process
// memory. State is intentionally not shared across instances: the security
// property degrades gracefully under horizontal scaling rather than
// requiring distributed consistency. Swap the backing map for a shared
// store if that tradeoff changes.
type LoginThrottle struct {
	config ThrottleConfig

	mu      sync.Mutex
	records map[string]*throttleRecord
}

// NewLoginThrottle creates a throttle, filling zero config values with
// defaults.
func NewLoginThrottle(config ThrottleConfig) *LoginThrottle {
	if config.CaptchaThreshold == 0 {
		config.CaptchaThreshold = DefaultCaptchaThreshold
	}
	if config.Delay == 0 {
		config.Delay = DefaultThrottleDelay
	}
	if config.Window == 0 {
		config.Window = DefaultThrottleWindow
	}
	return &LoginThrottle{
		config:  config,
		records: make(map[string]*throttleRecord),
	}
}

// Status returns the current throttle state for an IP. Expired windows are
// resolved lazily here, not by timer.
func (t *LoginThrottle) Status(ip string) ThrottleStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	if !ok || time.Now().After(rec.resetAt) {
		return ThrottleStatus{}
	}

	status := ThrottleStatus{FailedAttempts: rec.failures}
	if rec.failures >= t.config.CaptchaThreshold {
		status.RequiresCaptcha = true
		status.Delay = t.config.Delay
		status.DelaySeconds = int(t.config.Delay.Seconds())
	}
	return status
}

// RecordFailure increments the failure counter for an IP, restarting the
// window if it had expired.
func (t *LoginThrottle) RecordFailure(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	rec, ok := t.records[ip]
	if !ok || now.After(rec.resetAt) {
		rec = &throttleRecord{}
		t.records[ip] = rec
	}
	rec.failures++
	rec.lastAttempt = now
	rec.resetAt = now.Add(t.config.Window)
}

// Clear removes the record for an IP entirely. Called on successful login.
func (t *LoginThrottle) Clear(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, ip)
}

// Cleanup purges expired records. It bounds memory growth and is not
// correctness-critical; lazy expiry in Status covers correctness.
func (t *LoginThrottle) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, rec := range t.records {
		if now.After(rec.resetAt) {
			delete(t.records, ip)
			removed++
		}
	}
	return removed
}
