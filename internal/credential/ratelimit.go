package credential

import "time"

// RateLimiter decides whether a new secret may be issued for an entity, based
// on the entity's last-issuance timestamp and a fixed cooldown. A zero or
// negative cooldown disables the limiter (admin-triggered access-key
// regeneration is unrestricted but audited).
type RateLimiter struct {
	Cooldown time.Duration
}

// Allow reports whether issuing now is permitted. A nil lastSentAt means the
// entity has never been issued a secret.
func (l RateLimiter) Allow(lastSentAt *time.Time, now time.Time) bool {
	if l.Cooldown <= 0 || lastSentAt == nil {
		return true
	}
	return now.Sub(*lastSentAt) >= l.Cooldown
}

// RetryAfter returns the remaining wait before issuing is permitted again.
// Zero when Allow would return true.
func (l RateLimiter) RetryAfter(lastSentAt *time.Time, now time.Time) time.Duration {
	if l.Cooldown <= 0 || lastSentAt == nil {
		return 0
	}
	remaining := l.Cooldown - now.Sub(*lastSentAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
