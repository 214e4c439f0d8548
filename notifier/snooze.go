package notifier

import "time"

// snoozeDuration is how long a snooze lasts.  A second snooze while one is
// already active does not extend it.
const snoozeDuration = time.Hour

// snoozeManager holds the notification snooze state.  Expiry is detected
// lazily on read; nothing proactively wakes to unsnooze.  Owned and mutated
// exclusively by the orchestrator goroutine.
type snoozeManager struct {
	now   func() time.Time
	until time.Time // zero when inactive
}

func newSnoozeManager() *snoozeManager {
	return &snoozeManager{now: time.Now}
}

// isSnoozed reports whether a snooze is active, collapsing an expired snooze
// back to inactive as a side effect.
func (m *snoozeManager) isSnoozed() bool {
	if m.until.IsZero() {
		return false
	}
	if !m.now().Before(m.until) {
		m.until = time.Time{}
		return false
	}
	return true
}

func (m *snoozeManager) snooze() {
	m.until = m.now().Add(snoozeDuration)
}

func (m *snoozeManager) unsnooze() {
	m.until = time.Time{}
}

// toggle flips the snooze state and returns the new state.
func (m *snoozeManager) toggle() bool {
	if m.isSnoozed() {
		m.unsnooze()
		return false
	}
	m.snooze()
	return true
}

// snoozeFromTrigger activates a snooze unless one is already running.  Used
// by the notification action button; repeated clicks do not stack.
func (m *snoozeManager) snoozeFromTrigger() {
	if !m.isSnoozed() {
		m.snooze()
	}
}

// remaining returns how much snooze time is left, or zero when inactive.
func (m *snoozeManager) remaining() time.Duration {
	if !m.isSnoozed() {
		return 0
	}
	return m.until.Sub(m.now())
}
