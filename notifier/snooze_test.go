package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestSnooze() (*snoozeManager, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000000, 0)}
	m := &snoozeManager{now: func() time.Time { return clock.now }}
	return m, clock
}

func TestSnoozeInactiveByDefault(t *testing.T) {
	m, _ := newTestSnooze()
	require.False(t, m.isSnoozed())
	require.Zero(t, m.remaining())
}

func TestSnoozeToggle(t *testing.T) {
	m, _ := newTestSnooze()

	require.True(t, m.toggle())
	require.True(t, m.isSnoozed())

	require.False(t, m.toggle())
	require.False(t, m.isSnoozed())
}

func TestSnoozeLazyExpiry(t *testing.T) {
	m, clock := newTestSnooze()
	m.snooze()

	clock.advance(snoozeDuration - time.Second)
	require.True(t, m.isSnoozed())

	clock.advance(time.Second)
	require.False(t, m.isSnoozed())
	// Expiry collapsed the state; the manager is fully inactive now.
	require.True(t, m.until.IsZero())
}

func TestSnoozeExpiryExactBoundary(t *testing.T) {
	m, clock := newTestSnooze()
	m.snooze()

	// now == until counts as expired.
	clock.advance(snoozeDuration)
	require.False(t, m.isSnoozed())
}

func TestSnoozeFromTriggerDoesNotExtend(t *testing.T) {
	m, clock := newTestSnooze()
	m.snoozeFromTrigger()
	until := m.until

	clock.advance(10 * time.Minute)
	m.snoozeFromTrigger()
	require.Equal(t, until, m.until)
}

func TestSnoozeFromTriggerAfterExpiryStartsFresh(t *testing.T) {
	m, clock := newTestSnooze()
	m.snoozeFromTrigger()

	clock.advance(snoozeDuration + time.Minute)
	m.snoozeFromTrigger()
	require.True(t, m.isSnoozed())
	require.Equal(t, snoozeDuration, m.remaining())
}

func TestSnoozeRemaining(t *testing.T) {
	m, clock := newTestSnooze()
	m.snooze()

	clock.advance(15 * time.Minute)
	require.Equal(t, snoozeDuration-15*time.Minute, m.remaining())
}
