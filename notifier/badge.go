package notifier

import "encoding/json"

// BadgeState is the visual state tag overlaid on the tray icon.
type BadgeState int

const (
	BadgeNone BadgeState = iota
	BadgeUnread
	BadgeSnoozed
	BadgeError
)

// deriveBadge maps the three state flags to a badge.  Precedence, highest
// first: error, snoozed, unread.  While snoozed the unread indicator is
// suppressed even when unread mail exists.
func deriveBadge(hasUnread, isSnoozed, isError bool) BadgeState {
	switch {
	case isError:
		return BadgeError
	case isSnoozed:
		return BadgeSnoozed
	case hasUnread:
		return BadgeUnread
	default:
		return BadgeNone
	}
}

func (b BadgeState) String() string {
	switch b {
	case BadgeUnread:
		return "unread"
	case BadgeSnoozed:
		return "snoozed"
	case BadgeError:
		return "error"
	default:
		return "none"
	}
}

// MarshalJSON renders the badge as its string tag for the control API.
func (b BadgeState) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}
