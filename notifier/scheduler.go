package notifier

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// maxIndividualNotifications caps how many per-email notifications a
	// single batch may produce; the rest collapse into one summary.
	maxIndividualNotifications = 5
	// notificationStagger spaces consecutive notifications apart so the
	// desktop transport does not coalesce or drop them.
	notificationStagger = 300 * time.Millisecond
)

// NotificationRequest is one message handed to the notification transport.
// Fire-and-forget: once dispatched it is not tracked, retried or cancelled.
type NotificationRequest struct {
	ID        string
	Title     string
	Body      string
	Link      string
	CanSnooze bool
}

// notificationSink accepts notification requests for display.  Delivery must
// not block the caller.
type notificationSink interface {
	Notify(req NotificationRequest)
}

// plannedNotification is a request paired with its relative dispatch time.
type plannedNotification struct {
	delay time.Duration
	req   NotificationRequest
}

// planNotifications lays out the dispatch schedule for a batch of
// newly-unnotified records: the first maxIndividualNotifications each get an
// individual notification at k*notificationStagger, and any overflow becomes
// one summary scheduled right after the last individual one.  Each plan holds
// its own copy of the record data taken now, so a timer firing later never
// reads shared mutable state.
func planNotifications(newEmails []EmailRecord) []plannedNotification {
	if len(newEmails) == 0 {
		return nil
	}

	shown := newEmails
	if len(shown) > maxIndividualNotifications {
		shown = shown[:maxIndividualNotifications]
	}

	plans := make([]plannedNotification, 0, len(shown)+1)
	for i, rec := range shown {
		plans = append(plans, plannedNotification{
			delay: time.Duration(i) * notificationStagger,
			req: NotificationRequest{
				ID:        uuid.NewString(),
				Title:     fmt.Sprintf("New email from %s", rec.Sender),
				Body:      rec.Subject,
				Link:      rec.Link,
				CanSnooze: true,
			},
		})
	}

	if extra := len(newEmails) - len(shown); extra > 0 {
		plans = append(plans, plannedNotification{
			delay: time.Duration(len(shown)) * notificationStagger,
			req: NotificationRequest{
				ID:        uuid.NewString(),
				Title:     "New Emails",
				Body:      summaryBody(extra),
				CanSnooze: true,
			},
		})
	}

	return plans
}

func summaryBody(extra int) string {
	plural := ""
	if extra > 1 {
		plural = "s"
	}
	return fmt.Sprintf("And %d more new email%s...", extra, plural)
}

// notificationScheduler dispatches a batch of new emails to the transport.
type notificationScheduler interface {
	schedule(newEmails []EmailRecord)
}

// timerScheduler is the real scheduler: one timer per planned notification.
type timerScheduler struct {
	sink notificationSink
}

func newTimerScheduler(sink notificationSink) notificationScheduler {
	return &timerScheduler{sink: sink}
}

func (s *timerScheduler) schedule(newEmails []EmailRecord) {
	for _, plan := range planNotifications(newEmails) {
		req := plan.req
		time.AfterFunc(plan.delay, func() {
			s.sink.Notify(req)
		})
	}
}
